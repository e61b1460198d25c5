package rack

import "errors"

var (
	// ErrNotInitialized is returned when the Environment is used before
	// Initialize.
	ErrNotInitialized = errors.New("audio environment not initialized")
	// ErrInitialization wraps a failure of the native context factory.
	ErrInitialization = errors.New("audio environment initialization failed")

	ErrParameterNotFound = errors.New("parameter not found")
	ErrPortNotFound      = errors.New("port not found")
	ErrTopologySealed    = errors.New("ports and parameters can only be created during initialization")
	ErrDisposed          = errors.New("node has been disposed")

	ErrInvalidJackType    = errors.New("invalid jack type")
	ErrInvalidSwitchValue = errors.New("invalid switch value")
	ErrUnknownModuleKind  = errors.New("unknown module kind")

	ErrDuplicateNode         = errors.New("node already registered")
	ErrNodeNotFound          = errors.New("node not found")
	ErrInputAlreadyConnected = errors.New("input already connected")
	ErrConnectionLimit       = errors.New("connection limit reached")
	ErrConnectionNotFound    = errors.New("connection not found")
	// ErrConnectionFailed wraps the native error when linking two ports fails.
	ErrConnectionFailed = errors.New("connection failed")
	ErrFeedbackLoop     = errors.New("connection would create a feedback loop")
)
