package rack

type (
	// Input is a named attachment point that receives a signal. Connected is
	// maintained by Output.connect/disconnect; the PatchGraph, not the port,
	// makes sure an input has at most one producer.
	Input struct {
		name      string
		receiver  Receiver
		connected bool
	}

	// Output is a named attachment point that produces a signal and tracks
	// the inputs it currently feeds (its fan-out).
	Output struct {
		name      string
		primitive Primitive
		targets   []*Input
	}
)

func (i *Input) Name() string       { return i.name }
func (i *Input) Receiver() Receiver { return i.receiver }
func (i *Input) Connected() bool    { return i.connected }

func (o *Output) Name() string         { return o.name }
func (o *Output) Primitive() Primitive { return o.primitive }

// Targets returns a copy of the fan-out set.
func (o *Output) Targets() []*Input {
	ret := make([]*Input, len(o.targets))
	copy(ret, o.targets)
	return ret
}

func (o *Output) feeds(in *Input) bool {
	for _, t := range o.targets {
		if t == in {
			return true
		}
	}
	return false
}

func (o *Output) connect(in *Input) error {
	if o.feeds(in) {
		return nil
	}
	if err := o.primitive.Connect(in.receiver); err != nil {
		return err
	}
	o.targets = append(o.targets, in)
	in.connected = true
	return nil
}

// disconnect unlinks one target. The port bookkeeping is updated even if the
// native side reports an error, which is returned.
func (o *Output) disconnect(in *Input) error {
	for i, t := range o.targets {
		if t == in {
			o.targets = append(o.targets[:i], o.targets[i+1:]...)
			in.connected = false
			return o.primitive.Disconnect(in.receiver)
		}
	}
	return nil
}

func (o *Output) disconnectAll() error {
	var firstErr error
	for len(o.targets) > 0 {
		if err := o.disconnect(o.targets[0]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
