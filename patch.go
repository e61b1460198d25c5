package rack

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	// Patch is the complete saved state of a rack: every module with its
	// placement and parameters, and the connections between them.
	Patch struct {
		Version     int           `json:"version"`
		Name        string        `yaml:",omitempty" json:"name,omitempty"`
		Modules     []ModuleState `json:"modules"`
		Connections []Connection  `yaml:",omitempty" json:"connections,omitempty"`
	}

	PatchFormat int
)

const PatchVersion = 1

const (
	FormatYAML PatchFormat = iota
	FormatJSON
)

// Snapshot captures every registered module and every connection.
func (g *PatchGraph) Snapshot() Patch {
	p := Patch{Version: PatchVersion}
	for _, m := range g.Modules() {
		p.Modules = append(p.Modules, m.Serialize())
	}
	p.Connections = g.Connections()
	return p
}

// Copy makes a deep copy of a Patch.
func (p Patch) Copy() Patch {
	ret := Patch{Version: p.Version, Name: p.Name}
	ret.Modules = make([]ModuleState, len(p.Modules))
	for i, m := range p.Modules {
		ret.Modules[i] = m.Copy()
	}
	ret.Connections = append([]Connection(nil), p.Connections...)
	return ret
}

// Copy makes a deep copy of a ModuleState.
func (s ModuleState) Copy() ModuleState {
	ret := s
	ret.Parameters = make(map[string]any, len(s.Parameters))
	for k, v := range s.Parameters {
		ret.Parameters[k] = v
	}
	ret.Switches = copyStrings(s.Switches)
	ret.State = copyStrings(s.State)
	return ret
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	ret := make(map[string]string, len(m))
	for k, v := range m {
		ret[k] = v
	}
	return ret
}

// FindModule returns the index of the module state with the given id, or -1.
func (p Patch) FindModule(id string) int {
	for i, m := range p.Modules {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// ReadPatch decodes a patch from JSON or YAML; JSON is tried first.
func ReadPatch(r io.Reader) (Patch, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Patch{}, fmt.Errorf("read patch: %w", err)
	}
	var patch Patch
	if errJSON := json.Unmarshal(b, &patch); errJSON != nil {
		patch = Patch{}
		if errYaml := yaml.Unmarshal(b, &patch); errYaml != nil {
			return Patch{}, fmt.Errorf("the patch could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	if patch.Version > PatchVersion {
		return Patch{}, fmt.Errorf("patch version %d is newer than supported version %d", patch.Version, PatchVersion)
	}
	return patch, nil
}

// WritePatch encodes a patch in the given format.
func WritePatch(w io.Writer, p Patch, format PatchFormat) error {
	var contents []byte
	var err error
	switch format {
	case FormatJSON:
		contents, err = json.MarshalIndent(p, "", "  ")
	default:
		contents, err = yaml.Marshal(p)
	}
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	if _, err := w.Write(contents); err != nil {
		return fmt.Errorf("write patch: %w", err)
	}
	return nil
}

// FormatForPath picks the patch format from a file extension.
func FormatForPath(path string) PatchFormat {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}
