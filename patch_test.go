package rack_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vsariola/rack"
)

func TestSerializeRestore(t *testing.T) {
	g, ac := newGraph(t, rack.GraphOptions{})
	m, _ := newPanel(t, g, ac, "p")
	if _, err := m.SetParameter("level", 1.5); err != nil {
		t.Fatal(err)
	}
	if err := m.SetSwitch("mode", "b"); err != nil {
		t.Fatal(err)
	}
	slot := 3
	m.SetPosition(rack.PositionUpdate{Slot: &slot})
	m.Activate()
	st := m.Serialize()
	if st.ID != "p" || st.Kind != "panel" || !st.Active || st.Position.Slot != 3 {
		t.Errorf("unexpected snapshot %+v", st)
	}
	if st.Parameters["level"] != 1.5 || st.Switches["mode"] != "b" {
		t.Errorf("snapshot lost values: %v %v", st.Parameters, st.Switches)
	}

	g2, ac2 := newGraph(t, rack.GraphOptions{})
	restored, _ := newPanel(t, g2, ac2, "p")
	st.Parameters["bogus"] = "text"
	st.Parameters["unknown"] = 1.0
	if err := restored.Restore(st); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if v, _ := restored.ParameterValue("level"); v != 1.5 {
		t.Errorf("restored level = %v", v)
	}
	if v, _ := restored.SwitchValue("mode"); v != "b" {
		t.Errorf("restored switch = %v", v)
	}
	if !restored.IsActive() || restored.Position().Slot != 3 {
		t.Error("activation or position not restored")
	}
	st.Switches["mode"] = "zzz"
	if err := restored.Restore(st); err == nil {
		t.Error("restoring an invalid switch option should fail")
	}
}

func TestPatchReadWrite(t *testing.T) {
	g, ac := newGraph(t, rack.GraphOptions{})
	newPanel(t, g, ac, "a")
	newPanel(t, g, ac, "b")
	if _, err := g.Connect("a", "out", "b", "in"); err != nil {
		t.Fatal(err)
	}
	patch := g.Snapshot()
	patch.Name = "test"
	for _, format := range []rack.PatchFormat{rack.FormatYAML, rack.FormatJSON} {
		var buf bytes.Buffer
		if err := rack.WritePatch(&buf, patch, format); err != nil {
			t.Fatalf("WritePatch(%v) failed: %v", format, err)
		}
		got, err := rack.ReadPatch(&buf)
		if err != nil {
			t.Fatalf("ReadPatch(%v) failed: %v", format, err)
		}
		if got.Version != rack.PatchVersion || got.Name != "test" || len(got.Modules) != 2 || len(got.Connections) != 1 {
			t.Fatalf("format %v: unexpected patch %+v", format, got)
		}
		c := got.Connections[0]
		if c.SourceID != "a" || c.TargetID != "b" || c.SourceOutput != "out" || c.TargetInput != "in" {
			t.Errorf("format %v: connection %+v", format, c)
		}
		if i := got.FindModule("b"); i != 1 {
			t.Errorf("format %v: FindModule(b) = %d", format, i)
		}
	}
}

func TestReadPatchRejectsNewerVersion(t *testing.T) {
	_, err := rack.ReadPatch(strings.NewReader("version: 99\nmodules: []\n"))
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("expected a version error, got %v", err)
	}
	if _, err := rack.ReadPatch(strings.NewReader("{{{")); err == nil {
		t.Error("garbage parsed as a patch")
	}
}

func TestFormatForPath(t *testing.T) {
	for path, want := range map[string]rack.PatchFormat{
		"a.json":    rack.FormatJSON,
		"A.JSON":    rack.FormatJSON,
		"a.yml":     rack.FormatYAML,
		"no-suffix": rack.FormatYAML,
	} {
		if got := rack.FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %v, want %v", path, got, want)
		}
	}
}
