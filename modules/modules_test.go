package modules_test

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/vsariola/rack"
	"github.com/vsariola/rack/modules"
	"github.com/vsariola/rack/native"
)

// blockFrames keeps renders on block boundaries so a state change takes
// effect on the next render.
const blockFrames = 4 * native.BlockSize

func newBuilder() (modules.Builder, *native.Context) {
	ac := native.NewContext(rack.ContextOptions{SampleRate: 8000, Channels: 1})
	return modules.Builder{Graph: rack.NewPatchGraph(rack.GraphOptions{}), Context: ac, MeterInterval: time.Hour}, ac
}

func peak(buf []float32) float64 {
	var p float64
	for _, v := range buf {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

// oscillatorToOutput builds and activates osc -> out.
func oscillatorToOutput(t *testing.T, b modules.Builder) (*modules.Oscillator, *modules.Output) {
	t.Helper()
	osc, err := modules.NewOscillator(b, rack.ModuleConfig{ID: "osc"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := modules.NewOutput(b, rack.ModuleConfig{ID: "out"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Graph.Connect("osc", "output", "out", "input"); err != nil {
		t.Fatal(err)
	}
	osc.Activate()
	out.Activate()
	return osc, out
}

func TestKinds(t *testing.T) {
	want := []string{"filter", "oscillator", "output", "vca"}
	if got := modules.Kinds(); !slices.Equal(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
}

func TestBuilderNew(t *testing.T) {
	b, _ := newBuilder()
	for _, kind := range modules.Kinds() {
		m, err := b.New(kind, rack.ModuleConfig{})
		if err != nil {
			t.Fatalf("New(%q) failed: %v", kind, err)
		}
		if m.Kind() != kind || m.Description() == "" {
			t.Errorf("New(%q) gave kind %q description %q", kind, m.Kind(), m.Description())
		}
		for _, j := range m.UI().InputJacks {
			if _, ok := m.Input(j.Port); !ok {
				t.Errorf("%v: jack %v has no input", kind, j.ID)
			}
		}
	}
	if _, err := b.New("theremin", rack.ModuleConfig{}); !errors.Is(err, rack.ErrUnknownModuleKind) {
		t.Errorf("expected ErrUnknownModuleKind, got %v", err)
	}
	if _, err := (modules.Builder{}).New(modules.KindVCA, rack.ModuleConfig{}); err == nil {
		t.Error("a builder without graph and context created a module")
	}
}

func TestOscillatorDefaults(t *testing.T) {
	b, _ := newBuilder()
	osc, err := modules.NewOscillator(b, rack.ModuleConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if osc.Waveform() != rack.Sine || osc.Frequency() != 440 {
		t.Errorf("defaults: %v at %v Hz", osc.Waveform(), osc.Frequency())
	}
	if osc.Size() != 8 || osc.Name() != "Oscillator" {
		t.Errorf("size %v name %q", osc.Size(), osc.Name())
	}
	if err := osc.SetWaveform("noise"); !errors.Is(err, rack.ErrInvalidSwitchValue) {
		t.Errorf("expected ErrInvalidSwitchValue, got %v", err)
	}
}

func TestOscillatorWaveformKeepsConnections(t *testing.T) {
	b, ac := newBuilder()
	osc, out := oscillatorToOutput(t, b)
	if err := osc.SetWaveform(rack.Square); err != nil {
		t.Fatal(err)
	}
	if v, _ := osc.SwitchValue("waveform"); v != "square" {
		t.Errorf("switch shows %q", v)
	}
	if len(b.Graph.Connections()) != 1 {
		t.Fatal("changing the waveform dropped the connection")
	}
	// square at level 0.5 through volume 0.7
	if p := peak(ac.RenderFrames(1000)); math.Abs(p-0.35) > 1e-3 {
		t.Errorf("output peak %v, want 0.35", p)
	}
	out.Dispose()
	if _, err := b.Graph.Connect("osc", "output", "osc", "fm"); !errors.Is(err, rack.ErrFeedbackLoop) {
		t.Errorf("self patch: expected ErrFeedbackLoop, got %v", err)
	}
}

func TestOscillatorRestarts(t *testing.T) {
	b, ac := newBuilder()
	osc, _ := oscillatorToOutput(t, b)
	ac.RenderFrames(blockFrames)
	osc.Deactivate()
	if p := peak(ac.RenderFrames(blockFrames)); p != 0 {
		t.Errorf("deactivated oscillator still sounds: %v", p)
	}
	if s, _ := osc.LEDState("active"); s.On {
		t.Error("active LED on after Deactivate")
	}
	osc.Activate()
	if p := peak(ac.RenderFrames(blockFrames)); p == 0 {
		t.Error("reactivated oscillator is silent")
	}
}

func TestOutputGainAndMute(t *testing.T) {
	b, ac := newBuilder()
	_, out := oscillatorToOutput(t, b)
	if err := out.SetSwitch("mute", "on"); err != nil {
		t.Fatal(err)
	}
	if p := peak(ac.RenderFrames(blockFrames)); p != 0 {
		t.Errorf("muted output peak %v", p)
	}
	if err := out.SetSwitch("mute", "off"); err != nil {
		t.Fatal(err)
	}
	if _, err := out.SetParameter("volume", 1); err != nil {
		t.Fatal(err)
	}
	if p := peak(ac.RenderFrames(blockFrames)); p < 0.45 || p > 0.5 {
		t.Errorf("full volume peak %v, want close to 0.5", p)
	}
	out.Deactivate()
	if p := peak(ac.RenderFrames(blockFrames)); p != 0 {
		t.Errorf("inactive output peak %v", p)
	}
}

func TestOutputMetering(t *testing.T) {
	b, ac := newBuilder()
	osc, out := oscillatorToOutput(t, b)
	if err := osc.SetWaveform(rack.Square); err != nil {
		t.Fatal(err)
	}
	if !out.Metering() {
		t.Fatal("active output is not metering")
	}
	ac.RenderFrames(4096)
	out.Measure()
	rms, p := out.Level()
	if math.Abs(rms-0.35) > 1e-3 || math.Abs(p-0.35) > 1e-3 {
		t.Errorf("level rms=%v peak=%v, want 0.35", rms, p)
	}
	if db := out.LevelDB(); math.Abs(db-rack.GainToDB(0.35)) > 0.01 {
		t.Errorf("LevelDB = %v", db)
	}
	if s, _ := out.LEDState("level"); !s.On || s.Intensity <= 0 || s.Intensity >= 1 {
		t.Errorf("level LED %+v", s)
	}
	if s, _ := out.LEDState("clip"); s.On {
		t.Error("clip LED lit below the threshold")
	}
	out.Dispose()
	if out.Metering() {
		t.Error("metering continues after Dispose")
	}
}

func TestOutputMeterTicks(t *testing.T) {
	b, ac := newBuilder()
	b.MeterInterval = time.Millisecond
	_, out := oscillatorToOutput(t, b)
	defer out.Dispose()
	ac.RenderFrames(4096)
	deadline := time.Now().Add(time.Second)
	for {
		if rms, _ := out.Level(); rms > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("periodic meter never reported a level")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestOutputMeterStopsOnDeactivate(t *testing.T) {
	b, _ := newBuilder()
	b.MeterInterval = time.Millisecond
	_, out := oscillatorToOutput(t, b)
	out.Deactivate()
	if out.Metering() {
		t.Error("metering continues after Deactivate")
	}
	if rms, _ := out.Level(); rms != 0 {
		t.Errorf("level %v after Deactivate", rms)
	}
}

func TestFilterType(t *testing.T) {
	b, _ := newBuilder()
	f, err := modules.NewFilter(b, rack.ModuleConfig{ID: "f"})
	if err != nil {
		t.Fatal(err)
	}
	if f.Type() != rack.Lowpass {
		t.Errorf("default type %v", f.Type())
	}
	if err := f.SetType(rack.Highpass); err != nil {
		t.Fatal(err)
	}
	st := f.Serialize()
	if st.State["type"] != "highpass" || st.Switches["type"] != "highpass" {
		t.Errorf("serialized %+v", st)
	}
	if err := f.SetType("comb"); err == nil {
		t.Error("unknown filter type accepted")
	}
}

func TestVCALED(t *testing.T) {
	b, _ := newBuilder()
	v, err := modules.NewVCA(b, rack.ModuleConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := v.LEDState("level"); s.Intensity != 0.5 {
		t.Errorf("initial LED %+v", s)
	}
	if _, err := v.SetParameter("gain", 1); err != nil {
		t.Fatal(err)
	}
	if s, _ := v.LEDState("level"); !s.On || s.Intensity != 1 {
		t.Errorf("LED after gain 1: %+v", s)
	}
	if _, ok := v.Input("cv"); !ok {
		t.Error("no cv input")
	}
}

func TestDeserialize(t *testing.T) {
	b, _ := newBuilder()
	osc, err := modules.NewOscillator(b, rack.ModuleConfig{ID: "osc", Name: "Bass"})
	if err != nil {
		t.Fatal(err)
	}
	if err := osc.SetWaveform(rack.Triangle); err != nil {
		t.Fatal(err)
	}
	if _, err := osc.SetParameter("frequency", 110); err != nil {
		t.Fatal(err)
	}
	osc.Activate()
	st := osc.Serialize()

	b2, _ := newBuilder()
	m, err := b2.Deserialize(st)
	if err != nil {
		t.Fatal(err)
	}
	restored, ok := m.Impl().(*modules.Oscillator)
	if !ok {
		t.Fatalf("deserialized implementation is %T", m.Impl())
	}
	if restored.Waveform() != rack.Triangle || restored.Frequency() != 110 || !m.IsActive() || m.Name() != "Bass" {
		t.Errorf("restored %v %v active=%v name=%q", restored.Waveform(), restored.Frequency(), m.IsActive(), m.Name())
	}
	st.Kind = "theremin"
	if _, err := b2.Deserialize(st); !errors.Is(err, rack.ErrUnknownModuleKind) {
		t.Errorf("expected ErrUnknownModuleKind, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	b, ac := newBuilder()
	oscillatorToOutput(t, b)
	patch := b.Graph.Snapshot()
	patch.Connections = append(patch.Connections, rack.Connection{SourceID: "osc", SourceOutput: "output", TargetID: "missing", TargetInput: "input"})

	b2, ac2 := newBuilder()
	loaded, err := b2.Load(patch)
	if !errors.Is(err, rack.ErrNodeNotFound) {
		t.Errorf("expected the bad connection to be reported, got %v", err)
	}
	if len(loaded) != 2 || len(b2.Graph.Connections()) != 1 {
		t.Fatalf("loaded %d modules and %d connections", len(loaded), len(b2.Graph.Connections()))
	}
	want := ac.RenderFrames(1000)
	got := ac2.RenderFrames(1000)
	if math.Abs(peak(want)-peak(got)) > 1e-6 {
		t.Errorf("loaded patch peak %v, original %v", peak(got), peak(want))
	}
	for _, m := range loaded {
		m.Dispose()
	}

	patch.Modules = append(patch.Modules, rack.ModuleState{ID: "x", Kind: "theremin"})
	b3, _ := newBuilder()
	if loaded, err := b3.Load(patch); err == nil || loaded != nil {
		t.Errorf("Load with an unknown kind returned %v, %v", loaded, err)
	}
	if n := b3.Graph.Stats().NodeCount; n != 0 {
		t.Errorf("%d modules left after a failed Load", n)
	}
}
