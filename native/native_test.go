package native_test

import (
	"errors"
	"math"
	"testing"

	"github.com/vsariola/rack"
	"github.com/vsariola/rack/native"
)

const sampleRate = 8000

func newContext(channels int) *native.Context {
	return native.NewContext(rack.ContextOptions{SampleRate: sampleRate, Channels: channels})
}

func startTone(t *testing.T, c *native.Context, w rack.Waveform, freq float64) rack.ToneGenerator {
	t.Helper()
	tone, err := c.NewToneGenerator()
	if err != nil {
		t.Fatal(err)
	}
	tone.SetWaveform(w)
	tone.Frequency().SetValue(freq)
	if err := tone.Start(0); err != nil {
		t.Fatal(err)
	}
	return tone
}

func peak(buf []float32) float64 {
	var p float64
	for _, v := range buf {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

func TestRenderTone(t *testing.T) {
	c := newContext(2)
	tone := startTone(t, c, rack.Sine, 440)
	if err := tone.Connect(c.Destination()); err != nil {
		t.Fatal(err)
	}
	buf := c.RenderFrames(1000)
	if len(buf) != 2000 {
		t.Fatalf("rendered %d samples, want 2000", len(buf))
	}
	if p := peak(buf); p < 0.9 || p > 1 {
		t.Errorf("sine peak %v, want close to 1", p)
	}
	for i := 0; i < len(buf); i += 2 {
		if buf[i] != buf[i+1] {
			t.Fatalf("channels differ at frame %d", i/2)
		}
	}
	if got := c.CurrentTime(); got != 1000.0/sampleRate {
		t.Errorf("CurrentTime = %v after 1000 frames", got)
	}
}

func TestRenderAcrossBlocks(t *testing.T) {
	whole := newContext(1)
	split := newContext(1)
	for _, c := range []*native.Context{whole, split} {
		if err := startTone(t, c, rack.Sawtooth, 330).Connect(c.Destination()); err != nil {
			t.Fatal(err)
		}
	}
	want := whole.RenderFrames(3 * native.BlockSize)
	var got []float32
	for _, n := range []int{50, 100, 7, 3*native.BlockSize - 157} {
		got = append(got, split.RenderFrames(n)...)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d differs: %v != %v", i, got[i], want[i])
		}
	}
}

func TestSuspendedRendersSilence(t *testing.T) {
	c := newContext(1)
	if err := startTone(t, c, rack.Square, 100).Connect(c.Destination()); err != nil {
		t.Fatal(err)
	}
	var states []rack.ContextState
	cancel := c.OnStateChange(func(s rack.ContextState) { states = append(states, s) })
	defer cancel()
	if err := c.Suspend(); err != nil {
		t.Fatal(err)
	}
	buf := []float32{1, 1, 1}
	c.Render(buf)
	if peak(buf) != 0 || c.CurrentTime() != 0 {
		t.Errorf("suspended context rendered %v at time %v", buf, c.CurrentTime())
	}
	if err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	if p := peak(c.RenderFrames(10)); p != 1 {
		t.Errorf("resumed square wave peak %v", p)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Resume(); !errors.Is(err, native.ErrClosed) {
		t.Errorf("Resume after Close: expected ErrClosed, got %v", err)
	}
	if _, err := c.NewGainStage(); !errors.Is(err, native.ErrClosed) {
		t.Errorf("NewGainStage after Close: expected ErrClosed, got %v", err)
	}
	want := []rack.ContextState{rack.StateSuspended, rack.StateRunning, rack.StateClosed}
	if len(states) != len(want) {
		t.Fatalf("observed states %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("observed states %v, want %v", states, want)
		}
	}
}

func TestToneGeneratorIsOneShot(t *testing.T) {
	c := newContext(1)
	tone, err := c.NewToneGenerator()
	if err != nil {
		t.Fatal(err)
	}
	if err := tone.Stop(0); !errors.Is(err, native.ErrNotStarted) {
		t.Errorf("Stop before Start: expected ErrNotStarted, got %v", err)
	}
	if err := tone.Start(0); err != nil {
		t.Fatal(err)
	}
	if err := tone.Start(0); !errors.Is(err, native.ErrAlreadyStarted) {
		t.Errorf("second Start: expected ErrAlreadyStarted, got %v", err)
	}
	if err := tone.Connect(c.Destination()); err != nil {
		t.Fatal(err)
	}
	stopAt := 0.01
	if err := tone.Stop(stopAt); err != nil {
		t.Fatal(err)
	}
	buf := c.RenderFrames(2 * int(stopAt*sampleRate))
	if peak(buf[int(stopAt*sampleRate):]) != 0 {
		t.Error("tone sounded after its stop time")
	}
	if peak(buf[:int(stopAt*sampleRate)]) == 0 {
		t.Error("tone silent before its stop time")
	}
}

func TestConnectErrors(t *testing.T) {
	c := newContext(1)
	other := newContext(1)
	tone, _ := c.NewToneGenerator()
	gain, _ := c.NewGainStage()
	foreign, _ := other.NewGainStage()
	if err := tone.Connect(foreign); !errors.Is(err, native.ErrForeignReceiver) {
		t.Errorf("expected ErrForeignReceiver, got %v", err)
	}
	another, _ := c.NewToneGenerator()
	if err := tone.Connect(another); !errors.Is(err, native.ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}
	if err := tone.Disconnect(gain); !errors.Is(err, native.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := tone.Connect(gain); err != nil {
		t.Fatal(err)
	}
	if err := tone.Connect(gain); err != nil {
		t.Errorf("connecting twice: %v", err)
	}
	if err := tone.Disconnect(gain); err != nil {
		t.Errorf("Disconnect: %v", err)
	}
	if err := tone.Disconnect(gain); !errors.Is(err, native.ErrNotConnected) {
		t.Errorf("connecting twice left a second link: %v", err)
	}
}

func TestCycleRendersWithoutHanging(t *testing.T) {
	c := newContext(1)
	a, _ := c.NewGainStage()
	b, _ := c.NewGainStage()
	a.Gain().SetValue(0.5)
	b.Gain().SetValue(0.5)
	for _, link := range [][2]rack.Primitive{{a, b}, {b, a}, {a, c.Destination()}} {
		if err := link[0].Connect(link[1]); err != nil {
			t.Fatal(err)
		}
	}
	if err := startTone(t, c, rack.Square, 100).Connect(a); err != nil {
		t.Fatal(err)
	}
	buf := c.RenderFrames(4 * native.BlockSize)
	if p := peak(buf); p < 0.5 || p > 1 {
		t.Errorf("feedback chain peak %v", p)
	}
}

func TestParamAutomation(t *testing.T) {
	c := newContext(1)
	g, _ := c.NewGainStage()
	p := g.Gain()
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)
	c.RenderFrames(sampleRate / 2)
	if v := p.Value(); math.Abs(v-0.5) > 1e-3 {
		t.Errorf("ramp value at 0.5s = %v", v)
	}
	c.RenderFrames(sampleRate)
	if v := p.Value(); v != 1 {
		t.Errorf("value after the ramp = %v", v)
	}
	p.CancelScheduledValues(0)
	p.SetValue(0.25)
	if v := p.Value(); v != 0.25 {
		t.Errorf("value after cancel and set = %v", v)
	}
}

func TestParamModulationIsClamped(t *testing.T) {
	c := newContext(1)
	f, _ := c.NewFilterStage()
	tone := startTone(t, c, rack.Square, 100)
	amp, _ := c.NewGainStage()
	amp.Gain().SetValue(1e6)
	if err := tone.Connect(amp); err != nil {
		t.Fatal(err)
	}
	if err := amp.Connect(f.Frequency()); err != nil {
		t.Fatal(err)
	}
	probe, _ := c.NewAnalyser()
	if err := f.Connect(probe); err != nil {
		t.Fatal(err)
	}
	if err := probe.Connect(c.Destination()); err != nil {
		t.Fatal(err)
	}
	buf := c.RenderFrames(4 * native.BlockSize)
	for i, v := range buf {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("sample %d is %v", i, v)
		}
	}
}

func TestFilterAttenuates(t *testing.T) {
	for _, tc := range []struct {
		typ  rack.FilterType
		low  float64
		high float64
	}{
		{rack.Lowpass, 0, 0.05},
		{rack.Highpass, 0.7, 1.5},
	} {
		t.Run(string(tc.typ), func(t *testing.T) {
			c := newContext(1)
			f, _ := c.NewFilterStage()
			f.SetType(tc.typ)
			f.Frequency().SetValue(200)
			if err := startTone(t, c, rack.Sine, 3000).Connect(f); err != nil {
				t.Fatal(err)
			}
			if err := f.Connect(c.Destination()); err != nil {
				t.Fatal(err)
			}
			buf := c.RenderFrames(sampleRate / 4)
			if p := peak(buf[len(buf)/2:]); p < tc.low || p > tc.high {
				t.Errorf("3 kHz through a 200 Hz %v: peak %v, want %v..%v", tc.typ, p, tc.low, tc.high)
			}
		})
	}
}

func TestFilterSetTypeIgnoresUnknown(t *testing.T) {
	c := newContext(1)
	f, _ := c.NewFilterStage()
	f.SetType("allpass")
	if f.Type() != rack.Lowpass {
		t.Errorf("type = %v", f.Type())
	}
}

func TestAnalyserLevelSilent(t *testing.T) {
	c := newContext(1)
	a, _ := c.NewAnalyser()
	if rms, p := a.Level(); rms != 0 || p != 0 {
		t.Errorf("fresh analyser level rms=%v peak=%v", rms, p)
	}
}

func TestRenderFinishesPulledBlock(t *testing.T) {
	c := newContext(1)
	tone := startTone(t, c, rack.Square, 100)
	if err := tone.Connect(c.Destination()); err != nil {
		t.Fatal(err)
	}
	c.RenderFrames(native.BlockSize - 12)
	tone.DisconnectAll()
	if p := peak(c.RenderFrames(12)); p != 1 {
		t.Errorf("rest of the pulled block peak %v, want 1", p)
	}
	if p := peak(c.RenderFrames(native.BlockSize)); p != 0 {
		t.Errorf("next block after disconnect peak %v, want 0", p)
	}
}

func TestAnalyserLevel(t *testing.T) {
	c := newContext(1)
	a, _ := c.NewAnalyser()
	if err := startTone(t, c, rack.Square, 100).Connect(a); err != nil {
		t.Fatal(err)
	}
	if err := a.Connect(c.Destination()); err != nil {
		t.Fatal(err)
	}
	c.RenderFrames(2 * a.FFTSize())
	rms, p := a.Level()
	if math.Abs(float64(rms)-1) > 1e-6 || p != 1 {
		t.Errorf("square wave level rms=%v peak=%v", rms, p)
	}
	data := make([]float32, 16)
	if n := a.TimeDomainData(data); n != 16 || peak(data) != 1 {
		t.Errorf("TimeDomainData copied %d samples %v", n, data)
	}
}
