package cmd_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/vsariola/rack"
	"github.com/vsariola/rack/cmd"
	"github.com/vsariola/rack/modules"
	"github.com/vsariola/rack/native"
)

func TestBasicPatchRenders(t *testing.T) {
	patch, err := cmd.ReadPatchFile(filepath.Join("..", "patches", "basic.yml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := rack.DefaultConfig()
	cfg.Audio.SampleRate = 8000
	env := rack.NewEnvironment(native.Factory(), cfg.ContextOptions())
	ac, err := env.Initialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close(context.Background())
	graph := rack.NewPatchGraph(cfg.GraphOptions(nil))
	loaded, err := modules.Builder{Graph: graph, Context: ac, MeterInterval: cfg.MeterInterval()}.Load(patch)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer func() {
		for _, m := range loaded {
			m.Dispose()
		}
	}()
	if s := graph.Stats(); s.NodeCount != 4 || s.ConnectionCount != 3 {
		t.Fatalf("unexpected graph %+v", s)
	}
	buf := ac.(*native.Context).RenderFrames(4000)
	var p float64
	for _, v := range buf {
		p = math.Max(p, math.Abs(float64(v)))
	}
	if p == 0 || p > 1 {
		t.Errorf("patch peak %v", p)
	}
}

func TestReadPatchFileMissing(t *testing.T) {
	if _, err := cmd.ReadPatchFile("does-not-exist.yml"); err == nil {
		t.Error("expected an error")
	}
}
