package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/vsariola/rack"
	"github.com/vsariola/rack/cmd"
	"github.com/vsariola/rack/modules"
	"github.com/vsariola/rack/oto"
	"github.com/vsariola/rack/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	configFile := flag.String("config", "", "Configuration file. By default, rack/config.yml in the user config directory is used if it exists.")
	duration := flag.Duration("d", 0, "Stop playing after this long. By default, play until interrupted.")
	midiInput := flag.String("midi", "", "Open the first MIDI input whose name starts with this prefix; \"*\" opens the first input.")
	bindings := flag.String("bindings", "", "JSON file with MIDI controller bindings: a list of {control: {channel, control}, param: {module, param}}.")
	verbose := flag.Bool("verbose", false, "Log debug messages.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}
	if flag.NArg() != 1 || *help {
		flag.Usage()
		os.Exit(0)
	}
	cfg, err := cmd.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	logger := cmd.SetupLogging(cfg, *verbose)
	patch, err := cmd.ReadPatchFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	env := rack.NewEnvironment(oto.Factory(logger.With("component", "oto")), cfg.ContextOptions(), rack.WithEnvironmentLogger(logger.With("component", "environment")))
	ac, err := env.Initialize(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open the audio device: %v\n", err)
		os.Exit(1)
	}
	graph := rack.NewPatchGraph(cfg.GraphOptions(logger.With("component", "graph")))
	builder := modules.Builder{Graph: graph, Context: ac, MeterInterval: cfg.MeterInterval(), Logger: logger}
	if _, err := builder.Load(patch); err != nil {
		logger.Warn("patch loaded with errors", "err", err)
	}
	if err := env.Resume(ctx); err != nil {
		logger.Warn("could not resume audio", "err", err)
	}
	controls := rack.NewControlMap(graph, logger.With("component", "controlmap"))
	if *bindings != "" {
		b, err := os.ReadFile(*bindings)
		if err == nil {
			err = json.Unmarshal(b, controls)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not read MIDI bindings %v: %v\n", *bindings, err)
			os.Exit(1)
		}
	}
	midi := cmd.NewMIDIInput(logger.With("component", "midi"))
	defer midi.Close()
	if *midiInput != "" {
		if err := midi.TryToOpenBy(*midiInput, *midiInput == "*"); err != nil {
			logger.Warn("no MIDI input", "err", err)
		}
	}
	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}
	logger.Info("playing", "patch", flag.Arg(0), "modules", len(patch.Modules), "connections", len(patch.Connections))
loop:
	for {
		select {
		case msg := <-midi.Events():
			controls.Handle(msg)
		case <-timeout:
			break loop
		case <-ctx.Done():
			break loop
		}
	}
	for _, m := range graph.Modules() {
		m.Dispose()
	}
	if err := env.Close(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "could not close audio: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Rack command line utility for playing .yml/.json patch files.\nUsage: %s [flags] patch\n", os.Args[0])
	flag.PrintDefaults()
}
