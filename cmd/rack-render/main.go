package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vsariola/rack"
	"github.com/vsariola/rack/cmd"
	"github.com/vsariola/rack/modules"
	"github.com/vsariola/rack/native"
	"github.com/vsariola/rack/version"
)

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	seconds := flag.Float64("d", 5, "Length of the rendering in seconds.")
	configFile := flag.String("config", "", "Configuration file. By default, rack/config.yml in the user config directory is used if it exists.")
	rawOut := flag.Bool("r", false, "Output the rendering as .raw file. By default, saves interleaved float32 samples.")
	wavOut := flag.Bool("w", false, "Output the rendering as .wav file (default when no other output is defined).")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	verbose := flag.Bool("verbose", false, "Log debug messages.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut {
		*wavOut = true
	}
	cfg, err := cmd.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	logger := cmd.SetupLogging(cfg, *verbose)
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				_, err := os.Stdout.Write(contents)
				return err
			}
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %w", err)
				}
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %w", dir, err)
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %w", f, err)
			}
			return nil
		}
		patch, err := cmd.ReadPatchFile(filename)
		if err != nil {
			return err
		}
		buffer, format, err := render(patch, cfg, *seconds)
		if err != nil {
			return err
		}
		logger.Debug("rendered", "patch", filename, "samples", len(buffer))
		if *rawOut {
			raw, err := rack.Raw(buffer, *pcm)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %w", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %w", err)
			}
		}
		if *wavOut {
			wav, err := rack.Wav(buffer, format, *pcm)
			if err != nil {
				return fmt.Errorf("could not generate .wav file: %w", err)
			}
			if err := output(".wav", wav); err != nil {
				return fmt.Errorf("error outputting .wav file: %w", err)
			}
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if err := process(param); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

// render loads the patch into a fresh offline context and renders it.
func render(patch rack.Patch, cfg rack.Config, seconds float64) ([]float32, rack.AudioFormat, error) {
	ctx := context.Background()
	env := rack.NewEnvironment(native.Factory(), cfg.ContextOptions())
	ac, err := env.Initialize(ctx)
	if err != nil {
		return nil, rack.AudioFormat{}, err
	}
	defer env.Close(ctx)
	graph := rack.NewPatchGraph(cfg.GraphOptions(nil))
	builder := modules.Builder{Graph: graph, Context: ac, MeterInterval: cfg.MeterInterval()}
	loaded, err := builder.Load(patch)
	if loaded == nil && err != nil {
		return nil, rack.AudioFormat{}, err
	}
	defer func() {
		for _, m := range loaded {
			m.Dispose()
		}
	}()
	if err != nil {
		slog.Warn("patch loaded with errors", "err", err)
	}
	nc := ac.(*native.Context)
	buffer := nc.RenderFrames(int(seconds * nc.SampleRate()))
	return buffer, rack.AudioFormat{SampleRate: int(nc.SampleRate()), Channels: nc.Channels()}, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Rack command line utility for rendering .yml/.json patch files to .wav/.raw.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
