// Package cmd holds the plumbing shared by the rack command line tools.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vsariola/rack"
)

// LoadConfig reads path, or the user config when path is empty.
func LoadConfig(path string) (rack.Config, error) {
	if path == "" {
		return rack.UserConfig()
	}
	return rack.LoadConfig(path)
}

// SetupLogging installs a text slog handler on stderr at the configured
// level; verbose forces debug.
func SetupLogging(cfg rack.Config, verbose bool) *slog.Logger {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// ReadPatchFile reads a .yml or .json patch.
func ReadPatchFile(filename string) (rack.Patch, error) {
	f, err := os.Open(filename)
	if err != nil {
		return rack.Patch{}, fmt.Errorf("could not read file %v: %w", filename, err)
	}
	defer f.Close()
	p, err := rack.ReadPatch(f)
	if err != nil {
		return rack.Patch{}, fmt.Errorf("could not read patch %v: %w", filename, err)
	}
	return p, nil
}
