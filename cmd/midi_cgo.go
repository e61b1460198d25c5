//go:build cgo

package cmd

import (
	"log/slog"

	"github.com/vsariola/rack/gomidi"
)

func NewMIDIInput(logger *slog.Logger) MIDIInput {
	return gomidi.NewContext(logger)
}
