//go:build !cgo

package cmd

import (
	"errors"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
)

// with no cgo, we cannot use MIDI, so return a null input
func NewMIDIInput(logger *slog.Logger) MIDIInput {
	return nullMIDIInput{}
}

type nullMIDIInput struct{}

func (nullMIDIInput) Events() <-chan midi.Message { return nil }
func (nullMIDIInput) Close()                      {}
func (nullMIDIInput) TryToOpenBy(string, bool) error {
	return errors.New("MIDI support was not compiled in (cgo disabled)")
}
