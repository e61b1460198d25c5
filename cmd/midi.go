package cmd

import "gitlab.com/gomidi/midi/v2"

// MIDIInput is a source of MIDI messages, read on the goroutine owning the
// rack.
type MIDIInput interface {
	Events() <-chan midi.Message
	TryToOpenBy(namePrefix string, takeFirst bool) error
	Close()
}
