// Package gomidi opens rtmidi input devices and forwards their messages on a
// channel, so that they can be applied to the rack from the goroutine that
// owns the patch graph.
package gomidi

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	RTMIDIContext struct {
		driver             *rtmididrv.Driver
		currentIn          drivers.In
		stop               func()
		inputDevices       []RTMIDIDevice
		devicesInitialized bool
		events             chan midi.Message
		logger             *slog.Logger
	}

	RTMIDIDevice struct {
		context *RTMIDIContext
		in      drivers.In
	}
)

var ErrNoDriver = errors.New("no MIDI driver available")

// NewContext opens the driver. If that fails the context still works but
// has no devices.
func NewContext(logger *slog.Logger) *RTMIDIContext {
	if logger == nil {
		logger = slog.Default().With("component", "midi")
	}
	m := RTMIDIContext{events: make(chan midi.Message, 1024), logger: logger}
	var err error
	if m.driver, err = rtmididrv.New(); err != nil {
		logger.Warn("MIDI driver unavailable", "err", err)
		m.driver = nil
	}
	return &m
}

// Events delivers received messages. Messages are dropped when nobody keeps
// up with reading.
func (c *RTMIDIContext) Events() <-chan midi.Message { return c.events }

func (c *RTMIDIContext) InputDevices(yield func(RTMIDIDevice) bool) {
	if c.devicesInitialized {
		for _, device := range c.inputDevices {
			if !yield(device) {
				break
			}
		}
		return
	}
	if c.driver == nil {
		return
	}
	ins, err := c.driver.Ins()
	if err != nil {
		c.logger.Warn("listing MIDI inputs failed", "err", err)
		return
	}
	for i := 0; i < len(ins); i++ {
		device := RTMIDIDevice{context: c, in: ins[i]}
		c.inputDevices = append(c.inputDevices, device)
		if !yield(device) {
			break
		}
	}
	c.devicesInitialized = true
}

// Open an input device while closing the currently open if necessary.
func (d RTMIDIDevice) Open() error {
	c := d.context
	if c.currentIn == d.in {
		return nil
	}
	if c.driver == nil {
		return ErrNoDriver
	}
	c.closeInput()
	if err := d.in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err := midi.ListenTo(d.in, c.handleMessage)
	if err != nil {
		d.in.Close()
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	c.currentIn, c.stop = d.in, stop
	c.logger.Info("MIDI input opened", "device", d.String())
	return nil
}

func (d RTMIDIDevice) String() string {
	return d.in.String()
}

func (c *RTMIDIContext) closeInput() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.currentIn = nil
}

func (c *RTMIDIContext) Close() {
	if c.driver == nil {
		return
	}
	c.closeInput()
	c.driver.Close()
}

func (c *RTMIDIContext) HasDeviceOpen() bool {
	return c.currentIn != nil && c.currentIn.IsOpen()
}

// TryToOpenBy opens the first input whose name starts with namePrefix, or
// simply the first input if takeFirst is set.
func (c *RTMIDIContext) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	for input := range c.InputDevices {
		if takeFirst || strings.HasPrefix(input.String(), namePrefix) {
			return input.Open()
		}
	}
	if takeFirst {
		return errors.New("could not find any MIDI input")
	}
	return fmt.Errorf("could not find any MIDI input starting with %q", namePrefix)
}

func (c *RTMIDIContext) handleMessage(msg midi.Message, timestampms int32) {
	select {
	case c.events <- msg: // if the channel is full, just drop the message
	default:
	}
}
