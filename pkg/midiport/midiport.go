// Package midiport adapts an OS MIDI device to the transport's byte
// channel using gomidi with the rtmidi backend.
package midiport

import (
	"fmt"
	"sync"

	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// DefaultPortName is the substring matched against the OS port list
// when no port is configured.
const DefaultPortName = "Deluge"

// Port is a connected MIDI in/out pair. It satisfies the transport's
// Port interface on the output side and feeds received bytes to the
// callback given at Open.
type Port struct {
	in  drivers.In
	out drivers.Out

	mu     sync.Mutex
	stop   func()
	closed bool
}

// Open finds the first in/out port pair whose name contains name
// (case-insensitive) and starts listening. Every sysex delivery,
// complete or fragmented, is handed to feed.
func Open(name string, feed func([]byte)) (*Port, error) {
	if name == "" {
		name = DefaultPortName
	}

	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("no MIDI input matching %q: %w", name, err)
	}
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("no MIDI output matching %q: %w", name, err)
	}

	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("opening MIDI input %q: %w", in.String(), err)
	}
	if err := out.Open(); err != nil {
		in.Close()
		return nil, fmt.Errorf("opening MIDI output %q: %w", out.String(), err)
	}

	p := &Port{in: in, out: out}
	stop, err := in.Listen(func(data []byte, milliseconds int32) {
		feed(data)
	}, drivers.ListenConfig{
		SysEx:           true,
		SysExBufferSize: 1 << 16,
		OnErr: func(err error) {
			logger.Warn().Err(err).Msg("midi receive error")
		},
	})
	if err != nil {
		in.Close()
		out.Close()
		return nil, fmt.Errorf("listening on %q: %w", in.String(), err)
	}
	p.stop = stop

	logger.Debug().Str("in", in.String()).Str("out", out.String()).Msg("midi ports opened")
	return p, nil
}

// Send transmits one complete sysex frame.
func (p *Port) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("midi port closed")
	}
	return p.out.Send(data)
}

// Connected reports whether the port pair is still open.
func (p *Port) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.in.IsOpen() && p.out.IsOpen()
}

// Name returns the OS name of the output port.
func (p *Port) Name() string {
	return p.out.String()
}

// Close stops listening and releases both ports and the driver.
func (p *Port) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.stop != nil {
		p.stop()
	}
	p.in.Close()
	p.out.Close()
	midi.CloseDriver()
}

// ListPorts enumerates the OS MIDI port names for `delctl config ports`.
func ListPorts() (ins []string, outs []string) {
	for _, p := range midi.GetInPorts() {
		ins = append(ins, p.String())
	}
	for _, p := range midi.GetOutPorts() {
		outs = append(outs, p.String())
	}
	return ins, outs
}
