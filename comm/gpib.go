package comm

import (
	"fmt"
	"time"
)

// GPIBModel selects the adapter command dialect.
type GPIBModel string

const (
	// GPIBPrologix speaks the Prologix "++" dialect over USB or Ethernet.
	GPIBPrologix GPIBModel = "prologix"
	// GPIBGalvant speaks the Galvant Industries "+cmd:arg" dialect.
	GPIBGalvant GPIBModel = "galvant"
)

// GPIBBackend multiplexes instruments on a GPIB bus over one serial or
// socket link to a USB adapter. Each transaction re-asserts the bus
// address before transmitting, so several GPIBBackends at different
// addresses can safely share one adapter link provided they share one
// Communicator lock. Adapter acknowledgement echo is swallowed and never
// surfaces as instrument response data.
type GPIBBackend struct {
	inner   Backend
	model   GPIBModel
	busAddr int

	// adapterTerm terminates adapter-bound command lines. Galvant
	// firmware expects CR; Prologix expects LF.
	adapterTerm []byte
	// echo is a firmware quirk: some adapters repeat each adapter
	// command back on the serial link before the instrument response.
	echo bool
}

type GPIBOption func(*GPIBBackend)

// WithAdapterEcho enables swallowing of one echoed line after each
// adapter command, for firmware that repeats commands back.
func WithAdapterEcho() GPIBOption {
	return func(g *GPIBBackend) { g.echo = true }
}

// OpenGPIB wraps an already-open serial or socket backend connected to a
// GPIB-USB adapter and configures the adapter for controller mode.
func OpenGPIB(inner Backend, busAddr int, model GPIBModel, opts ...GPIBOption) (*GPIBBackend, error) {
	if busAddr < 1 || busAddr > 30 {
		return nil, connErr(KindGPIB, fmt.Sprintf("%s/%d", inner.Addr(), busAddr),
			fmt.Errorf("gpib bus address must be 1-30, got %d", busAddr))
	}
	g := &GPIBBackend{
		inner:       inner,
		model:       model,
		busAddr:     busAddr,
		adapterTerm: []byte("\n"),
	}
	if model == GPIBGalvant {
		g.adapterTerm = []byte("\r")
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.configure(); err != nil {
		_ = inner.Close()
		return nil, connErr(KindGPIB, g.Addr(), err)
	}
	return g, nil
}

func (g *GPIBBackend) Kind() Kind { return KindGPIB }

func (g *GPIBBackend) Addr() string {
	return fmt.Sprintf("%s/%d", g.inner.Addr(), g.busAddr)
}

func (g *GPIBBackend) IsOpen() bool { return g.inner.IsOpen() }
func (g *GPIBBackend) Close() error { return g.inner.Close() }

// BusAddress reports the primary GPIB address this backend targets.
func (g *GPIBBackend) BusAddress() int { return g.busAddr }

func (g *GPIBBackend) configure() error {
	var cmds []string
	switch g.model {
	case GPIBPrologix:
		cmds = []string{
			"mode 1",          // controller-in-charge
			"auto 0",          // no read-after-write; reads are explicit
			"eoi 1",           // assert EOI with the last byte
			"eos 2",           // LF termination toward instruments
			"read_tmo_ms 500", // adapter-side read timeout
		}
	case GPIBGalvant:
		cmds = []string{"eoi:1", "strip:0"}
	default:
		return fmt.Errorf("unknown gpib adapter model %q", g.model)
	}
	for _, cmd := range cmds {
		if err := g.adapterCmd(cmd); err != nil {
			return err
		}
	}
	return nil
}

// adapterCmd sends one command to the adapter itself, never onto the bus.
func (g *GPIBBackend) adapterCmd(cmd string) error {
	var line string
	switch g.model {
	case GPIBPrologix:
		line = "++" + cmd
	case GPIBGalvant:
		line = "+" + cmd
	}
	if err := g.inner.WriteBytes(append([]byte(line), g.adapterTerm...)); err != nil {
		return err
	}
	if g.echo {
		// Discard the echoed command line; it is adapter chatter, not
		// part of any instrument response.
		if _, err := g.inner.ReadBytesUntil(g.adapterTerm, time.Second); err != nil {
			return fmt.Errorf("gpib adapter echo not seen after %q: %w", line, err)
		}
	}
	return nil
}

func (g *GPIBBackend) addressCmd() string {
	if g.model == GPIBGalvant {
		return fmt.Sprintf("a:%d", g.busAddr)
	}
	return fmt.Sprintf("addr %d", g.busAddr)
}

func (g *GPIBBackend) readCmd() string {
	if g.model == GPIBGalvant {
		return "read"
	}
	return "read eoi"
}

// WriteBytes re-asserts the bus address, then forwards the terminated
// command line to the addressed instrument.
func (g *GPIBBackend) WriteBytes(p []byte) error {
	if !g.inner.IsOpen() {
		return ErrClosed
	}
	if err := g.adapterCmd(g.addressCmd()); err != nil {
		return err
	}
	return g.inner.WriteBytes(p)
}

// ReadBytesUntil instructs the adapter to address the instrument as
// talker and forward its response, then reads it off the shared link.
func (g *GPIBBackend) ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error) {
	if !g.inner.IsOpen() {
		return nil, ErrClosed
	}
	if err := g.adapterCmd(g.readCmd()); err != nil {
		return nil, err
	}
	return g.inner.ReadBytesUntil(delim, timeout)
}
