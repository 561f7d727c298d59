// Package scpi provides a generic IEEE 488.2 / SCPI instrument built
// entirely on the instr property engine. Vendor classes embed or wrap it
// and add their own bindings.
package scpi

import (
	"fmt"
	"strings"

	"github.com/danmuck/instrctl/comm"
	"github.com/danmuck/instrctl/instr"
	"github.com/danmuck/instrctl/quant"
)

type Instrument struct {
	*instr.Instrument

	// LineFrequency is the instrument's mains frequency setting.
	LineFrequency instr.UnitfulProperty
	// PowerOnStatusClear controls clearing of status registers at
	// power-on.
	PowerOnStatusClear instr.BoolProperty
}

func New(c *comm.Communicator, opts ...instr.Option) *Instrument {
	base := instr.New(c, opts...)
	return &Instrument{
		Instrument: base,
		LineFrequency: instr.NewUnitful(base,
			instr.Binding{Command: "SYST:LFR"},
			quant.Hertz,
			instr.WithFormatCode("%g"),
		),
		PowerOnStatusClear: instr.NewBool(base,
			instr.Binding{Command: "*PSC"},
			"1", "0",
		),
	}
}

// Version reports the SCPI standard version the device complies with.
func (s *Instrument) Version() (string, error) {
	return s.Query("SYST:VERS?")
}

// Reset restores the power-on configuration (*RST).
func (s *Instrument) Reset() error { return s.SendCmd("*RST") }

// Clear empties the status byte and error queue (*CLS).
func (s *Instrument) Clear() error { return s.SendCmd("*CLS") }

// Trigger issues a bus trigger (*TRG).
func (s *Instrument) Trigger() error { return s.SendCmd("*TRG") }

// Wait blocks further commands until pending operations finish (*WAI).
func (s *Instrument) Wait() error { return s.SendCmd("*WAI") }

// SelfTest runs the device self-test and returns its raw report.
func (s *Instrument) SelfTest() (string, error) {
	return s.Query("*TST?")
}

// OperationComplete polls *OPC?, which replies "1" once all pending
// operations have finished.
func (s *Instrument) OperationComplete() (bool, error) {
	resp, err := s.Query("*OPC?")
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(resp) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: *OPC? -> %q", instr.ErrDecode, resp)
}
