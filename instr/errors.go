package instr

import (
	"errors"
	"fmt"

	"github.com/danmuck/instrctl/quant"
)

var (
	ErrDecode          = errors.New("instr: response does not match declared value kind")
	ErrValidation      = errors.New("instr: value outside declared bounds")
	ErrIndex           = errors.New("instr: index outside valid set")
	ErrReadOnly        = errors.New("instr: property is read-only")
	ErrWriteOnly       = errors.New("instr: property is write-only")
	ErrAcknowledgement = errors.New("instr: unexpected acknowledgement")
	ErrPrompt          = errors.New("instr: unexpected prompt")
)

// RangeError reports a value outside [Min, Max]. When the instrument
// itself replied with an out-of-range value the decoded quantity is
// carried along; the device's state is never clamped to fit the binding.
type RangeError struct {
	Command string
	Value   quant.Quantity
	Min     *quant.Quantity
	Max     *quant.Quantity
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("instr: %s: value %s outside declared range", e.Command, e.Value)
}

func (e *RangeError) Unwrap() error { return ErrValidation }

func decodeErr(cmd, raw string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s -> %q: %v", ErrDecode, cmd, raw, cause)
	}
	return fmt.Errorf("%w: %s -> %q", ErrDecode, cmd, raw)
}
