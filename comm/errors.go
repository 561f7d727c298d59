package comm

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConnection = errors.New("comm: connection failed")
	ErrTransport  = errors.New("comm: transport failure")
	ErrTimeout    = errors.New("comm: read timed out")
	ErrFraming    = errors.New("comm: truncated response")
	ErrClosed     = errors.New("comm: backend closed")
	ErrBadURI     = errors.New("comm: invalid instrument uri")
)

// TimeoutError reports a read that elapsed without seeing the terminator.
// NeedsReset is true for transports (USB-class) where a failed transfer
// leaves the hardware in a state that requires a backend reset before
// reuse; serial and socket backends remain reusable after a timeout.
type TimeoutError struct {
	Kind       Kind
	Op         string
	After      time.Duration
	NeedsReset bool
}

func (e *TimeoutError) Error() string {
	if e.NeedsReset {
		return fmt.Sprintf("comm: %s %s timed out after %s (backend reset required)", e.Kind, e.Op, e.After)
	}
	return fmt.Sprintf("comm: %s %s timed out after %s", e.Kind, e.Op, e.After)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// ConnError reports a failed backend open, carrying the transport kind
// and target address so a protocol mismatch can be diagnosed.
type ConnError struct {
	Kind Kind
	Addr string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("comm: open %s %q: %v", e.Kind, e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error { return ErrConnection }

func connErr(kind Kind, addr string, err error) error {
	return &ConnError{Kind: kind, Addr: addr, Err: err}
}

func timeoutErr(kind Kind, op string, after time.Duration, needsReset bool) error {
	return &TimeoutError{Kind: kind, Op: op, After: after, NeedsReset: needsReset}
}
