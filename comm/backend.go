package comm

import (
	"bytes"
	"time"
)

// Kind identifies a transport backend variant.
type Kind string

const (
	KindSerial   Kind = "serial"
	KindSocket   Kind = "socket"
	KindGPIB     Kind = "gpib"
	KindVisa     Kind = "visa"
	KindUSBTMC   Kind = "usbtmc"
	KindUSB      Kind = "usb"
	KindFile     Kind = "file"
	KindLoopback Kind = "loopback"
)

// Backend is one raw duplex byte channel. Implementations own every
// transport-specific quirk; the Communicator above them never touches
// transport state directly.
//
// ReadBytesUntil blocks until delim is observed or timeout elapses and
// returns the payload with the delimiter stripped. A backend must not be
// used after Close.
type Backend interface {
	WriteBytes(p []byte) error
	ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error)
	Close() error
	IsOpen() bool
	Addr() string
	Kind() Kind
}

// chunkReader is the single low-level read primitive backends expose to
// lineBuffer: one bounded read returning whatever bytes arrived.
type chunkReader func(max int, timeout time.Duration) ([]byte, error)

// lineBuffer accumulates chunks until a delimiter is seen. The terminator
// may arrive split across chunks; leftover bytes past the delimiter are
// kept for the next line.
type lineBuffer struct {
	buf bytes.Buffer
}

// next scans for delim, first in already-buffered bytes, then by pulling
// chunks via read until the deadline passes. The returned payload excludes
// the delimiter.
func (lb *lineBuffer) next(delim []byte, timeout time.Duration, read chunkReader) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if i := bytes.Index(lb.buf.Bytes(), delim); i >= 0 {
			line := make([]byte, i)
			copy(line, lb.buf.Bytes()[:i])
			lb.buf.Next(i + len(delim))
			return line, true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false, nil
		}
		chunk, err := read(512, remaining)
		if err != nil {
			return nil, false, err
		}
		lb.buf.Write(chunk)
	}
}

func (lb *lineBuffer) reset() { lb.buf.Reset() }
