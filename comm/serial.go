package comm

import (
	"errors"
	"io"
	"time"

	"github.com/tarm/serial"
)

// readTick bounds how long one driver-level read may block, so the
// line-level deadline stays responsive regardless of the port timeout.
const readTick = 100 * time.Millisecond

// SerialBackend carries bytes over a named serial port at a fixed line
// configuration. The port has no inherent framing beyond byte order; the
// lineBuffer supplies terminator scanning. A read timeout leaves the port
// open and reusable.
type SerialBackend struct {
	port *serial.Port
	addr string
	open bool
	lb   lineBuffer
}

type SerialConfig struct {
	Port     string
	Baud     int
	Size     byte
	Parity   serial.Parity
	StopBits serial.StopBits
}

func OpenSerial(cfg SerialConfig) (*SerialBackend, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	sc := &serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		Size:        cfg.Size,
		Parity:      cfg.Parity,
		StopBits:    cfg.StopBits,
		ReadTimeout: readTick,
	}
	port, err := serial.OpenPort(sc)
	if err != nil {
		return nil, connErr(KindSerial, cfg.Port, err)
	}
	return &SerialBackend{port: port, addr: cfg.Port, open: true}, nil
}

func (s *SerialBackend) Kind() Kind   { return KindSerial }
func (s *SerialBackend) Addr() string { return s.addr }
func (s *SerialBackend) IsOpen() bool { return s.open }

func (s *SerialBackend) Close() error {
	if !s.open {
		return ErrClosed
	}
	s.open = false
	return s.port.Close()
}

func (s *SerialBackend) WriteBytes(p []byte) error {
	if !s.open {
		return ErrClosed
	}
	n, err := s.port.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

func (s *SerialBackend) ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error) {
	if !s.open {
		return nil, ErrClosed
	}
	line, ok, err := s.lb.next(delim, timeout, s.readChunk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, timeoutErr(KindSerial, "read", timeout, false)
	}
	return line, nil
}

func (s *SerialBackend) readChunk(max int, _ time.Duration) ([]byte, error) {
	buf := make([]byte, max)
	n, err := s.port.Read(buf)
	// The driver reports an expired ReadTimeout as io.EOF with no data;
	// that is a tick, not end of stream.
	if errors.Is(err, io.EOF) && n == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
