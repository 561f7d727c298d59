package comm

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// SocketBackend carries bytes over a TCP stream. Responses may arrive
// fragmented: the terminator can be split across packets, so reads buffer
// until the full delimiter is observed. A read timeout leaves the
// connection open; the caller may retry.
type SocketBackend struct {
	conn net.Conn
	addr string
	open bool
	lb   lineBuffer
}

func OpenTCP(host string, port int, timeout time.Duration) (*SocketBackend, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, connErr(KindSocket, addr, err)
	}
	return &SocketBackend{conn: conn, addr: addr, open: true}, nil
}

func (s *SocketBackend) Kind() Kind   { return KindSocket }
func (s *SocketBackend) Addr() string { return s.addr }
func (s *SocketBackend) IsOpen() bool { return s.open }

func (s *SocketBackend) Close() error {
	if !s.open {
		return ErrClosed
	}
	s.open = false
	return s.conn.Close()
}

func (s *SocketBackend) WriteBytes(p []byte) error {
	if !s.open {
		return ErrClosed
	}
	_, err := s.conn.Write(p)
	return err
}

func (s *SocketBackend) ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error) {
	if !s.open {
		return nil, ErrClosed
	}
	line, ok, err := s.lb.next(delim, timeout, s.readChunk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, timeoutErr(KindSocket, "read", timeout, false)
	}
	return line, nil
}

func (s *SocketBackend) readChunk(max int, timeout time.Duration) ([]byte, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, max)
	n, err := s.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return nil, nil
	}
	if errors.Is(err, io.EOF) {
		// The peer closed mid-read: the line is truncated.
		return nil, fmt.Errorf("%w: connection closed before terminator", ErrFraming)
	}
	return nil, err
}
