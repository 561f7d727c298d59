package comm

import (
	"bytes"
	"sync"
	"time"
)

// LoopbackBackend is a scripted in-memory transport. Reads play back a
// preloaded instrument-to-host byte stream; writes are recorded for later
// inspection. It backs the test:// scheme and the protocoltest harness.
type LoopbackBackend struct {
	mu     sync.Mutex
	input  bytes.Buffer
	output bytes.Buffer
	open   bool
	lb     lineBuffer

	// writeDelay, when set, stalls each write. Tests use it to widen the
	// window in which a racing transaction could interleave.
	writeDelay time.Duration
}

func NewLoopback(input []byte) *LoopbackBackend {
	l := &LoopbackBackend{open: true}
	l.input.Write(input)
	return l
}

func (l *LoopbackBackend) Kind() Kind   { return KindLoopback }
func (l *LoopbackBackend) Addr() string { return "loopback" }

func (l *LoopbackBackend) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *LoopbackBackend) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return ErrClosed
	}
	l.open = false
	return nil
}

func (l *LoopbackBackend) SetWriteDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeDelay = d
}

// FeedInput appends instrument-to-host bytes for later reads.
func (l *LoopbackBackend) FeedInput(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.input.Write(p)
}

// Sent returns a copy of every byte written so far.
func (l *LoopbackBackend) Sent() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]byte, l.output.Len())
	copy(out, l.output.Bytes())
	return out
}

func (l *LoopbackBackend) WriteBytes(p []byte) error {
	l.mu.Lock()
	delay := l.writeDelay
	if !l.open {
		l.mu.Unlock()
		return ErrClosed
	}
	l.mu.Unlock()

	if delay > 0 {
		// Two staggered half-writes expose interleaving if the caller's
		// lock does not cover the whole transaction.
		half := len(p) / 2
		l.mu.Lock()
		l.output.Write(p[:half])
		l.mu.Unlock()
		time.Sleep(delay)
		l.mu.Lock()
		l.output.Write(p[half:])
		l.mu.Unlock()
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write(p)
	return nil
}

func (l *LoopbackBackend) ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return nil, ErrClosed
	}
	line, ok, err := l.lb.next(delim, timeout, l.readChunk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, timeoutErr(KindLoopback, "read", timeout, false)
	}
	return line, nil
}

func (l *LoopbackBackend) readChunk(max int, _ time.Duration) ([]byte, error) {
	if l.input.Len() == 0 {
		// Script exhausted; report it as a timeout tick so the caller's
		// deadline decides when to give up.
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	buf := make([]byte, max)
	n, _ := l.input.Read(buf)
	return buf[:n], nil
}
