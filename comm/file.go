package comm

import (
	"errors"
	"io"
	"os"
	"time"
)

// FileBackend reads and writes a fixed filesystem path, typically a
// kernel-exposed usbtmc character device node. Read deadlines use the
// runtime poller where the file supports it; otherwise each read blocks
// until the device produces data.
type FileBackend struct {
	f    *os.File
	addr string
	open bool
	lb   lineBuffer
}

func OpenFile(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, connErr(KindFile, path, err)
	}
	return &FileBackend{f: f, addr: path, open: true}, nil
}

func (b *FileBackend) Kind() Kind   { return KindFile }
func (b *FileBackend) Addr() string { return b.addr }
func (b *FileBackend) IsOpen() bool { return b.open }

func (b *FileBackend) Close() error {
	if !b.open {
		return ErrClosed
	}
	b.open = false
	return b.f.Close()
}

func (b *FileBackend) WriteBytes(p []byte) error {
	if !b.open {
		return ErrClosed
	}
	_, err := b.f.Write(p)
	return err
}

func (b *FileBackend) ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error) {
	if !b.open {
		return nil, ErrClosed
	}
	line, ok, err := b.lb.next(delim, timeout, b.readChunk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, timeoutErr(KindFile, "read", timeout, false)
	}
	return line, nil
}

func (b *FileBackend) readChunk(max int, timeout time.Duration) ([]byte, error) {
	// Character devices are pollable and honor deadlines; regular files
	// are not, and SetReadDeadline reports ErrNoDeadline, which is fine
	// because regular-file reads never block.
	_ = b.f.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, max)
	n, err := b.f.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, nil
	}
	if errors.Is(err, io.EOF) {
		// Regular files report EOF instead of blocking; pace re-polls so
		// the deadline loop does not spin.
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	return nil, err
}
