package comm

import (
	"bytes"
	"context"
	"time"

	"github.com/xiabin827/gohislip"
)

// VisaBackend drives a VISA-style session over HiSLIP. HiSLIP is message
// oriented: the session layer marks end-of-message itself, so a read
// returns one complete instrument message and any trailing line
// terminator is stripped rather than scanned for.
type VisaBackend struct {
	client *gohislip.Client
	addr   string
	open   bool
}

func OpenVisa(addr, subAddr string, timeout time.Duration) (*VisaBackend, error) {
	cfg := gohislip.DefaultConfig()
	if subAddr != "" {
		cfg.SubAddress = subAddr
	}
	cfg.Timeout = timeout

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := gohislip.Dial(ctx, addr, cfg)
	if err != nil {
		return nil, connErr(KindVisa, addr, err)
	}
	return &VisaBackend{client: client, addr: addr, open: true}, nil
}

func (v *VisaBackend) Kind() Kind   { return KindVisa }
func (v *VisaBackend) Addr() string { return v.addr }
func (v *VisaBackend) IsOpen() bool { return v.open && v.client.IsConnected() }

func (v *VisaBackend) Close() error {
	if !v.open {
		return ErrClosed
	}
	v.open = false
	return v.client.Close()
}

func (v *VisaBackend) WriteBytes(p []byte) error {
	if !v.IsOpen() {
		return ErrClosed
	}
	return v.client.WriteBytes(p)
}

func (v *VisaBackend) ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error) {
	if !v.IsOpen() {
		return nil, ErrClosed
	}
	msg, err := v.client.ReadWithTimeout(timeout)
	if err != nil {
		if !v.client.IsConnected() {
			return nil, timeoutErr(KindVisa, "read", timeout, true)
		}
		return nil, timeoutErr(KindVisa, "read", timeout, false)
	}
	return bytes.TrimSuffix(msg, delim), nil
}

// Clear issues a HiSLIP device-clear, resynchronizing the session after a
// failed transfer.
func (v *VisaBackend) Clear(ctx context.Context) error {
	if !v.IsOpen() {
		return ErrClosed
	}
	return v.client.DeviceClear(ctx)
}
