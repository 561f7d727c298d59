package comm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// usbDevice bundles the gousb handles shared by the raw-USB and USBTMC
// backends: one claimed interface with one bulk-in and one bulk-out
// endpoint.
type usbDevice struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface
	done func()
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
	addr string
}

func openUSBDevice(kind Kind, vid, pid uint16) (*usbDevice, error) {
	addr := fmt.Sprintf("%04x:%04x", vid, pid)
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, connErr(kind, addr, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, connErr(kind, addr, errors.New("device not found"))
	}
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, connErr(kind, addr, err)
	}
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, connErr(kind, addr, err)
	}

	u := &usbDevice{ctx: ctx, dev: dev, intf: intf, done: done, addr: addr}
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && u.in == nil {
			u.in, err = intf.InEndpoint(ep.Number)
		}
		if ep.Direction == gousb.EndpointDirectionOut && u.out == nil {
			u.out, err = intf.OutEndpoint(ep.Number)
		}
		if err != nil {
			u.close()
			return nil, connErr(kind, addr, err)
		}
	}
	if u.in == nil || u.out == nil {
		u.close()
		return nil, connErr(kind, addr, errors.New("no bulk endpoint pair on default interface"))
	}
	return u, nil
}

func (u *usbDevice) close() {
	if u.done != nil {
		u.done()
	}
	_ = u.dev.Close()
	_ = u.ctx.Close()
}

func (u *usbDevice) write(p []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := u.out.WriteContext(ctx, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short bulk-out transfer: %d of %d bytes", n, len(p))
	}
	return nil
}

func (u *usbDevice) read(max int, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	buf := make([]byte, max)
	n, err := u.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// USBBackend drives a raw pair of bulk endpoints with no class protocol
// on top. A failed transfer can leave the endpoints stalled, so a timeout
// here reports NeedsReset; Reset reinitializes the device.
type USBBackend struct {
	u       *usbDevice
	open    bool
	timeout time.Duration
	lb      lineBuffer
}

func OpenUSB(vid, pid uint16) (*USBBackend, error) {
	u, err := openUSBDevice(KindUSB, vid, pid)
	if err != nil {
		return nil, err
	}
	return &USBBackend{u: u, open: true, timeout: DefaultTimeout}, nil
}

func (b *USBBackend) Kind() Kind   { return KindUSB }
func (b *USBBackend) Addr() string { return b.u.addr }
func (b *USBBackend) IsOpen() bool { return b.open }

func (b *USBBackend) Close() error {
	if !b.open {
		return ErrClosed
	}
	b.open = false
	b.u.close()
	return nil
}

// Reset re-enumerates the device after a failed transfer. Buffered
// partial input is discarded.
func (b *USBBackend) Reset() error {
	if !b.open {
		return ErrClosed
	}
	b.lb.reset()
	return b.u.dev.Reset()
}

func (b *USBBackend) WriteBytes(p []byte) error {
	if !b.open {
		return ErrClosed
	}
	if err := b.u.write(p, b.timeout); err != nil {
		return fmt.Errorf("%w: bulk-out: %v", ErrTransport, err)
	}
	return nil
}

func (b *USBBackend) ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error) {
	if !b.open {
		return nil, ErrClosed
	}
	line, ok, err := b.lb.next(delim, timeout, b.readChunk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, timeoutErr(KindUSB, "bulk-in", timeout, true)
	}
	return line, nil
}

func (b *USBBackend) readChunk(max int, timeout time.Duration) ([]byte, error) {
	chunk, err := b.u.read(max, timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	return chunk, err
}
