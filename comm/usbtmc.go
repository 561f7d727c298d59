package comm

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// USBTMC bulk message identifiers (USBTMC spec rev 1.0, table 2).
const (
	tmcDevDepMsgOut       byte = 1
	tmcRequestDevDepMsgIn byte = 2
	tmcHeaderLen               = 12
	tmcEOM                byte = 0x01
)

// USBTMCBackend speaks the USB Test & Measurement Class protocol. Every
// outbound command travels in a DEV_DEP_MSG_OUT bulk transfer, and every
// read must first issue a REQUEST_DEV_DEP_MSG_IN transfer before the
// instrument will produce response data on the bulk-in endpoint. A failed
// transfer stalls the endpoint pair, so timeouts report NeedsReset.
type USBTMCBackend struct {
	u       *usbDevice
	open    bool
	timeout time.Duration
	bTag    byte
	lb      lineBuffer
}

func OpenUSBTMC(vid, pid uint16) (*USBTMCBackend, error) {
	u, err := openUSBDevice(KindUSBTMC, vid, pid)
	if err != nil {
		return nil, err
	}
	return &USBTMCBackend{u: u, open: true, timeout: DefaultTimeout, bTag: 1}, nil
}

func (b *USBTMCBackend) Kind() Kind   { return KindUSBTMC }
func (b *USBTMCBackend) Addr() string { return b.u.addr }
func (b *USBTMCBackend) IsOpen() bool { return b.open }

func (b *USBTMCBackend) Close() error {
	if !b.open {
		return ErrClosed
	}
	b.open = false
	b.u.close()
	return nil
}

// Reset re-enumerates the device after a failed transfer and restarts the
// transfer tag sequence.
func (b *USBTMCBackend) Reset() error {
	if !b.open {
		return ErrClosed
	}
	b.lb.reset()
	b.bTag = 1
	return b.u.dev.Reset()
}

// nextTag yields the transfer identification tag: 1-255, never 0.
func (b *USBTMCBackend) nextTag() byte {
	tag := b.bTag
	b.bTag++
	if b.bTag == 0 {
		b.bTag = 1
	}
	return tag
}

// tmcOutMessage frames one DEV_DEP_MSG_OUT bulk transfer: class header,
// payload, zero padding to a four-byte boundary.
func tmcOutMessage(tag byte, payload []byte) []byte {
	msg := make([]byte, tmcHeaderLen, tmcHeaderLen+len(payload)+3)
	msg[0] = tmcDevDepMsgOut
	msg[1] = tag
	msg[2] = ^tag
	binary.LittleEndian.PutUint32(msg[4:8], uint32(len(payload)))
	msg[8] = tmcEOM
	msg = append(msg, payload...)
	if pad := (4 - len(payload)%4) % 4; pad > 0 {
		msg = append(msg, make([]byte, pad)...)
	}
	return msg
}

// tmcInRequest frames one REQUEST_DEV_DEP_MSG_IN transfer asking the
// device to produce at most max response bytes.
func tmcInRequest(tag byte, max int) []byte {
	req := make([]byte, tmcHeaderLen)
	req[0] = tmcRequestDevDepMsgIn
	req[1] = tag
	req[2] = ^tag
	binary.LittleEndian.PutUint32(req[4:8], uint32(max))
	return req
}

// tmcParseResponse strips the bulk-in class header, checking the tag and
// honoring the transfer size it declares.
func tmcParseResponse(tag byte, raw []byte) ([]byte, error) {
	if len(raw) < tmcHeaderLen {
		return nil, fmt.Errorf("%w: usbtmc response shorter than class header", ErrFraming)
	}
	if raw[1] != tag {
		return nil, fmt.Errorf("%w: usbtmc tag mismatch: sent %d, got %d", ErrFraming, tag, raw[1])
	}
	size := binary.LittleEndian.Uint32(raw[4:8])
	payload := raw[tmcHeaderLen:]
	if uint32(len(payload)) > size {
		payload = payload[:size]
	}
	return bytes.Clone(payload), nil
}

func (b *USBTMCBackend) WriteBytes(p []byte) error {
	if !b.open {
		return ErrClosed
	}
	msg := tmcOutMessage(b.nextTag(), p)
	if err := b.u.write(msg, b.timeout); err != nil {
		return fmt.Errorf("%w: usbtmc bulk-out: %v", ErrTransport, err)
	}
	return nil
}

func (b *USBTMCBackend) ReadBytesUntil(delim []byte, timeout time.Duration) ([]byte, error) {
	if !b.open {
		return nil, ErrClosed
	}
	line, ok, err := b.lb.next(delim, timeout, func(max int, remaining time.Duration) ([]byte, error) {
		return b.readMessage(max, remaining)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, timeoutErr(KindUSBTMC, "bulk-in", timeout, true)
	}
	return line, nil
}

// readMessage performs one request/response transfer pair and returns the
// device-dependent payload with the class header stripped.
func (b *USBTMCBackend) readMessage(max int, timeout time.Duration) ([]byte, error) {
	tag := b.nextTag()
	if err := b.u.write(tmcInRequest(tag, max), timeout); err != nil {
		return nil, fmt.Errorf("%w: usbtmc request-in: %v", ErrTransport, err)
	}
	raw, err := b.u.read(max+tmcHeaderLen, timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: usbtmc bulk-in: %v", ErrTransport, err)
	}
	return tmcParseResponse(tag, raw)
}
