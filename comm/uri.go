package comm

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// OpenURI opens a live Communicator from a descriptor like:
//
//	serial:///dev/ttyUSB0?baud=115200
//	tcpip://192.168.0.10:4100
//	gpib+serial:///dev/ttyUSB0/15?model=prologix
//	visa://192.168.0.10:4880?sub=hislip0
//	usbtmc://0957:1755
//	usb://0957:1755
//	file:///dev/usbtmc0
//	test://
//
// The query string carries transport options; unknown schemes fail with
// ErrBadURI.
func OpenURI(uri string, opts ...Option) (*Communicator, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURI, err)
	}
	q := parsed.Query()

	var backend Backend
	switch parsed.Scheme {
	case "serial":
		cfg := SerialConfig{Port: joinDevicePath(parsed)}
		if v := q.Get("baud"); v != "" {
			cfg.Baud, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%w: baud %q", ErrBadURI, v)
			}
		}
		backend, err = OpenSerial(cfg)

	case "tcpip":
		host := parsed.Hostname()
		port, perr := strconv.Atoi(parsed.Port())
		if host == "" || perr != nil {
			return nil, fmt.Errorf("%w: tcpip needs host:port, got %q", ErrBadURI, parsed.Host)
		}
		backend, err = OpenTCP(host, port, DefaultTimeout)

	case "gpib+serial":
		dev, busAddr, serr := splitGPIBPath(parsed)
		if serr != nil {
			return nil, serr
		}
		var inner *SerialBackend
		inner, err = OpenSerial(SerialConfig{Port: dev})
		if err != nil {
			break
		}
		model := GPIBPrologix
		if v := q.Get("model"); v != "" {
			model = GPIBModel(v)
		}
		var gopts []GPIBOption
		if q.Get("echo") == "1" {
			gopts = append(gopts, WithAdapterEcho())
		}
		backend, err = OpenGPIB(inner, busAddr, model, gopts...)

	case "visa":
		backend, err = OpenVisa(parsed.Host, q.Get("sub"), DefaultTimeout)

	case "usbtmc", "usb":
		vid, pid, uerr := splitVIDPID(parsed.Host)
		if uerr != nil {
			return nil, uerr
		}
		if parsed.Scheme == "usbtmc" {
			backend, err = OpenUSBTMC(vid, pid)
		} else {
			backend, err = OpenUSB(vid, pid)
		}

	case "file":
		backend, err = OpenFile(joinDevicePath(parsed))

	case "test":
		backend = NewLoopback(nil)

	default:
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrBadURI, parsed.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, opts...), nil
}

// joinDevicePath reassembles a device path that url.Parse splits across
// host and path, as in serial:///dev/ttyUSB0 or serial://COM3.
func joinDevicePath(u *url.URL) string {
	if u.Host != "" && u.Path != "" {
		return path.Join(u.Host, u.Path)
	}
	if u.Host != "" {
		return u.Host
	}
	return u.Path
}

// splitGPIBPath peels the trailing bus address off a gpib+serial path:
// gpib+serial:///dev/ttyUSB0/15 -> (/dev/ttyUSB0, 15).
func splitGPIBPath(u *url.URL) (string, int, error) {
	full := joinDevicePath(u)
	dir, last := path.Split(full)
	busAddr, err := strconv.Atoi(last)
	if err != nil || dir == "" {
		return "", 0, fmt.Errorf("%w: gpib+serial needs device/busaddr, got %q", ErrBadURI, full)
	}
	return strings.TrimSuffix(dir, "/"), busAddr, nil
}

func splitVIDPID(host string) (uint16, uint16, error) {
	parts := strings.Split(host, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: usb address must be vid:pid, got %q", ErrBadURI, host)
	}
	vid, err1 := strconv.ParseUint(parts[0], 16, 16)
	pid, err2 := strconv.ParseUint(parts[1], 16, 16)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("%w: usb address must be hex vid:pid, got %q", ErrBadURI, host)
	}
	return uint16(vid), uint16(pid), nil
}
