package comm

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/danmuck/instrctl/internal/testutil/testlog"
)

// fakeInstrument answers one connection on a loopback TCP listener. The
// respond callback receives each received line and writes the reply.
func fakeInstrument(t *testing.T, respond func(line string, conn net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			respond(sc.Text(), conn)
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(portStr)
	return host, port
}

func TestSocketQueryRoundTrip(t *testing.T) {
	testlog.Start(t)
	host, port := fakeInstrument(t, func(line string, conn net.Conn) {
		if line == "*IDN?" {
			_, _ = conn.Write([]byte("ACME,MODEL-1,0,1.0\n"))
		}
	})

	b, err := OpenTCP(host, port, time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c := New(b, WithTimeout(time.Second))
	defer c.Close()

	got, err := c.Query("*IDN?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != "ACME,MODEL-1,0,1.0" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestSocketTerminatorSplitAcrossPackets(t *testing.T) {
	host, port := fakeInstrument(t, func(line string, conn net.Conn) {
		// Payload and terminator in separate segments; the reader must
		// buffer until the delimiter completes.
		_, _ = conn.Write([]byte("OK"))
		time.Sleep(20 * time.Millisecond)
		_, _ = conn.Write([]byte("\n"))
	})

	b, err := OpenTCP(host, port, time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c := New(b, WithTimeout(time.Second))
	defer c.Close()

	got, err := c.Query("PING")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != "OK" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestSocketTimeoutLeavesConnectionUsable(t *testing.T) {
	host, port := fakeInstrument(t, func(line string, conn net.Conn) {
		if line == "SLOW?" {
			return // never answers
		}
		_, _ = conn.Write([]byte("PONG\n"))
	})

	b, err := OpenTCP(host, port, time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c := New(b, WithTimeout(50*time.Millisecond))
	defer c.Close()

	if _, err := c.Query("SLOW?"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	c.SetTimeout(time.Second)
	got, err := c.Query("PING?")
	if err != nil {
		t.Fatalf("query after timeout: %v", err)
	}
	if got != "PONG" {
		t.Fatalf("unexpected response after timeout: %q", got)
	}
}

func TestSocketPeerCloseMidLineIsFraming(t *testing.T) {
	host, port := fakeInstrument(t, func(line string, conn net.Conn) {
		_, _ = conn.Write([]byte("TRUNC"))
		_ = conn.Close()
	})

	b, err := OpenTCP(host, port, time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c := New(b, WithTimeout(time.Second))
	defer c.Close()

	if _, err := c.Query("READ?"); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestOpenTCPConnectionRefused(t *testing.T) {
	// Grab a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	_ = ln.Close()

	_, err = OpenTCP(host, port, 200*time.Millisecond)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	var ce *ConnError
	if !errors.As(err, &ce) || ce.Kind != KindSocket {
		t.Fatalf("expected socket ConnError, got %#v", err)
	}
}
