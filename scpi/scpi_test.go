package scpi_test

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/instrctl/comm"
	"github.com/danmuck/instrctl/instr"
	"github.com/danmuck/instrctl/protocoltest"
	"github.com/danmuck/instrctl/quant"
	"github.com/danmuck/instrctl/scpi"
)

// open builds a SCPI instrument over a scripted loopback wire.
func open(t *testing.T, script string) (*scpi.Instrument, *comm.LoopbackBackend) {
	t.Helper()
	lb := comm.NewLoopback([]byte(script))
	c := comm.New(lb, comm.WithTimeout(250*time.Millisecond))
	s := scpi.New(c)
	t.Cleanup(func() { _ = s.Close() })
	return s, lb
}

func TestCommonCommands(t *testing.T) {
	s, lb := open(t, "")
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.Trigger(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if sent := string(lb.Sent()); sent != "*RST\n*CLS\n*TRG\n*WAI\n" {
		t.Fatalf("unexpected wire bytes: %q", sent)
	}
}

func TestVersionAndSelfTest(t *testing.T) {
	s, lb := open(t, "1999.0\n0\n")

	ver, err := s.Version()
	if err != nil || ver != "1999.0" {
		t.Fatalf("version: %q, %v", ver, err)
	}
	report, err := s.SelfTest()
	if err != nil || report != "0" {
		t.Fatalf("self test: %q, %v", report, err)
	}
	if sent := string(lb.Sent()); sent != "SYST:VERS?\n*TST?\n" {
		t.Fatalf("unexpected wire bytes: %q", sent)
	}
}

func TestOperationComplete(t *testing.T) {
	s, _ := open(t, "1\n0\nBUSY\n")

	done, err := s.OperationComplete()
	if err != nil || !done {
		t.Fatalf("opc 1: %v, %v", done, err)
	}
	done, err = s.OperationComplete()
	if err != nil || done {
		t.Fatalf("opc 0: %v, %v", done, err)
	}
	if _, err := s.OperationComplete(); !errors.Is(err, instr.ErrDecode) {
		t.Fatalf("expected ErrDecode for junk reply, got %v", err)
	}
}

func TestLineFrequency(t *testing.T) {
	s, lb := open(t, "50\n")

	got, err := s.LineFrequency.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	protocoltest.QuantEq(t, got, quant.New(50, quant.Hertz))

	if err := s.LineFrequency.Set(quant.New(60, quant.Hertz)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if sent := string(lb.Sent()); sent != "SYST:LFR?\nSYST:LFR 60\n" {
		t.Fatalf("unexpected wire bytes: %q", sent)
	}
}

func TestPowerOnStatusClear(t *testing.T) {
	s, lb := open(t, "1\n")

	on, err := s.PowerOnStatusClear.Get()
	if err != nil || !on {
		t.Fatalf("get: %v, %v", on, err)
	}
	if err := s.PowerOnStatusClear.Set(false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if sent := string(lb.Sent()); sent != "*PSC?\n*PSC 0\n" {
		t.Fatalf("unexpected wire bytes: %q", sent)
	}
}
