package instr_test

import (
	"errors"
	"testing"

	"github.com/danmuck/instrctl/instr"
	"github.com/danmuck/instrctl/protocoltest"
)

func TestQueryPlain(t *testing.T) {
	h := protocoltest.New(t, []string{"*IDN?"}, []string{"ACME,MODEL-1,0,1.0"})
	got, err := h.Instrument.Query("*IDN?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != "ACME,MODEL-1,0,1.0" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestQueryWithPrompt(t *testing.T) {
	h := protocoltest.New(t,
		[]string{"VAL?"},
		[]string{"42", ">"},
		protocoltest.WithInstrumentOptions(instr.WithPrompt(">")))

	got, err := h.Instrument.Query("VAL?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != "42" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestQueryRejectsWrongPrompt(t *testing.T) {
	h := protocoltest.New(t,
		[]string{"VAL?"},
		[]string{"42", "?"},
		protocoltest.WithInstrumentOptions(instr.WithPrompt(">")))

	if _, err := h.Instrument.Query("VAL?"); !errors.Is(err, instr.ErrPrompt) {
		t.Fatalf("expected ErrPrompt, got %v", err)
	}
}

func TestQueryConsumesCommandEcho(t *testing.T) {
	echo := func(cmd string) []string { return []string{cmd} }
	h := protocoltest.New(t,
		[]string{"TEMP?"},
		[]string{"TEMP?", "23.5"},
		protocoltest.WithInstrumentOptions(instr.WithAckExpected(echo)))

	got, err := h.Instrument.Query("TEMP?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != "23.5" {
		t.Fatalf("echo leaked into response: %q", got)
	}
}

func TestQueryRejectsWrongAcknowledgement(t *testing.T) {
	acks := func(string) []string { return []string{"OK"} }
	h := protocoltest.New(t,
		[]string{"TEMP?"},
		[]string{"FAIL", "23.5"},
		protocoltest.WithInstrumentOptions(instr.WithAckExpected(acks)))

	if _, err := h.Instrument.Query("TEMP?"); !errors.Is(err, instr.ErrAcknowledgement) {
		t.Fatalf("expected ErrAcknowledgement, got %v", err)
	}
}

func TestSendCmdConsumesPrompt(t *testing.T) {
	h := protocoltest.New(t,
		[]string{"*RST", "STAT?"},
		[]string{">", "READY", ">"},
		protocoltest.WithInstrumentOptions(instr.WithPrompt(">")))

	if err := h.Instrument.SendCmd("*RST"); err != nil {
		t.Fatalf("send: %v", err)
	}
	// The prompt was consumed, so the next query sees clean input.
	got, err := h.Instrument.Query("STAT?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != "READY" {
		t.Fatalf("prompt polluted the next response: %q", got)
	}
}

func TestNameCachesIdentity(t *testing.T) {
	h := protocoltest.New(t, []string{"*IDN?"}, []string{"ACME,MODEL-1,0,1.0"})

	for i := 0; i < 3; i++ {
		name, err := h.Instrument.Name()
		if err != nil {
			t.Fatalf("name: %v", err)
		}
		if name != "ACME,MODEL-1,0,1.0" {
			t.Fatalf("unexpected identity: %q", name)
		}
	}
	// Cleanup verification proves *IDN? hit the wire exactly once.
}

func TestReadPullsPendingLine(t *testing.T) {
	h := protocoltest.New(t, nil, nil)
	h.Backend().FeedInput([]byte("UNSOLICITED\n"))

	got, err := h.Instrument.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "UNSOLICITED" {
		t.Fatalf("unexpected line: %q", got)
	}
}

func TestCustomTerminatorConversation(t *testing.T) {
	h := protocoltest.New(t,
		[]string{"*IDN?"},
		[]string{"ACME"},
		protocoltest.WithTerminator("\r\n"))

	got, err := h.Instrument.Query("*IDN?")
	if err != nil || got != "ACME" {
		t.Fatalf("query: %q, %v", got, err)
	}
}
