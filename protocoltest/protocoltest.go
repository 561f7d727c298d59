// Package protocoltest asserts instrument protocol conversations. A
// harness plays back a scripted instrument-to-host transcript through a
// loopback Communicator and, when the test finishes, verifies that the
// code under test transmitted exactly the expected host-to-instrument
// lines, in order.
package protocoltest

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/instrctl/comm"
	"github.com/danmuck/instrctl/instr"
	"github.com/danmuck/instrctl/quant"
)

type Harness struct {
	t          *testing.T
	Instrument *instr.Instrument
	backend    *comm.LoopbackBackend
	expect     []string
	term       string
	verified   bool
}

type Option func(*config)

type config struct {
	term     string
	timeout  time.Duration
	instOpts []instr.Option
	commOpts []comm.Option
}

// WithTerminator replaces the default "\n" line terminator on both
// directions of the scripted wire.
func WithTerminator(term string) Option {
	return func(c *config) { c.term = term }
}

func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

func WithInstrumentOptions(opts ...instr.Option) Option {
	return func(c *config) { c.instOpts = append(c.instOpts, opts...) }
}

func WithCommOptions(opts ...comm.Option) Option {
	return func(c *config) { c.commOpts = append(c.commOpts, opts...) }
}

// New builds a live Instrument backed by a scripted Communicator.
// hostToInstr lists the outbound lines the test is expected to produce;
// instrToHost lists the responses played back in order. Verification
// runs automatically at test cleanup and fails with a got/want diff when
// the transcript does not match.
func New(t *testing.T, hostToInstr, instrToHost []string, opts ...Option) *Harness {
	t.Helper()
	cfg := config{term: "\n", timeout: 250 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}

	var script strings.Builder
	for _, line := range instrToHost {
		script.WriteString(line)
		script.WriteString(cfg.term)
	}
	backend := comm.NewLoopback([]byte(script.String()))

	commOpts := append([]comm.Option{
		comm.WithTerminators(cfg.term, cfg.term),
		comm.WithTimeout(cfg.timeout),
	}, cfg.commOpts...)
	c := comm.New(backend, commOpts...)

	h := &Harness{
		t:          t,
		Instrument: instr.New(c, cfg.instOpts...),
		backend:    backend,
		expect:     hostToInstr,
		term:       cfg.term,
	}
	t.Cleanup(h.Verify)
	return h
}

// Backend exposes the scripted transport for tests that need to feed
// extra input mid-test.
func (h *Harness) Backend() *comm.LoopbackBackend { return h.backend }

// Verify asserts the recorded outbound transcript. Idempotent; invoked
// automatically via t.Cleanup.
func (h *Harness) Verify() {
	if h.verified {
		return
	}
	h.verified = true
	h.t.Helper()

	var want strings.Builder
	for _, line := range h.expect {
		want.WriteString(line)
		want.WriteString(h.term)
	}
	got := string(h.backend.Sent())
	if got != want.String() {
		h.t.Errorf("protocol transcript mismatch\n got: %q\nwant: %q", got, want.String())
	}
}

// AssertNothingSent fails the test if any byte reached the wire. Used to
// prove that local validation failures perform no I/O.
func AssertNothingSent(t *testing.T, h *Harness) {
	t.Helper()
	if sent := h.backend.Sent(); len(sent) != 0 {
		t.Fatalf("expected zero outbound transmissions, got %q", sent)
	}
}

// QuantEq asserts two quantities are equal within a small numeric
// threshold after converting to a common unit.
func QuantEq(t *testing.T, got, want quant.Quantity) {
	t.Helper()
	conv, err := got.To(want.Unit)
	if err != nil {
		t.Fatalf("quantity dimensions differ: %v", err)
	}
	if math.Abs(conv.Value-want.Value) > 1e-9*math.Max(1, math.Abs(want.Value)) {
		t.Fatalf("quantity mismatch: got %s, want %s", got, want)
	}
}
