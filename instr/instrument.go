package instr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/instrctl/comm"
)

// Instrument is the thin façade between typed properties and the wire. It
// owns its Communicator exclusively and adds only the per-instrument
// conversational policy: expected acknowledgement lines and an optional
// prompt read back after each transaction. No vendor parsing happens
// here.
type Instrument struct {
	comm *comm.Communicator

	// prompt, when set, is one extra line the device emits after
	// processing each command; it is read and verified every time.
	prompt string
	// ackExpected maps a command to the acknowledgement lines the device
	// echoes before its real response. Nil means no acks.
	ackExpected func(cmd string) []string

	mu   sync.Mutex
	name string
}

type Option func(*Instrument)

func WithPrompt(prompt string) Option {
	return func(i *Instrument) { i.prompt = prompt }
}

func WithAckExpected(f func(cmd string) []string) Option {
	return func(i *Instrument) { i.ackExpected = f }
}

func New(c *comm.Communicator, opts ...Option) *Instrument {
	inst := &Instrument{comm: c}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// Communicator exposes the owned transport for callers that need to tune
// terminators or timeouts. Ownership stays with the Instrument.
func (i *Instrument) Communicator() *comm.Communicator { return i.comm }

func (i *Instrument) Close() error { return i.comm.Close() }

func (i *Instrument) acks(cmd string) []string {
	if i.ackExpected == nil {
		return nil
	}
	return i.ackExpected(cmd)
}

// SendCmd issues a fire-and-forget command, consuming any expected
// acknowledgement and prompt lines so they cannot pollute the next
// response.
func (i *Instrument) SendCmd(cmd string) error {
	acks := i.acks(cmd)
	extra := len(acks)
	if i.prompt != "" {
		extra++
	}
	if extra == 0 {
		return i.comm.SendCmd(cmd)
	}
	lines, err := i.comm.Exchange(cmd, extra)
	if err != nil {
		return err
	}
	return i.verifyConversation(cmd, acks, lines)
}

// Query issues a command and returns the single response line, after
// stripping expected acknowledgements and verifying the prompt.
func (i *Instrument) Query(cmd string) (string, error) {
	acks := i.acks(cmd)
	reads := len(acks) + 1
	if i.prompt != "" {
		reads++
	}
	lines, err := i.comm.Exchange(cmd, reads)
	if err != nil {
		return "", err
	}
	for n, want := range acks {
		if lines[n] != want {
			return "", fmt.Errorf("%w: got %q, expected %q", ErrAcknowledgement, lines[n], want)
		}
	}
	resp := lines[len(acks)]
	if i.prompt != "" {
		if got := lines[len(lines)-1]; got != i.prompt {
			return "", fmt.Errorf("%w: got %q, expected %q", ErrPrompt, got, i.prompt)
		}
	}
	return resp, nil
}

// Read pulls one already-pending response line without writing anything.
func (i *Instrument) Read() (string, error) {
	return i.comm.ReadLine()
}

// Name queries *IDN? once and caches the identity string.
func (i *Instrument) Name() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.name != "" {
		return i.name, nil
	}
	name, err := i.Query("*IDN?")
	if err != nil {
		return "", err
	}
	i.name = strings.TrimSpace(name)
	return i.name, nil
}

func (i *Instrument) verifyConversation(cmd string, acks, lines []string) error {
	for n, want := range acks {
		if lines[n] != want {
			return fmt.Errorf("%w: after %q got %q, expected %q", ErrAcknowledgement, cmd, lines[n], want)
		}
	}
	if i.prompt != "" {
		if got := lines[len(lines)-1]; got != i.prompt {
			return fmt.Errorf("%w: after %q got %q, expected %q", ErrPrompt, cmd, got, i.prompt)
		}
	}
	return nil
}
