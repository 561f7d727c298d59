package comm

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/instrctl/internal/observability"
)

const DefaultTimeout = 3 * time.Second

// NewlinePolicy controls how a bare "\n" inside an outgoing payload is
// encoded on the wire. Instruments disagree on termination, so this is
// configuration rather than a constant.
type NewlinePolicy int

const (
	// NewlineAsTerminator rewrites interior "\n" bytes to the configured
	// output terminator before transmission.
	NewlineAsTerminator NewlinePolicy = iota
	// NewlineRaw transmits payload bytes untouched.
	NewlineRaw
)

// Communicator wraps exactly one Backend behind a transport-agnostic
// send/receive contract. It is the sole mutator of its backend: the
// exclusivity lock serializes whole write+read transactions so a
// multi-step exchange cannot interleave with another caller's.
type Communicator struct {
	mu      sync.Mutex
	backend Backend

	inTerm  []byte
	outTerm []byte
	policy  NewlinePolicy
	timeout time.Duration

	debug bool
	log   zerolog.Logger
}

type Option func(*Communicator)

// WithTerminators sets the input (response) and output (command)
// terminator byte sequences.
func WithTerminators(in, out string) Option {
	return func(c *Communicator) {
		c.inTerm = []byte(in)
		c.outTerm = []byte(out)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Communicator) { c.timeout = d }
}

func WithNewlinePolicy(p NewlinePolicy) Option {
	return func(c *Communicator) { c.policy = p }
}

// WithDebug logs every line sent and received at debug level. Logging each
// exchange is slow, so it is off by default.
func WithDebug() Option {
	return func(c *Communicator) { c.debug = true }
}

func New(b Backend, opts ...Option) *Communicator {
	c := &Communicator{
		backend: b,
		inTerm:  []byte("\n"),
		outTerm: []byte("\n"),
		timeout: DefaultTimeout,
		log:     log.With().Str("comm", string(b.Kind())).Str("addr", b.Addr()).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Communicator) Backend() Backend { return c.backend }

func (c *Communicator) Addr() string { return c.backend.Addr() }

func (c *Communicator) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

func (c *Communicator) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

func (c *Communicator) Terminators() (in, out string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.inTerm), string(c.outTerm)
}

func (c *Communicator) SetTerminators(in, out string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inTerm = []byte(in)
	c.outTerm = []byte(out)
}

func (c *Communicator) SetDebug(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = on
}

// SendCmd writes one terminated command line. It holds the exclusivity
// lock for the duration of the write so the line cannot interleave with a
// concurrent transaction.
func (c *Communicator) SendCmd(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLine(cmd)
}

// Query writes one command line, then reads one terminated response line.
// The lock is held across both halves and released on every exit path.
func (c *Communicator) Query(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if err := c.writeLine(cmd); err != nil {
		return "", err
	}
	resp, err := c.readLine()
	if err != nil {
		return "", err
	}
	observability.RecordQuery(string(c.backend.Kind()), time.Since(start))
	return resp, nil
}

// Exchange writes one command line and then reads exactly reads response
// lines, all under one hold of the exclusivity lock. Instruments that
// echo acknowledgements or prompts after each command need the whole
// multi-line transaction to be indivisible.
func (c *Communicator) Exchange(cmd string, reads int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if err := c.writeLine(cmd); err != nil {
		return nil, err
	}
	lines := make([]string, 0, reads)
	for i := 0; i < reads; i++ {
		line, err := c.readLine()
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
	if reads > 0 {
		observability.RecordQuery(string(c.backend.Kind()), time.Since(start))
	}
	return lines, nil
}

// ReadLine reads a single terminated response line outside of a query
// exchange, for instruments that emit unsolicited or multi-part replies.
func (c *Communicator) ReadLine() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readLine()
}

// FlushInput discards buffered input up to the next terminator, if any
// arrives within the timeout. Used to resynchronize after a protocol
// mismatch.
func (c *Communicator) FlushInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.backend.ReadBytesUntil(c.inTerm, c.timeout)
}

func (c *Communicator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Close()
}

func (c *Communicator) writeLine(cmd string) error {
	if !c.backend.IsOpen() {
		return fmt.Errorf("%w: write %q", ErrClosed, cmd)
	}
	payload := cmd
	if c.policy == NewlineAsTerminator && strings.Contains(payload, "\n") {
		payload = strings.ReplaceAll(payload, "\n", string(c.outTerm))
	}
	wire := append([]byte(payload), c.outTerm...)
	if err := c.backend.WriteBytes(wire); err != nil {
		return fmt.Errorf("%w: write %q on %s: %v", ErrTransport, cmd, c.backend.Kind(), err)
	}
	observability.RecordLineWritten(string(c.backend.Kind()))
	if c.debug {
		c.log.Debug().Str("dir", "send").Str("line", cmd).Msg("wire")
	}
	return nil
}

func (c *Communicator) readLine() (string, error) {
	if !c.backend.IsOpen() {
		return "", fmt.Errorf("%w: read", ErrClosed)
	}
	raw, err := c.backend.ReadBytesUntil(c.inTerm, c.timeout)
	if err != nil {
		if te, ok := err.(*TimeoutError); ok {
			observability.RecordReadTimeout(string(te.Kind))
		}
		return "", err
	}
	observability.RecordLineRead(string(c.backend.Kind()))
	line := string(raw)
	if c.debug {
		c.log.Debug().Str("dir", "recv").Str("line", line).Msg("wire")
	}
	return line, nil
}
