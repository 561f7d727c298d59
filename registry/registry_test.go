package registry_test

import (
	"errors"
	"testing"

	"github.com/danmuck/instrctl/comm"
	"github.com/danmuck/instrctl/registry"
	"github.com/danmuck/instrctl/scpi"
)

func TestRegisterAndOpen(t *testing.T) {
	reg := registry.New()
	if err := reg.Register("scpi", func(c *comm.Communicator) (any, error) {
		return scpi.New(c), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	inst, err := reg.Open("scpi", "test://")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, ok := inst.(*scpi.Instrument)
	if !ok {
		t.Fatalf("expected *scpi.Instrument, got %T", inst)
	}
	defer s.Close()
	if s.Communicator().Backend().Kind() != comm.KindLoopback {
		t.Fatalf("expected loopback transport, got %s", s.Communicator().Backend().Kind())
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	reg := registry.New()
	build := func(c *comm.Communicator) (any, error) { return scpi.New(c), nil }
	if err := reg.Register("scpi", build); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("scpi", build); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestOpenUnknownClass(t *testing.T) {
	reg := registry.New()
	if _, err := reg.Open("phaser", "test://"); err == nil {
		t.Fatalf("expected unknown class error")
	}
}

func TestOpenBadURI(t *testing.T) {
	reg := registry.New()
	_ = reg.Register("scpi", func(c *comm.Communicator) (any, error) {
		return scpi.New(c), nil
	})
	if _, err := reg.Open("scpi", "carrier-pigeon://coop"); !errors.Is(err, comm.ErrBadURI) {
		t.Fatalf("expected ErrBadURI, got %v", err)
	}
}

func TestOpenClosesCommOnConstructorFailure(t *testing.T) {
	reg := registry.New()
	var got *comm.Communicator
	_ = reg.Register("broken", func(c *comm.Communicator) (any, error) {
		got = c
		return nil, errors.New("probe failed")
	})

	if _, err := reg.Open("broken", "test://"); err == nil {
		t.Fatalf("expected constructor failure to surface")
	}
	if got == nil || got.Backend().IsOpen() {
		t.Fatalf("communicator must be closed after a failed construction")
	}
}

func TestClassesSorted(t *testing.T) {
	reg := registry.New()
	build := func(c *comm.Communicator) (any, error) { return scpi.New(c), nil }
	for _, class := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(class, build); err != nil {
			t.Fatalf("register %q: %v", class, err)
		}
	}
	got := reg.Classes()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("classes not sorted: %v", got)
		}
	}
}
