package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/instrctl/comm"
	"github.com/danmuck/instrctl/config"
	"github.com/danmuck/instrctl/registry"
	"github.com/danmuck/instrctl/scpi"
)

func writeInventory(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write inventory: %v", err)
	}
	return path
}

func scpiRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	if err := reg.Register("scpi", func(c *comm.Communicator) (any, error) {
		return scpi.New(c), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestLoadInventory(t *testing.T) {
	path := writeInventory(t, `
[[instrument]]
name = "psu"
class = "scpi"
uri = "test://"
timeout_ms = 500
terminator = "\\r\\n"

[[instrument]]
name = "scope"
class = "scpi"
uri = "test://"
`)
	inv, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(inv.Instruments) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(inv.Instruments))
	}
	psu := inv.Instruments[0]
	if psu.Name != "psu" || psu.Class != "scpi" || psu.TimeoutMS != 500 {
		t.Fatalf("unexpected spec: %+v", psu)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected load error for missing file")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeInventory(t, "[[instrument]\nname =")
	if _, err := config.Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing name", "[[instrument]]\nclass = \"scpi\"\nuri = \"test://\"\n"},
		{"missing class", "[[instrument]]\nname = \"psu\"\nuri = \"test://\"\n"},
		{"missing uri", "[[instrument]]\nname = \"psu\"\nclass = \"scpi\"\n"},
		{"duplicate name", `
[[instrument]]
name = "psu"
class = "scpi"
uri = "test://"

[[instrument]]
name = "psu"
class = "scpi"
uri = "test://"
`},
	}
	for _, tc := range cases {
		path := writeInventory(t, tc.body)
		if _, err := config.Load(path); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestOpenInventoryAppliesOptions(t *testing.T) {
	path := writeInventory(t, `
[[instrument]]
name = "psu"
class = "scpi"
uri = "test://"
timeout_ms = 500
terminator = "\\r\\n"
`)
	inv, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opened, err := config.Open(inv, scpiRegistry(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, ok := opened["psu"].(*scpi.Instrument)
	if !ok {
		t.Fatalf("expected *scpi.Instrument, got %T", opened["psu"])
	}
	defer s.Close()

	c := s.Communicator()
	if c.Timeout() != 500*time.Millisecond {
		t.Fatalf("timeout not applied: %s", c.Timeout())
	}
	in, out := c.Terminators()
	if in != "\r\n" || out != "\r\n" {
		t.Fatalf("terminator not applied: in=%q out=%q", in, out)
	}
}

func TestOpenInventoryPartialFailure(t *testing.T) {
	inv := config.Inventory{Instruments: []config.InstrumentSpec{
		{Name: "good", Class: "scpi", URI: "test://"},
		{Name: "bad", Class: "missing-class", URI: "test://"},
	}}
	opened, err := config.Open(inv, scpiRegistry(t))
	if err == nil {
		t.Fatalf("expected failure for unknown class")
	}
	if _, ok := opened["good"]; !ok {
		t.Fatalf("instruments opened before the failure must be returned")
	}
}
