// Package config loads a TOML instrument inventory and opens it through
// a registry. It touches only the public factory surface: URIs in,
// constructed instruments out.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/instrctl/comm"
	"github.com/danmuck/instrctl/registry"
)

type Inventory struct {
	Instruments []InstrumentSpec `toml:"instrument"`
}

type InstrumentSpec struct {
	Name       string `toml:"name"`
	Class      string `toml:"class"`
	URI        string `toml:"uri"`
	TimeoutMS  int    `toml:"timeout_ms"`
	Terminator string `toml:"terminator"`
}

func Load(path string) (Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Inventory{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var inv Inventory
	if err := toml.Unmarshal(data, &inv); err != nil {
		return Inventory{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(inv); err != nil {
		return Inventory{}, err
	}
	return inv, nil
}

func Validate(inv Inventory) error {
	seen := map[string]bool{}
	for i, spec := range inv.Instruments {
		if strings.TrimSpace(spec.Name) == "" {
			return fmt.Errorf("config: instrument[%d] missing name", i)
		}
		if seen[spec.Name] {
			return fmt.Errorf("config: duplicate instrument name %q", spec.Name)
		}
		seen[spec.Name] = true
		if strings.TrimSpace(spec.Class) == "" {
			return fmt.Errorf("config: instrument %q missing class", spec.Name)
		}
		if strings.TrimSpace(spec.URI) == "" {
			return fmt.Errorf("config: instrument %q missing uri", spec.Name)
		}
	}
	return nil
}

// Open connects every instrument in the inventory via the registry,
// keyed by name. Already-opened instruments are not torn down when a
// later one fails; the partial map is returned with the error so the
// caller can decide.
func Open(inv Inventory, reg *registry.Registry) (map[string]any, error) {
	out := make(map[string]any, len(inv.Instruments))
	for _, spec := range inv.Instruments {
		var opts []comm.Option
		if spec.TimeoutMS > 0 {
			opts = append(opts, comm.WithTimeout(time.Duration(spec.TimeoutMS)*time.Millisecond))
		}
		if spec.Terminator != "" {
			term := unescapeTerm(spec.Terminator)
			opts = append(opts, comm.WithTerminators(term, term))
		}
		inst, err := reg.Open(spec.Class, spec.URI, opts...)
		if err != nil {
			return out, fmt.Errorf("config: opening %q: %w", spec.Name, err)
		}
		out[spec.Name] = inst
	}
	return out, nil
}

// unescapeTerm turns the printable forms "\\r" and "\\n" from TOML into
// terminator bytes.
func unescapeTerm(s string) string {
	s = strings.ReplaceAll(s, `\r`, "\r")
	s = strings.ReplaceAll(s, `\n`, "\n")
	return s
}
