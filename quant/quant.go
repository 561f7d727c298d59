// Package quant provides the small unit algebra the property engine needs
// to exchange magnitudes with instruments: parsing a numeric wire token
// with an optional unit suffix, exact conversion between units of one
// dimension, and formatting back to wire text.
package quant

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrParse     = errors.New("quant: cannot split value and unit")
	ErrDimension = errors.New("quant: incompatible dimensions")
	ErrUnknown   = errors.New("quant: unknown unit")
)

// Dimension identifies a physical quantity family. Conversion is only
// defined within one dimension.
type Dimension int

const (
	Dimensionless Dimension = iota
	Voltage
	Current
	Frequency
	Time
	Temperature
	Power
	Length
)

// Unit scales a magnitude to its dimension's base unit by
// base = value*Factor + Offset. Factor/Offset are exact for every unit
// in the table, so conversions round-trip within float64 precision.
type Unit struct {
	Name   string
	Dim    Dimension
	Factor float64
	Offset float64
}

var (
	Pure = Unit{Name: "", Dim: Dimensionless, Factor: 1}

	Volt      = Unit{Name: "V", Dim: Voltage, Factor: 1}
	Millivolt = Unit{Name: "mV", Dim: Voltage, Factor: 1e-3}
	Kilovolt  = Unit{Name: "kV", Dim: Voltage, Factor: 1e3}

	Ampere      = Unit{Name: "A", Dim: Current, Factor: 1}
	Milliampere = Unit{Name: "mA", Dim: Current, Factor: 1e-3}

	Hertz     = Unit{Name: "Hz", Dim: Frequency, Factor: 1}
	Kilohertz = Unit{Name: "kHz", Dim: Frequency, Factor: 1e3}
	Megahertz = Unit{Name: "MHz", Dim: Frequency, Factor: 1e6}
	Gigahertz = Unit{Name: "GHz", Dim: Frequency, Factor: 1e9}

	Second      = Unit{Name: "s", Dim: Time, Factor: 1}
	Millisecond = Unit{Name: "ms", Dim: Time, Factor: 1e-3}
	Microsecond = Unit{Name: "us", Dim: Time, Factor: 1e-6}

	Kelvin  = Unit{Name: "K", Dim: Temperature, Factor: 1}
	Celsius = Unit{Name: "degC", Dim: Temperature, Factor: 1, Offset: 273.15}

	Watt      = Unit{Name: "W", Dim: Power, Factor: 1}
	Milliwatt = Unit{Name: "mW", Dim: Power, Factor: 1e-3}

	Meter      = Unit{Name: "m", Dim: Length, Factor: 1}
	Millimeter = Unit{Name: "mm", Dim: Length, Factor: 1e-3}
	Micrometer = Unit{Name: "um", Dim: Length, Factor: 1e-6}
	Nanometer  = Unit{Name: "nm", Dim: Length, Factor: 1e-9}
)

var unitsByName = map[string]Unit{}

func init() {
	for _, u := range []Unit{
		Volt, Millivolt, Kilovolt,
		Ampere, Milliampere,
		Hertz, Kilohertz, Megahertz, Gigahertz,
		Second, Millisecond, Microsecond,
		Kelvin, Celsius,
		Watt, Milliwatt,
		Meter, Millimeter, Micrometer, Nanometer,
	} {
		unitsByName[u.Name] = u
	}
	// Common instrument spellings.
	unitsByName["C"] = Celsius
	unitsByName["HZ"] = Hertz
	unitsByName["KHZ"] = Kilohertz
	unitsByName["MHZ"] = Megahertz
	unitsByName["GHZ"] = Gigahertz
	unitsByName["S"] = Second
	unitsByName["MS"] = Millisecond
}

// LookupUnit resolves a unit suffix as instruments print it.
func LookupUnit(name string) (Unit, bool) {
	u, ok := unitsByName[name]
	return u, ok
}

// Quantity is a magnitude paired with its unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

func New(v float64, u Unit) Quantity { return Quantity{Value: v, Unit: u} }

// To converts the quantity to another unit of the same dimension.
func (q Quantity) To(u Unit) (Quantity, error) {
	if q.Unit.Dim != u.Dim {
		return Quantity{}, fmt.Errorf("%w: %s -> %s", ErrDimension, q.Unit.Name, u.Name)
	}
	base := q.Value*q.Unit.Factor + q.Unit.Offset
	return Quantity{Value: (base - u.Offset) / u.Factor, Unit: u}, nil
}

func (q Quantity) String() string {
	if q.Unit.Name == "" {
		return strconv.FormatFloat(q.Value, 'g', -1, 64)
	}
	return strconv.FormatFloat(q.Value, 'g', -1, 64) + " " + q.Unit.Name
}

// magnitudeRe accepts plain and scientific notation, with an optional
// unit suffix separated by any amount of whitespace.
var magnitudeRe = regexp.MustCompile(`^([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*([a-zA-Z]*)$`)

// Parse splits wire text like "12", "14.7 GHz" or "3.2e-3V" into a
// Quantity. When the text carries no unit suffix the default applies;
// instruments frequently reply with bare magnitudes.
func Parse(s string, def Unit) (Quantity, error) {
	m := magnitudeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Quantity{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	if m[2] == "" {
		return Quantity{Value: v, Unit: def}, nil
	}
	u, ok := LookupUnit(m[2])
	if !ok {
		return Quantity{}, fmt.Errorf("%w: %q in %q", ErrUnknown, m[2], s)
	}
	return Quantity{Value: v, Unit: u}, nil
}

// Compare orders two quantities of the same dimension: -1, 0 or +1.
func Compare(a, b Quantity) (int, error) {
	bb, err := b.To(a.Unit)
	if err != nil {
		return 0, err
	}
	switch {
	case a.Value < bb.Value:
		return -1, nil
	case a.Value > bb.Value:
		return 1, nil
	}
	return 0, nil
}
