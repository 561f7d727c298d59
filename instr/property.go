package instr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/instrctl/quant"
)

// Binding is the immutable descriptor a typed property is compiled from.
// One Binding is declared per command keyword at instrument-definition
// time and shared read-only across instances; it is never mutated at
// runtime.
type Binding struct {
	// Command is the keyword used for both query ("<Command>?") and set
	// unless SetCommand overrides the latter.
	Command    string
	SetCommand string
	// SetFormat joins the set keyword and the encoded value. Defaults to
	// "%s %s"; instruments using "cmd=value" pass "%s=%s".
	SetFormat string
	ReadOnly  bool
	WriteOnly bool
	// InputDecor/OutputDecor are pure text transforms applied to raw
	// response text before decoding and to encoded values before
	// formatting, for devices that wrap replies in quotes or prefixes.
	InputDecor  func(string) string
	OutputDecor func(string) string
}

func (b Binding) queryCmd() string { return b.Command + "?" }

func (b Binding) setKeyword() string {
	if b.SetCommand != "" {
		return b.SetCommand
	}
	return b.Command
}

func (b Binding) formatSet(value string) string {
	format := b.SetFormat
	if format == "" {
		format = "%s %s"
	}
	return fmt.Sprintf(format, b.setKeyword(), value)
}

func (b Binding) decorIn(s string) string {
	if b.InputDecor == nil {
		return s
	}
	return b.InputDecor(s)
}

func (b Binding) decorOut(s string) string {
	if b.OutputDecor == nil {
		return s
	}
	return b.OutputDecor(s)
}

// getRaw performs the query half shared by every property kind.
func (b Binding) getRaw(inst *Instrument) (string, error) {
	if b.WriteOnly {
		return "", fmt.Errorf("%w: %s", ErrWriteOnly, b.Command)
	}
	raw, err := inst.Query(b.queryCmd())
	if err != nil {
		return "", err
	}
	return b.decorIn(strings.TrimSpace(raw)), nil
}

// setRaw performs the send half shared by every property kind. The value
// must already be encoded and validated: this is the last stop before
// the wire.
func (b Binding) setRaw(inst *Instrument, value string) error {
	if b.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, b.Command)
	}
	return inst.SendCmd(b.formatSet(b.decorOut(value)))
}

// BoolProperty maps a pair of wire tokens onto a Go bool.
type BoolProperty struct {
	inst     *Instrument
	b        Binding
	trueTok  string
	falseTok string
}

// NewBool compiles a boolean property. Empty tokens default to the SCPI
// convention "ON"/"OFF".
func NewBool(inst *Instrument, b Binding, trueTok, falseTok string) BoolProperty {
	if trueTok == "" {
		trueTok = "ON"
	}
	if falseTok == "" {
		falseTok = "OFF"
	}
	return BoolProperty{inst: inst, b: b, trueTok: trueTok, falseTok: falseTok}
}

func (p BoolProperty) Get() (bool, error) {
	raw, err := p.b.getRaw(p.inst)
	if err != nil {
		return false, err
	}
	switch raw {
	case p.trueTok:
		return true, nil
	case p.falseTok:
		return false, nil
	}
	return false, decodeErr(p.b.queryCmd(), raw, nil)
}

func (p BoolProperty) Set(v bool) error {
	tok := p.falseTok
	if v {
		tok = p.trueTok
	}
	return p.b.setRaw(p.inst, tok)
}

// EnumProperty maps a closed table of typed values onto wire tokens.
type EnumProperty[E comparable] struct {
	inst    *Instrument
	b       Binding
	toWire  map[E]string
	fromTok map[string]E
}

func NewEnum[E comparable](inst *Instrument, b Binding, table map[E]string) EnumProperty[E] {
	fromTok := make(map[string]E, len(table))
	for v, tok := range table {
		fromTok[tok] = v
	}
	return EnumProperty[E]{inst: inst, b: b, toWire: table, fromTok: fromTok}
}

func (p EnumProperty[E]) Get() (E, error) {
	var zero E
	raw, err := p.b.getRaw(p.inst)
	if err != nil {
		return zero, err
	}
	v, ok := p.fromTok[raw]
	if !ok {
		return zero, decodeErr(p.b.queryCmd(), raw, nil)
	}
	return v, nil
}

// Set rejects values outside the declared table before any I/O happens.
func (p EnumProperty[E]) Set(v E) error {
	tok, ok := p.toWire[v]
	if !ok {
		return fmt.Errorf("%w: %s: %v not in enum table", ErrValidation, p.b.Command, v)
	}
	return p.b.setRaw(p.inst, tok)
}

// IntProperty parses and formats a plain integer, optionally restricted
// to an explicit valid set.
type IntProperty struct {
	inst     *Instrument
	b        Binding
	validSet []int
}

func NewInt(inst *Instrument, b Binding, validSet ...int) IntProperty {
	return IntProperty{inst: inst, b: b, validSet: validSet}
}

func (p IntProperty) Get() (int, error) {
	raw, err := p.b.getRaw(p.inst)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, decodeErr(p.b.queryCmd(), raw, err)
	}
	return v, nil
}

func (p IntProperty) Set(v int) error {
	if len(p.validSet) > 0 {
		ok := false
		for _, allowed := range p.validSet {
			if v == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: %s: %d not in valid set %v", ErrValidation, p.b.Command, v, p.validSet)
		}
	}
	return p.b.setRaw(p.inst, strconv.Itoa(v))
}

// FloatProperty parses and formats a unitless float.
type FloatProperty struct {
	inst       *Instrument
	b          Binding
	formatCode string
}

func NewFloat(inst *Instrument, b Binding, formatCode string) FloatProperty {
	if formatCode == "" {
		formatCode = "%e"
	}
	return FloatProperty{inst: inst, b: b, formatCode: formatCode}
}

func (p FloatProperty) Get() (float64, error) {
	raw, err := p.b.getRaw(p.inst)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, decodeErr(p.b.queryCmd(), raw, err)
	}
	return v, nil
}

func (p FloatProperty) Set(v float64) error {
	return p.b.setRaw(p.inst, fmt.Sprintf(p.formatCode, v))
}

// StringProperty exchanges free text, stripping and re-adding a bookmark
// symbol (usually a double quote) around the payload.
type StringProperty struct {
	inst     *Instrument
	b        Binding
	bookmark string
}

func NewString(inst *Instrument, b Binding, bookmark string) StringProperty {
	return StringProperty{inst: inst, b: b, bookmark: bookmark}
}

func (p StringProperty) Get() (string, error) {
	raw, err := p.b.getRaw(p.inst)
	if err != nil {
		return "", err
	}
	if p.bookmark != "" {
		raw = strings.TrimPrefix(raw, p.bookmark)
		raw = strings.TrimSuffix(raw, p.bookmark)
	}
	return raw, nil
}

func (p StringProperty) Set(v string) error {
	return p.b.setRaw(p.inst, p.bookmark+v+p.bookmark)
}

// Bound is one endpoint of a unitful property's valid range: either a
// fixed quantity declared at binding time or a query command asked of the
// instrument when the bound is needed.
type Bound struct {
	Fixed *quant.Quantity
	Query string
}

// FixedBound declares a compile-time range endpoint.
func FixedBound(q quant.Quantity) *Bound { return &Bound{Fixed: &q} }

// QueriedBound declares a live endpoint fetched with the given command,
// e.g. "FREQ:MIN?".
func QueriedBound(cmd string) *Bound { return &Bound{Query: cmd} }

func (bd *Bound) resolve(inst *Instrument, unit quant.Unit) (*quant.Quantity, error) {
	if bd == nil {
		return nil, nil
	}
	if bd.Fixed != nil {
		q, err := bd.Fixed.To(unit)
		if err != nil {
			return nil, err
		}
		return &q, nil
	}
	raw, err := inst.Query(bd.Query)
	if err != nil {
		return nil, err
	}
	q, err := quant.Parse(strings.TrimSpace(raw), unit)
	if err != nil {
		return nil, decodeErr(bd.Query, raw, err)
	}
	converted, err := q.To(unit)
	if err != nil {
		return nil, decodeErr(bd.Query, raw, err)
	}
	return &converted, nil
}

// UnitfulProperty exchanges a quantity in a declared default unit.
// Responses without a unit suffix assume the default; responses with one
// are converted exactly.
type UnitfulProperty struct {
	inst       *Instrument
	b          Binding
	unit       quant.Unit
	formatCode string
	min        *Bound
	max        *Bound
}

type UnitfulOption func(*UnitfulProperty)

// WithFormatCode overrides the fmt verb used to encode the magnitude for
// transmission (default "%e").
func WithFormatCode(code string) UnitfulOption {
	return func(p *UnitfulProperty) { p.formatCode = code }
}

// WithRange bounds the property. Either endpoint may be nil to leave
// that side unchecked.
func WithRange(min, max *Bound) UnitfulOption {
	return func(p *UnitfulProperty) {
		p.min = min
		p.max = max
	}
}

func NewUnitful(inst *Instrument, b Binding, unit quant.Unit, opts ...UnitfulOption) UnitfulProperty {
	p := UnitfulProperty{inst: inst, b: b, unit: unit, formatCode: "%e"}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// NewBoundedUnitful compiles a unitful property whose range is queried
// live from the instrument via "<cmd>:MIN?" and "<cmd>:MAX?".
func NewBoundedUnitful(inst *Instrument, b Binding, unit quant.Unit, opts ...UnitfulOption) UnitfulProperty {
	bounded := append([]UnitfulOption{WithRange(
		QueriedBound(b.Command+":MIN?"),
		QueriedBound(b.Command+":MAX?"),
	)}, opts...)
	return NewUnitful(inst, b, unit, bounded...)
}

func (p UnitfulProperty) Unit() quant.Unit { return p.unit }

// Min resolves the lower bound, querying the instrument if the binding
// declared a live bound. Nil means unbounded below.
func (p UnitfulProperty) Min() (*quant.Quantity, error) {
	return p.min.resolve(p.inst, p.unit)
}

// Max resolves the upper bound. Nil means unbounded above.
func (p UnitfulProperty) Max() (*quant.Quantity, error) {
	return p.max.resolve(p.inst, p.unit)
}

// Get decodes the instrument's value in the declared unit. A response
// outside the declared range is returned as-is alongside a RangeError:
// the value reflects the device's own state and is never clamped.
func (p UnitfulProperty) Get() (quant.Quantity, error) {
	raw, err := p.b.getRaw(p.inst)
	if err != nil {
		return quant.Quantity{}, err
	}
	parsed, err := quant.Parse(raw, p.unit)
	if err != nil {
		return quant.Quantity{}, decodeErr(p.b.queryCmd(), raw, err)
	}
	q, err := parsed.To(p.unit)
	if err != nil {
		return quant.Quantity{}, decodeErr(p.b.queryCmd(), raw, err)
	}
	if rangeErr, err := p.checkRange(q); err != nil {
		return quant.Quantity{}, err
	} else if rangeErr != nil {
		return q, rangeErr
	}
	return q, nil
}

// Set validates against the known or queried range before any set I/O:
// an out-of-range input fails locally with ErrValidation and transmits
// nothing.
func (p UnitfulProperty) Set(v quant.Quantity) error {
	q, err := v.To(p.unit)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, p.b.Command, err)
	}
	if rangeErr, err := p.checkRange(q); err != nil {
		return err
	} else if rangeErr != nil {
		return rangeErr
	}
	return p.b.setRaw(p.inst, fmt.Sprintf(p.formatCode, q.Value))
}

// checkRange resolves both bounds and compares. The first return is the
// range violation (nil if in range); the second is an I/O or decode
// failure while resolving a live bound.
func (p UnitfulProperty) checkRange(q quant.Quantity) (error, error) {
	min, err := p.min.resolve(p.inst, p.unit)
	if err != nil {
		return nil, err
	}
	max, err := p.max.resolve(p.inst, p.unit)
	if err != nil {
		return nil, err
	}
	if min != nil && q.Value < min.Value {
		return &RangeError{Command: p.b.Command, Value: q, Min: min, Max: max}, nil
	}
	if max != nil && q.Value > max.Value {
		return &RangeError{Command: p.b.Command, Value: q, Min: min, Max: max}, nil
	}
	return nil, nil
}
