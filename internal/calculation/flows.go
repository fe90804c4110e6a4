package calculation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Configuration errors surfaced at construction time.
var (
	ErrNegativeValue      = errors.New("base value must be zero or positive")
	ErrNegativeMultiplier = errors.New("multiplier must be zero or positive")
	ErrInvalidDuration    = errors.New("duration must be positive")
	ErrYearOutOfRange     = errors.New("year outside modeled range")
)

// DefaultDuration is the number of years a flow models when none is given.
const DefaultDuration = 100

// FlowSpec configures a Flow. Zero values fall back to defaults: the current
// calendar year for StartYear, DefaultDuration for Duration and 1.0 for
// Multiplier.
type FlowSpec struct {
	Name         string
	InitialValue decimal.Decimal
	StartYear    int
	Duration     int
	Multiplier   decimal.Decimal
	// Taxable marks the flow as taxable income; the model taxes it each year
	// and pulls pretax diversions out of it before taxation.
	Taxable      bool
	Jurisdiction string
}

// Flow is a named, dated, fixed-duration series of per-year monetary amounts
// with a per-year growth multiplier. Revenues, expenses and debt are plain
// flows; Asset builds on it.
//
// Values carry a leading simulation-path dimension so the same arithmetic
// runs elementwise under Monte Carlo. Deterministic models have one path.
type Flow struct {
	name         string
	startYear    int
	duration     int
	values       [][]decimal.Decimal
	multipliers  [][]decimal.Decimal
	taxable      bool
	jurisdiction string
}

// NewFlow builds a Flow from spec. Construction fails on a negative initial
// value or multiplier, a non-positive duration, or an unknown jurisdiction on
// a taxable flow.
func NewFlow(spec FlowSpec) (*Flow, error) {
	if spec.StartYear == 0 {
		spec.StartYear = nowFunc().Year()
	}
	if spec.Duration == 0 {
		spec.Duration = DefaultDuration
	}
	if spec.Duration < 0 {
		return nil, fmt.Errorf("%s: duration %d: %w", spec.Name, spec.Duration, ErrInvalidDuration)
	}
	mult := spec.Multiplier
	if mult.IsZero() {
		mult = decimal.NewFromInt(1)
	}
	if spec.InitialValue.IsNegative() {
		return nil, fmt.Errorf("%s: %w", spec.Name, ErrNegativeValue)
	}
	if mult.IsNegative() {
		return nil, fmt.Errorf("%s: %w", spec.Name, ErrNegativeMultiplier)
	}
	if spec.Taxable && spec.Jurisdiction != "" {
		if _, err := jurisdictionBrackets(spec.Jurisdiction); err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
	}

	values := make([]decimal.Decimal, spec.Duration)
	multipliers := make([]decimal.Decimal, spec.Duration)
	for i := range values {
		values[i] = spec.InitialValue
		multipliers[i] = mult
	}
	return &Flow{
		name:         spec.Name,
		startYear:    spec.StartYear,
		duration:     spec.Duration,
		values:       [][]decimal.Decimal{values},
		multipliers:  [][]decimal.Decimal{multipliers},
		taxable:      spec.Taxable,
		jurisdiction: spec.Jurisdiction,
	}, nil
}

func (f *Flow) Name() string         { return f.name }
func (f *Flow) StartYear() int       { return f.startYear }
func (f *Flow) Duration() int        { return f.duration }
func (f *Flow) Taxable() bool        { return f.taxable }
func (f *Flow) Jurisdiction() string { return f.jurisdiction }

// Paths reports the number of simulation paths (1 unless Monte Carlo is on).
func (f *Flow) Paths() int { return len(f.values) }

func (f *Flow) String() string {
	return fmt.Sprintf("%s (start year %d, duration %d)", f.name, f.startYear, f.duration)
}

func (f *Flow) index(year int) int   { return year - f.startYear }
func (f *Flow) inRange(idx int) bool { return idx >= 0 && idx < f.duration }

// ValueAt returns the first path's value for year, or zero when year falls
// outside [startYear, startYear+duration).
func (f *Flow) ValueAt(year int) decimal.Decimal { return f.PathValueAt(0, year) }

// PathValueAt is ValueAt for a specific simulation path.
func (f *Flow) PathValueAt(path, year int) decimal.Decimal {
	idx := f.index(year)
	if !f.inRange(idx) {
		return decimal.Zero
	}
	return f.values[path][idx]
}

// MultiplierAt returns the first path's multiplier for year. Out-of-range
// years return zero, which is not a usable growth rate; callers must treat it
// as "no data".
func (f *Flow) MultiplierAt(year int) decimal.Decimal {
	idx := f.index(year)
	if !f.inRange(idx) {
		return decimal.Zero
	}
	return f.multipliers[0][idx]
}

// Series returns a copy of the per-year values for one simulation path,
// for charting collaborators.
func (f *Flow) Series(path int) []decimal.Decimal {
	out := make([]decimal.Decimal, f.duration)
	copy(out, f.values[path])
	return out
}

// SetMultiplier overwrites the multiplier for year on every path.
func (f *Flow) SetMultiplier(year int, rate decimal.Decimal) error {
	idx := f.index(year)
	if !f.inRange(idx) {
		return fmt.Errorf("%s: year %d: %w", f.name, year, ErrYearOutOfRange)
	}
	for p := range f.multipliers {
		f.multipliers[p][idx] = rate
	}
	return nil
}

// SetValue overwrites span consecutive years starting at year, on every path.
// A span below 1 means a single year; spans running past the end of the flow
// are clipped.
func (f *Flow) SetValue(year int, amount decimal.Decimal, span int) error {
	return f.mutateSpan(year, span, func(p, idx int) {
		f.values[p][idx] = amount
	})
}

// AddToValue adds delta to span consecutive years starting at year, on every
// path. Same clipping rules as SetValue.
func (f *Flow) AddToValue(year int, delta decimal.Decimal, span int) error {
	return f.mutateSpan(year, span, func(p, idx int) {
		f.values[p][idx] = f.values[p][idx].Add(delta)
	})
}

func (f *Flow) mutateSpan(year, span int, mutate func(p, idx int)) error {
	idx := f.index(year)
	if !f.inRange(idx) {
		return fmt.Errorf("%s: year %d: %w", f.name, year, ErrYearOutOfRange)
	}
	if span < 1 {
		span = 1
	}
	end := idx + span
	if end > f.duration {
		end = f.duration
	}
	for p := range f.values {
		for i := idx; i < end; i++ {
			mutate(p, i)
		}
	}
	return nil
}

func (f *Flow) addToValuePath(path, year int, delta decimal.Decimal) error {
	idx := f.index(year)
	if !f.inRange(idx) {
		return fmt.Errorf("%s: year %d: %w", f.name, year, ErrYearOutOfRange)
	}
	f.values[path][idx] = f.values[path][idx].Add(delta)
	return nil
}

// Grow multiplies the value at year by the year's multiplier and assigns the
// product to the next year, independently per path. Growing the final modeled
// year is a no-op.
func (f *Flow) Grow(year int) {
	idx := f.index(year)
	if idx < 0 || idx+1 >= f.duration {
		return
	}
	for p := range f.values {
		f.values[p][idx+1] = f.values[p][idx].Mul(f.multipliers[p][idx])
	}
}

// Withdraw removes up to amount from the value at year, clamped to what is
// available, and returns the first path's withdrawn amount. Every path is
// clamped independently.
func (f *Flow) Withdraw(year int, amount decimal.Decimal) decimal.Decimal {
	out := decimal.Zero
	for p := range f.values {
		w := f.withdrawPath(p, year, amount)
		if p == 0 {
			out = w
		}
	}
	return out
}

func (f *Flow) withdrawPath(path, year int, amount decimal.Decimal) decimal.Decimal {
	idx := f.index(year)
	if !f.inRange(idx) || !amount.IsPositive() {
		return decimal.Zero
	}
	withdrawn := decimal.Min(amount, f.values[path][idx])
	if withdrawn.IsNegative() {
		withdrawn = decimal.Zero
	}
	f.values[path][idx] = f.values[path][idx].Sub(withdrawn)
	return withdrawn
}

// applyTax reduces the value at year by the total tax owed on it, per path.
// Only meaningful for taxable flows; the model calls it once per year.
func (f *Flow) applyTax(year int) error {
	idx := f.index(year)
	if !f.inRange(idx) {
		return nil
	}
	for p := range f.values {
		tax, err := TotalTax(f.values[p][idx], f.jurisdiction)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		f.values[p][idx] = f.values[p][idx].Sub(tax)
	}
	return nil
}

// expandPaths replicates the single deterministic path n times. No-op when
// the flow already has more than one path.
func (f *Flow) expandPaths(n int) {
	if len(f.values) != 1 || n <= 1 {
		return
	}
	values := make([][]decimal.Decimal, n)
	multipliers := make([][]decimal.Decimal, n)
	for p := 0; p < n; p++ {
		values[p] = make([]decimal.Decimal, f.duration)
		multipliers[p] = make([]decimal.Decimal, f.duration)
		copy(values[p], f.values[0])
		copy(multipliers[p], f.multipliers[0])
	}
	f.values = values
	f.multipliers = multipliers
}
