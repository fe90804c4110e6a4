package calculation

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
)

// Operational precondition errors on pretax-deferred withdrawals.
var (
	ErrOwnerAgeNotSet     = errors.New("owner age must be set before withdrawing from a pretax-deferred asset")
	ErrJurisdictionNotSet = errors.New("jurisdiction must be set before withdrawing from a pretax-deferred asset")
)

// TaxCategory selects the withdrawal strategy of an Asset.
type TaxCategory int

const (
	// TaxFree withdrawals move money out without tax treatment.
	TaxFree TaxCategory = iota
	// CapitalGains assets track cumulative unrealized gain and tax the
	// realized portion of each withdrawal at long-term capital gains rates.
	CapitalGains
	// PretaxDeferred assets tax the full gross withdrawal as ordinary income
	// and add an early-withdrawal penalty below the penalty-free age.
	PretaxDeferred
)

func (tc TaxCategory) String() string {
	switch tc {
	case CapitalGains:
		return "capital_gains"
	case PretaxDeferred:
		return "pretax"
	default:
		return "none"
	}
}

// net-to-gross withdrawal solving: fixed-point refinement passes and the flat
// first-guess rate for capital gains.
const grossSolverPasses = 5

var flatCapitalGainsGuessRate = decimal.NewFromFloat(0.15)

// AssetSpec configures an Asset. Allocation, CapValue and CapDeposit are
// optional; nil means no allocation fraction and unbounded caps.
type AssetSpec struct {
	Name         string
	InitialValue decimal.Decimal
	StartYear    int
	Duration     int
	// GrowthRate derives the yearly multiplier 1+rate. Must be >= -1.
	GrowthRate decimal.Decimal
	// Allocation weighs this asset's share of uncapped surplus cash.
	// Fractions across a model's assets must sum to 1.
	Allocation *decimal.Decimal
	// CapValue is the maximum standing value; deposits stop at the cap.
	CapValue *decimal.Decimal
	// CapDeposit limits any single year's deposit.
	CapDeposit *decimal.Decimal
	Tax        TaxCategory
	// OwnerAge and Jurisdiction drive pretax withdrawal taxation. Both must
	// be set before the first pretax withdrawal.
	OwnerAge     int
	Jurisdiction string
}

// Asset is a pool of investable capital. It keeps the Flow series mechanics
// (per-year values with a simulation-path dimension) and adds deposit caps,
// growth from a rate, and tax treatment on withdrawal.
//
// Assets are not recurring flows: only the first modeled year may carry a
// nonzero starting value, later years accumulate through growth, deposits
// and withdrawals.
type Asset struct {
	Flow

	growthRate    decimal.Decimal
	allocation    decimal.Decimal
	hasAllocation bool
	capValue      decimal.Decimal
	hasCapValue   bool
	capDeposit    decimal.Decimal
	hasCapDeposit bool
	tax           TaxCategory

	// cumulative unrealized gain per path per year, CapitalGains only.
	gains [][]decimal.Decimal

	ownerAge    int
	hasOwnerAge bool
}

// NewAsset builds an Asset from spec. Construction fails on a negative
// initial value, a growth rate below -1, or an unknown jurisdiction.
func NewAsset(spec AssetSpec) (*Asset, error) {
	flow, err := NewFlow(FlowSpec{
		Name:         spec.Name,
		InitialValue: spec.InitialValue,
		StartYear:    spec.StartYear,
		Duration:     spec.Duration,
		Multiplier:   decimal.NewFromInt(1).Add(spec.GrowthRate),
	})
	if err != nil {
		return nil, err
	}
	if spec.Jurisdiction != "" {
		if _, err := jurisdictionBrackets(spec.Jurisdiction); err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
	}

	// an asset is not a recurring flow: zero everything after year one
	for i := 1; i < flow.duration; i++ {
		flow.values[0][i] = decimal.Zero
	}
	flow.jurisdiction = spec.Jurisdiction

	a := &Asset{
		Flow:       *flow,
		growthRate: spec.GrowthRate,
		tax:        spec.Tax,
	}
	if spec.Allocation != nil {
		a.allocation, a.hasAllocation = *spec.Allocation, true
	}
	if spec.CapValue != nil {
		a.capValue, a.hasCapValue = *spec.CapValue, true
	}
	if spec.CapDeposit != nil {
		a.capDeposit, a.hasCapDeposit = *spec.CapDeposit, true
	}
	if spec.OwnerAge != 0 {
		a.ownerAge, a.hasOwnerAge = spec.OwnerAge, true
	}
	if spec.Tax == CapitalGains {
		a.gains = [][]decimal.Decimal{make([]decimal.Decimal, flow.duration)}
		for i := range a.gains[0] {
			a.gains[0][i] = decimal.Zero
		}
	}
	return a, nil
}

// Tax reports the asset's tax category.
func (a *Asset) Tax() TaxCategory { return a.tax }

// GrowthRate reports the configured yearly growth rate.
func (a *Asset) GrowthRate() decimal.Decimal { return a.growthRate }

// Allocation returns the allocation fraction and whether one is set.
func (a *Asset) Allocation() (decimal.Decimal, bool) { return a.allocation, a.hasAllocation }

// CapValue returns the standing cap and whether one is set.
func (a *Asset) CapValue() (decimal.Decimal, bool) { return a.capValue, a.hasCapValue }

// CapDeposit returns the per-year deposit cap and whether one is set.
func (a *Asset) CapDeposit() (decimal.Decimal, bool) { return a.capDeposit, a.hasCapDeposit }

// SetCapValue replaces the standing cap; events use it to stop accumulation.
func (a *Asset) SetCapValue(cap decimal.Decimal) { a.capValue, a.hasCapValue = cap, true }

// SetCapDeposit replaces the per-year deposit cap; events use it to stop
// future contributions.
func (a *Asset) SetCapDeposit(cap decimal.Decimal) { a.capDeposit, a.hasCapDeposit = cap, true }

// SetOwnerAge records the owner's age for pretax withdrawal taxation.
func (a *Asset) SetOwnerAge(age int) { a.ownerAge, a.hasOwnerAge = age, true }

// GainAt returns the first path's cumulative unrealized gain for year. Zero
// for non-capital-gains assets and out-of-range years.
func (a *Asset) GainAt(year int) decimal.Decimal { return a.pathGainAt(0, year) }

func (a *Asset) pathGainAt(path, year int) decimal.Decimal {
	idx := a.index(year)
	if a.gains == nil || !a.inRange(idx) {
		return decimal.Zero
	}
	return a.gains[path][idx]
}

// Deposit adds up to amount to the balance at year, clamped by the standing
// cap and the per-year deposit cap, independently per path. It returns the
// first path's deposited amount; depositing zero is a no-op.
func (a *Asset) Deposit(year int, amount decimal.Decimal) decimal.Decimal {
	out := decimal.Zero
	for p := range a.values {
		d := a.depositPath(p, year, amount)
		if p == 0 {
			out = d
		}
	}
	return out
}

func (a *Asset) depositPath(path, year int, amount decimal.Decimal) decimal.Decimal {
	idx := a.index(year)
	if !a.inRange(idx) || !amount.IsPositive() {
		return decimal.Zero
	}
	deposit := amount
	if a.hasCapValue {
		spaceLeft := decimal.Max(decimal.Zero, a.capValue.Sub(a.values[path][idx]))
		deposit = decimal.Min(deposit, spaceLeft)
	}
	if a.hasCapDeposit {
		deposit = decimal.Min(deposit, a.capDeposit)
	}
	a.values[path][idx] = a.values[path][idx].Add(deposit)
	return deposit
}

// Withdraw removes money from the balance at year and returns the first
// path's net amount received. TaxFree assets withdraw min(amount, balance);
// CapitalGains and PretaxDeferred assets solve for the gross withdrawal whose
// net proceeds approximate the requested amount, clamped to the balance.
// Withdrawing more than is available is not an error: the net actually
// achieved is returned.
func (a *Asset) Withdraw(year int, amount decimal.Decimal) (decimal.Decimal, error) {
	out := decimal.Zero
	for p := range a.values {
		w, err := a.withdrawPath(p, year, amount)
		if err != nil {
			return decimal.Zero, err
		}
		if p == 0 {
			out = w
		}
	}
	return out, nil
}

func (a *Asset) withdrawPath(path, year int, amount decimal.Decimal) (decimal.Decimal, error) {
	switch a.tax {
	case CapitalGains:
		return a.withdrawCapitalGainsPath(path, year, amount), nil
	case PretaxDeferred:
		if !a.hasOwnerAge {
			return decimal.Zero, fmt.Errorf("%s: %w", a.name, ErrOwnerAgeNotSet)
		}
		if a.jurisdiction == "" {
			return decimal.Zero, fmt.Errorf("%s: %w", a.name, ErrJurisdictionNotSet)
		}
		return a.withdrawPretaxPath(path, year, amount), nil
	default:
		return a.Flow.withdrawPath(path, year, amount), nil
	}
}

// withdrawCapitalGainsPath solves for the gross G with
// net = G - rate(G*gainRatio) * G * gainRatio, where gainRatio is the share
// of the balance that is unrealized gain. Reduces the balance by G and the
// cumulative gain by the realized portion.
func (a *Asset) withdrawCapitalGainsPath(path, year int, amount decimal.Decimal) decimal.Decimal {
	idx := a.index(year)
	if !a.inRange(idx) || !amount.IsPositive() {
		return decimal.Zero
	}
	available := a.values[path][idx]
	if !available.IsPositive() {
		return decimal.Zero
	}
	gainRatio := a.gains[path][idx].Div(available)
	if gainRatio.IsNegative() {
		gainRatio = decimal.Zero
	}

	one := decimal.NewFromInt(1)
	gross := decimal.Min(amount.Div(one.Sub(flatCapitalGainsGuessRate.Mul(gainRatio))), available)
	for pass := 0; pass < grossSolverPasses; pass++ {
		rate := effectiveCapitalGainsRate(gross.Mul(gainRatio))
		gross = decimal.Min(amount.Div(one.Sub(rate.Mul(gainRatio))), available)
	}

	tracked := a.gains[path][idx]
	realizedGain := gross.Mul(gainRatio)
	switch {
	case gross.Equal(available):
		// full liquidation realizes exactly the whole tracked gain
		realizedGain = tracked
	case tracked.IsPositive() && realizedGain.GreaterThan(tracked):
		// division round-off in gainRatio must not realize more than exists
		realizedGain = tracked
	}
	net := gross.Sub(CapitalGainsTax(realizedGain))
	a.values[path][idx] = available.Sub(gross)
	a.gains[path][idx] = tracked.Sub(realizedGain)
	return net
}

// withdrawPretaxPath solves for the gross G with
// net = G * (1 - rate(G)), where rate folds in income tax and the
// early-withdrawal penalty. Reduces the balance by G.
func (a *Asset) withdrawPretaxPath(path, year int, amount decimal.Decimal) decimal.Decimal {
	idx := a.index(year)
	if !a.inRange(idx) || !amount.IsPositive() {
		return decimal.Zero
	}
	available := a.values[path][idx]
	if !available.IsPositive() {
		return decimal.Zero
	}

	one := decimal.NewFromInt(1)
	gross := decimal.Min(amount, available)
	for pass := 0; pass < grossSolverPasses; pass++ {
		// jurisdiction is validated at construction, the rate lookup cannot fail
		rate, _ := PretaxWithdrawalRate(gross, a.jurisdiction, a.ownerAge)
		gross = decimal.Min(amount.Div(one.Sub(rate)), available)
	}

	rate, _ := PretaxWithdrawalRate(gross, a.jurisdiction, a.ownerAge)
	net := gross.Mul(one.Sub(rate))
	a.values[path][idx] = available.Sub(gross)
	return net
}

// Grow compounds the balance into the next year by the year's multiplier,
// carrying cumulative unrealized gain forward for capital gains assets.
// Growing the final modeled year is a no-op.
func (a *Asset) Grow(year int) {
	idx := a.index(year)
	if idx < 0 || idx+1 >= a.duration {
		return
	}
	for p := range a.values {
		next := a.values[p][idx].Mul(a.multipliers[p][idx])
		if a.gains != nil {
			a.gains[p][idx+1] = a.gains[p][idx].Add(next.Sub(a.values[p][idx]))
		}
		a.values[p][idx+1] = next
	}
}

// expandPaths widens the asset to n simulation paths, gains included.
func (a *Asset) expandPaths(n int) {
	a.Flow.expandPaths(n)
	if a.gains == nil || len(a.gains) != 1 || n <= 1 {
		return
	}
	gains := make([][]decimal.Decimal, n)
	for p := 0; p < n; p++ {
		gains[p] = make([]decimal.Decimal, a.duration)
		copy(gains[p], a.gains[0])
	}
	a.gains = gains
}

// sampleMultipliers draws per-path per-year growth multipliers from a normal
// distribution centered on 1+growthRate. Samples below zero clamp to zero to
// keep the multiplier invariant.
func (a *Asset) sampleMultipliers(rng *rand.Rand, stdDev decimal.Decimal) {
	mean, _ := decimal.NewFromInt(1).Add(a.growthRate).Float64()
	sd, _ := stdDev.Float64()
	for p := range a.multipliers {
		for i := range a.multipliers[p] {
			sample := rng.NormFloat64()*sd + mean
			if sample < 0 {
				sample = 0
			}
			a.multipliers[p][i] = decimal.NewFromFloat(sample)
		}
	}
}
