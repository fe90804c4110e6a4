package calculation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedJurisdiction is returned for jurisdiction codes with no
// bracket table.
var ErrUnsupportedJurisdiction = errors.New("unsupported jurisdiction")

// TaxBracket is one progressive bracket: Rate applies to income between the
// previous bracket's upper bound and UpperBound.
type TaxBracket struct {
	Rate       decimal.Decimal
	UpperBound decimal.Decimal
}

// noUpperBound stands in for an unbounded top bracket.
var noUpperBound = decimal.NewFromInt(999_999_999_999)

func bracket(ratePercent float64, upperBound int64) TaxBracket {
	bound := noUpperBound
	if upperBound > 0 {
		bound = decimal.NewFromInt(upperBound)
	}
	return TaxBracket{
		Rate:       decimal.NewFromFloat(ratePercent).Div(decimal.NewFromInt(100)),
		UpperBound: bound,
	}
}

// 2023 federal income tax brackets.
var federalBrackets = []TaxBracket{
	bracket(10, 11_000),
	bracket(12, 44_725),
	bracket(22, 95_375),
	bracket(24, 182_100),
	bracket(32, 231_250),
	bracket(35, 578_125),
	bracket(37, 0),
}

// 2023 state income tax brackets. MA, PA and MI are flat taxes.
var stateTaxBrackets = map[string][]TaxBracket{
	"MA": {bracket(5, 0)},
	"CA": {
		bracket(1, 9_325),
		bracket(2, 22_107),
		bracket(4, 34_892),
		bracket(6, 48_435),
		bracket(8, 61_214),
		bracket(9.3, 312_686),
		bracket(10.3, 375_221),
		bracket(11.3, 625_369),
		bracket(12.3, 0),
	},
	"PA": {bracket(3.07, 0)},
	"MI": {bracket(4.25, 0)},
	"OH": {
		bracket(0, 25_000),
		bracket(2.765, 44_250),
		bracket(3.226, 88_450),
		bracket(3.688, 110_650),
		bracket(3.990, 0),
	},
}

// 2023 federal long-term capital gains brackets (single filer).
var capitalGainsBrackets = []TaxBracket{
	bracket(0, 44_625),
	bracket(15, 492_300),
	bracket(20, 0),
}

// Early-withdrawal penalty on pretax-deferred accounts: 10% below age 60.
var earlyWithdrawalPenaltyRate = decimal.NewFromFloat(0.10)

const penaltyFreeAge = 60

func jurisdictionBrackets(code string) ([]TaxBracket, error) {
	if code == "" {
		return federalBrackets, nil
	}
	brackets, ok := stateTaxBrackets[code]
	if !ok {
		return nil, fmt.Errorf("%q: %w", code, ErrUnsupportedJurisdiction)
	}
	return brackets, nil
}

// SupportedJurisdictions returns the known jurisdiction codes, sorted.
func SupportedJurisdictions() []string {
	codes := make([]string, 0, len(stateTaxBrackets))
	for code := range stateTaxBrackets {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func bracketTax(income decimal.Decimal, brackets []TaxBracket) decimal.Decimal {
	tax := decimal.Zero
	previousBound := decimal.Zero
	for _, b := range brackets {
		applicable := decimal.Min(income, b.UpperBound).Sub(previousBound)
		if applicable.IsPositive() {
			tax = tax.Add(applicable.Mul(b.Rate))
			previousBound = b.UpperBound
		}
		if income.LessThanOrEqual(b.UpperBound) {
			break
		}
	}
	return tax
}

// TaxLiability applies the progressive bracket table for jurisdiction to
// income. An empty jurisdiction selects the federal table.
func TaxLiability(income decimal.Decimal, jurisdiction string) (decimal.Decimal, error) {
	brackets, err := jurisdictionBrackets(jurisdiction)
	if err != nil {
		return decimal.Zero, err
	}
	return bracketTax(income, brackets), nil
}

// TotalTax returns the combined federal and jurisdiction liability on income,
// rounded to the nearest whole currency unit. Pure: income is not mutated.
func TotalTax(income decimal.Decimal, jurisdiction string) (decimal.Decimal, error) {
	federal := bracketTax(income, federalBrackets)
	if jurisdiction == "" {
		return federal.Round(0), nil
	}
	state, err := TaxLiability(income, jurisdiction)
	if err != nil {
		return decimal.Zero, err
	}
	return federal.Add(state).Round(0), nil
}

// TotalTaxSlice is the elementwise form of TotalTax, for batched simulation
// paths. Each element is taxed independently.
func TotalTaxSlice(incomes []decimal.Decimal, jurisdiction string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(incomes))
	for i, income := range incomes {
		tax, err := TotalTax(income, jurisdiction)
		if err != nil {
			return nil, err
		}
		out[i] = tax
	}
	return out, nil
}

// CapitalGainsTax applies the long-term capital gains brackets to a realized
// gain.
func CapitalGainsTax(gain decimal.Decimal) decimal.Decimal {
	return bracketTax(gain, capitalGainsBrackets)
}

// effectiveCapitalGainsRate is the average tax rate on a realized gain, used
// by the net-to-gross withdrawal solver.
func effectiveCapitalGainsRate(gain decimal.Decimal) decimal.Decimal {
	if !gain.IsPositive() {
		return decimal.Zero
	}
	return CapitalGainsTax(gain).Div(gain)
}

// PretaxWithdrawalRate is the effective rate lost to income tax plus the
// early-withdrawal penalty when pulling gross out of a pretax-deferred
// account at the given age.
func PretaxWithdrawalRate(gross decimal.Decimal, jurisdiction string, age int) (decimal.Decimal, error) {
	rate := decimal.Zero
	if age < penaltyFreeAge {
		rate = earlyWithdrawalPenaltyRate
	}
	if !gross.IsPositive() {
		return rate, nil
	}
	tax, err := TotalTax(gross, jurisdiction)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Add(tax.Div(gross)), nil
}
