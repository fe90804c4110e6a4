package calculation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFlow(t *testing.T, spec FlowSpec) *Flow {
	t.Helper()
	flow, err := NewFlow(spec)
	require.NoError(t, err)
	return flow
}

func sampleRevenue(t *testing.T) *Flow {
	return mustFlow(t, FlowSpec{
		Name:         "Test Revenue",
		InitialValue: decimal.NewFromInt(1000),
		StartYear:    2024,
		Duration:     10,
	})
}

func assertDecimalEqual(t *testing.T, expected, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, expected.Equal(actual), "expected %s, got %s (%v)", expected, actual, msgAndArgs)
}

func TestNewFlowValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    FlowSpec
		wantErr error
	}{
		{
			name:    "negative initial value",
			spec:    FlowSpec{Name: "Invalid Flow", InitialValue: decimal.NewFromInt(-1000)},
			wantErr: ErrNegativeValue,
		},
		{
			name:    "negative multiplier",
			spec:    FlowSpec{Name: "Invalid Flow", InitialValue: decimal.NewFromInt(1000), Multiplier: decimal.NewFromFloat(-0.5)},
			wantErr: ErrNegativeMultiplier,
		},
		{
			name:    "negative duration",
			spec:    FlowSpec{Name: "Invalid Flow", Duration: -1},
			wantErr: ErrInvalidDuration,
		},
		{
			name:    "unknown jurisdiction on taxable flow",
			spec:    FlowSpec{Name: "Salary", InitialValue: decimal.NewFromInt(1000), Taxable: true, Jurisdiction: "XX"},
			wantErr: ErrUnsupportedJurisdiction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFlow(tt.spec)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewFlowDefaults(t *testing.T) {
	SetNowFunc(func() time.Time { return time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC) })
	defer SetNowFunc(time.Now)

	flow := mustFlow(t, FlowSpec{Name: "Defaults", InitialValue: decimal.NewFromInt(100)})
	assert.Equal(t, 2030, flow.StartYear())
	assert.Equal(t, DefaultDuration, flow.Duration())
	assertDecimalEqual(t, decimal.NewFromInt(1), flow.MultiplierAt(2030))
}

func TestValueAtOutsideRangeReturnsZero(t *testing.T) {
	flow := sampleRevenue(t)
	assertDecimalEqual(t, decimal.NewFromInt(1000), flow.ValueAt(2024))
	assertDecimalEqual(t, decimal.NewFromInt(1000), flow.ValueAt(2033))
	assertDecimalEqual(t, decimal.Zero, flow.ValueAt(2023))
	assertDecimalEqual(t, decimal.Zero, flow.ValueAt(2034))
	assertDecimalEqual(t, decimal.Zero, flow.MultiplierAt(2023))
	assertDecimalEqual(t, decimal.Zero, flow.MultiplierAt(2034))
}

func TestSetValueAndAddToValue(t *testing.T) {
	flow := sampleRevenue(t)

	require.NoError(t, flow.SetValue(2025, decimal.NewFromInt(100), 0))
	assertDecimalEqual(t, decimal.NewFromInt(100), flow.ValueAt(2025))
	assertDecimalEqual(t, decimal.NewFromInt(1000), flow.ValueAt(2024))

	require.NoError(t, flow.AddToValue(2024, decimal.NewFromInt(500), 0))
	assertDecimalEqual(t, decimal.NewFromInt(1500), flow.ValueAt(2024))
	assertDecimalEqual(t, decimal.NewFromInt(100), flow.ValueAt(2025))
}

func TestSetValueSpanClipsAtEnd(t *testing.T) {
	flow := sampleRevenue(t)
	require.NoError(t, flow.SetValue(2030, decimal.Zero, 100))
	for year := 2030; year < 2034; year++ {
		assertDecimalEqual(t, decimal.Zero, flow.ValueAt(year), year)
	}
	assertDecimalEqual(t, decimal.NewFromInt(1000), flow.ValueAt(2029))
}

func TestMutationOutOfRangeFails(t *testing.T) {
	flow := sampleRevenue(t)
	assert.ErrorIs(t, flow.SetValue(2040, decimal.Zero, 1), ErrYearOutOfRange)
	assert.ErrorIs(t, flow.AddToValue(2023, decimal.Zero, 1), ErrYearOutOfRange)
	assert.ErrorIs(t, flow.SetMultiplier(2040, decimal.NewFromInt(1)), ErrYearOutOfRange)
}

func TestSetMultiplier(t *testing.T) {
	flow := sampleRevenue(t)
	require.NoError(t, flow.SetMultiplier(2025, decimal.NewFromFloat(1.1)))
	assertDecimalEqual(t, decimal.NewFromFloat(1.1), flow.MultiplierAt(2025))
	assertDecimalEqual(t, decimal.NewFromInt(1), flow.MultiplierAt(2024))
}

func TestGrow(t *testing.T) {
	flow := mustFlow(t, FlowSpec{
		Name:         "Test Expense",
		InitialValue: decimal.NewFromInt(1000),
		StartYear:    2024,
		Duration:     10,
		Multiplier:   decimal.NewFromFloat(1.02),
	})

	flow.Grow(2024)
	assertDecimalEqual(t, decimal.NewFromInt(1000), flow.ValueAt(2024))
	assertDecimalEqual(t, decimal.NewFromInt(1020), flow.ValueAt(2025))

	flow.Grow(2025)
	assertDecimalEqual(t, decimal.NewFromFloat(1040.4), flow.ValueAt(2026))
}

func TestGrowAtFinalYearIsNoOp(t *testing.T) {
	flow := sampleRevenue(t)
	lastYear := flow.StartYear() + flow.Duration() - 1
	before := flow.ValueAt(lastYear)
	flow.Grow(lastYear)
	assertDecimalEqual(t, before, flow.ValueAt(lastYear))
}

func TestWithdrawClampsToAvailable(t *testing.T) {
	flow := sampleRevenue(t)

	withdrawn := flow.Withdraw(2024, decimal.NewFromInt(300))
	assertDecimalEqual(t, decimal.NewFromInt(300), withdrawn)
	assertDecimalEqual(t, decimal.NewFromInt(700), flow.ValueAt(2024))

	withdrawn = flow.Withdraw(2024, decimal.NewFromInt(2000))
	assertDecimalEqual(t, decimal.NewFromInt(700), withdrawn)
	assertDecimalEqual(t, decimal.Zero, flow.ValueAt(2024))

	// out-of-range withdrawal moves nothing
	assertDecimalEqual(t, decimal.Zero, flow.Withdraw(2050, decimal.NewFromInt(100)))
}

func TestApplyTaxReducesTaxableValue(t *testing.T) {
	flow := mustFlow(t, FlowSpec{
		Name:         "Test Taxable Income",
		InitialValue: decimal.NewFromInt(150_000),
		StartYear:    2024,
		Duration:     10,
		Taxable:      true,
		Jurisdiction: "MA",
	})

	require.NoError(t, flow.applyTax(2024))
	// federal 29_400 plus MA 7_500
	assertDecimalEqual(t, decimal.NewFromInt(113_100), flow.ValueAt(2024))
	// other years untouched
	assertDecimalEqual(t, decimal.NewFromInt(150_000), flow.ValueAt(2025))
}

func TestExpandPaths(t *testing.T) {
	flow := sampleRevenue(t)
	flow.expandPaths(4)
	assert.Equal(t, 4, flow.Paths())
	for p := 0; p < 4; p++ {
		assertDecimalEqual(t, decimal.NewFromInt(1000), flow.PathValueAt(p, 2024))
	}

	// elementwise mutation reaches every path
	require.NoError(t, flow.AddToValue(2024, decimal.NewFromInt(500), 1))
	for p := 0; p < 4; p++ {
		assertDecimalEqual(t, decimal.NewFromInt(1500), flow.PathValueAt(p, 2024))
	}

	// expanding twice is a no-op
	flow.expandPaths(8)
	assert.Equal(t, 4, flow.Paths())
}
