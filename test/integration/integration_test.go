package integration

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pquinter/fisim/internal/calculation"
	"github.com/pquinter/fisim/internal/config"
	"github.com/pquinter/fisim/internal/output"
)

const examplePlan = "../testdata/example_plan.yaml"

func loadModel(t *testing.T) *calculation.FinancialModel {
	t.Helper()
	parser := config.NewInputParser()
	plan, err := parser.LoadFromFile(examplePlan)
	require.NoError(t, err)
	model, err := config.BuildModel(plan, calculation.NopLogger{})
	require.NoError(t, err)
	return model
}

func TestEndToEndProjection(t *testing.T) {
	model := loadModel(t)
	require.NoError(t, model.Run(0))

	salary := model.Revenue("Salary")
	require.NotNil(t, salary)
	// taxed well below gross every working year
	assert.True(t, salary.ValueAt(2024).LessThan(decimal.NewFromInt(120_000)))
	assert.True(t, salary.ValueAt(2024).GreaterThan(decimal.NewFromInt(50_000)))
	// zeroed by the retirement event
	assert.True(t, salary.ValueAt(2040).IsZero())
	assert.True(t, salary.ValueAt(2043).IsZero())

	// the first surplus fills cash exactly to its cap; afterwards only
	// growth moves it, deposits stay shut out
	cash := model.Asset("Cash")
	assert.True(t, cash.ValueAt(2024).Equal(decimal.NewFromInt(30_000)), "2024: %s", cash.ValueAt(2024))
	assert.True(t, cash.ValueAt(2025).Equal(decimal.NewFromInt(30_300)), "2025: %s", cash.ValueAt(2025))
	// the 2030 house purchase knocks it back down
	assert.True(t, cash.ValueAt(2030).LessThan(cash.ValueAt(2029)))

	// pretax diversion builds the 401k while the salary runs
	retirement := model.Asset("401k")
	assert.True(t, retirement.ValueAt(2039).GreaterThan(decimal.NewFromInt(50_000)))

	// early surpluses and the asset cascade keep the plan debt-free,
	// including the drawdown years after retirement
	for year := 2024; year < 2045; year++ {
		assert.True(t, model.Debt().ValueAt(year).IsZero(), "year %d", year)
	}
}

func TestEndToEndOutputFormats(t *testing.T) {
	model := loadModel(t)
	require.NoError(t, model.Run(0))
	projection := model.Projection()

	console, err := output.ByName("console")
	require.NoError(t, err)
	text, err := console.Format(projection)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Salary")
	assert.Contains(t, string(text), "Net Worth")

	csvFormatter, err := output.ByName("csv")
	require.NoError(t, err)
	data, err := csvFormatter.Format(projection)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	// header plus one row per modeled year
	assert.Len(t, records, 21)
}

func TestEndToEndDeterministicRepeatability(t *testing.T) {
	first := loadModel(t)
	require.NoError(t, first.Run(0))
	second := loadModel(t)
	require.NoError(t, second.Run(0))

	a := first.Projection()
	b := second.Projection()
	require.Equal(t, len(a.NetWorth), len(b.NetWorth))
	for i := range a.NetWorth {
		assert.True(t, a.NetWorth[i].Equal(b.NetWorth[i]), "year %d", a.Years[i])
	}
}

func TestEndToEndMonteCarlo(t *testing.T) {
	model := loadModel(t)
	require.NoError(t, model.EnableMonteCarlo(calculation.MonteCarloConfig{
		NumSimulations: 50,
		Seed:           2024,
	}))
	require.NoError(t, model.Run(0))

	summary, err := model.Summarize()
	require.NoError(t, err)
	assert.Equal(t, 50, summary.NumSimulations)
	assert.True(t, summary.SuccessRate.GreaterThan(decimal.Zero))
	assert.True(t, summary.Percentiles.P10.LessThanOrEqual(summary.Percentiles.P90))

	rendered := string(output.FormatMonteCarloSummary(summary))
	assert.Contains(t, rendered, "50 simulations, seed 2024")
}
