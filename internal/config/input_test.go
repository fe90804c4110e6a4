package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pquinter/fisim/internal/calculation"
)

func floatPtr(f float64) *float64 { return &f }

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const samplePlanYAML = `
duration: 10
revenues:
  - name: Salary
    initial_value: 60000
    start_year: 2024
    duration: 10
    taxable: true
    jurisdiction: MA
expenses:
  - name: Living Costs
    initial_value: 30000
    start_year: 2024
    duration: 10
    inflation_rate: 0.02
assets:
  - name: Cash
    initial_value: 10000
    start_year: 2024
    duration: 10
    growth_rate: 0.01
    cap_value: 15000
  - name: Brokerage
    initial_value: 5000
    start_year: 2024
    duration: 10
    growth_rate: 0.05
    allocation: 1.0
    tax: capital_gains
events:
  - name: Retire
    actions:
      - target: Salary
        op: set_value
        params: {year: 2030, value: 0, span: 100}
`

func TestLoadFromFile(t *testing.T) {
	parser := NewInputParser()
	plan, err := parser.LoadFromFile(writePlanFile(t, samplePlanYAML))
	require.NoError(t, err)

	assert.Equal(t, 10, plan.Duration)
	require.Len(t, plan.Revenues, 1)
	assert.Equal(t, "Salary", plan.Revenues[0].Name)
	assert.True(t, plan.Revenues[0].Taxable)
	require.Len(t, plan.Assets, 2)
	require.NotNil(t, plan.Assets[0].CapValue)
	assert.Equal(t, 15000.0, *plan.Assets[0].CapValue)
	assert.Equal(t, "capital_gains", plan.Assets[1].Tax)
	require.Len(t, plan.Events, 1)
	assert.Equal(t, "set_value", plan.Events[0].Actions[0].Op)
}

func TestLoadFromFileMissing(t *testing.T) {
	parser := NewInputParser()
	_, err := parser.LoadFromFile("nonexistent.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestLoadFromFileBadYAML(t *testing.T) {
	parser := NewInputParser()
	_, err := parser.LoadFromFile(writePlanFile(t, "duration: [not a number"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadFromFileRejectsUnknownFields(t *testing.T) {
	const plan = `
duration: 5
revenues:
  - name: Salary
    initial_value: 1000
    start_year: 2024
    duration: 5
    growth_rate: 0.03
assets:
  - name: Cash
    initial_value: 100
    start_year: 2024
    duration: 5
`
	parser := NewInputParser()
	_, err := parser.LoadFromFile(writePlanFile(t, plan))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "growth_rate")
}

func TestValidatePlan(t *testing.T) {
	base := func() *Plan {
		return &Plan{
			Duration: 10,
			Revenues: []FlowInput{{Name: "Salary", InitialValue: 1000}},
			Assets:   []AssetInput{{Name: "Cash", InitialValue: 500}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Plan)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(*Plan) {},
			wantErr: "",
		},
		{
			name:    "non-positive duration",
			mutate:  func(p *Plan) { p.Duration = 0 },
			wantErr: "duration must be positive",
		},
		{
			name: "no entities",
			mutate: func(p *Plan) {
				p.Revenues = nil
				p.Assets = nil
			},
			wantErr: "no revenues, expenses or assets",
		},
		{
			name:    "empty name",
			mutate:  func(p *Plan) { p.Revenues[0].Name = "" },
			wantErr: "empty name",
		},
		{
			name:    "duplicate names",
			mutate:  func(p *Plan) { p.Assets[0].Name = "Salary" },
			wantErr: "duplicate entity name",
		},
		{
			name:    "negative initial value",
			mutate:  func(p *Plan) { p.Revenues[0].InitialValue = -1 },
			wantErr: "must be zero or positive",
		},
		{
			name:    "revenue with inflation rate",
			mutate:  func(p *Plan) { p.Revenues[0].InflationRate = 0.03 },
			wantErr: "revenues stay level",
		},
		{
			name:    "unknown tax category",
			mutate:  func(p *Plan) { p.Assets[0].Tax = "roth" },
			wantErr: "unknown tax category",
		},
		{
			name: "event targets unknown entity",
			mutate: func(p *Plan) {
				p.Events = []EventInput{{
					Name:    "Ghost",
					Year:    2025,
					Actions: []ActionInput{{Target: "Missing", Op: "set_value"}},
				}}
			},
			wantErr: "unknown entity",
		},
		{
			name: "monte carlo needs simulations",
			mutate: func(p *Plan) {
				p.MonteCarlo = &MonteCarloInput{Simulations: 0}
			},
			wantErr: "monte_carlo.simulations",
		},
	}
	parser := NewInputParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := base()
			tt.mutate(plan)
			err := parser.ValidatePlan(plan)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildModel(t *testing.T) {
	parser := NewInputParser()
	plan, err := parser.LoadFromFile(writePlanFile(t, samplePlanYAML))
	require.NoError(t, err)

	model, err := BuildModel(plan, nil)
	require.NoError(t, err)
	assert.Equal(t, 2024, model.StartYear())
	assert.Equal(t, 1, model.Paths())

	require.NoError(t, model.Run(0))

	// the retire event zeroed the salary from 2030 on
	assert.True(t, model.Revenue("Salary").ValueAt(2030).IsZero())
	assert.False(t, model.Revenue("Salary").ValueAt(2029).IsZero())
	// surplus years built up the brokerage position
	assert.True(t, model.Asset("Brokerage").ValueAt(2029).GreaterThan(decimal.NewFromInt(5000)))
}

func TestBuildModelMonteCarlo(t *testing.T) {
	plan := &Plan{
		Duration:   5,
		Revenues:   []FlowInput{{Name: "Salary", InitialValue: 1000, StartYear: 2024, Duration: 5}},
		Expenses:   []FlowInput{{Name: "Rent", InitialValue: 900, StartYear: 2024, Duration: 5}},
		Assets:     []AssetInput{{Name: "Stocks", InitialValue: 1000, StartYear: 2024, Duration: 5, GrowthRate: 0.05, Allocation: floatPtr(1.0)}},
		MonteCarlo: &MonteCarloInput{Simulations: 30, Seed: 11},
	}
	require.NoError(t, NewInputParser().ValidatePlan(plan))

	model, err := BuildModel(plan, calculation.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, 30, model.Paths())

	require.NoError(t, model.Run(0))
	summary, err := model.Summarize()
	require.NoError(t, err)
	assert.Equal(t, int64(11), summary.Seed)
}

func TestBuildModelRejectsBadAction(t *testing.T) {
	plan := &Plan{
		Duration: 5,
		Revenues: []FlowInput{{Name: "Salary", InitialValue: 1000, StartYear: 2024, Duration: 5}},
		Events: []EventInput{{
			Name: "Impossible",
			Year: 2025,
			// deposit is an asset operation, Salary is a plain flow
			Actions: []ActionInput{{Target: "Salary", Op: "deposit", Params: map[string]any{"year": 2025, "amount": 100}}},
		}},
	}
	require.NoError(t, NewInputParser().ValidatePlan(plan))

	_, err := BuildModel(plan, nil)
	assert.ErrorIs(t, err, calculation.ErrInvalidTarget)
}

func TestBuildModelRejectsBadAllocation(t *testing.T) {
	plan := &Plan{
		Duration: 5,
		Assets: []AssetInput{
			{Name: "A", InitialValue: 100, StartYear: 2024, Duration: 5, Allocation: floatPtr(0.8)},
			{Name: "B", InitialValue: 100, StartYear: 2024, Duration: 5, Allocation: floatPtr(0.3)},
		},
	}
	require.NoError(t, NewInputParser().ValidatePlan(plan))

	_, err := BuildModel(plan, nil)
	assert.ErrorIs(t, err, calculation.ErrBadAllocation)
}
