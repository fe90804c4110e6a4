package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pquinter/fisim/internal/calculation"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Plan is the YAML shape of a projection plan.
type Plan struct {
	Duration   int              `yaml:"duration"`
	Revenues   []FlowInput      `yaml:"revenues"`
	Expenses   []FlowInput      `yaml:"expenses"`
	Assets     []AssetInput     `yaml:"assets"`
	Events     []EventInput     `yaml:"events"`
	MonteCarlo *MonteCarloInput `yaml:"monte_carlo"`
}

// FlowInput describes one revenue or expense.
type FlowInput struct {
	Name         string  `yaml:"name"`
	InitialValue float64 `yaml:"initial_value"`
	StartYear    int     `yaml:"start_year"`
	Duration     int     `yaml:"duration"`
	// InflationRate compounds expenses through the per-year multiplier
	// 1+rate. Revenues stay level; only events change them.
	InflationRate float64 `yaml:"inflation_rate"`
	Taxable       bool    `yaml:"taxable"`
	Jurisdiction  string  `yaml:"jurisdiction"`
}

// AssetInput describes one asset.
type AssetInput struct {
	Name         string   `yaml:"name"`
	InitialValue float64  `yaml:"initial_value"`
	StartYear    int      `yaml:"start_year"`
	Duration     int      `yaml:"duration"`
	GrowthRate   float64  `yaml:"growth_rate"`
	Allocation   *float64 `yaml:"allocation"`
	CapValue     *float64 `yaml:"cap_value"`
	CapDeposit   *float64 `yaml:"cap_deposit"`
	// Tax is one of "", "none", "capital_gains", "pretax".
	Tax          string `yaml:"tax"`
	OwnerAge     int    `yaml:"owner_age"`
	Jurisdiction string `yaml:"jurisdiction"`
}

// EventInput schedules actions against named entities.
type EventInput struct {
	Name    string        `yaml:"name"`
	Year    int           `yaml:"year"`
	Actions []ActionInput `yaml:"actions"`
}

// ActionInput is one operation bound to a target entity by name.
type ActionInput struct {
	Target string         `yaml:"target"`
	Op     string         `yaml:"op"`
	Params map[string]any `yaml:"params"`
}

// MonteCarloInput enables batched simulation.
type MonteCarloInput struct {
	Simulations int     `yaml:"simulations"`
	StdDev      float64 `yaml:"std_dev"`
	Seed        int64   `yaml:"seed"`
}

// InputParser handles parsing of plan files.
type InputParser struct{}

// NewInputParser creates a new input parser.
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads and validates a plan from a YAML file.
func (ip *InputParser) LoadFromFile(filename string) (*Plan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var plan Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	// reject unknown keys so misspelled or unsupported knobs fail loudly
	// instead of silently dropping
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ip.ValidatePlan(&plan); err != nil {
		return nil, fmt.Errorf("plan validation failed: %w", err)
	}
	return &plan, nil
}

// ValidatePlan checks the structural rules a plan must satisfy before the
// engine's own construction-time checks run. Kept separate so callers get
// file-oriented error messages naming the offending entry.
func (ip *InputParser) ValidatePlan(plan *Plan) error {
	if plan.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", plan.Duration)
	}
	if len(plan.Revenues)+len(plan.Expenses)+len(plan.Assets) == 0 {
		return fmt.Errorf("no revenues, expenses or assets provided")
	}

	names := map[string]bool{}
	checkEntity := func(kind, name string, initialValue float64) error {
		if name == "" {
			return fmt.Errorf("%s with empty name", kind)
		}
		if names[name] {
			return fmt.Errorf("duplicate entity name %q", name)
		}
		names[name] = true
		if initialValue < 0 {
			return fmt.Errorf("%s %q: initial value must be zero or positive", kind, name)
		}
		return nil
	}

	for _, r := range plan.Revenues {
		if err := checkEntity("revenue", r.Name, r.InitialValue); err != nil {
			return err
		}
		if r.InflationRate != 0 {
			return fmt.Errorf("revenue %q: revenues stay level and do not compound", r.Name)
		}
	}
	for _, e := range plan.Expenses {
		if err := checkEntity("expense", e.Name, e.InitialValue); err != nil {
			return err
		}
	}
	for _, a := range plan.Assets {
		if err := checkEntity("asset", a.Name, a.InitialValue); err != nil {
			return err
		}
		switch a.Tax {
		case "", "none", "capital_gains", "pretax":
		default:
			return fmt.Errorf("asset %q: unknown tax category %q", a.Name, a.Tax)
		}
	}
	for _, ev := range plan.Events {
		if ev.Name == "" {
			return fmt.Errorf("event with empty name")
		}
		for _, action := range ev.Actions {
			if !names[action.Target] {
				return fmt.Errorf("event %q: action targets unknown entity %q", ev.Name, action.Target)
			}
		}
	}
	if mc := plan.MonteCarlo; mc != nil && mc.Simulations < 1 {
		return fmt.Errorf("monte_carlo.simulations must be at least 1, got %d", mc.Simulations)
	}
	return nil
}

// BuildModel constructs the financial model a validated plan describes,
// enabling Monte Carlo mode when the plan requests it.
func BuildModel(plan *Plan, logger calculation.Logger) (*calculation.FinancialModel, error) {
	entities := map[string]calculation.Entity{}

	buildFlow := func(in FlowInput, rate float64) (*calculation.Flow, error) {
		flow, err := calculation.NewFlow(calculation.FlowSpec{
			Name:         in.Name,
			InitialValue: decimal.NewFromFloat(in.InitialValue),
			StartYear:    in.StartYear,
			Duration:     in.Duration,
			Multiplier:   decimal.NewFromInt(1).Add(decimal.NewFromFloat(rate)),
			Taxable:      in.Taxable,
			Jurisdiction: in.Jurisdiction,
		})
		if err != nil {
			return nil, err
		}
		entities[in.Name] = flow
		return flow, nil
	}

	revenues := make([]*calculation.Flow, 0, len(plan.Revenues))
	for _, in := range plan.Revenues {
		flow, err := buildFlow(in, 0)
		if err != nil {
			return nil, fmt.Errorf("revenue %q: %w", in.Name, err)
		}
		revenues = append(revenues, flow)
	}
	expenses := make([]*calculation.Flow, 0, len(plan.Expenses))
	for _, in := range plan.Expenses {
		flow, err := buildFlow(in, in.InflationRate)
		if err != nil {
			return nil, fmt.Errorf("expense %q: %w", in.Name, err)
		}
		expenses = append(expenses, flow)
	}

	assets := make([]*calculation.Asset, 0, len(plan.Assets))
	for _, in := range plan.Assets {
		spec := calculation.AssetSpec{
			Name:         in.Name,
			InitialValue: decimal.NewFromFloat(in.InitialValue),
			StartYear:    in.StartYear,
			Duration:     in.Duration,
			GrowthRate:   decimal.NewFromFloat(in.GrowthRate),
			Tax:          taxCategory(in.Tax),
			OwnerAge:     in.OwnerAge,
			Jurisdiction: in.Jurisdiction,
		}
		if in.Allocation != nil {
			alloc := decimal.NewFromFloat(*in.Allocation)
			spec.Allocation = &alloc
		}
		if in.CapValue != nil {
			cap := decimal.NewFromFloat(*in.CapValue)
			spec.CapValue = &cap
		}
		if in.CapDeposit != nil {
			cap := decimal.NewFromFloat(*in.CapDeposit)
			spec.CapDeposit = &cap
		}
		asset, err := calculation.NewAsset(spec)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", in.Name, err)
		}
		entities[in.Name] = asset
		assets = append(assets, asset)
	}

	events := make([]*calculation.Event, 0, len(plan.Events))
	for _, in := range plan.Events {
		actions := make([]*calculation.Action, 0, len(in.Actions))
		for _, ai := range in.Actions {
			action, err := calculation.NewAction(entities[ai.Target], calculation.Op(ai.Op), ai.Params)
			if err != nil {
				return nil, fmt.Errorf("event %q: %w", in.Name, err)
			}
			actions = append(actions, action)
		}
		event, err := calculation.NewEvent(in.Name, in.Year, actions)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	model, err := calculation.NewFinancialModel(calculation.ModelSpec{
		Revenues: revenues,
		Expenses: expenses,
		Assets:   assets,
		Events:   events,
		Duration: plan.Duration,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	if mc := plan.MonteCarlo; mc != nil {
		err := model.EnableMonteCarlo(calculation.MonteCarloConfig{
			NumSimulations: mc.Simulations,
			StdDev:         decimal.NewFromFloat(mc.StdDev),
			Seed:           mc.Seed,
		})
		if err != nil {
			return nil, err
		}
	}
	return model, nil
}

func taxCategory(name string) calculation.TaxCategory {
	switch name {
	case "capital_gains":
		return calculation.CapitalGains
	case "pretax":
		return calculation.PretaxDeferred
	default:
		return calculation.TaxFree
	}
}
