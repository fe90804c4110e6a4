package calculation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Model construction errors.
var (
	ErrBadAllocation = errors.New("asset allocations must sum to 1")
	ErrEmptyModel    = errors.New("model needs at least one revenue, expense or asset")
)

// allocationTolerance absorbs floating construction of fractions (0.3+0.7).
var allocationTolerance = decimal.NewFromFloat(1e-9)

// residualTolerance absorbs sub-unit round-off left by the net-to-gross
// withdrawal solvers; cascade remainders and ending debt at or below it count
// as covered.
var residualTolerance = decimal.NewFromFloat(0.5)

// ModelSpec configures a FinancialModel. Debt is optional; when nil a
// zero-valued debt flow spanning duration+1 years is created so the final
// year can still post a shortfall forward.
type ModelSpec struct {
	Revenues []*Flow
	Expenses []*Flow
	Assets   []*Asset
	Events   []*Event
	Duration int
	Debt     *Flow
	Logger   Logger
}

// FinancialModel owns the entities of one projection and drives the per-year
// simulation loop. All owned state is exclusive to the model; a model
// instance is meant to be driven by one caller.
type FinancialModel struct {
	revenues []*Flow
	expenses []*Flow
	assets   []*Asset
	events   []*Event
	debt     *Flow

	duration  int
	startYear int
	paths     int
	seed      int64
	logger    Logger
}

// NewFinancialModel validates spec and builds a model. Construction fails on
// a non-positive duration, an empty entity set, or asset allocation
// fractions that do not sum to 1.
func NewFinancialModel(spec ModelSpec) (*FinancialModel, error) {
	if spec.Duration <= 0 {
		return nil, fmt.Errorf("duration %d: %w", spec.Duration, ErrInvalidDuration)
	}
	if len(spec.Revenues)+len(spec.Expenses)+len(spec.Assets) == 0 {
		return nil, ErrEmptyModel
	}
	if err := validateAllocations(spec.Assets); err != nil {
		return nil, err
	}

	logger := spec.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	m := &FinancialModel{
		revenues: spec.Revenues,
		expenses: spec.Expenses,
		assets:   spec.Assets,
		events:   spec.Events,
		duration: spec.Duration,
		paths:    1,
		logger:   logger,
	}
	m.startYear = m.earliestStartYear()

	m.debt = spec.Debt
	if m.debt == nil {
		debt, err := NewFlow(FlowSpec{
			Name:      "Debt",
			StartYear: m.startYear,
			Duration:  spec.Duration + 1,
		})
		if err != nil {
			return nil, err
		}
		m.debt = debt
	}
	logger.Infof("financial model initialized, start year %d, duration %d", m.startYear, m.duration)
	return m, nil
}

func validateAllocations(assets []*Asset) error {
	total := decimal.Zero
	allocated := false
	for _, a := range assets {
		if alloc, ok := a.Allocation(); ok {
			total = total.Add(alloc)
			allocated = true
		}
	}
	if allocated && total.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(allocationTolerance) {
		return fmt.Errorf("total allocation is %s: %w", total, ErrBadAllocation)
	}
	return nil
}

func (m *FinancialModel) earliestStartYear() int {
	start := 0
	first := true
	consider := func(year int) {
		if first || year < start {
			start = year
			first = false
		}
	}
	for _, r := range m.revenues {
		consider(r.StartYear())
	}
	for _, e := range m.expenses {
		consider(e.StartYear())
	}
	for _, a := range m.assets {
		consider(a.StartYear())
	}
	for _, e := range m.events {
		consider(e.Year())
	}
	return start
}

// StartYear is the minimum start year across all owned entities and
// scheduled events, fixed at construction.
func (m *FinancialModel) StartYear() int { return m.startYear }

// Duration is the modeled horizon in years.
func (m *FinancialModel) Duration() int { return m.duration }

// Paths reports the number of simulation paths.
func (m *FinancialModel) Paths() int { return m.paths }

// Revenues returns the owned revenue flows in list order.
func (m *FinancialModel) Revenues() []*Flow { return m.revenues }

// Expenses returns the owned expense flows in list order.
func (m *FinancialModel) Expenses() []*Flow { return m.expenses }

// Assets returns the owned assets in list order.
func (m *FinancialModel) Assets() []*Asset { return m.assets }

// Debt returns the debt flow accumulating unfunded shortfalls.
func (m *FinancialModel) Debt() *Flow { return m.debt }

// Asset looks up an owned asset by name, nil when absent.
func (m *FinancialModel) Asset(name string) *Asset {
	for _, a := range m.assets {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Revenue looks up an owned revenue flow by name, nil when absent.
func (m *FinancialModel) Revenue(name string) *Flow { return flowByName(m.revenues, name) }

// Expense looks up an owned expense flow by name, nil when absent.
func (m *FinancialModel) Expense(name string) *Flow { return flowByName(m.expenses, name) }

func flowByName(flows []*Flow, name string) *Flow {
	for _, f := range flows {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Run drives the simulation forward one year at a time. A non-positive
// duration runs the full modeled horizon. Each year executes, in order:
// events, pretax diversion out of taxable income, taxation, cash-flow
// balancing (withdrawal cascade or surplus investment), asset growth and
// expense inflation. The ordering is a pinned contract: pretax diversion
// must precede taxation, and growth must follow balancing.
func (m *FinancialModel) Run(duration int) error {
	if duration <= 0 {
		duration = m.duration
	}
	m.logger.Infof("starting simulation: %d years from %d, %d path(s)", duration, m.startYear, m.paths)
	for year := m.startYear; year < m.startYear+duration; year++ {
		m.logger.Debugf("processing year %d", year)
		if err := m.applyEvents(year); err != nil {
			return err
		}
		for p := 0; p < m.paths; p++ {
			if cashFlow := m.pathCashFlow(p, year); cashFlow.IsPositive() {
				m.divertPretax(p, year, cashFlow)
			}
		}
		if err := m.taxRevenues(year); err != nil {
			return err
		}
		for p := 0; p < m.paths; p++ {
			cashFlow := m.pathCashFlow(p, year)
			if cashFlow.IsNegative() {
				if err := m.withdrawFunds(p, year, cashFlow.Neg()); err != nil {
					return err
				}
			} else {
				m.invest(p, year, cashFlow)
			}
		}
		m.growAssets(year)
		m.inflateExpenses(year)
	}
	m.logger.Infof("simulation completed")
	return nil
}

func (m *FinancialModel) applyEvents(year int) error {
	for _, event := range m.events {
		if event.applied || event.Year() != year {
			continue
		}
		m.logger.Infof("year %d: applying event %s", year, event.Name())
		if err := event.Apply(); err != nil {
			return err
		}
	}
	return nil
}

// pathCashFlow is revenues minus expenses and due debt for one path-year.
func (m *FinancialModel) pathCashFlow(path, year int) decimal.Decimal {
	cashFlow := decimal.Zero
	for _, r := range m.revenues {
		cashFlow = cashFlow.Add(r.PathValueAt(path, year))
	}
	for _, e := range m.expenses {
		cashFlow = cashFlow.Sub(e.PathValueAt(path, year))
	}
	return cashFlow.Sub(m.debt.PathValueAt(path, year))
}

// divertPretax routes surplus cash into pretax-deferred assets before
// taxation, then pulls the diverted total back out of taxable revenues in
// list order so it never shows up as taxable income.
func (m *FinancialModel) divertPretax(path, year int, cashFlow decimal.Decimal) {
	remaining := cashFlow
	diverted := decimal.Zero
	for _, a := range m.assets {
		if a.Tax() != PretaxDeferred {
			continue
		}
		deposited := a.depositPath(path, year, remaining)
		remaining = remaining.Sub(deposited)
		diverted = diverted.Add(deposited)
		if !remaining.IsPositive() {
			break
		}
	}
	if !diverted.IsPositive() {
		return
	}
	m.logger.Debugf("year %d: diverted %s into pretax assets", year, diverted)
	toCover := diverted
	for _, r := range m.revenues {
		if !r.Taxable() {
			continue
		}
		toCover = toCover.Sub(r.withdrawPath(path, year, toCover))
		if !toCover.IsPositive() {
			break
		}
	}
}

func (m *FinancialModel) taxRevenues(year int) error {
	for _, r := range m.revenues {
		if !r.Taxable() {
			continue
		}
		if err := r.applyTax(year); err != nil {
			return err
		}
		m.logger.Debugf("year %d: taxed %s", year, r.Name())
	}
	return nil
}

// withdrawFunds covers a deficit from assets in list order, carrying a
// running remainder; whatever no asset can cover posts as debt due next
// year. Remainders within residualTolerance are solver round-off, not a real
// shortfall, and do not post. An explicit loop, not recursion: termination is
// remainder exhausted or list exhausted.
func (m *FinancialModel) withdrawFunds(path, year int, amount decimal.Decimal) error {
	remaining := amount
	for _, a := range m.assets {
		if !remaining.IsPositive() {
			break
		}
		net, err := a.withdrawPath(path, year, remaining)
		if err != nil {
			return err
		}
		if net.IsPositive() {
			m.logger.Debugf("year %d: withdrew %s net from %s", year, net, a.Name())
		}
		remaining = remaining.Sub(net)
	}
	if remaining.GreaterThan(residualTolerance) {
		m.logger.Infof("year %d: posting %s as debt for year %d", year, remaining, year+1)
		if err := m.debt.addToValuePath(path, year+1, remaining); err != nil {
			// the auto-created debt flow always spans duration+1 years; a
			// shorter caller-supplied debt flow drops the overflow
			m.logger.Warnf("year %d: dropping shortfall %s: %v", year, remaining, err)
		}
	}
	return nil
}

// invest routes surplus cash into assets: capped assets fill first in list
// order, then the remainder splits across allocation-bearing assets in
// proportion to their fractions.
func (m *FinancialModel) invest(path, year int, amount decimal.Decimal) {
	for _, a := range m.assets {
		if _, capped := a.CapValue(); !capped {
			continue
		}
		invested := a.depositPath(path, year, amount)
		amount = amount.Sub(invested)
		if invested.IsPositive() {
			m.logger.Debugf("year %d: invested %s in %s (capped)", year, invested, a.Name())
		}
	}
	if !amount.IsPositive() {
		return
	}
	for _, a := range m.assets {
		alloc, ok := a.Allocation()
		if !ok {
			continue
		}
		invested := a.depositPath(path, year, amount.Mul(alloc))
		if invested.IsPositive() {
			m.logger.Debugf("year %d: invested %s in %s (allocation %s)", year, invested, a.Name(), alloc)
		}
	}
}

func (m *FinancialModel) growAssets(year int) {
	for _, a := range m.assets {
		a.Grow(year)
	}
}

func (m *FinancialModel) inflateExpenses(year int) {
	for _, e := range m.expenses {
		e.Grow(year)
	}
}
