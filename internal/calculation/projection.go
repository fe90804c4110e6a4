package calculation

import "github.com/shopspring/decimal"

// Series kinds in a projection snapshot.
const (
	SeriesRevenue = "revenue"
	SeriesExpense = "expense"
	SeriesDebt    = "debt"
	SeriesAsset   = "asset"
)

// SeriesSnapshot is one entity's per-year values over the model horizon.
type SeriesSnapshot struct {
	Name   string            `json:"name"`
	Kind   string            `json:"kind"`
	Values []decimal.Decimal `json:"values"`
}

// Projection is a read-only snapshot of a model's per-year series, the
// surface charting and reporting collaborators consume. Values come from the
// first simulation path.
type Projection struct {
	StartYear int               `json:"start_year"`
	Years     []int             `json:"years"`
	Series    []SeriesSnapshot  `json:"series"`
	NetWorth  []decimal.Decimal `json:"net_worth"`
}

// Projection captures the model's current state. Meaningful after Run, but
// safe at any point.
func (m *FinancialModel) Projection() *Projection {
	years := make([]int, m.duration)
	for i := range years {
		years[i] = m.startYear + i
	}

	p := &Projection{StartYear: m.startYear, Years: years}
	snapshot := func(f *Flow, kind string) {
		values := make([]decimal.Decimal, len(years))
		for i, year := range years {
			values[i] = f.ValueAt(year)
		}
		p.Series = append(p.Series, SeriesSnapshot{Name: f.Name(), Kind: kind, Values: values})
	}
	for _, r := range m.revenues {
		snapshot(r, SeriesRevenue)
	}
	for _, e := range m.expenses {
		snapshot(e, SeriesExpense)
	}
	snapshot(m.debt, SeriesDebt)
	for _, a := range m.assets {
		snapshot(&a.Flow, SeriesAsset)
	}

	p.NetWorth = make([]decimal.Decimal, len(years))
	for i, year := range years {
		worth := decimal.Zero
		for _, a := range m.assets {
			worth = worth.Add(a.ValueAt(year))
		}
		p.NetWorth[i] = worth.Sub(m.debt.ValueAt(year))
	}
	return p
}
