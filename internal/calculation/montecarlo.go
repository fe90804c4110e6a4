package calculation

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

// ErrMonteCarloEnabled guards against expanding an already-batched model.
var ErrMonteCarloEnabled = errors.New("monte carlo mode already enabled")

// defaultReturnStdDev is a typical yearly stock market variability.
var defaultReturnStdDev = decimal.NewFromFloat(0.15)

// MonteCarloConfig holds settings for batched simulation.
type MonteCarloConfig struct {
	// NumSimulations is the number of independent scenario paths.
	NumSimulations int
	// StdDev is the standard deviation of sampled yearly multipliers;
	// zero selects defaultReturnStdDev.
	StdDev decimal.Decimal
	// Seed makes sampling reproducible; zero draws a fresh seed.
	Seed int64
}

// MonteCarloSummary aggregates per-path outcomes after a batched run.
type MonteCarloSummary struct {
	NumSimulations       int              `json:"num_simulations"`
	Seed                 int64            `json:"seed"`
	SuccessRate          decimal.Decimal  `json:"success_rate"`
	MedianEndingNetWorth decimal.Decimal  `json:"median_ending_net_worth"`
	Percentiles          PercentileRanges `json:"percentile_ranges"`
}

// PercentileRanges are ending net worth percentiles across paths.
type PercentileRanges struct {
	P10 decimal.Decimal `json:"p10"`
	P25 decimal.Decimal `json:"p25"`
	P50 decimal.Decimal `json:"p50"`
	P75 decimal.Decimal `json:"p75"`
	P90 decimal.Decimal `json:"p90"`
}

// EnableMonteCarlo expands every owned entity to cfg.NumSimulations paths
// and samples asset growth multipliers from a seeded normal distribution.
// Paths never interact: each runs single-path-equivalent arithmetic. Must be
// called before Run.
func (m *FinancialModel) EnableMonteCarlo(cfg MonteCarloConfig) error {
	if m.paths > 1 {
		return ErrMonteCarloEnabled
	}
	if cfg.NumSimulations < 1 {
		return fmt.Errorf("num simulations %d: %w", cfg.NumSimulations, ErrInvalidDuration)
	}
	if cfg.Seed == 0 {
		cfg.Seed = seedFunc()
	}
	if cfg.StdDev.IsZero() {
		cfg.StdDev = defaultReturnStdDev
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	for _, r := range m.revenues {
		r.expandPaths(cfg.NumSimulations)
	}
	for _, e := range m.expenses {
		e.expandPaths(cfg.NumSimulations)
	}
	m.debt.expandPaths(cfg.NumSimulations)
	for _, a := range m.assets {
		a.expandPaths(cfg.NumSimulations)
		a.sampleMultipliers(rng, cfg.StdDev)
	}
	m.paths = cfg.NumSimulations
	m.seed = cfg.Seed
	m.logger.Infof("monte carlo enabled: %d paths, seed %d, stddev %s", cfg.NumSimulations, cfg.Seed, cfg.StdDev)
	return nil
}

// Summarize aggregates ending balances across simulation paths. A path
// succeeds when it finishes without unfunded debt carried past the horizon.
// Meaningful after Run; a single-path model yields a one-sample summary.
func (m *FinancialModel) Summarize() (*MonteCarloSummary, error) {
	endYear := m.startYear + m.duration - 1
	netWorths := make([]float64, m.paths)
	successes := 0
	for p := 0; p < m.paths; p++ {
		worth := decimal.Zero
		for _, a := range m.assets {
			worth = worth.Add(a.PathValueAt(p, endYear))
		}
		endingDebt := m.debt.PathValueAt(p, endYear).Add(m.debt.PathValueAt(p, endYear+1))
		worth = worth.Sub(endingDebt)
		f, _ := worth.Float64()
		netWorths[p] = f
		if !endingDebt.GreaterThan(residualTolerance) {
			successes++
		}
	}

	percentiles, err := endingPercentiles(netWorths)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(netWorths)
	if err != nil {
		return nil, fmt.Errorf("summarizing ending balances: %w", err)
	}
	successRate := decimal.NewFromInt(int64(successes)).Div(decimal.NewFromInt(int64(m.paths)))
	return &MonteCarloSummary{
		NumSimulations:       m.paths,
		Seed:                 m.seed,
		SuccessRate:          successRate,
		MedianEndingNetWorth: decimal.NewFromFloat(median).Round(2),
		Percentiles:          percentiles,
	}, nil
}

func endingPercentiles(samples []float64) (PercentileRanges, error) {
	var out PercentileRanges
	for _, pr := range []struct {
		pct  float64
		dest *decimal.Decimal
	}{
		{10, &out.P10},
		{25, &out.P25},
		{50, &out.P50},
		{75, &out.P75},
		{90, &out.P90},
	} {
		v, err := stats.Percentile(samples, pr.pct)
		if err != nil {
			// interpolation needs a sample below the rank; nearest rank is
			// defined for any non-empty sample set
			v, err = stats.PercentileNearestRank(samples, pr.pct)
			if err != nil {
				return out, fmt.Errorf("percentile %.0f: %w", pr.pct, err)
			}
		}
		*pr.dest = decimal.NewFromFloat(v).Round(2)
	}
	return out, nil
}
