package output

import (
	"bytes"
	"fmt"

	"github.com/pquinter/fisim/internal/calculation"
	fdecimal "github.com/pquinter/fisim/pkg/decimal"
	"github.com/shopspring/decimal"
)

// FormatMonteCarloSummary renders aggregate Monte Carlo results as text.
func FormatMonteCarloSummary(s *calculation.MonteCarloSummary) []byte {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "Monte Carlo summary (%d simulations, seed %d)\n", s.NumSimulations, s.Seed)
	fmt.Fprintf(buf, "  Success rate:            %s%%\n", s.SuccessRate.Mul(decimal.NewFromInt(100)).StringFixed(1))
	fmt.Fprintf(buf, "  Median ending net worth: %s\n", fdecimal.NewMoneyFromDecimal(s.MedianEndingNetWorth).Format())
	fmt.Fprintf(buf, "  Percentiles:\n")
	for _, row := range []struct {
		label string
		value decimal.Decimal
	}{
		{"P10", s.Percentiles.P10},
		{"P25", s.Percentiles.P25},
		{"P50", s.Percentiles.P50},
		{"P75", s.Percentiles.P75},
		{"P90", s.Percentiles.P90},
	} {
		fmt.Fprintf(buf, "    %s: %s\n", row.label, fdecimal.NewMoneyFromDecimal(row.value).Format())
	}
	return buf.Bytes()
}
