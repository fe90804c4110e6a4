package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/pquinter/fisim/internal/calculation"
	fdecimal "github.com/pquinter/fisim/pkg/decimal"
)

// ConsoleFormatter renders a projection as a year-by-year text table with
// one column per entity plus net worth.
type ConsoleFormatter struct{}

func (ConsoleFormatter) Name() string { return "console" }

func (ConsoleFormatter) Format(p *calculation.Projection) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := tabwriter.NewWriter(buf, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprint(w, "Year")
	for _, s := range p.Series {
		fmt.Fprintf(w, "\t%s", s.Name)
	}
	fmt.Fprint(w, "\tNet Worth\n")

	for i, year := range p.Years {
		fmt.Fprintf(w, "%d", year)
		for _, s := range p.Series {
			fmt.Fprintf(w, "\t%s", fdecimal.NewMoneyFromDecimal(s.Values[i]).Format())
		}
		fmt.Fprintf(w, "\t%s\n", fdecimal.NewMoneyFromDecimal(p.NetWorth[i]).Format())
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
