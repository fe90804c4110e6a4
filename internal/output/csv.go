package output

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/pquinter/fisim/internal/calculation"
)

// CSVFormatter exports the full per-year series (one row per year) for
// external charting tools.
type CSVFormatter struct{}

func (CSVFormatter) Name() string { return "csv" }

func (CSVFormatter) Format(p *calculation.Projection) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	header := []string{"Year"}
	for _, s := range p.Series {
		header = append(header, s.Name)
	}
	header = append(header, "NetWorth")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for i, year := range p.Years {
		row := []string{strconv.Itoa(year)}
		for _, s := range p.Series {
			row = append(row, s.Values[i].StringFixed(2))
		}
		row = append(row, p.NetWorth[i].StringFixed(2))
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
