package output

import (
	"fmt"
	"strings"

	"github.com/pquinter/fisim/internal/calculation"
)

// Formatter defines a pluggable projection formatter that returns a byte
// slice. Implementations should be pure (no side effects besides
// deterministic formatting).
type Formatter interface {
	Format(p *calculation.Projection) ([]byte, error)
	// Name returns a short identifier for logging / debugging.
	Name() string
}

// builtInFormatters stores available formatters (extended incrementally).
var builtInFormatters = []Formatter{
	ConsoleFormatter{},
	CSVFormatter{},
}

// ByName resolves a formatter by its identifier, case-insensitively.
func ByName(name string) (Formatter, error) {
	for _, f := range builtInFormatters {
		if strings.EqualFold(f.Name(), name) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("unknown output format %q (available: %s)", name, strings.Join(FormatNames(), ", "))
}

// FormatNames lists the available formatter identifiers.
func FormatNames() []string {
	names := make([]string, len(builtInFormatters))
	for i, f := range builtInFormatters {
		names[i] = f.Name()
	}
	return names
}
