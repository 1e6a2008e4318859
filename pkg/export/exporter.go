package export

import (
	"fmt"
	"strings"
)

// Dataset defines tabular export content. Rows are positional against Headers.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	Chart   *Chart
}

// Chart is an optional timeline drawn below the table by renderers that support it.
type Chart struct {
	Span  int64
	Lanes []Lane
}

// Lane is one row of the timeline.
type Lane struct {
	Label string
	Bars  []Bar
}

// Bar occupies [Start, End) on its lane.
type Bar struct {
	Label string
	Group string
	Start int64
	End   int64
}

// Renderer turns a dataset into a downloadable document.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat picks a renderer by its short name.
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return NewCSVExporter(), nil
	case "pdf":
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func validate(data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("export requires at least one header")
	}
	for i, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(data.Headers))
		}
	}
	return nil
}
