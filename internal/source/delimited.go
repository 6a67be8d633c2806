package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"point-matcher/internal/models"
)

// Delimited reads comma, semicolon or tab separated coordinates from a file
// or from an already open reader.
type Delimited struct {
	Path   string
	Reader io.Reader
	Comma  rune
	Layout Layout
}

func (d *Delimited) Points(ctx context.Context) ([]models.Point, []RowError, error) {
	r := d.Reader
	if r == nil {
		f, err := os.Open(d.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		defer f.Close()
		r = f
	}

	rows, err := readRows(ctx, r, d.Comma)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %w", ErrSourceUnavailable, d.name(), err)
	}

	points, skipped := FromRows(rows, d.Layout)
	return points, skipped, nil
}

func (d *Delimited) name() string {
	if d.Path != "" {
		return d.Path
	}
	return "input"
}

func readRows(ctx context.Context, r io.Reader, comma rune) ([][]string, error) {
	cr := csv.NewReader(r)
	if comma != 0 {
		cr.Comma = comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

// ParseDelimiter maps a configured delimiter name to its rune.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "", ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", "\\t", "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported delimiter %q", s)
}
