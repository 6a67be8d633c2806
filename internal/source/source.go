// Package source turns delimited rows into points for the matcher.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"point-matcher/internal/coord"
	"point-matcher/internal/models"
)

var (
	ErrSourceUnavailable = errors.New("coordinate source unavailable")
	ErrTooFewColumns     = errors.New("too few columns")
	ErrBlankRow          = errors.New("blank row")
)

// Source supplies the points of one coordinate set. Rows that could not
// be used are returned as RowErrors; they never abort the read.
type Source interface {
	Points(ctx context.Context) ([]models.Point, []RowError, error)
}

// RowError describes a skipped row. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Raw  []string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d skipped (%s): %v", e.Line, strings.Join(e.Raw, ","), e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Layout says where the coordinates sit in each row.
type Layout struct {
	HasHeader bool
	LatColumn int
	LonColumn int
}

// DefaultLayout reads latitude and longitude from the first two columns
// after a header row.
func DefaultLayout() Layout {
	return Layout{HasHeader: true, LatColumn: 0, LonColumn: 1}
}

// FromRows parses raw rows. The header row, when present, is dropped before
// parsing.
func FromRows(rows [][]string, layout Layout) ([]models.Point, []RowError) {
	need := max(layout.LatColumn, layout.LonColumn) + 1
	points := make([]models.Point, 0, len(rows))
	var skipped []RowError

	for i, row := range rows {
		if i == 0 && layout.HasHeader {
			continue
		}
		if isBlank(row) {
			skipped = append(skipped, RowError{Line: i + 1, Raw: row, Err: ErrBlankRow})
			continue
		}
		if len(row) < need {
			skipped = append(skipped, RowError{Line: i + 1, Raw: row, Err: fmt.Errorf("%w: got %d, need %d", ErrTooFewColumns, len(row), need)})
			continue
		}

		p, err := coord.ParsePoint(row[layout.LatColumn], row[layout.LonColumn])
		if err != nil {
			skipped = append(skipped, RowError{Line: i + 1, Raw: row, Err: err})
			continue
		}
		points = append(points, p)
	}
	return points, skipped
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
