// Package report renders match results as text, CSV or XLSX.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"

	"point-matcher/internal/calculator"
	"point-matcher/internal/excel"
	"point-matcher/internal/models"
)

const SheetName = "Results"

// Rows flattens match pairs. Indexes are 1-based to line up with spreadsheet rows.
func Rows(pairs []models.MatchPair) []models.ResultRow {
	rows := make([]models.ResultRow, 0, len(pairs))
	for i, p := range pairs {
		r := models.ResultRow{
			SourceIndex: i + 1,
			SourceLat:   p.Source.Lat,
			SourceLon:   p.Source.Lon,
		}
		if p.Match != nil {
			r.SetMatch(p.TargetIndex+1, *p.Match, p.Distance)
		}
		rows = append(rows, r)
	}
	return rows
}

// RadiusRows flattens radius matches the same way as Rows.
func RadiusRows(matches []calculator.RadiusMatch) []models.ResultRow {
	rows := make([]models.ResultRow, 0, len(matches))
	for _, m := range matches {
		r := models.ResultRow{
			SourceIndex: m.SourceIndex + 1,
			SourceLat:   m.Source.Lat,
			SourceLon:   m.Source.Lon,
		}
		r.SetMatch(m.TargetIndex+1, m.Target, m.Distance)
		rows = append(rows, r)
	}
	return rows
}

// Line renders a single pair as a sentence.
func Line(p models.MatchPair) string {
	if p.Match == nil {
		return fmt.Sprintf("Point %s has no closest point", p.Source)
	}
	return fmt.Sprintf("Point %s is closest to %s (%.3f km)", p.Source, *p.Match, p.Distance)
}

func WriteText(w io.Writer, pairs []models.MatchPair) error {
	for _, p := range pairs {
		if _, err := fmt.Fprintln(w, Line(p)); err != nil {
			return err
		}
	}
	return nil
}

func WriteRadiusText(w io.Writer, matches []calculator.RadiusMatch) error {
	for _, m := range matches {
		if _, err := fmt.Fprintf(w, "Point %s is within %.3f km of %s\n", m.Source, m.Distance, m.Target); err != nil {
			return err
		}
	}
	return nil
}

func WriteCSV(w io.Writer, rows []models.ResultRow) error {
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	_, err = w.Write(b)
	return err
}

func WriteXLSX(path string, rows []models.ResultRow) error {
	if err := excel.WriteResult(path, rows, SheetName); err != nil {
		return fmt.Errorf("write xlsx %s: %w", path, err)
	}
	return nil
}

// Format names an output format accepted by WriteFile.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Write renders rows as text or CSV. Text output is produced by text.
func Write(w io.Writer, format Format, rows []models.ResultRow, text func(io.Writer) error) error {
	switch format {
	case FormatText, "":
		return text(w)
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return fmt.Errorf("xlsx output needs a file path")
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteFile writes rows to path in the given format.
func WriteFile(path string, format Format, rows []models.ResultRow, text func(io.Writer) error) error {
	if format == FormatXLSX {
		return WriteXLSX(path, rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, format, rows, text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
