package excel

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"point-matcher/internal/models"
	"point-matcher/internal/source"
)

// Sheet reads coordinates from one worksheet of an XLSX workbook.
// An empty Sheet name selects the first worksheet.
type Sheet struct {
	Path   string
	Sheet  string
	Layout source.Layout
}

func OpenFile(filename string) (*excelize.File, error) {
	return excelize.OpenFile(filename)
}

func (s *Sheet) Points(ctx context.Context) ([]models.Point, []source.RowError, error) {
	f, err := OpenFile(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", source.ErrSourceUnavailable, err)
	}
	defer f.Close()

	rows, err := ReadSheet(f, s.Sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", source.ErrSourceUnavailable, s.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	points, skipped := source.FromRows(rows, s.Layout)
	return points, skipped, nil
}

// ReadSheet returns the raw rows of a worksheet with decimal commas
// normalized, so "41,0082" reads as 41.0082.
func ReadSheet(f *excelize.File, sheetName string) ([][]string, error) {
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheetName = sheets[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		for i, cell := range row {
			row[i] = normalizeDecimal(cell)
		}
	}
	return rows, nil
}

func normalizeDecimal(val string) string {
	val = strings.TrimSpace(val)
	// DMS tokens keep their punctuation
	if strings.ContainsAny(val, "°'\"") {
		return val
	}
	return strings.ReplaceAll(val, ",", ".")
}

// WriteResult writes match rows into a new workbook at path.
func WriteResult(path string, data []models.ResultRow, sheetName string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Use Stream Writer for performance
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	headers := []interface{}{
		"Source #", "Source Lat", "Source Lon",
		"Target #", "Target Lat", "Target Lon",
		"Distance (km)", "Distance (m)",
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return err
	}

	for i, r := range data {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{r.SourceIndex, r.SourceLat, r.SourceLon}
		if r.Matched {
			row = append(row, *r.TargetIndex, *r.TargetLat, *r.TargetLon, *r.DistanceKm, *r.Distance)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}

	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
