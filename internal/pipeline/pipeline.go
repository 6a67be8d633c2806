// Package pipeline loads two coordinate sets, matches them and flattens the
// result for reporting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"point-matcher/internal/calculator"
	"point-matcher/internal/excel"
	"point-matcher/internal/metrics"
	"point-matcher/internal/models"
	"point-matcher/internal/report"
	"point-matcher/internal/source"
)

const (
	ModeNearest = "nearest"
	ModeRadius  = "radius"
)

type Options struct {
	Mode       string
	RadiusKm   float64
	Distance   calculator.DistanceFunc
	Workers    int
	OnProgress calculator.ProgressCallback
}

type Result struct {
	Source  []models.Point
	Target  []models.Point
	Skipped int
	Pairs   []models.MatchPair
	Radius  []calculator.RadiusMatch
	Rows    []models.ResultRow
	Elapsed time.Duration
}

// Open picks a reader by file extension. sheet is only used for XLSX files.
func Open(path string, layout source.Layout, comma rune, sheet string) source.Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return &excel.Sheet{Path: path, Sheet: sheet, Layout: layout}
	case ".tsv":
		return &source.Delimited{Path: path, Comma: '\t', Layout: layout}
	}
	return &source.Delimited{Path: path, Comma: comma, Layout: layout}
}

// CheckRadius rejects negative and NaN search radii.
func CheckRadius(km float64) error {
	if math.IsNaN(km) || km < 0 {
		return fmt.Errorf("radius must be a non-negative number, got %g", km)
	}
	return nil
}

type Runner struct {
	Log logrus.FieldLogger
}

// Load reads one set. An unavailable source is logged and yields no points;
// skipped rows are logged one by one.
func (r *Runner) Load(ctx context.Context, set string, src source.Source) ([]models.Point, int, error) {
	points, skipped, err := src.Points(ctx)
	if err != nil {
		if !errors.Is(err, source.ErrSourceUnavailable) {
			return nil, 0, err
		}
		r.Log.WithField("set", set).WithError(err).Error("coordinate source unavailable, using empty set")
		return []models.Point{}, 0, nil
	}

	for _, s := range skipped {
		r.Log.WithFields(logrus.Fields{
			"set":  set,
			"line": s.Line,
			"raw":  strings.Join(s.Raw, ","),
		}).WithError(s.Err).Warn("row skipped")
	}

	metrics.PointsLoaded.WithLabelValues(set).Add(float64(len(points)))
	metrics.RowsSkipped.WithLabelValues(set).Add(float64(len(skipped)))
	r.Log.WithFields(logrus.Fields{"set": set, "points": len(points), "skipped": len(skipped)}).Info("coordinates loaded")
	return points, len(skipped), nil
}

// Run loads both sets and matches them according to opts.Mode.
func (r *Runner) Run(ctx context.Context, src, dst source.Source, opts Options) (res *Result, err error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeNearest
	}
	if mode != ModeNearest && mode != ModeRadius {
		return nil, fmt.Errorf("pipeline: unknown mode %q", mode)
	}
	if mode == ModeRadius {
		if err := CheckRadius(opts.RadiusKm); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.MatchRuns.WithLabelValues(mode, status).Inc()
	}()

	res = &Result{}
	var skipped int
	if res.Source, skipped, err = r.Load(ctx, "source", src); err != nil {
		return nil, err
	}
	res.Skipped += skipped
	if res.Target, skipped, err = r.Load(ctx, "target", dst); err != nil {
		return nil, err
	}
	res.Skipped += skipped

	start := time.Now()
	if err := r.match(ctx, mode, res, opts); err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)

	metrics.MatchDuration.WithLabelValues(mode).Observe(res.Elapsed.Seconds())
	metrics.DistanceEvaluations.Add(float64(len(res.Source) * len(res.Target)))
	r.Log.WithFields(logrus.Fields{
		"mode":    mode,
		"source":  len(res.Source),
		"target":  len(res.Target),
		"rows":    len(res.Rows),
		"elapsed": res.Elapsed,
	}).Info("matching completed")
	return res, nil
}

func (r *Runner) match(ctx context.Context, mode string, res *Result, opts Options) error {
	dist := opts.Distance
	if dist == nil {
		dist = calculator.Haversine
	}

	if mode == ModeRadius {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Radius = calculator.WithinRadius(res.Source, res.Target, opts.RadiusKm, dist)
		res.Rows = report.RadiusRows(res.Radius)
		return nil
	}

	m := calculator.BruteForce{Distance: dist, Workers: opts.Workers, OnProgress: opts.OnProgress}
	pairs, err := m.Match(ctx, res.Source, res.Target)
	if err != nil {
		return err
	}
	res.Pairs = pairs
	res.Rows = report.Rows(pairs)
	return nil
}
