package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"point-matcher/internal/pipeline"
	"point-matcher/internal/report"
	"point-matcher/internal/source"
)

type matchFlags struct {
	mode        string
	radiusKm    float64
	output      string
	format      string
	delimiter   string
	noHeader    bool
	latColumn   int
	lonColumn   int
	sourceSheet string
	targetSheet string
	distance    string
	workers     int
}

func newMatchCmd(a *app) *cobra.Command {
	var f matchFlags

	cmd := &cobra.Command{
		Use:   "match SOURCE TARGET",
		Short: "Match every point of SOURCE to its nearest point in TARGET",
		Long: `Read two coordinate files (CSV, TSV or XLSX) and match each source point to
the closest target point. Coordinates may be decimal degrees or DMS such as 34°3'8"N.`,
		Example: `pointmatch match stores.csv depots.csv
pointmatch match --mode radius --radius 5 --format xlsx -o near.xlsx customers.xlsx pos.xlsx`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMatch(cmd, args[0], args[1], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.mode, "mode", pipeline.ModeNearest, "Matching mode (nearest|radius)")
	flags.Float64Var(&f.radiusKm, "radius", 1, "Search radius in kilometers for radius mode")
	flags.StringVarP(&f.output, "output", "o", "", "Output file (default stdout)")
	flags.StringVar(&f.format, "format", string(report.FormatText), "Output format (text|csv|xlsx)")
	flags.StringVar(&f.delimiter, "delimiter", "", "Column delimiter for delimited files (comma|semicolon|tab|pipe)")
	flags.BoolVar(&f.noHeader, "no-header", false, "Input files have no header row")
	flags.IntVar(&f.latColumn, "lat-col", -1, "0-based latitude column")
	flags.IntVar(&f.lonColumn, "lon-col", -1, "0-based longitude column")
	flags.StringVar(&f.sourceSheet, "source-sheet", "", "Worksheet of the source XLSX file")
	flags.StringVar(&f.targetSheet, "target-sheet", "", "Worksheet of the target XLSX file")
	flags.StringVar(&f.distance, "distance", "", "Distance method (haversine|s2)")
	flags.IntVar(&f.workers, "workers", 0, "Parallel workers (default from WORKERS)")

	return cmd
}

// applyFlags lets explicitly set flags override the environment.
func (a *app) applyFlags(cmd *cobra.Command, f matchFlags) error {
	cfg := a.cfg
	if cmd.Flags().Changed("delimiter") {
		cfg.Delimiter = f.delimiter
	}
	if f.noHeader {
		cfg.HasHeader = false
	}
	if f.latColumn >= 0 {
		cfg.LatColumn = f.latColumn
	}
	if f.lonColumn >= 0 {
		cfg.LonColumn = f.lonColumn
	}
	if f.distance != "" {
		cfg.DistanceMethod = f.distance
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	return cfg.Validate()
}

func (a *app) runMatch(cmd *cobra.Command, srcPath, dstPath string, f matchFlags) error {
	if err := a.applyFlags(cmd, f); err != nil {
		return err
	}
	comma, err := source.ParseDelimiter(a.cfg.Delimiter)
	if err != nil {
		return err
	}

	layout := a.cfg.Layout()
	src := pipeline.Open(srcPath, layout, comma, f.sourceSheet)
	dst := pipeline.Open(dstPath, layout, comma, f.targetSheet)

	runner := &pipeline.Runner{Log: a.log}
	res, err := runner.Run(cmd.Context(), src, dst, pipeline.Options{
		Mode:     f.mode,
		RadiusKm: f.radiusKm,
		Distance: a.cfg.Distance(),
		Workers:  a.cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	text := func(w io.Writer) error {
		if f.mode == pipeline.ModeRadius {
			return report.WriteRadiusText(w, res.Radius)
		}
		return report.WriteText(w, res.Pairs)
	}
	if f.output == "" {
		return report.Write(a.out, report.Format(f.format), res.Rows, text)
	}
	return report.WriteFile(f.output, report.Format(f.format), res.Rows, text)
}
