package cli

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"point-matcher/internal/calculator"
	"point-matcher/internal/coord"
	"point-matcher/internal/models"
	"point-matcher/internal/report"
	"point-matcher/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			gin.SetMode(server.GinMode(a.cfg.LogLevel))
			return server.New(a.cfg, a.log).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default from PORT)")
	return cmd
}

func newParseCmd(a *app) *cobra.Command {
	var longitude bool

	cmd := &cobra.Command{
		Use:   "parse TOKEN...",
		Short: "Convert coordinate tokens to decimal degrees and DMS",
		Example: `pointmatch parse "34°3'8\"N" 37.7749`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			axis := coord.Latitude
			if longitude {
				axis = coord.Longitude
			}
			for _, tok := range args {
				v, err := coord.ParseCoordinate(tok)
				if err != nil {
					return err
				}
				if err := axis.Check(v); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s\t%.6f\t%s\n", tok, v, coord.FormatDMS(v, axis))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&longitude, "lon", false, "Treat tokens as longitudes (E/W)")
	return cmd
}

func newDistanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "distance LAT1 LON1 LAT2 LON2",
		Short: "Print the great-circle distance between two points in kilometers",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			p1, err := coord.ParsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			p2, err := coord.ParsePoint(args[2], args[3])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%.3f km\n", a.cfg.Distance()(p1.Lat, p1.Lon, p2.Lat, p2.Lon))
			return nil
		},
	}
}

func newExampleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "example",
		Short: "Match San Francisco and Los Angeles against New York and Las Vegas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source := []models.Point{{Lat: 37.7749, Lon: -122.4194}, {Lat: 34.0522, Lon: -118.2437}}
			target := []models.Point{{Lat: 40.7128, Lon: -74.0060}, {Lat: 36.1699, Lon: -115.1398}}
			return report.WriteText(a.out, calculator.MatchClosestPoints(source, target))
		},
	}
}
