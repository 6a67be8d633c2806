// Package cli wires the cobra commands of the pointmatch binary.
package cli

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"point-matcher/internal/config"
)

type app struct {
	cfg *config.Config
	log *logrus.Logger
	out io.Writer
}

func NewRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	var envFile string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "pointmatch",
		Short:         "Match coordinates to their nearest neighbours by great-circle distance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			// logs go to stderr so text and CSV reports can be piped
			a.log = cfg.NewLogger(cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default .env)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")

	cmd.AddCommand(
		newMatchCmd(a),
		newServeCmd(a),
		newParseCmd(a),
		newDistanceCmd(a),
		newExampleCmd(a),
	)
	return cmd
}
