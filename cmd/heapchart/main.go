// Command heapchart serves the library and floor chart.
//
// Usage:
//
//	heapchart serve --config heapchart.yaml
//	heapchart useradd alice < password.txt
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/heapchart/heapchart/internal/config"
	"github.com/heapchart/heapchart/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "heapchart",
		Short:        "Track libraries and the floors within them",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "heapchart.yaml", "path to the YAML config file")

	root.AddCommand(newServeCmd(a), newUseraddCmd(a))
	return root
}

// load reads and validates the config and builds the logger.
func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", a.configPath, err)
	}
	logger, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
