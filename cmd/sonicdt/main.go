// Command sonicdt trains the sonic log (DT) model and serves predictions.
//
//	sonicdt train --config sonicdt.yaml
//	sonicdt serve --log-level debug
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/petrophysics/sonicdt/config"
	"github.com/petrophysics/sonicdt/pkg/log"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger log.Logger
	closer io.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := new(app).execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// execute runs the command line and closes the log file whether or not the
// command succeeded. cobra skips post-run hooks after a RunE error.
func (a *app) execute(ctx context.Context, args []string) error {
	defer a.close()
	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	return new(app).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sonicdt",
		Short:         "Predict the sonic log (DT) from density, gamma ray, neutron and PEF logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newTrainCmd(a), newServeCmd(a))
	return root
}

func (a *app) close() {
	if a.closer == nil {
		return
	}
	if err := a.closer.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close log:", err)
	}
}

// setup loads the configuration and builds the process logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	provider, closer, err := log.Setup(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.closer = closer
	a.logger = provider.GetLoggerWithName("sonicdt")
	return nil
}
