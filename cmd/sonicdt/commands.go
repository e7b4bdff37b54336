package main

import (
	"encoding/json"

	"github.com/petrophysics/sonicdt/pipeline"
	"github.com/petrophysics/sonicdt/web"
	"github.com/spf13/cobra"
)

func newTrainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Run ingestion, transformation and the random forest grid search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := pipeline.Run(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				a.logger.Error("training failed", err)
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload form and predictions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			predictor, err := pipeline.NewPredictPipeline(a.cfg.Data, a.logger)
			if err != nil {
				a.logger.Error("could not load the trained model, run `sonicdt train` first", err)
				return err
			}
			return web.NewServer(a.cfg, predictor, a.logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
