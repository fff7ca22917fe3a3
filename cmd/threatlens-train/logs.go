package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/threatlens/threatlens/internal/artifacts"
	"github.com/threatlens/threatlens/internal/ml"
	"github.com/threatlens/threatlens/internal/trainer"
)

var forestOpts = ml.DefaultForestOptions()

var logsCmd = &cobra.Command{
	Use:   "logs <training.log>",
	Short: "Fit the log anomaly model from a syslog-style file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read training logs: %w", err)
		}
		forest, n, err := trainer.TrainLogModel(string(data), forestOpts, logger)
		if err != nil {
			return err
		}
		path := cfg.Artifacts.ArtifactPath(cfg.Artifacts.LogModel)
		env, err := artifacts.Write(path, artifacts.KindIsolationForest, forest)
		if err != nil {
			return err
		}
		logger.Info("log anomaly model saved",
			slog.String("path", path),
			slog.String("id", env.ID),
			slog.Int("records", n),
			slog.Int("trees", len(forest.Trees)),
			slog.Float64("offset", forest.Offset),
		)
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVar(&forestOpts.Trees, "trees", forestOpts.Trees, "number of isolation trees")
	logsCmd.Flags().IntVar(&forestOpts.MaxSamples, "max-samples", forestOpts.MaxSamples, "samples drawn per tree")
	logsCmd.Flags().Float64Var(&forestOpts.Contamination, "contamination", 0, "expected anomaly share; 0 selects auto")
	logsCmd.Flags().Int64Var(&forestOpts.Seed, "seed", forestOpts.Seed, "random seed")
	rootCmd.AddCommand(logsCmd)
}
