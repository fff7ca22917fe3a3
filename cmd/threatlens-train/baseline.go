package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/threatlens/threatlens/internal/trainer"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Write the reference digest table and image placeholder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := trainer.WriteBaselines(cfg.Artifacts); err != nil {
			return err
		}
		logger.Info("baseline artifacts saved",
			slog.String("file_integrity", cfg.Artifacts.ArtifactPath(cfg.Artifacts.FileIntegrityModel)),
			slog.String("image", cfg.Artifacts.ArtifactPath(cfg.Artifacts.ImageModel)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}
