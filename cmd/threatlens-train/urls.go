package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/repo"
	"github.com/threatlens/threatlens/internal/trainer"
)

var (
	urlOpts     = trainer.DefaultURLOptions()
	datasetPath string
)

var urlsCmd = &cobra.Command{
	Use:   "urls",
	Short: "Fit the phishing vectorizer and classifier",
	Long: `Fit the phishing URL model on the labeled dataset. By default the dataset
configured for the service is used; --dataset reads a url,label CSV instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		model, err := trainer.TrainURLModel(rows, urlOpts)
		if err != nil {
			return err
		}
		if err := trainer.WriteURLModel(cfg.Artifacts, model); err != nil {
			return err
		}
		logger.Info("phishing model saved",
			slog.String("dir", cfg.Artifacts.Dir),
			slog.Int("vocabulary", model.Vectorizer.Size()),
			slog.Int("train_rows", model.TrainRows),
			slog.Int("test_rows", model.TestRows),
		)
		if model.TestRows > 0 {
			fmt.Fprint(cmd.OutOrStdout(), model.Report.String())
		}
		return nil
	},
}

func loadDataset(ctx context.Context) ([]repo.LabeledURL, error) {
	dataset := cfg.Dataset
	if datasetPath != "" {
		dataset = config.DatasetConfig{Driver: config.DriverCSV, Path: datasetPath}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return repo.LoadLabeledURLs(ctx, dataset, logger)
}

func init() {
	urlsCmd.Flags().StringVar(&datasetPath, "dataset", "", "url,label CSV (default: configured dataset)")
	urlsCmd.Flags().Float64Var(&urlOpts.TestSize, "test-size", urlOpts.TestSize, "held-out share for the classification report")
	urlsCmd.Flags().Int64Var(&urlOpts.Seed, "seed", urlOpts.Seed, "random seed for balancing and splitting")
	urlsCmd.Flags().BoolVar(&urlOpts.Balance, "balance", urlOpts.Balance, "undersample the majority class")
	urlsCmd.Flags().IntVar(&urlOpts.NgramMin, "ngram-min", urlOpts.NgramMin, "smallest character n-gram")
	urlsCmd.Flags().IntVar(&urlOpts.NgramMax, "ngram-max", urlOpts.NgramMax, "largest character n-gram")
	rootCmd.AddCommand(urlsCmd)
}
