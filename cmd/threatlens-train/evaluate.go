package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/threatlens/threatlens/internal/artifacts"
	"github.com/threatlens/threatlens/internal/ml"
	"github.com/threatlens/threatlens/internal/trainer"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the saved phishing model against a labeled dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		vectorizer := &ml.CharVectorizer{}
		if _, err := artifacts.Read(cfg.Artifacts.ArtifactPath(cfg.Artifacts.PhishingVectorizer), artifacts.KindCharVectorizer, vectorizer); err != nil {
			return err
		}
		classifier := &ml.MultinomialNB{}
		if _, err := artifacts.Read(cfg.Artifacts.ArtifactPath(cfg.Artifacts.PhishingModel), artifacts.KindMultinomialNB, classifier); err != nil {
			return err
		}
		pipeline, err := ml.NewTextPipeline(vectorizer, classifier)
		if err != nil {
			return err
		}

		rows, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		eval, err := trainer.EvaluateURLs(rows, pipeline)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, eval.Report.String())
		fmt.Fprintf(out, "\nmean latency per url: %s\n", eval.MeanLatency)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&datasetPath, "dataset", "", "url,label CSV (default: configured dataset)")
	rootCmd.AddCommand(evaluateCmd)
}
