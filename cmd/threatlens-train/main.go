package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/utils"
)

var (
	cfgFile      string
	artifactsDir string
	logLevel     string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "threatlens-train",
	Short: "Train and evaluate threatlens model artifacts",
	Long: `threatlens-train fits the artifacts the threatlens service loads at startup:
the log anomaly forest, the phishing vectorizer and classifier, and the
reference digest and image placeholders.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if artifactsDir != "" {
			loaded.Artifacts.Dir = artifactsDir
		}
		cfg = loaded
		logger = utils.NewLogger(logLevel, false)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "service config file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVarP(&artifactsDir, "out-dir", "o", "", "artifact directory (default: artifacts.dir from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
