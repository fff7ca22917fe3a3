package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/threatlens/threatlens/internal/config"
)

// LoadLabeledURLs reads every labeled URL from the configured dataset source.
func LoadLabeledURLs(ctx context.Context, cfg config.DatasetConfig, logger *slog.Logger) ([]LabeledURL, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		rows    []LabeledURL
		skipped int
		err     error
	)
	switch cfg.Driver {
	case config.DriverCSV, "":
		rows, skipped, err = loadCSVFile(cfg.Path)
	case config.DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path
		}
		rows, err = ReadSQL(ctx, cfg.Driver, dsn, cfg.Query)
	default:
		rows, err = ReadSQL(ctx, cfg.Driver, cfg.DSN, cfg.Query)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("dataset contains no labeled urls")
	}
	if skipped > 0 {
		logger.Warn("skipped malformed dataset rows", slog.Int("skipped", skipped))
	}
	return rows, nil
}

// LoadLabelTable builds the static lookup table from the configured dataset source.
func LoadLabelTable(ctx context.Context, cfg config.DatasetConfig, logger *slog.Logger) (*LabelTable, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rows, err := LoadLabeledURLs(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	table := NewLabelTable(rows)
	logger.Info("phishing urls loaded",
		slog.String("driver", cfg.Driver),
		slog.Int("rows", len(rows)),
		slog.Int("distinct", table.Len()),
	)
	return table, nil
}

func loadCSVFile(path string) ([]LabeledURL, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}
