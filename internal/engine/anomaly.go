package engine

import (
	"fmt"
	"log/slog"

	"github.com/threatlens/threatlens/internal/extractors"
	"github.com/threatlens/threatlens/internal/models"
)

// Scorer labels one feature vector: -1 for an anomaly, 1 otherwise, with the model's decision value.
type Scorer interface {
	Score(features []float64) (int, float64, error)
}

// AnomalyScorer runs extracted log records through the anomaly model.
type AnomalyScorer struct {
	logger    *slog.Logger
	extractor *extractors.LogsExtractor
	model     Scorer
}

// NewAnomalyScorer wires a scorer. A nil extractor gets the default one.
func NewAnomalyScorer(model Scorer, extractor *extractors.LogsExtractor, logger *slog.Logger) *AnomalyScorer {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = extractors.NewLogsExtractor(logger)
	}
	return &AnomalyScorer{logger: logger, extractor: extractor, model: model}
}

// Analyze extracts records from text and scores them. It returns extractors.ErrNoRecords when no
// line matched, before the model is consulted.
func (s *AnomalyScorer) Analyze(text string) (models.LogAnalysis, error) {
	records, err := s.extractor.ExtractStrict(text)
	if err != nil {
		return models.LogAnalysis{}, err
	}
	return s.ScoreRecords(records)
}

// ScoreRecords scores already extracted records, keeping anomalies in input order.
func (s *AnomalyScorer) ScoreRecords(records []models.LogRecord) (models.LogAnalysis, error) {
	if len(records) == 0 {
		return models.LogAnalysis{}, extractors.ErrNoRecords
	}
	if s.model == nil {
		return models.LogAnalysis{}, fmt.Errorf("anomaly model not configured")
	}

	analysis := models.LogAnalysis{TotalLogs: len(records), Anomalies: []models.AnomalyResult{}}
	for i, record := range records {
		label, score, err := s.model.Score(record.Features())
		if err != nil {
			return models.LogAnalysis{}, fmt.Errorf("score record %d: %w", i, err)
		}
		if label != -1 {
			continue
		}
		analysis.Anomalies = append(analysis.Anomalies, models.AnomalyResult{
			Timestamp:    record.Timestamp,
			Source:       record.Source,
			Process:      record.Process,
			Message:      record.Message,
			AnomalyScore: -score,
		})
	}
	analysis.TotalAnomalies = len(analysis.Anomalies)

	s.logger.Debug("logs scored",
		slog.Int("records", analysis.TotalLogs),
		slog.Int("anomalies", analysis.TotalAnomalies),
	)
	return analysis, nil
}
