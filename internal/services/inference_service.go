package services

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/threatlens/threatlens/internal/bus"
	"github.com/threatlens/threatlens/internal/engine"
	"github.com/threatlens/threatlens/internal/extractors"
	"github.com/threatlens/threatlens/internal/metrics"
	"github.com/threatlens/threatlens/internal/models"
	"github.com/threatlens/threatlens/internal/utils"
)

// Operation names shared by the transports, metrics and logs.
const (
	OpAnalyzeLogs        = "analyze_logs"
	OpPreprocessLogs     = "preprocess_logs"
	OpDetectPhishing     = "detect_phishing"
	OpCheckFileIntegrity = "check_file_integrity"
	OpAnalyzeImage       = "analyze_image"
)

// EventPublisher delivers analysis events. Implemented by bus.Publisher.
type EventPublisher interface {
	Publish(subject string, payload any) error
}

// Models bundles the read-only inference components.
type Models struct {
	Anomaly  engine.Scorer
	URLTable engine.LabelLookup
	URLModel engine.TextClassifier
	Baseline engine.Baseline
}

// InferenceService is the transport-neutral facade behind the HTTP and gRPC APIs.
type InferenceService struct {
	logger    *slog.Logger
	extractor *extractors.LogsExtractor
	anomalies *engine.AnomalyScorer
	urls      *engine.URLClassifier
	digests   *engine.DigestReporter
	latencies *utils.LatencyTracker

	events          EventPublisher
	anomalySubject  string
	phishingSubject string
}

// NewInferenceService constructs the service facade.
func NewInferenceService(logger *slog.Logger, m Models) *InferenceService {
	if logger == nil {
		logger = slog.Default()
	}
	extractor := extractors.NewLogsExtractor(logger)
	return &InferenceService{
		logger:    logger,
		extractor: extractor,
		anomalies: engine.NewAnomalyScorer(m.Anomaly, extractor, logger),
		urls:      engine.NewURLClassifier(m.URLTable, m.URLModel),
		digests:   engine.NewDigestReporter(m.Baseline, logger),
		latencies: utils.NewLatencyTracker(1024),
	}
}

// WithEvents enables event publishing. Empty subjects disable the matching event.
func (s *InferenceService) WithEvents(events EventPublisher, anomalySubject, phishingSubject string) *InferenceService {
	s.events = events
	s.anomalySubject = anomalySubject
	s.phishingSubject = phishingSubject
	return s
}

// AnalyzeLogs scores an uploaded log file.
func (s *InferenceService) AnalyzeLogs(ctx context.Context, content []byte) (result models.LogAnalysis, err error) {
	defer s.observe(ctx, OpAnalyzeLogs, time.Now(), &err)

	text, err := decodeText(OpAnalyzeLogs, content)
	if err != nil {
		return models.LogAnalysis{}, err
	}
	result, err = s.anomalies.Analyze(text)
	if errors.Is(err, extractors.ErrNoRecords) {
		return models.LogAnalysis{}, utils.InvalidInput(OpAnalyzeLogs, "No log messages found")
	}
	if err != nil {
		return models.LogAnalysis{}, utils.NewAppError(OpAnalyzeLogs, "failed to analyze logs", err)
	}

	metrics.ObserveLogAnalysis(result.TotalLogs, result.TotalAnomalies)
	if result.TotalAnomalies > 0 {
		s.publish(ctx, s.anomalySubject, bus.AnomalyEvent{
			ObservedAt:     time.Now().UTC(),
			TotalLogs:      result.TotalLogs,
			TotalAnomalies: result.TotalAnomalies,
			Anomalies:      result.Anomalies,
		})
	}
	return result, nil
}

// PreprocessLogs returns the extracted records without scoring them. No match yields an empty list.
func (s *InferenceService) PreprocessLogs(ctx context.Context, body []byte) (records []models.LogRecord, err error) {
	defer s.observe(ctx, OpPreprocessLogs, time.Now(), &err)

	text, err := decodeText(OpPreprocessLogs, body)
	if err != nil {
		return nil, err
	}
	records = s.extractor.Extract(text)
	if records == nil {
		records = []models.LogRecord{}
	}
	return records, nil
}

// DetectPhishing labels each URL in order.
func (s *InferenceService) DetectPhishing(ctx context.Context, req models.PhishingRequest) (results []models.URLClassification, err error) {
	defer s.observe(ctx, OpDetectPhishing, time.Now(), &err)

	if len(req.URLs) == 0 {
		return nil, utils.InvalidInput(OpDetectPhishing, "'urls' must be a non-empty list of strings")
	}
	results = s.urls.ClassifyAll(req.URLs)

	var flagged []string
	for _, r := range results {
		metrics.ObserveURLClassification(r.Label, string(r.Source))
		if r.Label == models.LabelBad {
			flagged = append(flagged, r.URL)
		}
	}
	if len(flagged) > 0 {
		s.publish(ctx, s.phishingSubject, bus.PhishingEvent{ObservedAt: time.Now().UTC(), URLs: flagged})
	}
	return results, nil
}

// CheckFileIntegrity digests a file and compares it to the reference table.
func (s *InferenceService) CheckFileIntegrity(ctx context.Context, content []byte) (resp models.FileIntegrityResponse, err error) {
	defer s.observe(ctx, OpCheckFileIntegrity, time.Now(), &err)

	report := s.digests.File(content)
	return models.FileIntegrityResponse{FileHash: report.Digest, TamperingDetected: report.TamperingDetected}, nil
}

// AnalyzeImage digests an image and extracts its EXIF metadata.
func (s *InferenceService) AnalyzeImage(ctx context.Context, content []byte) (resp models.ImageAnalysisResponse, err error) {
	defer s.observe(ctx, OpAnalyzeImage, time.Now(), &err)

	report := s.digests.Image(content)
	digest := report.Digest
	return models.ImageAnalysisResponse{
		Metadata:          report.Metadata,
		ImageHash:         &digest,
		TamperingDetected: report.TamperingDetected,
	}, nil
}

// ImageFailure is the analyze_image body returned when the upload could not be processed at all.
func ImageFailure(err error) models.ImageAnalysisResponse {
	resp := models.ImageAnalysisResponse{
		Metadata:          map[string]string{"error": "Failed to process image"},
		TamperingDetected: models.TamperingAnalysis,
	}
	if err != nil {
		resp.Error = utils.Message(err)
	}
	return resp
}

func (s *InferenceService) observe(ctx context.Context, op string, start time.Time, errp *error) {
	duration := time.Since(start)
	outcome := metrics.OutcomeSuccess
	if err := *errp; err != nil {
		if utils.KindOf(err) == utils.KindInvalidInput {
			outcome = metrics.OutcomeInvalid
			s.logger.DebugContext(ctx, "request rejected", slog.String("operation", op), slog.Any("error", err))
		} else {
			outcome = metrics.OutcomeError
			s.logger.ErrorContext(ctx, "request failed", slog.String("operation", op), slog.Any("error", err))
		}
	}
	metrics.ObserveRequest(op, duration, outcome)

	if count := s.latencies.Observe(op, duration); count >= 20 && count%20 == 0 {
		s.logger.Info("request latency",
			slog.String("operation", op),
			slog.Duration("p95", s.latencies.Percentile(op, 95)),
			slog.Int("samples", count),
		)
	}
}

func (s *InferenceService) publish(ctx context.Context, subject string, event any) {
	if s.events == nil || subject == "" {
		return
	}
	if err := s.events.Publish(subject, event); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", slog.String("subject", subject), slog.Any("error", err))
	}
}

func decodeText(op string, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", utils.InvalidInput(op, "input is not valid UTF-8 text")
	}
	return string(content), nil
}
