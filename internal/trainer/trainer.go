// Package trainer fits the model artifacts the inference service loads at startup.
package trainer

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/threatlens/threatlens/internal/artifacts"
	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/engine"
	"github.com/threatlens/threatlens/internal/extractors"
	"github.com/threatlens/threatlens/internal/ml"
	"github.com/threatlens/threatlens/internal/models"
	"github.com/threatlens/threatlens/internal/repo"
)

// TrainLogModel extracts records from a training log and fits the anomaly forest.
// It returns the forest and the number of records it was fitted on.
func TrainLogModel(text string, opts ml.ForestOptions, logger *slog.Logger) (*ml.IsolationForest, int, error) {
	records, err := extractors.NewLogsExtractor(logger).ExtractStrict(text)
	if err != nil {
		return nil, 0, err
	}
	x := make([][]float64, len(records))
	for i, r := range records {
		x[i] = r.Features()
	}
	forest, err := ml.FitIsolationForest(x, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("fit anomaly model: %w", err)
	}
	return forest, len(records), nil
}

// URLOptions configures phishing model training.
type URLOptions struct {
	TestSize float64
	Seed     int64
	Balance  bool
	NgramMin int
	NgramMax int
	Alpha    float64
}

// DefaultURLOptions is an 80/20 split over char 3-5 grams with balancing on.
func DefaultURLOptions() URLOptions {
	return URLOptions{TestSize: 0.2, Seed: 42, Balance: true, NgramMin: 3, NgramMax: 5, Alpha: 1}
}

// URLModel is a fitted vectorizer/classifier pair plus its held-out evaluation.
type URLModel struct {
	Vectorizer *ml.CharVectorizer
	Classifier *ml.MultinomialNB
	Report     ml.Report
	TrainRows  int
	TestRows   int
}

// LabelValue maps a dataset label to the class index: 1 for "bad", 0 otherwise.
func LabelValue(label string) int {
	if label == models.LabelBad {
		return 1
	}
	return 0
}

// Balance undersamples the larger of the bad/good classes. Rows with other labels are kept.
func Balance(rows []repo.LabeledURL, seed int64) []repo.LabeledURL {
	var bad, good, other []repo.LabeledURL
	for _, row := range rows {
		switch row.Label {
		case models.LabelBad:
			bad = append(bad, row)
		case models.LabelGood:
			good = append(good, row)
		default:
			other = append(other, row)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	sample := func(in []repo.LabeledURL, n int) []repo.LabeledURL {
		out := make([]repo.LabeledURL, 0, n)
		for _, i := range rng.Perm(len(in))[:n] {
			out = append(out, in[i])
		}
		return out
	}
	if len(bad) > len(good) {
		bad = sample(bad, len(good))
	} else {
		good = sample(good, len(bad))
	}

	out := make([]repo.LabeledURL, 0, len(bad)+len(good)+len(other))
	out = append(out, bad...)
	out = append(out, good...)
	return append(out, other...)
}

// TrainURLModel fits the phishing vectorizer and classifier on model-normalised URLs.
func TrainURLModel(rows []repo.LabeledURL, opts URLOptions) (*URLModel, error) {
	if opts.NgramMin <= 0 || opts.NgramMax < opts.NgramMin {
		return nil, fmt.Errorf("invalid ngram range (%d, %d)", opts.NgramMin, opts.NgramMax)
	}
	if opts.TestSize < 0 || opts.TestSize >= 1 {
		return nil, fmt.Errorf("test size %.2f must be in [0, 1)", opts.TestSize)
	}
	if opts.Balance {
		rows = Balance(rows, opts.Seed)
	}
	if len(rows) < 2 {
		return nil, errors.New("need at least two labeled urls to train")
	}

	docs := make([]string, len(rows))
	labels := make([]int, len(rows))
	for i, row := range rows {
		docs[i] = engine.NormalizeForModel(row.URL)
		labels[i] = LabelValue(row.Label)
	}

	trainIdx, testIdx := ml.TrainTestSplit(len(rows), opts.TestSize, opts.Seed)
	trainDocs := make([]string, len(trainIdx))
	trainLabels := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		trainDocs[i] = docs[idx]
		trainLabels[i] = labels[idx]
	}

	vectorizer, err := ml.FitCharVectorizer(trainDocs, opts.NgramMin, opts.NgramMax)
	if err != nil {
		return nil, fmt.Errorf("fit vectorizer: %w", err)
	}
	features := make([]ml.SparseVector, len(trainDocs))
	for i, doc := range trainDocs {
		features[i] = vectorizer.Transform(doc)
	}
	classifier, err := ml.FitMultinomialNB(features, trainLabels, vectorizer.Size(), opts.Alpha)
	if err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}

	model := &URLModel{Vectorizer: vectorizer, Classifier: classifier, TrainRows: len(trainIdx), TestRows: len(testIdx)}
	if len(testIdx) > 0 {
		pipeline := &ml.TextPipeline{Vectorizer: vectorizer, Model: classifier}
		actual := make([]int, len(testIdx))
		predicted := make([]int, len(testIdx))
		for i, idx := range testIdx {
			actual[i] = labels[idx]
			predicted[i] = pipeline.Classify(docs[idx])
		}
		if model.Report, err = ml.Evaluate(actual, predicted); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// Evaluation is a scored pass of a classifier over a labeled dataset.
type Evaluation struct {
	Report      ml.Report
	MeanLatency time.Duration
}

// EvaluateURLs classifies every row with the model path and compares against its label.
func EvaluateURLs(rows []repo.LabeledURL, classifier engine.TextClassifier) (Evaluation, error) {
	if len(rows) == 0 {
		return Evaluation{}, errors.New("no rows to evaluate")
	}
	actual := make([]int, len(rows))
	predicted := make([]int, len(rows))
	start := time.Now()
	for i, row := range rows {
		actual[i] = LabelValue(row.Label)
		predicted[i] = classifier.Classify(engine.NormalizeForModel(row.URL))
	}
	elapsed := time.Since(start)

	report, err := ml.Evaluate(actual, predicted)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Report: report, MeanLatency: elapsed / time.Duration(len(rows))}, nil
}

// WriteURLModel stores the vectorizer and classifier artifacts.
func WriteURLModel(cfg config.ArtifactsConfig, model *URLModel) error {
	if _, err := artifacts.Write(cfg.ArtifactPath(cfg.PhishingVectorizer), artifacts.KindCharVectorizer, model.Vectorizer); err != nil {
		return err
	}
	_, err := artifacts.Write(cfg.ArtifactPath(cfg.PhishingModel), artifacts.KindMultinomialNB, model.Classifier)
	return err
}

// WriteBaselines stores the reference digest table and the inert image artifact.
func WriteBaselines(cfg config.ArtifactsConfig) error {
	baseline := artifacts.DigestBaseline{Digests: artifacts.ExampleDigests}
	if _, err := artifacts.Write(cfg.ArtifactPath(cfg.FileIntegrityModel), artifacts.KindDigestBaseline, baseline); err != nil {
		return err
	}
	placeholder := artifacts.Placeholder{Description: "image analysis reports EXIF metadata only"}
	_, err := artifacts.Write(cfg.ArtifactPath(cfg.ImageModel), artifacts.KindPlaceholder, placeholder)
	return err
}
