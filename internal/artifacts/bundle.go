package artifacts

import (
	"fmt"
	"log/slog"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/ml"
	"github.com/threatlens/threatlens/internal/models"
)

// ExampleDigests is the placeholder reference table written by the baseline trainer.
// Neither entry corresponds to a real file.
var ExampleDigests = map[string]string{
	"existing_hash": "1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef",
	"example_hash":  "fedcba0987654321fedcba0987654321fedcba0987654321fedcba0987654321",
}

// DigestBaseline is the reference digest table used by the file-integrity check.
type DigestBaseline struct {
	Digests map[string]string `json:"digests"`
}

// Contains reports whether digest is one of the reference values.
func (b *DigestBaseline) Contains(digest string) bool {
	if b == nil {
		return false
	}
	for _, known := range b.Digests {
		if known == digest {
			return true
		}
	}
	return false
}

// Placeholder is an inert artifact kept only so the startup gate can require it.
type Placeholder struct {
	Description string `json:"description,omitempty"`
}

// Bundle is the full set of read-only artifacts. It is built once and never mutated.
type Bundle struct {
	LogModel *ml.IsolationForest
	Baseline *DigestBaseline
	Phishing *ml.TextPipeline
	Image    *Placeholder
	IDs      map[Kind]string
}

// LoadBundle reads and cross-checks all five artifacts named by cfg.
func LoadBundle(cfg config.ArtifactsConfig, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bundle{IDs: make(map[Kind]string)}

	forest := &ml.IsolationForest{}
	if err := b.read(cfg.ArtifactPath(cfg.LogModel), KindIsolationForest, forest); err != nil {
		return nil, err
	}
	if err := forest.Validate(); err != nil {
		return nil, fmt.Errorf("log model: %w", err)
	}
	if forest.NumFeatures != len(models.FeatureNames) {
		return nil, fmt.Errorf("log model expects %d features, extractor produces %d (%v)", forest.NumFeatures, len(models.FeatureNames), models.FeatureNames)
	}
	b.LogModel = forest

	baseline := &DigestBaseline{}
	if err := b.read(cfg.ArtifactPath(cfg.FileIntegrityModel), KindDigestBaseline, baseline); err != nil {
		return nil, err
	}
	b.Baseline = baseline

	vectorizer := &ml.CharVectorizer{}
	if err := b.read(cfg.ArtifactPath(cfg.PhishingVectorizer), KindCharVectorizer, vectorizer); err != nil {
		return nil, err
	}
	classifier := &ml.MultinomialNB{}
	if err := b.read(cfg.ArtifactPath(cfg.PhishingModel), KindMultinomialNB, classifier); err != nil {
		return nil, err
	}
	pipeline, err := ml.NewTextPipeline(vectorizer, classifier)
	if err != nil {
		return nil, fmt.Errorf("phishing artifacts: %w", err)
	}
	b.Phishing = pipeline

	image := &Placeholder{}
	if err := b.read(cfg.ArtifactPath(cfg.ImageModel), KindPlaceholder, image); err != nil {
		return nil, err
	}
	b.Image = image

	logger.Info("models loaded",
		slog.Int("trees", len(forest.Trees)),
		slog.Int("vocabulary", vectorizer.Size()),
		slog.Int("reference_digests", len(baseline.Digests)),
	)
	return b, nil
}

func (b *Bundle) read(path string, kind Kind, out any) error {
	env, err := Read(path, kind, out)
	if err != nil {
		return err
	}
	b.IDs[kind] = env.ID
	return nil
}
