package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/ml"
)

func writeBundle(t *testing.T, dir string) config.ArtifactsConfig {
	t.Helper()
	cfg := config.ArtifactsConfig{
		Dir:                dir,
		LogModel:           "log.json",
		FileIntegrityModel: "integrity.json",
		PhishingModel:      "nb.json",
		PhishingVectorizer: "vec.json",
		ImageModel:         "image.json",
	}

	forest, err := ml.FitIsolationForest([][]float64{{1, 0, 1, 0, 0}, {2, 0, 1, 1, 0}, {3, 1, 0, 1, 1}, {4, 0, 2, 0, 0}}, ml.ForestOptions{Trees: 5, Seed: 1})
	require.NoError(t, err)
	_, err = Write(cfg.ArtifactPath(cfg.LogModel), KindIsolationForest, forest)
	require.NoError(t, err)

	_, err = Write(cfg.ArtifactPath(cfg.FileIntegrityModel), KindDigestBaseline, DigestBaseline{Digests: ExampleDigests})
	require.NoError(t, err)

	vec, err := ml.FitCharVectorizer([]string{"phish.example/login", "golang.org"}, 3, 5)
	require.NoError(t, err)
	nb, err := ml.FitMultinomialNB([]ml.SparseVector{vec.Transform("phish.example/login"), vec.Transform("golang.org")}, []int{1, 0}, vec.Size(), 1)
	require.NoError(t, err)
	_, err = Write(cfg.ArtifactPath(cfg.PhishingVectorizer), KindCharVectorizer, vec)
	require.NoError(t, err)
	_, err = Write(cfg.ArtifactPath(cfg.PhishingModel), KindMultinomialNB, nb)
	require.NoError(t, err)

	_, err = Write(cfg.ArtifactPath(cfg.ImageModel), KindPlaceholder, Placeholder{Description: "inert"})
	require.NoError(t, err)
	return cfg
}

func TestLoadBundle(t *testing.T) {
	cfg := writeBundle(t, t.TempDir())

	bundle, err := LoadBundle(cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 5, bundle.LogModel.NumFeatures)
	require.Len(t, bundle.LogModel.Trees, 5)
	require.True(t, bundle.Baseline.Contains(ExampleDigests["existing_hash"]))
	require.False(t, bundle.Baseline.Contains("00"))
	require.Equal(t, 1, bundle.Phishing.Classify("phish.example/login"))
	require.Equal(t, "inert", bundle.Image.Description)
	require.Len(t, bundle.IDs, 5)
	for kind, id := range bundle.IDs {
		require.NotEmpty(t, id, "artifact %s has no id", kind)
	}
}

func TestLoadBundleFailsOnMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	cfg := writeBundle(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "image.json")))

	_, err := LoadBundle(cfg, nil)
	require.Error(t, err)
}

func TestLoadBundleRejectsMismatchedPhishingPair(t *testing.T) {
	dir := t.TempDir()
	cfg := writeBundle(t, dir)

	other, err := ml.FitCharVectorizer([]string{"zz"}, 3, 5)
	require.NoError(t, err)
	_, err = Write(cfg.ArtifactPath(cfg.PhishingVectorizer), KindCharVectorizer, other)
	require.NoError(t, err)

	_, err = LoadBundle(cfg, nil)
	require.ErrorContains(t, err, "phishing artifacts")
}

func TestLoadBundleRejectsForestWithWrongWidth(t *testing.T) {
	dir := t.TempDir()
	cfg := writeBundle(t, dir)

	narrow, err := ml.FitIsolationForest([][]float64{{1, 0}, {2, 1}, {3, 0}}, ml.ForestOptions{Trees: 3, Seed: 1})
	require.NoError(t, err)
	_, err = Write(cfg.ArtifactPath(cfg.LogModel), KindIsolationForest, narrow)
	require.NoError(t, err)

	_, err = LoadBundle(cfg, nil)
	require.ErrorContains(t, err, "expects 2 features")
}

func TestReadRejectsWrongKind(t *testing.T) {
	dir := t.TempDir()
	cfg := writeBundle(t, dir)

	var forest ml.IsolationForest
	_, err := Read(cfg.ArtifactPath(cfg.PhishingModel), KindIsolationForest, &forest)
	require.Error(t, err)
}

func TestValidateSchemas(t *testing.T) {
	cases := []struct {
		name  string
		kind  Kind
		body  string
		valid bool
	}{
		{"forest ok", KindIsolationForest, `{"kind":"isolation_forest","model":{"n_features":5,"max_samples":8,"offset":-0.5,"trees":[{"nodes":[{"feature":-1,"size":8}]}]}}`, true},
		{"forest with one sample per tree", KindIsolationForest, `{"kind":"isolation_forest","model":{"n_features":5,"max_samples":1,"offset":-0.5,"trees":[{"nodes":[{"feature":-1,"size":1}]}]}}`, false},
		{"forest without trees", KindIsolationForest, `{"kind":"isolation_forest","model":{"n_features":5,"max_samples":8,"offset":-0.5,"trees":[]}}`, false},
		{"baseline bad digest", KindDigestBaseline, `{"kind":"digest_baseline","model":{"digests":{"x":"ABC"}}}`, false},
		{"vectorizer negative index", KindCharVectorizer, `{"kind":"char_vectorizer","model":{"ngram_min":3,"ngram_max":5,"vocabulary":{"abc":-1}}}`, false},
		{"nb ok", KindMultinomialNB, `{"kind":"multinomial_nb","model":{"alpha":1,"classes":[0,1],"class_log_prior":[-0.6,-0.8],"feature_log_prob":[[-1],[-2]]}}`, true},
		{"placeholder wrong kind", KindPlaceholder, `{"kind":"multinomial_nb"}`, false},
		{"not json", KindPlaceholder, `{`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.kind, []byte(tc.body))
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
	require.Error(t, Validate(Kind("svm"), []byte(`{}`)))
}
