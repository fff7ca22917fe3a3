package trainer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/threatlens/threatlens/internal/artifacts"
	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/ml"
	"github.com/threatlens/threatlens/internal/repo"
)

func syntheticLog(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "2024-05-01 12:%02d:%02d web-%d nginx: [%d] GET /api/items/%d 200\n", i/60%60, i%60, i%3, 1000+i, i)
	}
	b.WriteString("2024-05-01 13:00:00 db-1 kernel: [1] FATAL ERROR: UNAUTHORIZED ACCESS, CRITICAL FAILURE!!! crash {core dumped}\n")
	return b.String()
}

func TestTrainLogModel(t *testing.T) {
	forest, n, err := TrainLogModel(syntheticLog(200), ml.ForestOptions{Trees: 50, Seed: 7}, nil)
	require.NoError(t, err)
	require.Equal(t, 201, n)
	require.Equal(t, 5, forest.NumFeatures)
	require.Len(t, forest.Trees, 50)

	label, _, err := forest.Score([]float64{96, 3, 40, 8, 1})
	require.NoError(t, err)
	require.Equal(t, -1, label)
}

func TestTrainLogModelWithoutRecords(t *testing.T) {
	_, _, err := TrainLogModel("nothing useful", ml.DefaultForestOptions(), nil)
	require.Error(t, err)
}

func labeledRows() []repo.LabeledURL {
	var rows []repo.LabeledURL
	for i := 0; i < 40; i++ {
		rows = append(rows,
			repo.LabeledURL{URL: fmt.Sprintf("http://secure-login-%d.verify-account.xyz/signin.php", i), Label: "bad"},
			repo.LabeledURL{URL: fmt.Sprintf("https://www.docs%d.golang.org/pkg/net/http", i), Label: "good"},
		)
	}
	for i := 0; i < 20; i++ {
		rows = append(rows, repo.LabeledURL{URL: fmt.Sprintf("wikipedia.org/wiki/Page_%d", i), Label: "good"})
	}
	return rows
}

func TestBalance(t *testing.T) {
	balanced := Balance(labeledRows(), 1)
	counts := map[string]int{}
	for _, row := range balanced {
		counts[row.Label]++
	}
	require.Equal(t, 40, counts["bad"])
	require.Equal(t, 40, counts["good"])
}

func TestTrainURLModel(t *testing.T) {
	model, err := TrainURLModel(labeledRows(), DefaultURLOptions())
	require.NoError(t, err)
	require.Equal(t, 64, model.TrainRows)
	require.Equal(t, 16, model.TestRows)
	require.Equal(t, 16, model.Report.Total)
	require.GreaterOrEqual(t, model.Report.Accuracy, 0.9)

	pipeline, err := ml.NewTextPipeline(model.Vectorizer, model.Classifier)
	require.NoError(t, err)
	require.Equal(t, 1, pipeline.Classify("secure-login-999.verify-account.xyz/signin.php"))
	require.Equal(t, 0, pipeline.Classify("docs999.golang.org/pkg/net/http"))
}

func TestTrainURLModelRejectsBadOptions(t *testing.T) {
	opts := DefaultURLOptions()
	opts.NgramMin = 0
	_, err := TrainURLModel(labeledRows(), opts)
	require.Error(t, err)

	opts = DefaultURLOptions()
	opts.TestSize = 1
	_, err = TrainURLModel(labeledRows(), opts)
	require.Error(t, err)
}

func TestEvaluateURLs(t *testing.T) {
	model, err := TrainURLModel(labeledRows(), DefaultURLOptions())
	require.NoError(t, err)
	pipeline := &ml.TextPipeline{Vectorizer: model.Vectorizer, Model: model.Classifier}

	eval, err := EvaluateURLs(labeledRows(), pipeline)
	require.NoError(t, err)
	require.Equal(t, 100, eval.Report.Total)
	require.GreaterOrEqual(t, eval.Report.Accuracy, 0.8)

	_, err = EvaluateURLs(nil, pipeline)
	require.Error(t, err)
}

func TestWriteArtifactsRoundTrip(t *testing.T) {
	cfg := config.ArtifactsConfig{
		Dir:                t.TempDir(),
		LogModel:           "log.json",
		FileIntegrityModel: "integrity.json",
		PhishingModel:      "nb.json",
		PhishingVectorizer: "vec.json",
		ImageModel:         "image.json",
	}
	forest, _, err := TrainLogModel(syntheticLog(50), ml.ForestOptions{Trees: 10, Seed: 1}, nil)
	require.NoError(t, err)
	_, err = artifacts.Write(cfg.ArtifactPath(cfg.LogModel), artifacts.KindIsolationForest, forest)
	require.NoError(t, err)

	model, err := TrainURLModel(labeledRows(), DefaultURLOptions())
	require.NoError(t, err)
	require.NoError(t, WriteURLModel(cfg, model))
	require.NoError(t, WriteBaselines(cfg))

	bundle, err := artifacts.LoadBundle(cfg, nil)
	require.NoError(t, err)
	require.True(t, bundle.Baseline.Contains(artifacts.ExampleDigests["example_hash"]))
	require.Equal(t, 1, bundle.Phishing.Classify("secure-login-1.verify-account.xyz/signin.php"))
}
