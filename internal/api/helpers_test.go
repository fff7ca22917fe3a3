package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/threatlens/threatlens/internal/engine"
	"github.com/threatlens/threatlens/internal/repo"
	"github.com/threatlens/threatlens/internal/services"
)

const sampleLogs = "2024-01-01 00:00:00 web nginx: [12] GET /index.html 200\n" +
	"2024-01-01 00:00:01 web sshd: [99] FATAL error: unauthorized root login from 10.0.0.7, session crash!\n"

type lengthScorer struct{ limit float64 }

func (s lengthScorer) Score(features []float64) (int, float64, error) {
	decision := s.limit - features[0]
	if decision < 0 {
		return -1, decision, nil
	}
	return 1, decision, nil
}

type constClassifier int

func (c constClassifier) Classify(string) int { return int(c) }

type digestSet map[string]bool

func (d digestSet) Contains(digest string) bool { return d[digest] }

func newTestService() *services.InferenceService {
	return services.NewInferenceService(nil, services.Models{
		Anomaly:  lengthScorer{limit: 40},
		URLTable: repo.NewLabelTable([]repo.LabeledURL{{URL: "listed.example", Label: "good"}}),
		URLModel: constClassifier(1),
		Baseline: digestSet{engine.Digest([]byte("trusted")): true},
	})
}

func newTestRouter(maxUpload int64) http.Handler {
	return NewRouter(&Handler{Service: newTestService(), MaxUploadBytes: maxUpload}, nil)
}

func multipartRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename == "" {
		if err := writer.WriteField(field, string(content)); err != nil {
			t.Fatalf("write field: %v", err)
		}
	} else {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(content)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
