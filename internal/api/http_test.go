package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/threatlens/threatlens/internal/engine"
	"github.com/threatlens/threatlens/internal/models"
)

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAnalyzeLogsEndpoint(t *testing.T) {
	router := newTestRouter(0)

	rec := serve(router, multipartRequest(t, "/analyze_logs", "file", "syslog.txt", []byte(sampleLogs)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body models.LogAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.TotalLogs)
	require.Equal(t, 1, body.TotalAnomalies)
	require.Equal(t, "sshd", body.Anomalies[0].Process)
	require.Greater(t, body.Anomalies[0].AnomalyScore, 0.0)
}

func TestUploadErrors(t *testing.T) {
	router := newTestRouter(0)

	for _, path := range []string{"/analyze_logs", "/check_file_integrity", "/analyze_image"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(router, multipartRequest(t, path, "other", "x.txt", []byte("x")))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "No file part", decodeError(t, rec))

			rec = serve(router, multipartRequest(t, path, "file", "", []byte("x")))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "No selected file", decodeError(t, rec))

			rec = serve(router, httptest.NewRequest(http.MethodPost, path, strings.NewReader("raw")))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "No file part", decodeError(t, rec))
		})
	}
}

func TestAnalyzeLogsWithoutRecords(t *testing.T) {
	rec := serve(newTestRouter(0), multipartRequest(t, "/analyze_logs", "file", "a.log", []byte("hello\nworld")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No log messages found", decodeError(t, rec))
}

func TestUploadTooLarge(t *testing.T) {
	rec := serve(newTestRouter(64), multipartRequest(t, "/check_file_integrity", "file", "big.bin", []byte(strings.Repeat("a", 4096))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreprocessLogsEndpoint(t *testing.T) {
	router := newTestRouter(0)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/preprocess_logs", strings.NewReader(sampleLogs)))
	require.Equal(t, http.StatusOK, rec.Code)
	var records []models.LogRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	require.Equal(t, "99", records[1].PID)
	require.Equal(t, 1.0, records[1].Feature5)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/preprocess_logs", strings.NewReader("nope")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestDetectPhishingEndpoint(t *testing.T) {
	router := newTestRouter(0)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/detect_phishing", strings.NewReader(`{"urls":["listed.example/","http://unknown.example"]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"url":"listed.example/","label":"good"},{"url":"http://unknown.example","label":"bad"}]`, rec.Body.String())

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/detect_phishing", strings.NewReader(`{"urls":`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/detect_phishing", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/detect_phishing", strings.NewReader(`{"urls":[1]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/detect_phishing", strings.NewReader(`{"urls":[]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"'urls' must be a non-empty list of strings"}`, rec.Body.String())
}

func TestCheckFileIntegrityEndpoint(t *testing.T) {
	router := newTestRouter(0)

	rec := serve(router, multipartRequest(t, "/check_file_integrity", "file", "a.bin", []byte("trusted")))
	require.Equal(t, http.StatusOK, rec.Code)
	var body models.FileIntegrityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, engine.Digest([]byte("trusted")), body.FileHash)
	require.Equal(t, models.TamperingNone, body.TamperingDetected)

	rec = serve(router, multipartRequest(t, "/check_file_integrity", "file", "b.bin", []byte("changed")))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, models.TamperingYes, body.TamperingDetected)
}

func TestAnalyzeImageEndpoint(t *testing.T) {
	rec := serve(newTestRouter(0), multipartRequest(t, "/analyze_image", "file", "a.jpg", []byte("not really an image")))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, engine.Digest([]byte("not really an image")), body["image_hash"])
	require.Equal(t, models.TamperingNone, body["tampering_detected"])
	require.Equal(t, map[string]any{"error": "Failed to process image metadata"}, body["metadata"])
}

func TestHealthAndCORS(t *testing.T) {
	router := newTestRouter(0)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodOptions, "/detect_phishing", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = serve(router, req)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/analyze_logs", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
