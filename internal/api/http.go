package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/models"
	"github.com/threatlens/threatlens/internal/services"
	"github.com/threatlens/threatlens/internal/utils"
)

const (
	uploadField       = "file"
	msgNoFilePart     = "No file part"
	msgNoSelectedFile = "No selected file"
)

// Inference is the service surface both transports expose.
type Inference interface {
	AnalyzeLogs(ctx context.Context, content []byte) (models.LogAnalysis, error)
	PreprocessLogs(ctx context.Context, body []byte) ([]models.LogRecord, error)
	DetectPhishing(ctx context.Context, req models.PhishingRequest) ([]models.URLClassification, error)
	CheckFileIntegrity(ctx context.Context, content []byte) (models.FileIntegrityResponse, error)
	AnalyzeImage(ctx context.Context, content []byte) (models.ImageAnalysisResponse, error)
}

// Handler serves the JSON HTTP API.
type Handler struct {
	Service        Inference
	Logger         *slog.Logger
	MaxUploadBytes int64
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the chi router with middleware and CORS applied.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the inference endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.health)
	r.Post("/analyze_logs", h.analyzeLogs)
	r.Post("/preprocess_logs", h.preprocessLogs)
	r.Post("/detect_phishing", h.detectPhishing)
	r.Post("/check_file_integrity", h.checkFileIntegrity)
	r.Post("/analyze_image", h.analyzeImage)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) analyzeLogs(w http.ResponseWriter, r *http.Request) {
	content, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Service.AnalyzeLogs(r.Context(), content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) preprocessLogs(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := h.Service.PreprocessLogs(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) detectPhishing(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.PhishingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, utils.InvalidInput(services.OpDetectPhishing, fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	results, err := h.Service.DetectPhishing(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) checkFileIntegrity(w http.ResponseWriter, r *http.Request) {
	content, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.Service.CheckFileIntegrity(r.Context(), content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) analyzeImage(w http.ResponseWriter, r *http.Request) {
	content, err := h.readUpload(w, r)
	if err != nil {
		if utils.KindOf(err) == utils.KindInvalidInput {
			writeError(w, err)
			return
		}
		h.Logger.Error("image upload failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, services.ImageFailure(err))
		return
	}
	resp, err := h.Service.AnalyzeImage(r.Context(), content)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, services.ImageFailure(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload returns the content of the multipart "file" field.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	const op = "upload"
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes())
	if err := r.ParseMultipartForm(h.maxBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, utils.InvalidInput(op, "request body too large")
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			return nil, utils.InvalidInput(op, msgNoFilePart)
		default:
			return nil, utils.InvalidInput(op, fmt.Sprintf("malformed multipart body: %v", err))
		}
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		// A part without a filename is parsed as a plain value.
		if _, ok := r.MultipartForm.Value[uploadField]; ok {
			return nil, utils.InvalidInput(op, msgNoSelectedFile)
		}
		return nil, utils.InvalidInput(op, msgNoFilePart)
	}
	if err != nil {
		return nil, utils.NewAppError(op, "failed to open upload", err)
	}
	defer file.Close()
	return readAll(op, file)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes())
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, utils.InvalidInput("request", "request body too large")
		}
		return nil, utils.NewAppError("request", "failed to read body", err)
	}
	return body, nil
}

func (h *Handler) maxBytes() int64 {
	if h.MaxUploadBytes <= 0 {
		return 32 << 20
	}
	return h.MaxUploadBytes
}

func readAll(op string, file multipart.File) ([]byte, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, utils.NewAppError(op, "failed to read upload", err)
	}
	return content, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if utils.KindOf(err) == utils.KindInvalidInput {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: utils.Message(err)})
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// HTTPServer wraps the HTTP listener and lifecycle helpers.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer binds the configured HTTP address.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddress, err)
	}
	return &HTTPServer{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		listener: lis,
	}, nil
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *HTTPServer) Start() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Address exposes the bound listener address.
func (s *HTTPServer) Address() string {
	return s.listener.Addr().String()
}
