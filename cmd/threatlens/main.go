package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threatlens/threatlens/internal/api"
	"github.com/threatlens/threatlens/internal/artifacts"
	"github.com/threatlens/threatlens/internal/bus"
	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/metrics"
	"github.com/threatlens/threatlens/internal/repo"
	"github.com/threatlens/threatlens/internal/services"
	"github.com/threatlens/threatlens/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file (YAML or TOML)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting threatlens",
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("grpc_address", cfg.Server.GRPCAddress),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	bundle, err := artifacts.LoadBundle(cfg.Artifacts, logger)
	if err != nil {
		logger.Error("error loading models", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loadCtx, cancelLoad := context.WithTimeout(ctx, time.Minute)
	table, err := repo.LoadLabelTable(loadCtx, cfg.Dataset, logger)
	cancelLoad()
	if err != nil {
		logger.Error("error reading phishing url dataset", slog.Any("error", err))
		os.Exit(1)
	}

	service := services.NewInferenceService(logger, services.Models{
		Anomaly:  bundle.LogModel,
		URLTable: table,
		URLModel: bundle.Phishing,
		Baseline: bundle.Baseline,
	})

	if cfg.Events.Enabled {
		publisher, err := bus.NewPublisher(cfg.Events.NATSURL)
		if err != nil {
			logger.Warn("nats unavailable, events disabled", slog.String("url", cfg.Events.NATSURL), slog.Any("error", err))
		} else {
			defer publisher.Close()
			service.WithEvents(publisher, cfg.Events.AnomalySubject, cfg.Events.PhishingSubject)
			logger.Info("publishing events", slog.String("url", cfg.Events.NATSURL))
		}
	}

	router := api.NewRouter(&api.Handler{
		Service:        service,
		Logger:         logger,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, cfg.Server.AllowedOrigins)

	httpServer, err := api.NewHTTPServer(cfg.Server, router)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	var grpcServer *api.GRPCServer
	if cfg.Server.GRPCAddress != "" {
		grpcServer, err = api.NewGRPCServer(cfg.Server, service, logger)
		if err != nil {
			logger.Error("failed to create gRPC server", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("http server listening", slog.String("address", httpServer.Address()))
		if err := httpServer.Start(); err != nil {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	if grpcServer != nil {
		go func() {
			logger.Info("grpc server listening", slog.String("address", grpcServer.Address()))
			if err := grpcServer.Start(); err != nil {
				logger.Error("gRPC server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("threatlens stopped")
}
