// Command event-tail logs the anomaly and phishing events a local threatlens instance publishes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/threatlens/threatlens/internal/bus"
	"github.com/threatlens/threatlens/internal/utils"
)

func main() {
	natsURL := flag.String("nats", envOr("THREATLENS_NATS_URL", nats.DefaultURL), "NATS server URL")
	anomalySubject := flag.String("anomaly-subject", "threatlens.logs.anomalies", "subject carrying anomaly events")
	phishingSubject := flag.String("phishing-subject", "threatlens.urls.phishing", "subject carrying phishing events")
	jsonLogs := flag.Bool("json", false, "emit JSON logs")
	flag.Parse()

	logger := utils.NewLogger("info", *jsonLogs)

	sub, err := bus.NewSubscriber(*natsURL)
	if err != nil {
		logger.Error("connect nats", slog.String("url", *natsURL), slog.Any("error", err))
		os.Exit(1)
	}
	defer sub.Close()

	onError := func(err error) {
		logger.Warn("undecodable event", slog.Any("error", err))
	}

	if _, err := sub.SubscribeAnomalies(*anomalySubject, func(evt bus.AnomalyEvent) {
		logger.Info("anomalies reported",
			slog.Time("observed_at", evt.ObservedAt),
			slog.Int("total_logs", evt.TotalLogs),
			slog.Int("total_anomalies", evt.TotalAnomalies),
		)
		for _, a := range evt.Anomalies {
			logger.Info("anomaly", slog.String("timestamp", a.Timestamp), slog.String("message", a.Message), slog.Float64("score", a.AnomalyScore))
		}
	}, onError); err != nil {
		logger.Error("subscribe", slog.String("subject", *anomalySubject), slog.Any("error", err))
		os.Exit(1)
	}

	if _, err := sub.SubscribePhishing(*phishingSubject, func(evt bus.PhishingEvent) {
		logger.Info("phishing urls reported", slog.Time("observed_at", evt.ObservedAt), slog.Any("urls", evt.URLs))
	}, onError); err != nil {
		logger.Error("subscribe", slog.String("subject", *phishingSubject), slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("event tail listening", slog.String("url", *natsURL), slog.String("anomalies", *anomalySubject), slog.String("phishing", *phishingSubject))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("event tail stopping")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
