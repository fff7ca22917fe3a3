// Package bus publishes and consumes analysis events over NATS.
package bus

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/threatlens/threatlens/internal/models"
)

// ErrNotConnected is returned when publishing without a connection.
var ErrNotConnected = errors.New("nats publisher not connected")

// AnomalyEvent is published after a log batch produced at least one anomaly.
type AnomalyEvent struct {
	ObservedAt     time.Time              `json:"observed_at"`
	TotalLogs      int                    `json:"total_logs"`
	TotalAnomalies int                    `json:"total_anomalies"`
	Anomalies      []models.AnomalyResult `json:"anomalies"`
}

// PhishingEvent is published after a URL batch produced at least one bad label.
type PhishingEvent struct {
	ObservedAt time.Time `json:"observed_at"`
	URLs       []string  `json:"urls"`
}

type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("threatlens"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn}, nil
}

func (p *Publisher) Close() {
	if p != nil && p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

func (p *Publisher) Publish(subject string, payload any) error {
	if p == nil || p.Conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}

// Subscriber decodes events published by the service.
type Subscriber struct {
	Conn *nats.Conn
}

func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url, nats.Name("threatlens-tail"))
	if err != nil {
		return nil, err
	}
	return &Subscriber{Conn: conn}, nil
}

func (s *Subscriber) Close() {
	if s != nil && s.Conn != nil {
		s.Conn.Drain()
		s.Conn.Close()
	}
}

// SubscribeAnomalies delivers decoded anomaly events. Undecodable messages are passed to onError.
func (s *Subscriber) SubscribeAnomalies(subject string, handler func(AnomalyEvent), onError func(error)) (*nats.Subscription, error) {
	if s == nil || s.Conn == nil {
		return nil, ErrNotConnected
	}
	return s.Conn.Subscribe(subject, func(msg *nats.Msg) {
		var evt AnomalyEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		handler(evt)
	})
}

// SubscribePhishing delivers decoded phishing events. Undecodable messages are passed to onError.
func (s *Subscriber) SubscribePhishing(subject string, handler func(PhishingEvent), onError func(error)) (*nats.Subscription, error) {
	if s == nil || s.Conn == nil {
		return nil, ErrNotConnected
	}
	return s.Conn.Subscribe(subject, func(msg *nats.Msg) {
		var evt PhishingEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		handler(evt)
	})
}
