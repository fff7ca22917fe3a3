package bus

import (
	"errors"
	"testing"
)

func TestPublishWithoutConnection(t *testing.T) {
	var p *Publisher
	if err := p.Publish("subject", AnomalyEvent{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := (&Publisher{}).Publish("subject", PhishingEvent{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	p.Close()
}

func TestNewPublisherUnreachable(t *testing.T) {
	if _, err := NewPublisher("nats://127.0.0.1:1"); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestSubscribeWithoutConnection(t *testing.T) {
	var s *Subscriber
	if _, err := s.SubscribeAnomalies("subject", func(AnomalyEvent) {}, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := (&Subscriber{}).SubscribePhishing("subject", func(PhishingEvent) {}, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	s.Close()
}

func TestNewSubscriberUnreachable(t *testing.T) {
	if _, err := NewSubscriber("nats://127.0.0.1:1"); err == nil {
		t.Fatalf("expected connection error")
	}
}
