package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes events as JSON on "<prefix>.<subscriberKey>".
type NATSSink struct {
	nc     *nats.Conn
	prefix string
	log    *slog.Logger
}

func NewNATSSink(nc *nats.Conn, prefix string, logger *slog.Logger) *NATSSink {
	if prefix == "" {
		prefix = "budget.progress"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{nc: nc, prefix: strings.TrimRight(prefix, "."), log: logger}
}

// Connect dials url and returns a sink owning the connection.
func Connect(url, prefix string, logger *slog.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("budget-progress"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return NewNATSSink(nc, prefix, logger), nil
}

// Subject returns the subject events for subscriberKey are published on.
func (s *NATSSink) Subject(subscriberKey string) string {
	return s.prefix + "." + subjectToken(subscriberKey)
}

func (s *NATSSink) Emit(_ context.Context, subscriberKey string, event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		s.log.Warn("progress.encode_failed", "error", err)
		return
	}
	if err := s.nc.Publish(s.Subject(subscriberKey), b); err != nil {
		s.log.Warn("progress.publish_failed", "subscriber", subscriberKey, "type", event.Type, "error", err)
	}
}

// Close drains the connection.
func (s *NATSSink) Close() {
	if err := s.nc.Drain(); err != nil {
		s.log.Warn("progress.drain_failed", "error", err)
	}
}

// subjectToken keeps a subscriber key inside a single subject token.
func subjectToken(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, key)
}
