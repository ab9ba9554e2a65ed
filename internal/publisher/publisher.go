package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/BoranPatron/tradeboard/internal/engine"
	"github.com/BoranPatron/tradeboard/internal/metrics"
	"github.com/BoranPatron/tradeboard/pkg/logger"
	"github.com/BoranPatron/tradeboard/pkg/model"
)

// Subjects for the canonical outbound events.
const (
	SubjectQuoteSubmitted = "evt.quote.submitted.v1"
	SubjectViewRefreshed  = "evt.trade.view_refreshed.v1"
)

// Publisher wraps a NATS connection and provides helpers for publishing
// canonical marketplace events.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
	actorID int64
}

// New creates a Publisher with JetStream enabled.
func New(nc *nats.Conn, service string, actorID int64) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		service: service,
		actorID: actorID,
	}, nil
}

// PublishEnvelope serializes and publishes a canonical event envelope.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	logger.S().Infow("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
	)

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// PublishQuoteSubmitted emits canonical quote.submitted events after a bid
// was confirmed upstream.
func (p *Publisher) PublishQuoteSubmitted(ctx context.Context, quote model.QuoteRecord) error {
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		ActorID:       p.actorID,
		Topic:         SubjectQuoteSubmitted,
		EventType:     "quote.submitted",
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
	}

	data, _ := json.Marshal(quote)
	env.Payload = data

	return p.PublishEnvelope(ctx, SubjectQuoteSubmitted, env)
}

// viewRefreshedPayload is the slim projection published per refresh cycle.
type viewRefreshedPayload struct {
	TradeCount  int       `json:"trade_count"`
	Degraded    bool      `json:"degraded"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// PublishViewRefreshed emits a view_refreshed event describing the outcome of
// a merge cycle.
func (p *Publisher) PublishViewRefreshed(ctx context.Context, snap engine.ViewSnapshot) error {
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		ActorID:       p.actorID,
		Topic:         SubjectViewRefreshed,
		EventType:     "trade.view_refreshed",
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
	}

	data, _ := json.Marshal(viewRefreshedPayload{
		TradeCount:  len(snap.Trades),
		Degraded:    snap.Degraded,
		RefreshedAt: snap.LastTradesAt,
	})
	env.Payload = data

	return p.PublishEnvelope(ctx, SubjectViewRefreshed, env)
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
