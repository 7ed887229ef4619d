// Package events publishes run and deal notifications over NATS with
// OpenTelemetry trace propagation. A nil bus is a no-op, so the
// orchestrator works unchanged when messaging is not configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/dealradar/dealradar/engine/catalog"
)

// Subjects for the notification stream.
const (
	SubjectObservation = "dealradar.observation"
	SubjectRunFinished = "dealradar.run.finished"
	SubjectSuspicious  = "dealradar.deal.suspicious"
)

// ObservationEvent announces a freshly persisted price observation.
type ObservationEvent struct {
	Product     catalog.ProductKey       `json:"product"`
	Observation catalog.PriceObservation `json:"observation"`
}

// SuspiciousDealEvent flags an assessment that failed authenticity checks.
type SuspiciousDealEvent struct {
	Assessment catalog.DealAssessment `json:"assessment"`
}

// headerCarrier adapts nats.Msg headers for the OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Bus wraps a NATS connection. The zero value and a nil *Bus both
// discard events.
type Bus struct {
	nc *nats.Conn
}

// Connect dials the NATS server at url.
func Connect(url string) (*Bus, error) {
	nc, err := nats.Connect(url, nats.Name("dealradar"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &Bus{nc: nc}, nil
}

// Close drains the connection.
func (b *Bus) Close() {
	if b == nil || b.nc == nil {
		return
	}
	b.nc.Drain()
}

// PublishObservation emits an ObservationEvent.
func (b *Bus) PublishObservation(ctx context.Context, ev ObservationEvent) error {
	return publish(ctx, b, SubjectObservation, ev)
}

// PublishRunFinished emits the completed run record.
func (b *Bus) PublishRunFinished(ctx context.Context, run catalog.ScrapingRun) error {
	return publish(ctx, b, SubjectRunFinished, run)
}

// PublishSuspicious emits a SuspiciousDealEvent.
func (b *Bus) PublishSuspicious(ctx context.Context, ev SuspiciousDealEvent) error {
	return publish(ctx, b, SubjectSuspicious, ev)
}

func publish[T any](ctx context.Context, b *Bus, subject string, v T) error {
	if b == nil || b.nc == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return b.nc.PublishMsg(msg)
}

// Subscribe registers a typed JSON handler on subject. Trace context is
// extracted from message headers. Malformed messages are dropped.
func Subscribe[T any](b *Bus, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	if b == nil || b.nc == nil {
		return nil, fmt.Errorf("subscribing to %s: bus not connected", subject)
	}
	return b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		handler(ctx, v)
	})
}
