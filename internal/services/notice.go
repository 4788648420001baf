package services

import (
	"context"
	"fmt"

	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Notice is the short message shown to the user after a write.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func info(format string, args ...any) Notice {
	return Notice{Level: "info", Message: fmt.Sprintf(format, args...)}
}

// Dispatcher runs writes and announces the collections they changed so live
// views refresh.
type Dispatcher struct {
	broker livequery.Broker
}

// NewDispatcher creates a dispatcher publishing through broker
func NewDispatcher(broker livequery.Broker) *Dispatcher {
	return &Dispatcher{broker: broker}
}

// Do runs write. On success every path in changed is published; a publish
// failure is logged and does not fail the write.
func (d *Dispatcher) Do(ctx context.Context, kind string, write func(ctx context.Context) error, changed ...livequery.Path) error {
	if err := write(ctx); err != nil {
		metrics.Mutations.WithLabelValues(kind, "error").Inc()
		return err
	}
	metrics.Mutations.WithLabelValues(kind, "ok").Inc()
	d.Publish(ctx, changed...)
	return nil
}

// Publish announces changes to the given collections.
func (d *Dispatcher) Publish(ctx context.Context, changed ...livequery.Path) {
	if len(changed) == 0 {
		return
	}
	paths := make([]string, len(changed))
	for i, p := range changed {
		paths[i] = p.String()
	}
	if err := d.broker.Publish(context.WithoutCancel(ctx), paths...); err != nil {
		log.Error().Err(err).Strs("paths", paths).Msg("Failed to publish change")
	}
}
