// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tripwise",
		Name:      "live_subscriptions",
		Help:      "Number of open live query subscriptions.",
	})

	SnapshotsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tripwise",
		Name:      "live_snapshots_total",
		Help:      "Snapshots delivered to live query subscribers.",
	})

	SubscriptionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tripwise",
		Name:      "live_subscription_errors_total",
		Help:      "Live query subscriptions stopped by a fetch error.",
	})

	SkippedDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripwise",
		Name:      "skipped_documents_total",
		Help:      "Documents dropped from a snapshot because they could not be mapped.",
	}, []string{"kind"})

	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripwise",
		Name:      "mutations_total",
		Help:      "Write operations by kind and outcome.",
	}, []string{"kind", "outcome"})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tripwise",
		Name:      "websocket_connections",
		Help:      "Number of open websocket connections.",
	})

	RenderedOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripwise",
		Name:      "render_ops_total",
		Help:      "List operations pushed to clients by kind.",
	}, []string{"kind"})

	UploadBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripwise",
		Name:      "upload_batches_total",
		Help:      "Photo upload batches by result.",
	}, []string{"result"})
)
