// Package telemetry exposes process-wide prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_messages_stored_total",
		Help: "Chat messages durably written to the store.",
	})

	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_messages_deleted_total",
		Help: "Delete operations issued against the message store.",
	})

	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_events_broadcast_total",
		Help: "Events fanned out to connected clients.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_events_dropped_total",
		Help: "Events dropped because a client send buffer was full.",
	})

	BlobUploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_blob_upload_bytes_total",
		Help: "Bytes accepted by blob uploads.",
	})

	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_connections_open",
		Help: "Currently registered websocket connections.",
	})

	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_store_errors_total",
		Help: "Durable read/write failures.",
	})
)
