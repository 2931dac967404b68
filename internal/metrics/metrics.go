package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for metrics collection
type Collector interface {
	// Connection metrics
	ClientConnected()
	ClientDisconnected()

	// Room metrics
	ParticipantJoined(roomCreated bool)
	ParticipantLeft(reason string, roomClosed bool)
	ObserverJoined()

	// Message metrics
	MessageReceived(messageType string, sizeBytes int)
	MessageRejected(messageType, code string)
	SignalRelayed(messageType string)
	SignalDropped(messageType string)
	Broadcast(messageType string, recipients int)
	EventDropped(eventType string)

	// Handler returns an HTTP handler for the metrics endpoint
	Handler() http.Handler
}

// PrometheusCollector implements Collector on its own registry so that more
// than one collector can exist in a process.
type PrometheusCollector struct {
	registry *prometheus.Registry

	activeClients      prometheus.Gauge
	activeRooms        prometheus.Gauge
	activeParticipants prometheus.Gauge

	connections   prometheus.Counter
	joins         prometheus.Counter
	leaves        *prometheus.CounterVec
	observerJoins prometheus.Counter

	messagesReceived *prometheus.CounterVec
	messagesRejected *prometheus.CounterVec
	signalsRelayed   *prometheus.CounterVec
	signalsDropped   *prometheus.CounterVec
	fanout           *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	messageSize      *prometheus.HistogramVec
}

// NewPrometheusCollector creates a new PrometheusCollector
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		activeClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classroom_active_clients",
			Help: "Number of connected WebSocket sessions",
		}),
		activeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classroom_active_rooms",
			Help: "Number of rooms with at least one participant",
		}),
		activeParticipants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classroom_active_participants",
			Help: "Number of visible participants across all rooms",
		}),

		connections: factory.NewCounter(prometheus.CounterOpts{
			Name: "classroom_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),
		joins: factory.NewCounter(prometheus.CounterOpts{
			Name: "classroom_joins_total",
			Help: "Total number of room joins",
		}),
		leaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_leaves_total",
				Help: "Total number of room departures",
			},
			[]string{"reason"},
		),
		observerJoins: factory.NewCounter(prometheus.CounterOpts{
			Name: "classroom_stealth_joins_total",
			Help: "Total number of stealth observer joins",
		}),

		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaling_messages_received_total",
				Help: "Total number of WebSocket messages received",
			},
			[]string{"message_type"},
		),
		messagesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaling_messages_rejected_total",
				Help: "Total number of WebSocket messages answered with an error",
			},
			[]string{"message_type", "code"},
		),
		signalsRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaling_relayed_total",
				Help: "Total number of unicast messages delivered to their target",
			},
			[]string{"message_type"},
		),
		signalsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaling_dropped_total",
				Help: "Total number of unicast messages dropped because the target was gone",
			},
			[]string{"message_type"},
		),
		fanout: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaling_broadcast_deliveries_total",
				Help: "Total number of frames queued by room broadcasts",
			},
			[]string{"message_type"},
		),
		eventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_events_dropped_total",
				Help: "Total number of lifecycle events that could not be published",
			},
			[]string{"event_type"},
		),
		messageSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signaling_message_size_bytes",
				Help:    "Size of inbound WebSocket messages in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 2, 10), // 64B to 32KB
			},
			[]string{"message_type"},
		),
	}
}

// ClientConnected records a client connection
func (c *PrometheusCollector) ClientConnected() {
	c.connections.Inc()
	c.activeClients.Inc()
}

// ClientDisconnected records a client disconnection
func (c *PrometheusCollector) ClientDisconnected() {
	c.activeClients.Dec()
}

// ParticipantJoined records a visible join
func (c *PrometheusCollector) ParticipantJoined(roomCreated bool) {
	c.joins.Inc()
	c.activeParticipants.Inc()
	if roomCreated {
		c.activeRooms.Inc()
	}
}

// ParticipantLeft records a departure from one room
func (c *PrometheusCollector) ParticipantLeft(reason string, roomClosed bool) {
	c.leaves.WithLabelValues(reason).Inc()
	c.activeParticipants.Dec()
	if roomClosed {
		c.activeRooms.Dec()
	}
}

// ObserverJoined records a stealth join
func (c *PrometheusCollector) ObserverJoined() {
	c.observerJoins.Inc()
}

// MessageReceived records an inbound frame
func (c *PrometheusCollector) MessageReceived(messageType string, sizeBytes int) {
	c.messagesReceived.WithLabelValues(messageType).Inc()
	c.messageSize.WithLabelValues(messageType).Observe(float64(sizeBytes))
}

// MessageRejected records an inbound frame answered with an error
func (c *PrometheusCollector) MessageRejected(messageType, code string) {
	c.messagesRejected.WithLabelValues(messageType, code).Inc()
}

// SignalRelayed records a delivered unicast
func (c *PrometheusCollector) SignalRelayed(messageType string) {
	c.signalsRelayed.WithLabelValues(messageType).Inc()
}

// SignalDropped records a unicast whose target was not connected
func (c *PrometheusCollector) SignalDropped(messageType string) {
	c.signalsDropped.WithLabelValues(messageType).Inc()
}

// Broadcast records the recipients of one room fan-out
func (c *PrometheusCollector) Broadcast(messageType string, recipients int) {
	c.fanout.WithLabelValues(messageType).Add(float64(recipients))
}

// EventDropped records a lifecycle event that was not published
func (c *PrometheusCollector) EventDropped(eventType string) {
	c.eventsDropped.WithLabelValues(eventType).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
