package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cross"

// Metrics groups the venue's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	Orders         *prometheus.CounterVec
	Fills          prometheus.Counter
	TradedVolume   prometheus.Counter
	Cancels        *prometheus.CounterVec
	StopsTriggered prometheus.Counter
	Warnings       *prometheus.CounterVec
	CommandLatency *prometheus.HistogramVec
	InboxDepth     prometheus.Gauge
	Sessions       prometheus.Gauge
	OutboxPending  prometheus.Gauge
	Published      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_total",
			Help: "Accepted orders by kind and side.",
		}, []string{"kind", "side"}),
		Fills: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fills_total",
			Help: "Executed trades.",
		}),
		TradedVolume: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "traded_volume_total",
			Help: "Quantity exchanged across all trades.",
		}),
		Cancels: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cancels_total",
			Help: "Cancel requests by outcome.",
		}, []string{"result"}),
		StopsTriggered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stops_triggered_total",
			Help: "Stop orders converted into market orders.",
		}),
		Warnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "warnings_total",
			Help: "Non-fatal persistence and notification failures.",
		}, []string{"sink"}),
		CommandLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "command_seconds",
			Help:    "Time a command spends inside the sequencer.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"command"}),
		InboxDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "inbox_depth",
			Help: "Commands waiting for the sequencer.",
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "notification_sessions",
			Help: "Open websocket notification sessions.",
		}),
		OutboxPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "outbox_pending",
			Help: "Tape records awaiting broker acknowledgement after the last drain.",
		}),
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "published_total",
			Help: "Tape records handed to the broker by outcome.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) ObserveCommand(command string, started time.Time) {
	if m == nil {
		return
	}
	m.CommandLatency.WithLabelValues(command).Observe(time.Since(started).Seconds())
}

func (m *Metrics) OrderAccepted(kind, side string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(kind, side).Inc()
}

func (m *Metrics) Traded(size int64) {
	if m == nil {
		return
	}
	m.Fills.Inc()
	m.TradedVolume.Add(float64(size))
}

func (m *Metrics) Cancel(found bool) {
	if m == nil {
		return
	}
	if found {
		m.Cancels.WithLabelValues("canceled").Inc()
	} else {
		m.Cancels.WithLabelValues("not_found").Inc()
	}
}

func (m *Metrics) StopTriggered() {
	if m == nil {
		return
	}
	m.StopsTriggered.Inc()
}

func (m *Metrics) Warn(sink string) {
	if m == nil {
		return
	}
	m.Warnings.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetInboxDepth(n int) {
	if m == nil {
		return
	}
	m.InboxDepth.Set(float64(n))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.Sessions.Dec()
}

func (m *Metrics) PublishResult(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Published.WithLabelValues("acked").Inc()
	} else {
		m.Published.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}
