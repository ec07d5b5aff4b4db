package metrics

import (
	"Inkwell/pkg/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 进程内全部指标，注册到传入的 Registerer 上
type Metrics struct {
	ConnectionsCurrent  *prometheus.GaugeVec
	ConnectionsTotal    *prometheus.CounterVec
	DeliveriesTotal     *prometheus.CounterVec
	DeliveryFailures    *prometheus.CounterVec
	HeartbeatProbed     prometheus.Counter
	HeartbeatPruned     prometheus.Counter
	NotificationsTotal  *prometheus.CounterVec
	PublishFailures     prometheus.Counter
	ModerationDecisions *prometheus.CounterVec
	RetentionDeleted    prometheus.Counter
}

var _ ws.Observer = (*Metrics)(nil)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsCurrent: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "realtime_connections_current",
			Help: "Current number of registered realtime connections by transport",
		}, []string{"transport"}),
		ConnectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_connections_total",
			Help: "Total realtime connections opened by transport",
		}, []string{"transport"}),
		DeliveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Envelopes enqueued to connections by target kind (user/role/group/all)",
		}, []string{"target"}),
		DeliveryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_delivery_failures_total",
			Help: "Failed enqueues that caused a connection to be dropped",
		}, []string{"target"}),
		HeartbeatProbed: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_heartbeat_probed_total",
			Help: "Connections probed by the heartbeat",
		}),
		HeartbeatPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_heartbeat_pruned_total",
			Help: "Connections pruned by the heartbeat",
		}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification emit results by type and outcome (persisted/skipped/failed)",
		}, []string{"type", "outcome"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "notification_publish_failures_total",
			Help: "Notifications that could not be published to the message broker",
		}),
		ModerationDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_decisions_total",
			Help: "Moderation transitions by content kind and resulting status",
		}, []string{"kind", "status"}),
		RetentionDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "notification_retention_deleted_total",
			Help: "Read notifications removed by the retention job",
		}),
	}
}

func (m *Metrics) ConnectionOpened(kind ws.TransportKind) {
	m.ConnectionsCurrent.WithLabelValues(string(kind)).Inc()
	m.ConnectionsTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ConnectionClosed(kind ws.TransportKind) {
	m.ConnectionsCurrent.WithLabelValues(string(kind)).Dec()
}

func (m *Metrics) Delivered(target string, n int) {
	if n > 0 {
		m.DeliveriesTotal.WithLabelValues(target).Add(float64(n))
	}
}

func (m *Metrics) DeliveryFailed(target string) {
	m.DeliveryFailures.WithLabelValues(target).Inc()
}

func (m *Metrics) HeartbeatSwept(probed, pruned int) {
	m.HeartbeatProbed.Add(float64(probed))
	m.HeartbeatPruned.Add(float64(pruned))
}

func (m *Metrics) NotificationEmitted(typ, outcome string) {
	m.NotificationsTotal.WithLabelValues(typ, outcome).Inc()
}

func (m *Metrics) PublishFailed() {
	m.PublishFailures.Inc()
}

func (m *Metrics) ModerationDecided(kind, status string) {
	m.ModerationDecisions.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RetentionSwept(n int64) {
	if n > 0 {
		m.RetentionDeleted.Add(float64(n))
	}
}
