package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	listingsCreated   *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	transitionErrors  *prometheus.CounterVec
	estimates         *prometheus.CounterVec
	storageErrors     *prometheus.CounterVec
	pointsAwarded     *prometheus.CounterVec
	feedbackSubmitted prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		listingsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealmitra",
			Name:      "listings_created_total",
			Help:      "Listings created, by kind.",
		}, []string{"kind"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealmitra",
			Name:      "listing_transitions_total",
			Help:      "Successful listing status transitions, by target status.",
		}, []string{"status"}),
		transitionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealmitra",
			Name:      "listing_transition_failures_total",
			Help:      "Rejected listing operations, by action and reason.",
		}, []string{"action", "reason"}),
		estimates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealmitra",
			Name:      "estimates_total",
			Help:      "Quantity estimates produced, by kind and matched rule.",
		}, []string{"kind", "rule"}),
		storageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealmitra",
			Name:      "storage_errors_total",
			Help:      "Snapshot persistence failures, by collection key.",
		}, []string{"key"}),
		pointsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealmitra",
			Name:      "ledger_points_awarded_total",
			Help:      "Volunteer ledger points awarded, by reason.",
		}, []string{"reason"}),
		feedbackSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mealmitra",
			Name:      "feedback_submitted_total",
			Help:      "Feedback entries recorded.",
		}),
	}
}

func (m *Metrics) ListingCreated(kind string) {
	if m == nil {
		return
	}
	m.listingsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) TransitionFailed(action, reason string) {
	if m == nil {
		return
	}
	m.transitionErrors.WithLabelValues(action, reason).Inc()
}

func (m *Metrics) Estimated(kind, rule string) {
	if m == nil {
		return
	}
	m.estimates.WithLabelValues(kind, rule).Inc()
}

func (m *Metrics) StorageFailed(key string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(key).Inc()
}

func (m *Metrics) PointsAwarded(reason string, points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.WithLabelValues(reason).Add(float64(points))
}

func (m *Metrics) FeedbackSubmitted() {
	if m == nil {
		return
	}
	m.feedbackSubmitted.Inc()
}
