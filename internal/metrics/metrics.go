package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kaptam"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation lifecycle operations.",
		},
		[]string{"operation"},
	)

	admissionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_rejections_total",
			Help:      "Reservations refused by admission control, by reason.",
		},
		[]string{"reason"},
	)

	notificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Failed notification deliveries by channel.",
		},
		[]string{"channel"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Spreadsheet sync task outcomes.",
		},
		[]string{"outcome"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the API rate limiter.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			reservations,
			admissionRejections,
			notificationFailures,
			syncTasks,
			rateLimited,
		)
	})
}

// ObserveHTTP records one finished request.
func ObserveHTTP(route, status string, seconds float64) {
	httpRequests.WithLabelValues(route, status).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}

// IncReservation counts created/updated/deleted/pruned reservations.
func IncReservation(operation string) {
	reservations.WithLabelValues(operation).Inc()
}

// AddReservations is IncReservation for bulk operations such as retention pruning.
func AddReservations(operation string, n int) {
	if n <= 0 {
		return
	}
	reservations.WithLabelValues(operation).Add(float64(n))
}

func IncAdmissionRejection(reason string) {
	admissionRejections.WithLabelValues(reason).Inc()
}

func IncNotificationFailure(channel string) {
	notificationFailures.WithLabelValues(channel).Inc()
}

func IncSyncTask(outcome string) {
	syncTasks.WithLabelValues(outcome).Inc()
}

func IncRateLimited() {
	rateLimited.Inc()
}
