package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_passes_total",
		Help: "Проходы синхронизации по результату",
	}, []string{"result"})
	PassSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirror_pass_seconds",
		Help:    "Длительность прохода синхронизации",
		Buckets: prometheus.DefBuckets,
	})
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_events_total",
		Help: "События ленты по виду",
	}, []string{"kind"})
	DestinationOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_destination_ops_total",
		Help: "Операции с сайтом назначения",
	}, []string{"op", "status"})
	MediaDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mirror_media_downloads_total",
		Help: "Скачанные вложения",
	})
	MediaUploads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mirror_media_uploads_total",
		Help: "Загруженные на сайт вложения",
	})
	PostsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mirror_posts_deleted_total",
		Help: "Сообщения, помеченные удалёнными",
	})

	DeletionSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mirror_deletion_skipped_total",
		Help: "Сверки удалений, пропущенные из-за пустого снимка канала",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PassesTotal,
		PassSeconds,
		EventsTotal,
		DestinationOpsTotal,
		MediaDownloads,
		MediaUploads,
		PostsDeleted,
		DeletionSkipped,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveDestinationOp считает операцию с сайтом назначения.
func ObserveDestinationOp(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DestinationOpsTotal.WithLabelValues(op, status).Inc()
}
