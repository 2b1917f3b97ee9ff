package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	ModerationDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_decisions_total",
		Help: "Решения политики допуска по сообщениям с ограниченным контентом",
	}, []string{"verdict", "kind"})

	VipGrants = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vip_grants_total",
		Help: "Результаты команды /vip",
	}, []string{"outcome"})

	VipStoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vip_store_errors_total",
		Help: "Ошибки хранилища VIP",
	}, []string{"op"})

	VipRegistrySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vip_registry_size",
		Help: "Количество VIP в реестре",
	})

	CleanupDeletions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanup_deletions_total",
		Help: "Удаления сообщений отложенной очисткой",
	}, []string{"status"})

	CleanupScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanup_scheduled_total",
		Help: "Запланированные отложенные очистки",
	}, []string{"backend"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		ModerationDecisions,
		VipGrants,
		VipStoreErrors,
		VipRegistrySize,
		CleanupDeletions,
		CleanupScheduled,
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

// ObserveDecision учитывает решение модерации.
func ObserveDecision(verdict, kind string) {
	ModerationDecisions.WithLabelValues(verdict, kind).Inc()
}

// ObserveGrant учитывает результат команды /vip.
func ObserveGrant(outcome string) {
	VipGrants.WithLabelValues(outcome).Inc()
}

// ObserveCleanupDeletion учитывает попытку удаления сообщения.
func ObserveCleanupDeletion(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CleanupDeletions.WithLabelValues(status).Inc()
}
