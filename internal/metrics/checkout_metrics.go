package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики оформления заказов.
type CheckoutMetrics struct {
	// Счётчики операций
	placementStarted   prometheus.Counter
	placementCompleted prometheus.Counter
	placementRejected  *prometheus.CounterVec
	placementFailed    prometheus.Counter
	rollbacks          prometheus.Counter

	// Гистограмма времени оформления
	placementDuration prometheus.Histogram

	// Счётчики событий timeline/outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для активных оформлений
	activePlacements prometheus.Gauge
}

// NewCheckoutMetrics создаёт новый экземпляр метрик checkout.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		placementStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vstore_placement_started_total",
			Help: "Total number of order placements started",
		}),
		placementCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vstore_placement_completed_total",
			Help: "Total number of order placements completed successfully",
		}),
		placementRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "vstore_placement_rejected_total",
			Help: "Total number of order placements rejected grouped by reason",
		}, []string{"reason"}),
		placementFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vstore_placement_failed_total",
			Help: "Total number of order placements failed on persistence",
		}),
		rollbacks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vstore_placement_rollbacks_total",
			Help: "Total number of stock rollbacks performed during placement",
		}),
		placementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "vstore_placement_duration_seconds",
			Help:    "Duration of order placement operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vstore_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vstore_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activePlacements: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "vstore_active_placements",
			Help: "Number of currently active placement operations",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordPlacementStarted увеличивает счётчик начатых оформлений.
func (m *CheckoutMetrics) RecordPlacementStarted() {
	m.placementStarted.Inc()
	m.activePlacements.Inc()
}

// RecordPlacementFinished уменьшает количество активных оформлений.
func (m *CheckoutMetrics) RecordPlacementFinished() {
	m.activePlacements.Dec()
}

// RecordPlacementCompleted увеличивает счётчик успешных оформлений.
func (m *CheckoutMetrics) RecordPlacementCompleted() {
	m.placementCompleted.Inc()
}

// RecordPlacementRejected увеличивает счётчик отклонённых оформлений.
func (m *CheckoutMetrics) RecordPlacementRejected(reason string) {
	m.placementRejected.WithLabelValues(reason).Inc()
}

// RecordPlacementFailed увеличивает счётчик сбоев персистентности.
func (m *CheckoutMetrics) RecordPlacementFailed() {
	m.placementFailed.Inc()
}

// RecordRollback увеличивает счётчик откатов резервирования.
func (m *CheckoutMetrics) RecordRollback() {
	m.rollbacks.Inc()
}

// RecordPlacementDuration записывает время оформления заказа.
func (m *CheckoutMetrics) RecordPlacementDuration(duration time.Duration) {
	m.placementDuration.Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CheckoutMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
