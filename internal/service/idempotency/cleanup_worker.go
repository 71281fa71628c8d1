package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	// Потолок батчей на один проход: остаток доберёт следующий тик,
	// чтобы разовый всплеск мусора не держал соединение с базой.
	defaultMaxSweepBatches = 20
)

var (
	idempotencyCleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vstore_idempotency_cleanup_runs_total",
		Help: "Total number of idempotency cleanup runs grouped by result.",
	}, []string{"result"})
	idempotencyCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vstore_idempotency_cleanup_deleted_total",
		Help: "Total number of deleted expired idempotency records.",
	})
	idempotencyCleanupLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vstore_idempotency_cleanup_last_deleted",
		Help: "Number of deleted records during the last cleanup run.",
	})
	idempotencyCleanupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vstore_idempotency_cleanup_duration_seconds",
		Help:    "Duration of a single idempotency cleanup run.",
		Buckets: prometheus.DefBuckets,
	})
)

// CleanupOptions задает параметры воркера очистки idempotency ключей.
type CleanupOptions struct {
	Logger     *log.Entry
	Interval   time.Duration
	BatchSize  int
	MaxBatches int
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между cleanup-циклами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задает размер batch для одного удаления.
func WithBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.BatchSize = batchSize
	}
}

// WithMaxBatches задает максимум батчей за один проход.
func WithMaxBatches(maxBatches int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.MaxBatches = maxBatches
	}
}

// CleanupWorker периодически удаляет просроченные idempotency записи.
// Записи создаются HTTP-слоем при оформлении заказов с Idempotency-Key
// и становятся мусором после истечения TTL.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
	maxBatches int
}

// NewCleanupWorker создает воркер очистки idempotency ключей.
func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:   defaultCleanupInterval,
		BatchSize:  defaultCleanupBatchSize,
		MaxBatches: defaultMaxSweepBatches,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "idempotency-cleanup-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = defaultMaxSweepBatches
	}

	return &CleanupWorker{
		repo:       repo,
		logger:     logger,
		interval:   opts.Interval,
		batchSize:  opts.BatchSize,
		maxBatches: opts.MaxBatches,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	w.sweep(ctx, time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx, time.Now().UTC())
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context, before time.Time) {
	started := time.Now()
	deleted, err := w.PurgeExpired(ctx, before)
	idempotencyCleanupDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		idempotencyCleanupRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("idempotency cleanup run failed")
		return
	}

	idempotencyCleanupRunsTotal.WithLabelValues("ok").Inc()
	idempotencyCleanupLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("idempotency cleanup completed")
	}
}

// PurgeExpired удаляет записи с ttl <= before порциями batchSize, не более
// maxBatches порций за вызов. Возвращает число удалённых записей; при
// ошибке уже удалённое не теряется.
func (w *CleanupWorker) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	totalDeleted := 0
	for batch := 0; batch < w.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := w.repo.DeleteExpired(before, w.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted > 0 {
			idempotencyCleanupDeletedTotal.Add(float64(deleted))
		}

		if deleted < w.batchSize {
			break
		}
	}

	return totalDeleted, nil
}
