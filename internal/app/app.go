package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/vstore/internal/health"
	"github.com/vladislavdragonenkov/vstore/internal/httpx"
	"github.com/vladislavdragonenkov/vstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/vstore/internal/service/auth"
	"github.com/vladislavdragonenkov/vstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/vstore/internal/service/checkout"
	"github.com/vladislavdragonenkov/vstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/vstore/internal/service/notification"
	ordersvc "github.com/vladislavdragonenkov/vstore/internal/service/orders"
	"github.com/vladislavdragonenkov/vstore/internal/service/outbox"
	"github.com/vladislavdragonenkov/vstore/internal/service/payment"
	"github.com/vladislavdragonenkov/vstore/internal/version"
)

// Run собирает все зависимости и запускает HTTP API, сервер метрик и
// фоновые воркеры. Блокируется до отмены ctx или фатальной ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	notifier := notification.NewService(
		notification.NewLogSender(logger.WithField("component", "notification")),
		logger.WithField("component", "notification"),
	)

	checkoutSvc := newCheckoutService(deps, notifier, kafkaProducer, logger)
	ordersService := newOrdersService(deps, kafkaProducer, logger)
	catalogSvc := catalog.NewService(deps.Products, logger.WithField("component", "catalog"))
	gateway := payment.NewMockGateway(cfg.GatewaySecret)
	paymentsSvc := newPaymentsService(deps, kafkaProducer, logger)

	var (
		tokens  *auth.TokenIssuer
		authSvc auth.Service
	)
	if deps.Redis != nil && cfg.JWTSecret != "" {
		tokens = auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
		authSvc = auth.NewService(
			auth.NewRedisOTPStore(deps.Redis),
			notifier,
			tokens,
			logger.WithField("component", "auth"),
		)
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewStoreChecker("postgres", deps.Store))
	}
	if deps.Redis != nil {
		healthHandler.RegisterChecker("redis", healthcheck.NewRedisChecker(deps.Redis))
	}

	routerDeps := httpx.RouterDeps{
		Orders:   httpx.NewOrdersHandler(checkoutSvc, ordersService, deps.Idempotency, logger.WithField("component", "http-orders")),
		Products: httpx.NewProductsHandler(catalogSvc, logger.WithField("component", "http-products")),
		Payments: httpx.NewPaymentsHandler(gateway, checkoutSvc, paymentsSvc, logger.WithField("component", "http-payments")),
		Health:   healthHandler,
		Tokens:   tokens,
	}
	if authSvc != nil {
		routerDeps.Auth = httpx.NewAuthHandler(authSvc, logger.WithField("component", "http-auth"))
	}

	startWorkers(ctx, cfg, deps, kafkaProducer, logger)
	startEventsConsumer(ctx, cfg, kafkaProducer, logger)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(routerDeps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		// Дожидаемся фоновых уведомлений об уже оформленных заказах.
		checkoutSvc.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		checkoutSvc.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newCheckoutService(deps *Dependencies, notifier domain.NotificationSender, producer *kafka.Producer, logger *log.Entry) checkout.Service {
	serviceLogger := logger.WithField("component", "checkout")
	if producer != nil {
		return checkout.NewServiceWithKafka(deps.Products, deps.Orders, deps.Outbox, deps.Timeline, notifier, producer, serviceLogger)
	}
	return checkout.NewService(deps.Products, deps.Orders, deps.Outbox, deps.Timeline, notifier, serviceLogger)
}

func newPaymentsService(deps *Dependencies, producer *kafka.Producer, logger *log.Entry) payment.Service {
	serviceLogger := logger.WithField("component", "payment")
	if producer != nil {
		return payment.NewServiceWithKafka(deps.Orders, deps.Outbox, deps.Timeline, producer, serviceLogger)
	}
	return payment.NewService(deps.Orders, deps.Outbox, deps.Timeline, serviceLogger)
}

func newOrdersService(deps *Dependencies, producer *kafka.Producer, logger *log.Entry) ordersvc.Service {
	serviceLogger := logger.WithField("component", "orders")
	if producer != nil {
		return ordersvc.NewServiceWithKafka(deps.Orders, deps.Outbox, deps.Timeline, producer, serviceLogger)
	}
	return ordersvc.NewService(deps.Orders, deps.Outbox, deps.Timeline, serviceLogger)
}

// startWorkers запускает outbox-воркер и очистку idempotency-ключей.
func startWorkers(ctx context.Context, cfg Config, deps *Dependencies, producer *kafka.Producer, logger *log.Entry) {
	var publisher domain.OutboxPublisher
	if producer != nil {
		publisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
	} else {
		publisher = &logPublisher{logger: logger.WithField("component", "outbox-log")}
	}

	outboxOptions := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if producer != nil {
		outboxOptions = append(outboxOptions,
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)))
	}
	worker := outbox.NewWorker(deps.Outbox, publisher, outboxOptions...)
	go worker.Run(ctx)

	cleanup := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	go cleanup.Run(ctx)
}

// logPublisher печатает события вместо публикации — используется без Kafka,
// чтобы outbox не накапливал вечный backlog в dev-окружении.
type logPublisher struct {
	logger *log.Entry
}

func (p *logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_id":   event.ID,
		"event_type": event.EventType,
		"aggregate":  event.AggregateID,
	}).Info("outbox event")
	return nil
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
