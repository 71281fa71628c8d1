package app

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/messaging/kafka"
)

var busEventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vstore_bus_events_consumed_total",
	Help: "Total number of order and payment bus events consumed, grouped by topic and event type.",
}, []string{"topic", "event_type"})

// newBusEventHandler возвращает обработчик событий шины: разбирает событие
// по топику, учитывает его в метриках и логирует отказ оплаты. Сообщение с
// нераспознаваемым телом возвращает ошибку и после retry уходит в DLQ.
func newBusEventHandler(logger *log.Entry) kafka.MessageHandler {
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		switch message.Topic {
		case kafka.TopicOrderEvents:
			event, err := kafka.ParseOrderEvent(message)
			if err != nil {
				return err
			}
			busEventsConsumedTotal.WithLabelValues(message.Topic, string(event.EventType)).Inc()
			logger.WithFields(log.Fields{
				"event_type":   event.EventType,
				"order_id":     event.OrderID,
				"order_number": event.OrderNumber,
			}).Debug("order event consumed")

		case kafka.TopicPaymentEvents:
			event, err := kafka.ParsePaymentEvent(message)
			if err != nil {
				return err
			}
			busEventsConsumedTotal.WithLabelValues(message.Topic, string(event.EventType)).Inc()
			if event.EventType == kafka.EventTypePaymentFailed {
				logger.WithFields(log.Fields{
					"order_id":    event.OrderID,
					"gateway_ref": event.GatewayRef,
				}).Warn("payment failure event consumed")
			}

		default:
			return fmt.Errorf("unexpected topic %q in events consumer", message.Topic)
		}
		return nil
	}
}

// startEventsConsumer подписывает consumer-группу на топики заказов и
// платежей. Ошибка подключения не фатальна: API работает и без подписки.
func startEventsConsumer(ctx context.Context, cfg Config, producer *kafka.Producer, logger *log.Entry) {
	brokerList := parseBrokerList(cfg.KafkaBrokers)
	if len(brokerList) == 0 || producer == nil {
		return
	}

	consumerLogger := logger.WithField("component", "events-consumer")
	consumer, err := kafka.NewConsumerWithDLQ(
		brokerList,
		cfg.KafkaConsumerGroup,
		[]string{kafka.TopicOrderEvents, kafka.TopicPaymentEvents},
		newBusEventHandler(consumerLogger),
		producer,
		3,
	)
	if err != nil {
		consumerLogger.WithError(err).Warn("events consumer disabled: cannot join consumer group")
		return
	}

	if err := consumer.Start(ctx); err != nil {
		consumerLogger.WithError(err).Warn("events consumer failed to start")
		return
	}

	go func() {
		<-ctx.Done()
		if err := consumer.Stop(); err != nil {
			consumerLogger.WithError(err).Warn("events consumer stopped with error")
		}
	}()
}
