package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/messaging/kafka"
)

// parseBrokerList разбирает список брокеров через запятую, отбрасывая
// пустые элементы и пробелы.
func parseBrokerList(brokers string) []string {
	var brokerList []string
	for _, chunk := range strings.Split(brokers, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokerList = append(brokerList, broker)
		}
	}
	return brokerList
}

// initKafkaProducer поднимает producer по списку брокеров через запятую.
// Пустой список означает работу без Kafka: возвращается nil, nil.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := parseBrokerList(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает producer, nil переносит молча.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
