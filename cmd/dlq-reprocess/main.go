// Утилита разбора vstore.dlq: сканирует мёртвые сообщения и возвращает их
// в рабочие топики шины. Топик редоставки выводится из типа события
// (order.* и stock.* — в топик заказов, payment.* — в топик платежей),
// поэтому в один прогон можно вернуть и заказы, и платежи. По умолчанию
// работает в режиме dry-run и только печатает кандидатов.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/messaging/kafka"
)

const (
	defaultScanLimit   = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers       []string
	sourceTopic   string
	fallbackTopic string
	limit         int
	execute       bool
	fromNewest    bool
	allowForeign  bool
	idleTimeout   time.Duration
}

// redelivery — сообщение, готовое к возврату в рабочий топик.
type redelivery struct {
	topic string
	key   string
	value []byte
}

// consumerDLQRecord — формат, в котором consumer-группа хоронит сообщение
// после исчерпания retry (см. internal/messaging/kafka).
type consumerDLQRecord struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
}

// outboxEnvelope — конверт, которым outbox-воркер публикует события.
type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

// outboxDLQRecord — тело конверта, которое outbox-воркер кладёт в DLQ,
// когда публикация события не удалась.
type outboxDLQRecord struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

// busEvent — минимальная проекция события шины для вывода типа.
type busEvent struct {
	EventType string `json:"event_type"`
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type redeliveryProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

// newReplayDependencies подменяется в тестах на стабы.
var newReplayDependencies = func(cfg config) (offsetClient, partitionConsumerSource, redeliveryProducer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	consumer := saramaConsumerAdapter{consumer: rawConsumer}

	// В dry-run producer не нужен вовсе.
	if !cfg.execute {
		return client, consumer, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, consumer, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("dlq reprocess failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: VSTORE_KAFKA_BROKERS)")
	flag.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to drain")
	flag.StringVar(&cfg.fallbackTopic, "fallback-topic", kafka.TopicOrderEvents, "topic for messages whose event type cannot be routed")
	flag.IntVar(&cfg.limit, "limit", defaultScanLimit, "max number of dead letters to scan")
	flag.BoolVar(&cfg.execute, "execute", false, "redeliver messages; default is dry-run")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest dead letters first (bounded by limit)")
	flag.BoolVar(&cfg.allowForeign, "allow-foreign", false, "redeliver events of unknown types to the fallback topic instead of skipping them")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("VSTORE_KAFKA_BROKERS")
	}

	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or VSTORE_KAFKA_BROKERS)")
	}
	if strings.TrimSpace(cfg.sourceTopic) == "" {
		return config{}, fmt.Errorf("source-topic is required")
	}
	if strings.TrimSpace(cfg.fallbackTopic) == "" {
		return config{}, fmt.Errorf("fallback-topic is required")
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("limit must be > 0")
	}
	if cfg.idleTimeout <= 0 {
		return config{}, fmt.Errorf("idle-timeout must be > 0")
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic":   cfg.sourceTopic,
		"fallback_topic": cfg.fallbackTopic,
		"limit":          cfg.limit,
		"execute":        cfg.execute,
		"from_newest":    cfg.fromNewest,
		"allow_foreign":  cfg.allowForeign,
	}).Info("scanning dead letter queue")

	client, consumer, producer, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		if consumer != nil {
			_ = consumer.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	return reprocess(ctx, cfg, client, consumer, producer)
}

func reprocess(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource, producer redeliveryProducer) error {
	if client == nil || consumer == nil {
		return fmt.Errorf("kafka client and consumer are required")
	}
	if cfg.execute && producer == nil {
		return fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.sourceTopic).Warn("dlq topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total drainStats
	for _, partition := range partitions {
		if total.scanned >= cfg.limit {
			break
		}

		stats, err := drainPartition(ctx, consumer, client, producer, cfg, partition, cfg.limit-total.scanned)
		if err != nil {
			return err
		}
		total.add(stats)
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}

	log.WithFields(log.Fields{
		"mode":        mode,
		"scanned":     total.scanned,
		"redelivered": total.redelivered,
		"skipped":     total.skipped,
	}).Info("dead letter queue scan finished")

	return nil
}

type drainStats struct {
	scanned     int
	redelivered int
	skipped     int
}

func (s *drainStats) add(other drainStats) {
	s.scanned += other.scanned
	s.redelivered += other.redelivered
	s.skipped += other.skipped
}

func drainPartition(
	ctx context.Context,
	consumer partitionConsumerSource,
	client offsetClient,
	producer redeliveryProducer,
	cfg config,
	partition int32,
	limit int,
) (drainStats, error) {
	var stats drainStats
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if cfg.fromNewest {
		startOffset = newest - int64(limit)
		if startOffset < oldest {
			startOffset = oldest
		}
	}

	reader, err := consumer.ConsumePartition(cfg.sourceTopic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = reader.Close() }()

	endOffset := newest
	idleTimer := time.NewTimer(cfg.idleTimeout)
	defer idleTimer.Stop()

	for stats.scanned < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case err := <-reader.Errors():
			if err != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, err)
			}
		case msg, ok := <-reader.Messages():
			if !ok || msg == nil {
				return stats, nil
			}

			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(cfg.idleTimeout)

			// Сообщения за пределами снимка newest оставляем следующему прогону.
			if msg.Offset >= endOffset {
				return stats, nil
			}

			stats.scanned++

			item, err := decodeDeadLetter(msg, cfg)
			if err != nil {
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("dead letter skipped")
				continue
			}

			if cfg.execute {
				if err := redeliver(producer, item); err != nil {
					return stats, fmt.Errorf("redeliver dead letter: %w", err)
				}
			} else {
				log.WithFields(log.Fields{
					"partition":    msg.Partition,
					"offset":       msg.Offset,
					"target_topic": item.topic,
					"key":          item.key,
				}).Info("redelivery candidate")
			}
			stats.redelivered++

			if msg.Offset+1 >= endOffset {
				return stats, nil
			}
		case <-idleTimer.C:
			return stats, nil
		}
	}

	return stats, nil
}

func redeliver(producer redeliveryProducer, item redelivery) error {
	if producer == nil {
		return fmt.Errorf("producer is nil")
	}

	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic:     item.topic,
		Key:       sarama.StringEncoder(item.key),
		Value:     sarama.ByteEncoder(item.value),
		Timestamp: time.Now().UTC(),
	})
	return err
}

// decodeDeadLetter восстанавливает исходное сообщение из мёртвого. DLQ
// принимает два формата: запись consumer-группы с original_value и конверт
// outbox-воркера с вложенным телом события. Ошибка означает, что сообщение
// пропущено (с указанием причины).
func decodeDeadLetter(msg *sarama.ConsumerMessage, cfg config) (redelivery, error) {
	var record consumerDLQRecord
	if err := json.Unmarshal(msg.Value, &record); err == nil && record.OriginalValue != "" {
		return routeConsumerRecord(record, cfg)
	}

	var envelope outboxEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return redelivery{}, fmt.Errorf("unrecognized dead letter format")
	}
	if len(envelope.Payload) == 0 {
		return redelivery{}, fmt.Errorf("dead letter envelope has no payload")
	}

	var record2 outboxDLQRecord
	if err := json.Unmarshal(envelope.Payload, &record2); err != nil {
		return redelivery{}, fmt.Errorf("decode outbox dlq record: %w", err)
	}
	if len(record2.Payload) == 0 {
		return redelivery{}, fmt.Errorf("outbox dlq record has no original event payload")
	}

	return routeOutboxRecord(envelope, record2, cfg)
}

// routeConsumerRecord возвращает сообщение consumer-группы в его исходный
// топик; исходный топик сверяется со списком топиков шины.
func routeConsumerRecord(record consumerDLQRecord, cfg config) (redelivery, error) {
	topic := strings.TrimSpace(record.OriginalTopic)
	switch {
	case topic == kafka.TopicDeadLetterQueue:
		return redelivery{}, fmt.Errorf("refusing to redeliver dead letter back into %s", topic)
	case topic == "":
		topic = routeByEventType([]byte(record.OriginalValue), cfg)
	case !kafka.KnownTopic(topic):
		if !cfg.allowForeign {
			return redelivery{}, fmt.Errorf("original topic %q is not a vstore bus topic (use -allow-foreign)", topic)
		}
		topic = cfg.fallbackTopic
	}
	if topic == "" {
		return redelivery{}, fmt.Errorf("cannot route dead letter without original topic or known event type")
	}

	return redelivery{
		topic: topic,
		key:   record.OriginalKey,
		value: []byte(record.OriginalValue),
	}, nil
}

// routeOutboxRecord заново собирает конверт outbox-события и направляет его
// в топик, выведенный из типа события.
func routeOutboxRecord(envelope outboxEnvelope, record outboxDLQRecord, cfg config) (redelivery, error) {
	eventType := coalesce(record.EventType, envelope.EventType)

	topic, known := kafka.TopicForEventType(kafka.EventType(eventType))
	if !known {
		if !cfg.allowForeign {
			return redelivery{}, fmt.Errorf("event type %q is not routable (use -allow-foreign)", eventType)
		}
		topic = cfg.fallbackTopic
	}

	restored := struct {
		outboxEnvelope
		PublishedAt time.Time `json:"published_at"`
	}{
		outboxEnvelope: outboxEnvelope{
			ID:            coalesce(record.OutboxID, envelope.ID),
			AggregateType: coalesce(record.AggregateType, envelope.AggregateType),
			AggregateID:   coalesce(record.AggregateID, envelope.AggregateID),
			EventType:     eventType,
			Payload:       record.Payload,
		},
		PublishedAt: time.Now().UTC(),
	}

	encoded, err := json.Marshal(restored)
	if err != nil {
		return redelivery{}, fmt.Errorf("encode redelivery envelope: %w", err)
	}

	key := restored.AggregateID
	if key == "" {
		key = restored.ID
	}

	return redelivery{topic: topic, key: key, value: encoded}, nil
}

// routeByEventType пробует вывести топик из тела события; пустая строка
// означает, что тип события нераспознаваем.
func routeByEventType(value []byte, cfg config) string {
	var event busEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return ""
	}
	if topic, known := kafka.TopicForEventType(kafka.EventType(event.EventType)); known {
		return topic
	}
	if cfg.allowForeign {
		return cfg.fallbackTopic
	}
	return ""
}

func coalesce(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
