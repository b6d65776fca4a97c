package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	producerClientID = "order-service"

	// HeaderEventType повторяет event_type события заказа.
	HeaderEventType   = "x-event-type"
	HeaderContentType = "content-type"
)

// Producer отправляет события заказов и сообщения DLQ.
// События одного заказа (ключ — ID заказа) идут в одну партицию.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// producerConfig — подтверждение всеми ISR, идемпотентная запись, партиция по хешу ключа.
func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = producerClientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// NewProducer подключается к брокерам с producerConfig.
func NewProducer(brokers []string, logger *log.Entry) (*Producer, error) {
	syncProducer, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{producer: syncProducer, logger: logger}, nil
}

// PublishEvent сериализует event в JSON и синхронно пишет его в topic.
func (p *Producer) PublishEvent(topic string, key string, event any) error {
	msg, err := buildMessage(topic, key, event)
	if err != nil {
		return err
	}

	entry := p.logger.WithFields(log.Fields{"topic": topic, "key": key})
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		entry.WithError(err).Error("failed to send message to kafka")
		return fmt.Errorf("failed to send message: %w", err)
	}

	entry.WithFields(log.Fields{
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent to kafka")
	return nil
}

func buildMessage(topic, key string, event any) (*sarama.ProducerMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderContentType), Value: []byte("application/json")},
	}
	if orderEvent, ok := event.(*OrderEvent); ok {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(HeaderEventType),
			Value: []byte(orderEvent.EventType),
		})
	}

	return &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(payload),
		Headers:   headers,
		Timestamp: time.Now(),
	}, nil
}

// Close сбрасывает буферы и закрывает соединения с брокерами.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
