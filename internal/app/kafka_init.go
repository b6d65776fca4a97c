package app

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
)

const (
	paymentMaxRetries = 3
	paymentRetryDelay = 200 * time.Millisecond
)

// initKafkaProducer создаёт producer, если brokers не пустой.
// Ошибка не фатальна: сервис продолжает работу без событий.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// initPaymentConsumer подписывает сервис на результаты оплаты.
// dlq может быть nil: тогда сообщения после исчерпания попыток только логируются.
func initPaymentConsumer(cfg Config, orders kafka.StatusTransitioner, dlq *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	if !cfg.KafkaEnabled() {
		return nil, nil
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:    cfg.KafkaBrokers,
		GroupID:    cfg.KafkaConsumerGroup,
		Topics:     []string{cfg.KafkaPaymentTopic},
		DLQTopic:   cfg.KafkaDLQTopic,
		MaxRetries: paymentMaxRetries,
		RetryDelay: paymentRetryDelay,
	},
		kafka.NewPaymentResultHandler(orders, logger.WithField("component", "payment-handler")),
		dlq,
		logger.WithField("component", "kafka-consumer"),
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create payment consumer, payment results will not be consumed")
		return nil, err
	}
	return consumer, nil
}

// stopConsumer останавливает consumer, если он не nil.
func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}

	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	} else {
		logger.Info("kafka consumer stopped")
	}
}
