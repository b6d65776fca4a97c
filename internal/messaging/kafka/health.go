package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

const healthDialTimeout = 2 * time.Second

// CheckBrokers проверяет, что кластер отвечает на запрос метаданных.
func CheckBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	config := sarama.NewConfig()
	config.ClientID = "order-service-health"
	config.Net.DialTimeout = healthDialTimeout
	config.Metadata.Retry.Max = 0

	done := make(chan error, 1)
	go func() {
		client, err := sarama.NewClient(brokers, config)
		if err != nil {
			done <- err
			return
		}
		defer client.Close()
		if len(client.Brokers()) == 0 {
			done <- sarama.ErrOutOfBrokers
			return
		}
		done <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
