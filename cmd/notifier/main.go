// Command notifier consumes storefront domain events and reports them. It is the
// downstream counterpart of the payment and order publishers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ms-storefront/internal/config"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

type notifier struct {
	topics config.TopicConfig
	log    *logger.Logger
}

func (n *notifier) handle(_ context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case n.topics.PaymentCompleted, n.topics.PaymentFailed:
		var event models.PaymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("decode payment event: %w", err)
		}
		n.log.LogPayment(event.Type, event.OrderNumber,
			fmt.Sprintf("order %s payment %s via %s (txn %s, amount %.2f)",
				event.OrderID, event.PaymentStatus, event.PaymentMethod, event.TransactionID, event.Amount))
	case n.topics.OrderUpdated:
		var event models.OrderUpdatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("decode order event: %w", err)
		}
		status := "unchanged"
		if event.Status != nil {
			status = string(*event.Status)
		}
		n.log.LogOrder("UPDATED", event.OrderID, fmt.Sprintf("fields %v, status %s", event.Fields, status))
	default:
		n.log.Debug("KAFKA", fmt.Sprintf("Ignoring message on %s", msg.Topic))
	}
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.New(logger.Options{Dir: cfg.Log.Dir, Name: "notifier"})
	defer log.Close()

	topics := []string{cfg.Kafka.Topics.PaymentCompleted, cfg.Kafka.Topics.PaymentFailed, cfg.Kafka.Topics.OrderUpdated}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := &notifier{topics: cfg.Kafka.Topics, log: log}
	if err := consumer.Start(ctx, n.handle); err != nil {
		log.Error("KAFKA", err.Error())
	}
}
