package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-storefront/internal/logger"
)

type Message struct {
	Topic string
	Key   string
	Value []byte
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	Logger *logger.Logger
}

// NewConsumer joins groupID and reads every listed topic.
func NewConsumer(brokers []string, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, Logger: log}
}

// Start blocks until ctx is cancelled. Handler errors are logged and the message is skipped.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, msg Message) error) error {
	c.Logger.Info("KAFKA", "Consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.Logger.Info("KAFKA", "Consumer stopped")
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		if err := handler(ctx, Message{Topic: msg.Topic, Key: string(msg.Key), Value: msg.Value}); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Failed to handle message from %s: %v", msg.Topic, err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
