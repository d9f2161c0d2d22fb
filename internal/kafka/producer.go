package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/ezlevup/supportdesk/pkg/logger"
)

type Producer interface {
	PublishSessionCreated(ctx context.Context, event SessionCreatedEvent) error
	PublishSessionAssigned(ctx context.Context, event SessionAssignedEvent) error
	PublishSessionEnded(ctx context.Context, event SessionEndedEvent) error
	Close() error
}

type kafkaProducer struct {
	producer sarama.SyncProducer
	l        logger.Logger
}

type ProducerConfig struct {
	Brokers      []string
	RetryMax     int
	RequiredAcks int
}

func NewProducer(cfg ProducerConfig, l logger.Logger) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	config.Producer.Retry.Max = cfg.RetryMax
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &kafkaProducer{
		producer: producer,
		l:        l,
	}, nil
}

func (p *kafkaProducer) PublishSessionCreated(ctx context.Context, event SessionCreatedEvent) error {
	event.Timestamp = time.Now()
	return p.publishEvent(ctx, TopicSessionCreated, event.SessionID, event)
}

func (p *kafkaProducer) PublishSessionAssigned(ctx context.Context, event SessionAssignedEvent) error {
	event.Timestamp = time.Now()
	return p.publishEvent(ctx, TopicSessionAssigned, event.SessionID, event)
}

func (p *kafkaProducer) PublishSessionEnded(ctx context.Context, event SessionEndedEvent) error {
	event.Timestamp = time.Now()
	return p.publishEvent(ctx, TopicSessionEnded, event.SessionID, event)
}

func (p *kafkaProducer) publishEvent(ctx context.Context, topic, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		// Partition by session_id so each session's transitions stay ordered.
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		p.l.Errorf(ctx, "kafkaProducer.publishEvent: topic=%s: %v", topic, err)
		return fmt.Errorf("failed to send kafka message: %w", err)
	}

	p.l.Debugf(ctx, "Kafka message sent: topic=%s partition=%d offset=%d key=%s",
		topic, partition, offset, key)

	return nil
}

func (p *kafkaProducer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
