package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Record is the JSON value written to Kafka for each event.
type Record struct {
	Event     Event     `json:"event"`
	JobID     string    `json:"jobId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload,omitempty"`
}

// KafkaService publishes events to a Kafka topic.
type KafkaService struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewKafkaService connects a synchronous producer to brokers.
func NewKafkaService(brokers []string, topic string, timeout time.Duration) (*KafkaService, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("notifications: kafka topic required")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.ClientID = "captioner"
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = timeout
	cfg.Net.DialTimeout = timeout

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("notifications: connect kafka: %w", err)
	}
	return NewKafkaServiceWithProducer(producer, topic), nil
}

// NewKafkaServiceWithProducer wraps an existing producer.
func NewKafkaServiceWithProducer(producer sarama.SyncProducer, topic string) *KafkaService {
	return &KafkaService{producer: producer, topic: topic, now: time.Now}
}

// Publish implements Service.
func (k *KafkaService) Publish(ctx context.Context, event Event, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record := Record{Event: event, JobID: p.str("jobId"), Timestamp: k.now().UTC(), Payload: p}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode kafka record: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(event)},
		},
	}
	if record.JobID != "" {
		msg.Key = sarama.StringEncoder(record.JobID)
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish kafka event %s: %w", event, err)
	}
	return nil
}

// Close shuts the producer down.
func (k *KafkaService) Close() error {
	if k == nil || k.producer == nil {
		return nil
	}
	return k.producer.Close()
}
