package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"go.uber.org/zap"

	"github.com/noah-isme/voyage-admin-api/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditStreamRepository publishes activity entries to a Kafka topic keyed by calendar.
type AuditStreamRepository struct {
	writer messageWriter
	topic  string
}

// NewAuditStreamRepository builds a synchronous, hash-balanced writer so entries for one calendar stay ordered.
func NewAuditStreamRepository(brokers []string, topic string, logger *zap.Logger) (*AuditStreamRepository, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sugar := logger.Sugar()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  compress.Snappy,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...interface{}) {}),
		ErrorLogger:  kafka.LoggerFunc(sugar.Errorf),
	}
	return newAuditStreamRepository(writer, topic), nil
}

func newAuditStreamRepository(writer messageWriter, topic string) *AuditStreamRepository {
	return &AuditStreamRepository{writer: writer, topic: topic}
}

// Create publishes the entry.
func (r *AuditStreamRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(entry.CalendarID),
		Value: payload,
		Time:  entry.CreatedAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.Action)},
			{Key: "resource", Value: []byte(entry.Resource)},
		},
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event to %s: %w", r.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (r *AuditStreamRepository) Close() error {
	return r.writer.Close()
}
