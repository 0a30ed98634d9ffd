package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
	"github.com/noah-isme/voyage-admin-api/pkg/jobs"
)

const auditEnqueueTimeout = time.Second

// AuditSink receives activity entries. Postgres and Kafka repositories both satisfy it.
type AuditSink interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

type auditReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

type auditObserver interface {
	ObserveAuditDelivery(sink string, err error)
}

// AuditEvent describes one calendar mutation.
type AuditEvent struct {
	Action     string
	Resource   string
	ResourceID string
	CalendarID string
	TxnID      *string
	Before     interface{}
	After      interface{}
}

// AuditService fans activity entries out to the configured sinks on a background queue.
type AuditService struct {
	sinks   map[string]AuditSink
	reader  auditReader
	metrics auditObserver
	queue   *jobs.Queue
	logger  *zap.Logger
}

// NewAuditService wires sinks by name. reader may be nil when no queryable sink is configured.
func NewAuditService(sinks map[string]AuditSink, reader auditReader, metrics auditObserver, cfg jobs.QueueConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	cfg.Logger = logger
	svc := &AuditService{sinks: sinks, reader: reader, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.deliver, cfg)
	return svc
}

// Start launches the delivery workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes pending entries until ctx expires.
func (s *AuditService) Stop(ctx context.Context) {
	s.queue.Stop(ctx)
}

// Record stamps the request actor onto the event and queues it for every sink.
// Delivery failures are logged and never fail the calling mutation.
func (s *AuditService) Record(ctx context.Context, event AuditEvent) {
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		Action:     event.Action,
		Resource:   event.Resource,
		CalendarID: event.CalendarID,
		TxnID:      event.TxnID,
		OldValues:  encodeAuditValue(event.Before),
		NewValues:  encodeAuditValue(event.After),
		CreatedAt:  time.Now().UTC(),
	}
	if event.ResourceID != "" {
		id := event.ResourceID
		entry.ResourceID = &id
	}
	if actor, ok := models.ActorFrom(ctx); ok {
		if actor.ID != "" {
			id := actor.ID
			entry.ActorID = &id
		}
		entry.ActorRole = actor.Role
		entry.IPAddress = actor.IP
		entry.UserAgent = actor.UserAgent
	}

	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditEnqueueTimeout)
	defer cancel()
	for name := range s.sinks {
		job := jobs.Job{ID: entry.ID, Type: name, Payload: entry}
		if err := s.queue.Enqueue(enqueueCtx, job); err != nil {
			s.logger.Warn("audit entry dropped", zap.String("sink", name), zap.String("action", entry.Action), zap.Error(err))
			s.metrics.ObserveAuditDelivery(name, err)
		}
	}
}

// List returns the activity feed.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	if s.reader == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "activity feed is not enabled")
	}
	logs, err := s.reader.List(ctx, filter)
	if err != nil {
		return nil, translateStoreErr(err, "failed to list activity")
	}
	return logs, nil
}

func (s *AuditService) deliver(ctx context.Context, job jobs.Job) error {
	sink, ok := s.sinks[job.Type]
	if !ok {
		return nil
	}
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return nil
	}
	err := sink.Create(ctx, entry)
	s.metrics.ObserveAuditDelivery(job.Type, err)
	return err
}

func encodeAuditValue(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// LogAuditSink writes activity entries to the structured log.
type LogAuditSink struct {
	logger *zap.Logger
}

// NewLogAuditSink constructs the sink.
func NewLogAuditSink(logger *zap.Logger) *LogAuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAuditSink{logger: logger}
}

// Create implements AuditSink.
func (s *LogAuditSink) Create(_ context.Context, entry *models.AuditLog) error {
	fields := []zap.Field{
		zap.String("audit_id", entry.ID),
		zap.String("action", entry.Action),
		zap.String("resource", entry.Resource),
		zap.String("calendar_id", entry.CalendarID),
		zap.String("ip", entry.IPAddress),
	}
	if entry.ResourceID != nil {
		fields = append(fields, zap.String("resource_id", *entry.ResourceID))
	}
	if entry.ActorID != nil {
		fields = append(fields, zap.String("actor_id", *entry.ActorID))
	}
	if entry.TxnID != nil {
		fields = append(fields, zap.String("txn_id", *entry.TxnID))
	}
	s.logger.Info("calendar activity", fields...)
	return nil
}
