package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/naildiary/booking/libs/db"
	"github.com/naildiary/booking/libs/kafkax"
	"github.com/naildiary/booking/libs/otelx"
)

const (
	pollInterval = 2 * time.Second
	batchSize    = 100
)

// Publisher drains the outbox table and writes each event to the Kafka
// topic named after its event type. Events stay unpublished (and are
// retried) until the write succeeds.
type Publisher struct {
	pool    *db.Pool
	repo    *Repository
	brokers []string
	logger  *slog.Logger

	writers map[string]*kafka.Writer
}

func NewPublisher(pool *db.Pool, repo *Repository, brokers []string, logger *slog.Logger) *Publisher {
	return &Publisher{
		pool:    pool,
		repo:    repo,
		brokers: brokers,
		logger:  logger,
		writers: make(map[string]*kafka.Writer),
	}
}

// Run polls until ctx is cancelled. Call it in its own goroutine.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	defer p.closeWriters()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

func (p *Publisher) drainOnce(ctx context.Context) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	events, err := p.repo.FetchUnpublishedTx(ctx, tx, batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return tx.Commit(ctx)
	}

	var published []int64
	for _, evt := range events {
		if err := p.publish(ctx, evt); err != nil {
			p.logger.Error("publish event failed",
				"event_id", evt.EventID, "event_type", evt.EventType, "error", err)
			break // keep ordering per aggregate: stop at the first failure
		}
		published = append(published, evt.ID)
	}
	if err := p.repo.MarkPublishedTx(ctx, tx, published); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if len(published) > 0 {
		p.logger.Info("outbox events published", "count", len(published))
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, evt StoredEvent) error {
	msgCtx := otelx.ContextWithTraceContext(ctx, evt.Traceparent, evt.Tracestate)
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(evt.EventID)},
		{Key: "event_type", Value: []byte(evt.EventType)},
	}
	headers = kafkax.InjectTraceHeaders(msgCtx, headers)

	return p.writer(evt.EventType).WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.AggregateID),
		Value:   evt.Payload,
		Headers: headers,
	})
}

func (p *Publisher) writer(topic string) *kafka.Writer {
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	p.writers[topic] = w
	return w
}

func (p *Publisher) closeWriters() {
	for _, w := range p.writers {
		_ = w.Close()
	}
}
