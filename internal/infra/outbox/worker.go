package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "marketplace/internal/app/outbox"
)

//go:generate mockgen -source=worker.go -destination=../../mocks/mock_outbox_worker.go -package=mocks

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Source hands out committed outbox records to a single worker at a time.
type Source interface {
	Claim(ctx context.Context, workerID string) (*appoutbox.PendingRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Worker struct {
	Store       Source
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	// BatchSize caps how many records one tick publishes.
	BatchSize int
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && w.Logger != nil {
				w.Logger.WarnContext(ctx, "outbox relay failed", "worker_id", w.ID, "err", err)
			}
		}
	}
}

// Drain publishes up to BatchSize ready records and returns how many were sent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		ok, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if !ok {
			break
		}
		sent++
	}
	return sent, nil
}

// processOnce reports whether a record was claimed and published.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	rec, err := w.Store.Claim(ctx, w.workerID())
	if err != nil || rec == nil {
		return false, err
	}
	topic := w.topicFor(rec.Name)
	payload, headers, err := w.formatPayload(rec)
	if err != nil {
		return false, w.fail(ctx, rec, err)
	}
	if err := w.Producer.Publish(ctx, topic, rec.Aggregate, payload, headers); err != nil {
		return false, w.fail(ctx, rec, err)
	}
	if err := w.Store.MarkSent(ctx, rec.ID); err != nil {
		return false, err
	}
	if w.Logger != nil {
		w.Logger.DebugContext(ctx, "outbox event published", "event_id", rec.ID, "event", rec.Name, "topic", topic)
	}
	return true, nil
}

func (w *Worker) fail(ctx context.Context, rec *appoutbox.PendingRecord, cause error) error {
	if w.Logger != nil {
		w.Logger.WarnContext(ctx, "outbox publish failed", "event_id", rec.ID, "event", rec.Name, "attempts", rec.Attempts+1, "err", cause)
	}
	if err := w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return nil
}

func (w *Worker) formatPayload(rec *appoutbox.PendingRecord) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          w.source(),
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range rec.Headers {
		if k == "content-type" {
			continue
		}
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps "message.sent" to "<prefix>message.events.v1".
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return uuid.NewString()
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://marketplace"
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")
