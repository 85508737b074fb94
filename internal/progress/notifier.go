package progress

import (
	"context"
	"encoding/json"

	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/infra"
)

// Envelope types on the wire.
const (
	TypeProgress  = "progress"
	TypeCompleted = "completed"
	TypeError     = "error"
)

// Envelope is the {type, data} frame sent to subscribers.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Sink receives encoded envelopes. *Hub and *RedisRelay implement it.
type Sink interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// Notifier encodes job events and hands them to a Sink. Delivery is
// fire-and-forget: failures are logged, never returned.
type Notifier struct {
	sink   Sink
	logger infra.Logger
}

func NewNotifier(sink Sink, logger infra.Logger) *Notifier {
	return &Notifier{sink: sink, logger: logger.With().Str("component", "progress_notifier").Logger()}
}

func (n *Notifier) PublishProgress(ctx context.Context, event domain.ProgressEvent) {
	n.publish(ctx, TypeProgress, event.JobID, event)
}

func (n *Notifier) PublishCompletion(ctx context.Context, event domain.CompletionEvent) {
	n.publish(ctx, TypeCompleted, event.JobID, event)
}

func (n *Notifier) PublishError(ctx context.Context, event domain.FailureEvent) {
	n.publish(ctx, TypeError, event.JobID, event)
}

func (n *Notifier) publish(ctx context.Context, typ, jobID string, data any) {
	payload, err := Encode(typ, data)
	if err != nil {
		n.logger.Error().Err(err).Str("job_id", jobID).Str("type", typ).Msg("encode event")
		return
	}
	if err := n.sink.Broadcast(ctx, payload); err != nil {
		n.logger.Warn().Err(err).Str("job_id", jobID).Str("type", typ).Msg("broadcast event")
	}
}

// Encode builds the wire form of an envelope.
func Encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}
