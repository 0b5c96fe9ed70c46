package adapter

import (
	"context"
	"time"

	"adept/internal/domain/model"
)

// Envelope is one dispatched task together with its dispatcher-assigned ID.
type Envelope struct {
	ID   string     `json:"id"`
	Task model.Task `json:"task"`

	// OwnerID travels with the task so a terminal write that has to
	// materialize a missing job row keeps the job's owner scoping.
	OwnerID *string `json:"owner_id,omitempty"`

	// EnqueuedAt is refreshed on dispatch, delivery, and requeue; the
	// reaper leaves entries younger than the visibility window alone.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Raw is the wire form the envelope arrived in; the source needs it
	// back verbatim to acknowledge the entry.
	Raw string `json:"-"`
}

// EventDispatcher accepts a task for eventual, at-least-once execution and
// returns a durable identifier before any consumer has run.
type EventDispatcher interface {
	Send(ctx context.Context, ownerID *string, task model.Task) (string, error)
}

// EventSource is the consuming side of the dispatcher. Receive blocks up to
// its internal timeout and returns domain.ErrQueueEmpty when nothing arrived;
// an envelope stays owned by the consumer until Ack, and unacknowledged
// envelopes are eventually redelivered.
type EventSource interface {
	Receive(ctx context.Context) (*Envelope, error)
	Ack(ctx context.Context, env *Envelope) error
}
