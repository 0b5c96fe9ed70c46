package redis

import (
	"context"
	"encoding/json"
	"time"

	"adept/internal/domain"
	"adept/internal/domain/model"
	"adept/internal/domain/ports/adapter"
	"adept/internal/infra/logging"

	"github.com/oklog/ulid/v2"
)

// defaultVisibility bounds how long an unacked envelope may sit on the
// processing list before the reaper treats its worker as dead. It has to
// exceed the worst-case task duration (sandbox provisioning plus
// inference), or slow jobs get executed twice.
const defaultVisibility = 10 * time.Minute

// Queue moves task envelopes through a Redis list. Receive parks each
// popped entry on a processing list until Ack removes it, so a crashed
// worker leaves its envelope behind for Reap to requeue.
type Queue struct {
	client     RedisClient
	key        string
	procKey    string
	visibility time.Duration
	now        func() time.Time
}

var (
	_ adapter.EventDispatcher = (*Queue)(nil)
	_ adapter.EventSource     = (*Queue)(nil)
)

func NewQueue(client RedisClient, key string, visibility time.Duration) *Queue {
	if visibility <= 0 {
		visibility = defaultVisibility
	}
	return &Queue{
		client:     client,
		key:        key,
		procKey:    key + ":processing",
		visibility: visibility,
		now:        time.Now,
	}
}

func (q *Queue) Send(ctx context.Context, ownerID *string, task model.Task) (string, error) {
	id := ulid.Make().String()
	env := adapter.Envelope{ID: id, Task: task, OwnerID: ownerID, EnqueuedAt: q.now().UTC()}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, q.key, string(raw)); err != nil {
		return "", err
	}
	return id, nil
}

func (q *Queue) Receive(ctx context.Context) (*adapter.Envelope, error) {
	raw, err := q.client.BRPopLPush(ctx, q.key, q.procKey, 5*time.Second)
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrQueueEmpty
		}
		return nil, err
	}
	var env adapter.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Poison entry: drop it from the processing list so it does
		// not get requeued forever.
		_ = q.client.LRem(ctx, q.procKey, 1, raw)
		return nil, err
	}
	env.Raw = raw

	// The entry may have aged on the main queue under backlog. Restart
	// its visibility window now that a worker owns it, so the reaper
	// does not race a live execution. Push-then-remove keeps at least
	// one copy parked if Redis fails halfway.
	refreshed := env
	refreshed.EnqueuedAt = q.now().UTC()
	if fresh, err := json.Marshal(refreshed); err == nil {
		if err := q.client.LPush(ctx, q.procKey, string(fresh)); err == nil {
			if err := q.client.LRem(ctx, q.procKey, 1, raw); err == nil {
				refreshed.Raw = string(fresh)
				return &refreshed, nil
			}
		}
	}
	return &env, nil
}

func (q *Queue) Ack(ctx context.Context, env *adapter.Envelope) error {
	return q.client.LRem(ctx, q.procKey, 1, env.Raw)
}

// Reap requeues processing-list entries whose visibility window has
// elapsed. In-flight envelopes are younger than the window and stay
// put, so a slow-but-alive worker is not raced by a duplicate run.
func (q *Queue) Reap(ctx context.Context) (int, error) {
	entries, err := q.client.LRange(ctx, q.procKey, 0, -1)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, raw := range entries {
		var env adapter.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			// Undecodable entries can never be acked; drop them.
			_ = q.client.LRem(ctx, q.procKey, 1, raw)
			continue
		}
		if q.now().Sub(env.EnqueuedAt) < q.visibility {
			continue
		}
		if err := q.client.LRem(ctx, q.procKey, 1, raw); err != nil {
			return requeued, err
		}
		// Refresh the timestamp so the redelivered entry gets a full
		// window of its own.
		env.EnqueuedAt = q.now().UTC()
		fresh, err := json.Marshal(env)
		if err != nil {
			return requeued, err
		}
		if err := q.client.LPush(ctx, q.key, string(fresh)); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}

// StartReaper requeues stalled envelopes on a fixed interval until the
// context is cancelled.
func (q *Queue) StartReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := q.Reap(ctx)
			log := logging.With(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("queue reap failed")
				continue
			}
			if n > 0 {
				log.Info().Int("requeued", n).Msg("requeued stalled tasks")
			}
		}
	}
}
