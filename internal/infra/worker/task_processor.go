package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"adept/internal/domain"
	"adept/internal/domain/model"
	"adept/internal/domain/ports/adapter"
	"adept/internal/domain/ports/repository"
	"adept/internal/extract"
	"adept/internal/infra/metrics"
)

// TaskProcessor drains the event source and drives each task through
// execution to its terminal record. Failures are job results, not
// processor errors: anything the task did wrong ends up in a failed row,
// and only a broken terminal write leaves the envelope unacked for
// redelivery.
type TaskProcessor struct {
	jobs     repository.JobRepository
	source   adapter.EventSource
	executor adapter.TaskExecutor
	log      *zerolog.Logger
}

func NewTaskProcessor(
	jobs repository.JobRepository,
	source adapter.EventSource,
	executor adapter.TaskExecutor,
	log *zerolog.Logger,
) *TaskProcessor {
	return &TaskProcessor{jobs: jobs, source: source, executor: executor, log: log}
}

// Start runs the consume loop until ctx is cancelled.
// This should be run in a goroutine.
func (p *TaskProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("task processor started")
	for {
		if ctx.Err() != nil {
			p.log.Info().Msg("task processor stopping")
			return
		}
		env, err := p.source.Receive(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrQueueEmpty) || ctx.Err() != nil {
				continue
			}
			p.log.Error().Err(err).Msg("receive failed")
			time.Sleep(time.Second)
			continue
		}
		if err := pool.Submit(func(ctx context.Context) error {
			p.ProcessOne(ctx, env)
			return nil
		}); err != nil {
			// Leave it unacked; the reaper redelivers it.
			p.log.Warn().Str("job_id", env.ID).Err(err).Msg("pool saturated, task deferred")
		}
	}
}

// ProcessOne takes one envelope to a terminal job record and acks it.
func (p *TaskProcessor) ProcessOne(ctx context.Context, env *adapter.Envelope) {
	log := p.log.With().Str("job_id", env.ID).Str("mode", string(env.Task.Mode)).Logger()
	log.Info().Msg("processing task")
	start := time.Now()

	job, err := p.handle(ctx, env)
	if err != nil {
		// Only infrastructure failures land here. The envelope stays
		// unacked so the task runs again.
		log.Error().Err(err).Msg("terminal write failed, task will be redelivered")
		return
	}

	if err := p.source.Ack(ctx, env); err != nil {
		log.Warn().Err(err).Msg("ack failed")
	}
	metrics.ObserveJob(string(env.Task.Mode), string(job.Status), time.Since(start).Seconds())
	log.Info().Str("status", string(job.Status)).Dur("duration", time.Since(start)).Msg("task finished")
}

// handle executes the task and persists the terminal record. The returned
// error means the record could not be written, nothing else.
func (p *TaskProcessor) handle(ctx context.Context, env *adapter.Envelope) (*model.Job, error) {
	raw, err := json.Marshal(env.Task)
	if err != nil {
		return p.writeFailed(env, "", fmt.Sprintf("invalid task payload: %v", err))
	}
	task, err := extract.DecodeTask(raw)
	if err != nil {
		// Schema violations are fatal; rerunning the same payload
		// cannot succeed.
		return p.writeFailed(env, "", fmt.Sprintf("invalid task payload: %v", err))
	}

	res, err := p.executor.Execute(ctx, task)
	logs := ""
	if res != nil {
		logs = res.Logs
	}
	if err != nil {
		return p.writeFailed(env, logs, err.Error())
	}

	data, err := p.validateOutput(task.Mode, res.Output)
	if err != nil {
		return p.writeFailed(env, logs, fmt.Sprintf("execution produced invalid output: %v", err))
	}

	job := &model.Job{
		ID:        env.ID,
		OwnerID:   env.OwnerID,
		Status:    model.JobStatusCompleted,
		Data:      data,
		Error:     logs,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.save(job); err != nil {
		return nil, err
	}
	return job, nil
}

// validateOutput checks the executor result against the shape its mode is
// allowed to produce and returns what gets persisted. Finalize may yield
// either the echoed product envelope or a file artifact.
func (p *TaskProcessor) validateOutput(mode model.TaskMode, output json.RawMessage) (json.RawMessage, error) {
	products, prodErr := extract.ValidateProducts(output)
	if prodErr == nil {
		return products, nil
	}
	if mode == model.TaskModeFinalize {
		if artifact, err := extract.ValidateArtifact(output); err == nil {
			return json.Marshal(artifact)
		}
	}
	return nil, prodErr
}

// writeFailed records the terminal failure. The owner rides along so a
// row materialized here (pending create lost or never happened) still
// answers the owner's polls.
func (p *TaskProcessor) writeFailed(env *adapter.Envelope, logs, message string) (*model.Job, error) {
	if logs != "" {
		message = message + "\n" + logs
	}
	job := &model.Job{
		ID:        env.ID,
		OwnerID:   env.OwnerID,
		Status:    model.JobStatusFailed,
		Data:      json.RawMessage(`[]`),
		Error:     message,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.save(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (p *TaskProcessor) save(job *model.Job) error {
	// Use a fresh context so a cancelled task still records its outcome.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.jobs.SaveResult(ctx, job)
}
