package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"adept/internal/domain"
	"adept/internal/domain/model"
	"adept/internal/domain/ports/adapter"
	"adept/internal/domain/ports/repository"
	"adept/internal/extract"
	"adept/internal/infra/logging"
	"adept/internal/infra/metrics"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

type JobUseCase interface {
	// Extract accepts a new flyer extraction and returns the job ID before
	// any model call has happened.
	Extract(ctx context.Context, ownerID *string, imageURL, userPrompt string) (string, error)
	// Update starts a revision pass over a prior job's extracted data and
	// returns the ID of the new job.
	Update(ctx context.Context, ownerID *string, priorJobID, userPrompt string) (string, error)
	// Finalize turns a prior job's data into the final deliverable under a
	// new job ID.
	Finalize(ctx context.Context, ownerID *string, priorJobID string) (string, error)
	// Get returns the job record for polling.
	Get(ctx context.Context, ownerID *string, jobID string) (*model.Job, error)
}

type jobUC struct {
	jobs       repository.JobRepository
	dispatcher adapter.EventDispatcher
}

func NewJobUseCase(jobs repository.JobRepository, dispatcher adapter.EventDispatcher) *jobUC {
	return &jobUC{jobs: jobs, dispatcher: dispatcher}
}

func (u *jobUC) Extract(ctx context.Context, ownerID *string, imageURL, userPrompt string) (string, error) {
	if userPrompt == "" {
		userPrompt = extract.DefaultUserPrompt
	}
	task := model.Task{
		Mode:       model.TaskModeExtract,
		ImageURL:   imageURL,
		UserPrompt: userPrompt,
	}
	return u.accept(ctx, ownerID, task)
}

func (u *jobUC) Update(ctx context.Context, ownerID *string, priorJobID, userPrompt string) (string, error) {
	if userPrompt == "" {
		return "", fmt.Errorf("%w: instruction is required", domain.ErrInvalidArgument)
	}
	existing, err := u.priorData(ctx, ownerID, priorJobID)
	if err != nil {
		return "", err
	}
	task := model.Task{
		Mode:         model.TaskModeUpdate,
		UserPrompt:   userPrompt,
		ExistingData: existing,
	}
	return u.accept(ctx, ownerID, task)
}

func (u *jobUC) Finalize(ctx context.Context, ownerID *string, priorJobID string) (string, error) {
	final, err := u.priorData(ctx, ownerID, priorJobID)
	if err != nil {
		return "", err
	}
	task := model.Task{
		Mode:      model.TaskModeFinalize,
		FinalData: final,
	}
	return u.accept(ctx, ownerID, task)
}

func (u *jobUC) Get(ctx context.Context, ownerID *string, jobID string) (*model.Job, error) {
	return u.jobs.FindByID(ctx, jobID, ownerID)
}

// accept is the shared tail of every submission: validate, dispatch, then
// materialize the pending record under the dispatched ID.
func (u *jobUC) accept(ctx context.Context, ownerID *string, task model.Task) (string, error) {
	if err := extract.ValidateTask(&task); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	id, err := u.dispatcher.Send(ctx, ownerID, task)
	if err != nil {
		return "", fmt.Errorf("dispatch task: %w", err)
	}

	job := model.NewPendingJob(id, ownerID)
	if err := u.jobs.Create(ctx, job); err != nil {
		// The event is already in flight; the execution path will
		// materialize the record when it writes the result.
		logging.With(ctx).Warn().Err(err).Str("job_id", id).Msg("pending record creation failed")
	}
	metrics.IncJobSubmitted(string(task.Mode))
	return id, nil
}

// priorData loads the job a follow-up operation builds on and returns its
// product snapshot. Failed jobs cannot be built on; pending jobs yield
// their empty initial array.
func (u *jobUC) priorData(ctx context.Context, ownerID *string, jobID string) ([]model.Product, error) {
	prior, err := u.jobs.FindByID(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}
	if prior.Status == model.JobStatusFailed {
		return nil, domain.ErrJobFailed
	}
	var products []model.Product
	if err := json.Unmarshal(prior.Data, &products); err != nil {
		return nil, fmt.Errorf("%w: job %s holds no product data", domain.ErrInvalidArgument, jobID)
	}
	return products, nil
}
