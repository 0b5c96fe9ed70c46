//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"adept/internal/domain"
	"adept/internal/domain/model"

	"github.com/oklog/ulid/v2"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewJobRepo(testPool)

	t.Run("should create a pending job and find it back", func(t *testing.T) {
		cleanup(t)

		job := model.NewPendingJob(ulid.Make().String(), nil)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		got, err := repo.FindByID(ctx, job.ID, nil)
		if err != nil {
			t.Fatalf("failed to find job: %v", err)
		}
		if got.Status != model.JobStatusPending {
			t.Errorf("expected status 'pending', got %q", got.Status)
		}
		if string(got.Data) != `[]` {
			t.Errorf("expected empty data while pending, got %s", got.Data)
		}
	})

	t.Run("create is safe to retry for the same id", func(t *testing.T) {
		cleanup(t)

		job := model.NewPendingJob(ulid.Make().String(), nil)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("first create: %v", err)
		}
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("second create should not fault: %v", err)
		}
	})

	t.Run("terminal write is idempotent and rows never leave a terminal state", func(t *testing.T) {
		cleanup(t)

		job := model.NewPendingJob(ulid.Make().String(), nil)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("create: %v", err)
		}

		job.Status = model.JobStatusCompleted
		job.Data = json.RawMessage(`[{"name":"Corn","price":"3.99"}]`)
		if err := repo.SaveResult(ctx, job); err != nil {
			t.Fatalf("first terminal write: %v", err)
		}

		// Redelivered event writes the same result again.
		if err := repo.SaveResult(ctx, job); err != nil {
			t.Fatalf("second terminal write should not fault: %v", err)
		}

		// A conflicting late write must not move the row out of completed.
		late := *job
		late.Status = model.JobStatusFailed
		late.Error = "late duplicate"
		if err := repo.SaveResult(ctx, &late); err != nil {
			t.Fatalf("late write should not fault: %v", err)
		}

		got, err := repo.FindByID(ctx, job.ID, nil)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status != model.JobStatusCompleted {
			t.Errorf("expected status to stay 'completed', got %q", got.Status)
		}
		if got.Error != "" {
			t.Errorf("expected error to stay empty, got %q", got.Error)
		}
	})

	t.Run("terminal write materializes a missing record", func(t *testing.T) {
		cleanup(t)

		// Execution path may run before the accepting path created the row.
		job := model.NewPendingJob(ulid.Make().String(), nil)
		job.Status = model.JobStatusFailed
		job.Error = "sandbox provisioning failed"
		if err := repo.SaveResult(ctx, job); err != nil {
			t.Fatalf("terminal write without prior create: %v", err)
		}

		got, err := repo.FindByID(ctx, job.ID, nil)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status != model.JobStatusFailed {
			t.Errorf("expected 'failed', got %q", got.Status)
		}
	})

	t.Run("owner scoping hides other principals' jobs as not-found", func(t *testing.T) {
		cleanup(t)

		alice := "user-alice"
		bob := "user-bob"
		job := model.NewPendingJob(ulid.Make().String(), &alice)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("create: %v", err)
		}

		if _, err := repo.FindByID(ctx, job.ID, &alice); err != nil {
			t.Fatalf("owner lookup should succeed: %v", err)
		}
		if _, err := repo.FindByID(ctx, job.ID, &bob); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
		}
	})
}
