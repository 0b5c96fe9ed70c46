package usecase

import (
	"context"

	"adept/internal/domain/model"
)

// Hand-written mocks with overridable function fields, one per port.

type mockJobRepo struct {
	CreateFunc     func(ctx context.Context, job *model.Job) error
	SaveResultFunc func(ctx context.Context, job *model.Job) error
	FindByIDFunc   func(ctx context.Context, id string, ownerID *string) (*model.Job, error)
}

func (m *mockJobRepo) Create(ctx context.Context, job *model.Job) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	return nil
}

func (m *mockJobRepo) SaveResult(ctx context.Context, job *model.Job) error {
	if m.SaveResultFunc != nil {
		return m.SaveResultFunc(ctx, job)
	}
	return nil
}

func (m *mockJobRepo) FindByID(ctx context.Context, id string, ownerID *string) (*model.Job, error) {
	return m.FindByIDFunc(ctx, id, ownerID)
}

type mockDispatcher struct {
	SendFunc   func(ctx context.Context, ownerID *string, task model.Task) (string, error)
	sent       []model.Task
	sentOwners []*string
}

func (m *mockDispatcher) Send(ctx context.Context, ownerID *string, task model.Task) (string, error) {
	m.sent = append(m.sent, task)
	m.sentOwners = append(m.sentOwners, ownerID)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, ownerID, task)
	}
	return "01ARZ3NDEKTSV4RRFFQ69G5FAV", nil
}
