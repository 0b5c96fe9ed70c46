package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adept/internal/domain"
	"adept/internal/domain/model"
	"adept/internal/domain/ports/adapter"
	"adept/internal/extract"
	"adept/internal/infra/logging"

	"github.com/google/uuid"
)

var _ adapter.TaskExecutor = (*Executor)(nil)

// Executor runs tasks inside a disposable sandbox. It provisions an
// instance per task, ships the payload file and the extraction script,
// and releases the instance on every exit path.
type Executor struct {
	client    *Client
	storage   adapter.ObjectStorage
	openAIKey string
	model     string
	xlsx      bool
}

func NewExecutor(client *Client, storage adapter.ObjectStorage, openAIKey, model string, xlsx bool) *Executor {
	return &Executor{
		client:    client,
		storage:   storage,
		openAIKey: openAIKey,
		model:     model,
		xlsx:      xlsx,
	}
}

func (e *Executor) Execute(ctx context.Context, task *model.Task) (*adapter.ExecResult, error) {
	var upload *adapter.SignedUpload
	if task.Mode == model.TaskModeFinalize && e.xlsx {
		name := uuid.NewString() + ".xlsx"
		const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		u, err := e.storage.SignUpload(ctx, name, xlsxType)
		if err != nil {
			return nil, fmt.Errorf("sign artifact upload: %w", err)
		}
		upload = u
	}

	input, err := extract.BuildInput(task, upload)
	if err != nil {
		return nil, err
	}

	inst, err := e.client.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	// Release must run even when ctx is already cancelled.
	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := inst.Release(relCtx); err != nil {
			logging.With(ctx).Warn().Err(err).Str("sandbox_id", inst.ID()).Msg("sandbox release failed")
		}
	}()

	if err := inst.WriteFile(ctx, extract.InputPath, input); err != nil {
		return nil, fmt.Errorf("write task input: %w", err)
	}

	res, err := inst.RunCode(ctx, extract.Script, map[string]string{
		"OPENAI_API_KEY": e.openAIKey,
		"ADEPT_MODEL":    e.model,
	})
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		return &adapter.ExecResult{Logs: res.Stderr},
			fmt.Errorf("%w: %s", domain.ErrInvalidExecution, res.Error)
	}

	line, ok := extract.LastLine(res.Stdout)
	if !ok {
		return &adapter.ExecResult{Logs: res.Stderr}, domain.ErrEmptyOutput
	}
	return &adapter.ExecResult{Output: json.RawMessage(line), Logs: res.Stderr}, nil
}
