package adapter

import (
	"context"
	"encoding/json"

	"adept/internal/domain/model"
)

// ExecResult carries the candidate structured output of one task run plus
// everything the run printed on its diagnostic stream. Logs are kept even on
// success so operators can see non-fatal warnings.
type ExecResult struct {
	Output json.RawMessage
	Logs   string
}

// TaskExecutor runs one validated task to completion and returns the raw
// candidate result. The caller validates the output against the result
// schema; the executor validates nothing beyond its own transport concerns.
type TaskExecutor interface {
	Execute(ctx context.Context, task *model.Task) (*ExecResult, error)
}
