// Package runner executes tasks in-process, without a sandbox service.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"adept/internal/domain/model"
	"adept/internal/domain/ports/adapter"
	"adept/internal/export"
)

var _ adapter.TaskExecutor = (*Local)(nil)

// Local runs extraction through a configured AI provider and builds
// finalize artifacts with the in-process workbook writer. It produces the
// same result shape as the sandboxed runner, so the processor cannot tell
// them apart.
type Local struct {
	ai      adapter.AIProviderAdapter
	storage adapter.ObjectStorage
	xlsx    bool
}

func NewLocal(ai adapter.AIProviderAdapter, storage adapter.ObjectStorage, xlsx bool) *Local {
	return &Local{ai: ai, storage: storage, xlsx: xlsx}
}

func (l *Local) Execute(ctx context.Context, task *model.Task) (*adapter.ExecResult, error) {
	var logs strings.Builder
	logf := func(format string, args ...any) {
		fmt.Fprintf(&logs, "[%s] ", task.Mode)
		fmt.Fprintf(&logs, format+"\n", args...)
	}

	switch task.Mode {
	case model.TaskModeExtract:
		logf("requesting extraction for %s", task.ImageURL)
		out, err := l.ai.ExtractProducts(ctx, task.ImageURL, task.UserPrompt)
		if err != nil {
			return &adapter.ExecResult{Logs: logs.String()}, err
		}
		logf("provider returned %d bytes", len(out))
		return &adapter.ExecResult{Output: out, Logs: logs.String()}, nil

	case model.TaskModeUpdate:
		existing, err := json.Marshal(task.ExistingData)
		if err != nil {
			return nil, err
		}
		logf("revising %d products", len(task.ExistingData))
		out, err := l.ai.ReviseProducts(ctx, existing, task.UserPrompt)
		if err != nil {
			return &adapter.ExecResult{Logs: logs.String()}, err
		}
		logf("provider returned %d bytes", len(out))
		return &adapter.ExecResult{Output: out, Logs: logs.String()}, nil

	case model.TaskModeFinalize:
		if !l.xlsx {
			logf("echoing %d products", len(task.FinalData))
			out, err := json.Marshal(map[string]any{"products": task.FinalData})
			if err != nil {
				return nil, err
			}
			return &adapter.ExecResult{Output: out, Logs: logs.String()}, nil
		}
		wb, err := export.ProductsXLSX(task.FinalData)
		if err != nil {
			return &adapter.ExecResult{Logs: logs.String()}, fmt.Errorf("build workbook: %w", err)
		}
		name := uuid.NewString() + ".xlsx"
		const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		fileURL, err := l.storage.Put(ctx, name, xlsxType, wb)
		if err != nil {
			return &adapter.ExecResult{Logs: logs.String()}, fmt.Errorf("store workbook: %w", err)
		}
		logf("stored %d products at %s", len(task.FinalData), fileURL)
		out, err := json.Marshal(model.Artifact{FileURL: fileURL, FileType: "xlsx"})
		if err != nil {
			return nil, err
		}
		return &adapter.ExecResult{Output: out, Logs: logs.String()}, nil

	default:
		return nil, fmt.Errorf("unknown operation mode %q", task.Mode)
	}
}
