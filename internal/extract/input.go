package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"adept/internal/domain/model"
	"adept/internal/domain/ports/adapter"
)

// InputPath is where the task payload is written inside the sandbox. The
// script reads it from there; payload data never gets interpolated into
// source text, so quoting and size stop being a concern.
const InputPath = "/home/user/input.json"

// BuildInput serializes a validated task into the opaque data file the
// sandbox script consumes. For finalize runs that should produce a
// spreadsheet, artifactUpload carries the signed target the script uploads
// the workbook to; leaving it nil makes finalize echo the structured array.
func BuildInput(task *model.Task, artifactUpload *adapter.SignedUpload) ([]byte, error) {
	in := map[string]any{
		"operation_mode": string(task.Mode),
		"system_prompt":  SystemPrompt,
	}
	switch task.Mode {
	case model.TaskModeExtract:
		in["user_prompt"] = task.UserPrompt
		in["image_url"] = task.ImageURL
	case model.TaskModeUpdate:
		existing, err := json.Marshal(task.ExistingData)
		if err != nil {
			return nil, err
		}
		in["user_prompt"] = task.UserPrompt
		in["existing_data_json"] = string(existing)
	case model.TaskModeFinalize:
		final, err := json.Marshal(map[string]any{"products": task.FinalData})
		if err != nil {
			return nil, err
		}
		in["final_data_json"] = string(final)
		if artifactUpload != nil {
			in["upload_url"] = artifactUpload.UploadURL
			in["file_url"] = artifactUpload.FileURL
		}
	default:
		return nil, fmt.Errorf("unknown operation mode %q", task.Mode)
	}
	return json.Marshal(in)
}

// LastLine returns the final non-empty line of a captured stdout stream,
// which by convention is the run's single machine-readable result.
func LastLine(stdout string) (string, bool) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s, true
		}
	}
	return "", false
}
