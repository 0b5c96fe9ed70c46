package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"adept/internal/domain/model"
)

// productProps is the single source of truth for the product shape. Only the
// name is required; everything else depends on what the flyer actually shows.
func productProps() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":                 map[string]any{"type": "string", "minLength": 1},
			"description":          map[string]any{"type": "string"},
			"price":                map[string]any{"type": "string"},
			"limit":                map[string]any{"type": "string"},
			"group":                map[string]any{"type": "string"},
			"physical_description": map[string]any{"type": "string"},
		},
		"required": []string{"name"},
	}
}

func productArray() map[string]any {
	return map[string]any{"type": "array", "items": productProps()}
}

// envelopeSchema matches the `{"products": [...]}` envelope the model is
// forced to emit through its tool call.
func envelopeSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]any{"products": productArray()},
		"required":             []string{"products"},
	}
}

func artifactSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"file_url":  map[string]any{"type": "string", "minLength": 1},
			"file_type": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"file_url", "file_type"},
	}
}

// taskSchemas holds one payload schema per operation mode. Post-dispatch
// payload validation uses these; a violation is fatal and never retried.
func taskSchemas() map[model.TaskMode]map[string]any {
	return map[model.TaskMode]map[string]any{
		model.TaskModeExtract: {
			"type":       "object",
			"properties": map[string]any{
				"mode":        map[string]any{"const": "extract"},
				"image_url":   map[string]any{"type": "string", "minLength": 1, "format": "uri"},
				"user_prompt": map[string]any{"type": "string", "minLength": 1},
			},
			"required": []string{"mode", "image_url", "user_prompt"},
		},
		model.TaskModeUpdate: {
			"type":       "object",
			"properties": map[string]any{
				"mode":          map[string]any{"const": "update"},
				"existing_data": productArray(),
				"user_prompt":   map[string]any{"type": "string", "minLength": 1},
			},
			"required": []string{"mode", "existing_data", "user_prompt"},
		},
		model.TaskModeFinalize: {
			"type":       "object",
			"properties": map[string]any{
				"mode":       map[string]any{"const": "finalize"},
				"final_data": productArray(),
			},
			"required": []string{"mode", "final_data"},
		},
	}
}

var (
	compiledEnvelope = mustCompile(envelopeSchema())
	compiledArtifact = mustCompile(artifactSchema())
	compiledTasks    = map[model.TaskMode]*jsonschema.Schema{
		model.TaskModeExtract:  mustCompile(taskSchemas()[model.TaskModeExtract]),
		model.TaskModeUpdate:   mustCompile(taskSchemas()[model.TaskModeUpdate]),
		model.TaskModeFinalize: mustCompile(taskSchemas()[model.TaskModeFinalize]),
	}
)

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	// Formats assert: a malformed image_url must fail validation before
	// dispatch, not inside the sandbox.
	compiler.AssertFormat = true
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	return compiler.MustCompile("schema.json")
}

func validate(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}
	return nil
}

// DecodeTask parses a dispatched event payload and validates it against the
// schema of the mode it declares.
func DecodeTask(raw []byte) (*model.Task, error) {
	var t model.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	schema, ok := compiledTasks[t.Mode]
	if !ok {
		return nil, fmt.Errorf("unknown operation mode %q", t.Mode)
	}
	if err := validate(schema, raw); err != nil {
		return nil, fmt.Errorf("task payload (%s): %w", t.Mode, err)
	}
	return &t, nil
}

// ValidateTask re-marshals and checks an in-memory task; used by the
// accepting path before anything is dispatched or persisted.
func ValidateTask(t *model.Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = DecodeTask(raw)
	return err
}

// ValidateProducts checks a candidate result against the product envelope
// schema and returns the bare products array for persistence.
func ValidateProducts(raw []byte) (json.RawMessage, error) {
	if err := validate(compiledEnvelope, raw); err != nil {
		return nil, err
	}
	var env struct {
		Products json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env.Products, nil
}

// ValidateArtifact checks a candidate finalize-to-file result against the
// artifact descriptor schema.
func ValidateArtifact(raw []byte) (*model.Artifact, error) {
	if err := validate(compiledArtifact, raw); err != nil {
		return nil, err
	}
	var a model.Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ProductJSONSchema exposes the envelope schema as a generic map so AI
// adapters can pass it to providers as a structured-output constraint.
func ProductJSONSchema() map[string]any { return envelopeSchema() }
