package extract

import (
	"encoding/json"
	"testing"

	"adept/internal/domain/model"
	"adept/internal/domain/ports/adapter"
)

func decodeInput(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var in map[string]any
	if err := json.Unmarshal(raw, &in); err != nil {
		t.Fatalf("input not JSON: %v", err)
	}
	return in
}

func TestBuildInput(t *testing.T) {
	t.Run("extract", func(t *testing.T) {
		raw, err := BuildInput(&model.Task{
			Mode:       model.TaskModeExtract,
			ImageURL:   "https://cdn/flyer.png",
			UserPrompt: "just the dairy section",
		}, nil)
		if err != nil {
			t.Fatalf("BuildInput: %v", err)
		}
		in := decodeInput(t, raw)
		if in["operation_mode"] != "extract" {
			t.Errorf("operation_mode = %v", in["operation_mode"])
		}
		if in["image_url"] != "https://cdn/flyer.png" || in["user_prompt"] != "just the dairy section" {
			t.Errorf("input = %v", in)
		}
		if in["system_prompt"] == "" {
			t.Error("system prompt missing")
		}
	})

	t.Run("update embeds existing data as JSON text", func(t *testing.T) {
		raw, err := BuildInput(&model.Task{
			Mode:         model.TaskModeUpdate,
			UserPrompt:   "remove the milk",
			ExistingData: []model.Product{{Name: "Milk"}},
		}, nil)
		if err != nil {
			t.Fatalf("BuildInput: %v", err)
		}
		in := decodeInput(t, raw)
		existing, ok := in["existing_data_json"].(string)
		if !ok {
			t.Fatalf("existing_data_json = %T", in["existing_data_json"])
		}
		var products []model.Product
		if err := json.Unmarshal([]byte(existing), &products); err != nil {
			t.Fatalf("embedded data not JSON: %v", err)
		}
		if len(products) != 1 || products[0].Name != "Milk" {
			t.Errorf("products = %v", products)
		}
	})

	t.Run("finalize without upload echoes", func(t *testing.T) {
		raw, err := BuildInput(&model.Task{
			Mode:      model.TaskModeFinalize,
			FinalData: []model.Product{{Name: "Pasta"}},
		}, nil)
		if err != nil {
			t.Fatalf("BuildInput: %v", err)
		}
		in := decodeInput(t, raw)
		if _, present := in["upload_url"]; present {
			t.Error("upload_url must be absent without a signed target")
		}
		if in["final_data_json"] == nil {
			t.Error("final_data_json missing")
		}
	})

	t.Run("finalize with upload target", func(t *testing.T) {
		raw, err := BuildInput(&model.Task{
			Mode:      model.TaskModeFinalize,
			FinalData: []model.Product{},
		}, &adapter.SignedUpload{
			UploadURL: "https://files/upload/tok",
			FileURL:   "https://files/r.xlsx",
		})
		if err != nil {
			t.Fatalf("BuildInput: %v", err)
		}
		in := decodeInput(t, raw)
		if in["upload_url"] != "https://files/upload/tok" || in["file_url"] != "https://files/r.xlsx" {
			t.Errorf("input = %v", in)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		if _, err := BuildInput(&model.Task{Mode: "transmogrify"}, nil); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestLastLine(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"{\"products\":[]}", `{"products":[]}`, true},
		{"[diag] step 1\n[diag] step 2\n{\"products\":[]}\n", `{"products":[]}`, true},
		{"{\"products\":[]}\n\n   \n", `{"products":[]}`, true},
		{"", "", false},
		{"\n \n", "", false},
	}
	for _, tc := range cases {
		got, ok := LastLine(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("LastLine(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
