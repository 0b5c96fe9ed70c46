package runner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"adept/internal/domain/model"
	"adept/internal/domain/ports/adapter"
)

type mockAI struct {
	ExtractFunc func(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error)
	ReviseFunc  func(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error)
}

func (m *mockAI) ExtractProducts(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error) {
	return m.ExtractFunc(ctx, imageURL, userPrompt)
}

func (m *mockAI) ReviseProducts(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error) {
	return m.ReviseFunc(ctx, existing, userPrompt)
}

type mockStorage struct {
	PutFunc func(ctx context.Context, fileName, contentType string, data []byte) (string, error)
}

func (m *mockStorage) SignUpload(context.Context, string, string) (*adapter.SignedUpload, error) {
	return nil, errors.New("not used")
}

func (m *mockStorage) Put(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	return m.PutFunc(ctx, fileName, contentType, data)
}

func TestLocalExtract(t *testing.T) {
	envelope := json.RawMessage(`{"products":[{"name":"Pasta"}]}`)
	ai := &mockAI{ExtractFunc: func(_ context.Context, imageURL, userPrompt string) (json.RawMessage, error) {
		if imageURL != "https://cdn/flyer.png" {
			t.Errorf("imageURL = %q", imageURL)
		}
		return envelope, nil
	}}

	l := NewLocal(ai, nil, false)
	res, err := l.Execute(context.Background(), &model.Task{
		Mode:       model.TaskModeExtract,
		ImageURL:   "https://cdn/flyer.png",
		UserPrompt: "Extract all products from the image.",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(res.Output) != string(envelope) {
		t.Errorf("Output = %s", res.Output)
	}
	if !strings.Contains(res.Logs, "[extract]") {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestLocalUpdate(t *testing.T) {
	ai := &mockAI{ReviseFunc: func(_ context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error) {
		var products []model.Product
		if err := json.Unmarshal(existing, &products); err != nil {
			t.Fatalf("existing not a product array: %v", err)
		}
		if len(products) != 1 || products[0].Name != "Milk" {
			t.Errorf("existing = %s", existing)
		}
		if userPrompt != "set the price to $2" {
			t.Errorf("userPrompt = %q", userPrompt)
		}
		return json.RawMessage(`{"products":[{"name":"Milk","price":"$2"}]}`), nil
	}}

	l := NewLocal(ai, nil, false)
	res, err := l.Execute(context.Background(), &model.Task{
		Mode:         model.TaskModeUpdate,
		UserPrompt:   "set the price to $2",
		ExistingData: []model.Product{{Name: "Milk"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(string(res.Output), `"$2"`) {
		t.Errorf("Output = %s", res.Output)
	}
}

func TestLocalFinalize(t *testing.T) {
	t.Run("echo mode", func(t *testing.T) {
		l := NewLocal(nil, nil, false)
		res, err := l.Execute(context.Background(), &model.Task{
			Mode:      model.TaskModeFinalize,
			FinalData: []model.Product{{Name: "Pasta", Price: "$2.99"}},
		})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		var env struct {
			Products []model.Product `json:"products"`
		}
		if err := json.Unmarshal(res.Output, &env); err != nil {
			t.Fatalf("Output not an envelope: %v", err)
		}
		if len(env.Products) != 1 || env.Products[0].Name != "Pasta" {
			t.Errorf("products = %v", env.Products)
		}
	})

	t.Run("workbook mode", func(t *testing.T) {
		var storedName, storedType string
		var storedLen int
		st := &mockStorage{PutFunc: func(_ context.Context, fileName, contentType string, data []byte) (string, error) {
			storedName, storedType, storedLen = fileName, contentType, len(data)
			return "https://files/" + fileName, nil
		}}

		l := NewLocal(nil, st, true)
		res, err := l.Execute(context.Background(), &model.Task{
			Mode:      model.TaskModeFinalize,
			FinalData: []model.Product{{Name: "Pasta"}},
		})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		var art model.Artifact
		if err := json.Unmarshal(res.Output, &art); err != nil {
			t.Fatalf("Output not an artifact: %v", err)
		}
		if art.FileType != "xlsx" {
			t.Errorf("FileType = %q", art.FileType)
		}
		if art.FileURL != "https://files/"+storedName {
			t.Errorf("FileURL = %q", art.FileURL)
		}
		if !strings.HasSuffix(storedName, ".xlsx") || storedLen == 0 {
			t.Errorf("stored %q (%d bytes)", storedName, storedLen)
		}
		if storedType == "" {
			t.Error("content type not set")
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		st := &mockStorage{PutFunc: func(context.Context, string, string, []byte) (string, error) {
			return "", errors.New("disk full")
		}}
		l := NewLocal(nil, st, true)
		if _, err := l.Execute(context.Background(), &model.Task{Mode: model.TaskModeFinalize}); err == nil {
			t.Fatal("expected storage error")
		}
	})
}
