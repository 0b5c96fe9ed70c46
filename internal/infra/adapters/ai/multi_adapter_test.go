package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type mockProvider struct {
	ExtractFunc func(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error)
	ReviseFunc  func(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error)
}

func (m *mockProvider) ExtractProducts(ctx context.Context, imageURL, userPrompt string) (json.RawMessage, error) {
	return m.ExtractFunc(ctx, imageURL, userPrompt)
}

func (m *mockProvider) ReviseProducts(ctx context.Context, existing json.RawMessage, userPrompt string) (json.RawMessage, error) {
	return m.ReviseFunc(ctx, existing, userPrompt)
}

func TestMultiAIAdapter(t *testing.T) {
	envelope := json.RawMessage(`{"products":[{"name":"Milk"}]}`)

	t.Run("first provider wins", func(t *testing.T) {
		secondCalled := false
		first := &mockProvider{ExtractFunc: func(context.Context, string, string) (json.RawMessage, error) {
			return envelope, nil
		}}
		second := &mockProvider{ExtractFunc: func(context.Context, string, string) (json.RawMessage, error) {
			secondCalled = true
			return nil, nil
		}}
		m, err := NewMultiAIAdapter(first, second)
		if err != nil {
			t.Fatal(err)
		}
		out, err := m.ExtractProducts(context.Background(), "https://x/a.png", "")
		if err != nil {
			t.Fatalf("ExtractProducts: %v", err)
		}
		if string(out) != string(envelope) {
			t.Errorf("out = %s", out)
		}
		if secondCalled {
			t.Error("fallback provider called although primary succeeded")
		}
	})

	t.Run("falls through on failure", func(t *testing.T) {
		first := &mockProvider{ReviseFunc: func(context.Context, json.RawMessage, string) (json.RawMessage, error) {
			return nil, errors.New("quota exceeded")
		}}
		second := &mockProvider{ReviseFunc: func(_ context.Context, existing json.RawMessage, _ string) (json.RawMessage, error) {
			return envelope, nil
		}}
		m, err := NewMultiAIAdapter(first, second)
		if err != nil {
			t.Fatal(err)
		}
		out, err := m.ReviseProducts(context.Background(), json.RawMessage(`[]`), "fix prices")
		if err != nil {
			t.Fatalf("ReviseProducts: %v", err)
		}
		if string(out) != string(envelope) {
			t.Errorf("out = %s", out)
		}
	})

	t.Run("all providers fail", func(t *testing.T) {
		wantErr := errors.New("down")
		p := &mockProvider{ExtractFunc: func(context.Context, string, string) (json.RawMessage, error) {
			return nil, wantErr
		}}
		m, err := NewMultiAIAdapter(p, p)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.ExtractProducts(context.Background(), "https://x/a.png", ""); !errors.Is(err, wantErr) {
			t.Fatalf("err = %v, want %v", err, wantErr)
		}
	})

	t.Run("no providers", func(t *testing.T) {
		if _, err := NewMultiAIAdapter(nil, nil); err == nil {
			t.Fatal("expected constructor error")
		}
	})
}
