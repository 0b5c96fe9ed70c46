package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"adept/internal/domain"
	"adept/internal/domain/model"
	"adept/internal/infra/storage"
)

type mockJobUC struct {
	ExtractFunc  func(ctx context.Context, ownerID *string, imageURL, userPrompt string) (string, error)
	UpdateFunc   func(ctx context.Context, ownerID *string, priorJobID, userPrompt string) (string, error)
	FinalizeFunc func(ctx context.Context, ownerID *string, priorJobID string) (string, error)
	GetFunc      func(ctx context.Context, ownerID *string, jobID string) (*model.Job, error)
}

func (m *mockJobUC) Extract(ctx context.Context, ownerID *string, imageURL, userPrompt string) (string, error) {
	return m.ExtractFunc(ctx, ownerID, imageURL, userPrompt)
}

func (m *mockJobUC) Update(ctx context.Context, ownerID *string, priorJobID, userPrompt string) (string, error) {
	return m.UpdateFunc(ctx, ownerID, priorJobID, userPrompt)
}

func (m *mockJobUC) Finalize(ctx context.Context, ownerID *string, priorJobID string) (string, error) {
	return m.FinalizeFunc(ctx, ownerID, priorJobID)
}

func (m *mockJobUC) Get(ctx context.Context, ownerID *string, jobID string) (*model.Job, error) {
	return m.GetFunc(ctx, ownerID, jobID)
}

const testSecret = "test-secret"

func newTestServer(t *testing.T, uc *mockJobUC) http.Handler {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir(), "http://files.test", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	log := zerolog.Nop()
	s := NewServer(uc, store, NewAuthManager(testSecret), &log)
	return s.Router(nil)
}

func mintToken(t *testing.T, subject string) string {
	t.Helper()
	claims := OwnerClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExtractEndpoint(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		uc := &mockJobUC{ExtractFunc: func(_ context.Context, ownerID *string, imageURL, prompt string) (string, error) {
			if ownerID != nil {
				t.Errorf("anonymous request carried owner %q", *ownerID)
			}
			if imageURL != "https://cdn/flyer.png" {
				t.Errorf("imageURL = %q", imageURL)
			}
			return "01JOB", nil
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/extract", "",
			extractRequest{ImageURL: "https://cdn/flyer.png"})

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		var resp jobAcceptedResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.JobID != "01JOB" {
			t.Errorf("jobId = %q", resp.JobID)
		}
	})

	t.Run("missing image url", func(t *testing.T) {
		uc := &mockJobUC{ExtractFunc: func(context.Context, *string, string, string) (string, error) {
			t.Error("usecase must not be reached")
			return "", nil
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/extract", "", extractRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("owner forwarded from token", func(t *testing.T) {
		uc := &mockJobUC{ExtractFunc: func(_ context.Context, ownerID *string, _, _ string) (string, error) {
			if ownerID == nil || *ownerID != "user-7" {
				t.Errorf("owner = %v", ownerID)
			}
			return "01JOB", nil
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/extract", mintToken(t, "user-7"),
			extractRequest{ImageURL: "https://cdn/flyer.png"})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("userPrompt field name on the wire", func(t *testing.T) {
		// Clients send userPrompt, not prompt; the decoded value must
		// reach the use case.
		uc := &mockJobUC{ExtractFunc: func(_ context.Context, _ *string, _, prompt string) (string, error) {
			if prompt != "only the dairy aisle" {
				t.Errorf("prompt = %q", prompt)
			}
			return "01JOB", nil
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/extract", "",
			json.RawMessage(`{"imageUrl":"https://cdn/flyer.png","userPrompt":"only the dairy aisle"}`))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		uc := &mockJobUC{ExtractFunc: func(context.Context, *string, string, string) (string, error) {
			t.Error("usecase must not be reached")
			return "", nil
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/extract", "not-a-jwt",
			extractRequest{ImageURL: "https://cdn/flyer.png"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestUpdateEndpoint(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		uc := &mockJobUC{UpdateFunc: func(_ context.Context, _ *string, priorJobID, prompt string) (string, error) {
			if priorJobID != "01PRIOR" || prompt != "fix the prices" {
				t.Errorf("args = %q %q", priorJobID, prompt)
			}
			return "01NEW", nil
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/01PRIOR/update", "",
			updateRequest{UserPrompt: "fix the prices"})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
	})

	t.Run("prior job missing", func(t *testing.T) {
		uc := &mockJobUC{UpdateFunc: func(context.Context, *string, string, string) (string, error) {
			return "", domain.ErrNotFound
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/gone/update", "",
			updateRequest{UserPrompt: "x"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("prior job failed", func(t *testing.T) {
		uc := &mockJobUC{UpdateFunc: func(context.Context, *string, string, string) (string, error) {
			return "", domain.ErrJobFailed
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/01PRIOR/update", "",
			updateRequest{UserPrompt: "x"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Cannot update a failed job.") {
			t.Errorf("body = %s", rec.Body)
		}
	})

	t.Run("missing prompt", func(t *testing.T) {
		rec := doJSON(t, newTestServer(t, &mockJobUC{}), http.MethodPost, "/api/v1/jobs/01PRIOR/update", "",
			updateRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestFinalizeEndpoint(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		uc := &mockJobUC{FinalizeFunc: func(_ context.Context, _ *string, priorJobID string) (string, error) {
			if priorJobID != "01PRIOR" {
				t.Errorf("priorJobID = %q", priorJobID)
			}
			return "01NEW", nil
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/01PRIOR/finalize", "", nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
	})

	t.Run("prior job failed", func(t *testing.T) {
		uc := &mockJobUC{FinalizeFunc: func(context.Context, *string, string) (string, error) {
			return "", domain.ErrJobFailed
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodPost, "/api/v1/jobs/01PRIOR/finalize", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Cannot finalize a failed job.") {
			t.Errorf("body = %s", rec.Body)
		}
	})
}

func TestGetJobEndpoint(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		uc := &mockJobUC{GetFunc: func(_ context.Context, _ *string, jobID string) (*model.Job, error) {
			return &model.Job{
				ID:     jobID,
				Status: model.JobStatusCompleted,
				Data:   json.RawMessage(`[{"name":"Pasta"}]`),
			}, nil
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodGet, "/api/v1/jobs/01JOB", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var job model.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatal(err)
		}
		if job.ID != "01JOB" || job.Status != model.JobStatusCompleted {
			t.Errorf("job = %+v", job)
		}
	})

	t.Run("not found", func(t *testing.T) {
		uc := &mockJobUC{GetFunc: func(context.Context, *string, string) (*model.Job, error) {
			return nil, domain.ErrNotFound
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodGet, "/api/v1/jobs/missing", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("internal error stays generic", func(t *testing.T) {
		uc := &mockJobUC{GetFunc: func(context.Context, *string, string) (*model.Job, error) {
			return nil, errors.New("pgbouncer exploded")
		}}
		rec := doJSON(t, newTestServer(t, uc), http.MethodGet, "/api/v1/jobs/01JOB", "", nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "pgbouncer") {
			t.Errorf("internal detail leaked: %s", rec.Body)
		}
	})
}

func TestUploadFlow(t *testing.T) {
	h := newTestServer(t, &mockJobUC{})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/uploads", "",
		uploadRequest{FileName: "flyer.png", ContentType: "image/png"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign status = %d, body %s", rec.Code, rec.Body)
	}
	var signed struct {
		UploadURL string `json:"uploadUrl"`
		FileURL   string `json:"fileUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &signed); err != nil {
		t.Fatal(err)
	}
	uploadPath := strings.TrimPrefix(signed.UploadURL, "http://files.test")

	req := httptest.NewRequest(http.MethodPut, uploadPath, bytes.NewReader([]byte("png-bytes")))
	putRec := httptest.NewRecorder()
	h.ServeHTTP(putRec, req)
	if putRec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", putRec.Code, putRec.Body)
	}

	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/files/flyer.png", nil))
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d", getRec.Code)
	}
	if getRec.Body.String() != "png-bytes" {
		t.Errorf("served body = %q", getRec.Body)
	}

	// Same token again is gone.
	retryRec := httptest.NewRecorder()
	h.ServeHTTP(retryRec, httptest.NewRequest(http.MethodPut, uploadPath, bytes.NewReader([]byte("x"))))
	if retryRec.Code != http.StatusGone {
		t.Fatalf("retry status = %d", retryRec.Code)
	}
}

func TestHealthz(t *testing.T) {
	rec := doJSON(t, newTestServer(t, &mockJobUC{}), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
