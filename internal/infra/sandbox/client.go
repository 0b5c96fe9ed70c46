package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"adept/internal/domain"
	"adept/internal/infra/metrics"
)

// Client provisions short-lived execution sandboxes over the provider's
// HTTP API. Each Acquire returns an Instance that must be Released; the
// instance tracks its own lifecycle so a double Release is a no-op.
type Client struct {
	baseURL          string
	apiKey           string
	template         string
	provisionTimeout time.Duration
	http             *http.Client
}

func NewClient(baseURL, apiKey, template string, provisionTimeout time.Duration) *Client {
	if provisionTimeout <= 0 {
		provisionTimeout = 120 * time.Second
	}
	return &Client{
		baseURL:          baseURL,
		apiKey:           apiKey,
		template:         template,
		provisionTimeout: provisionTimeout,
		http:             &http.Client{Timeout: 5 * time.Minute},
	}
}

type instanceState int

const (
	stateReady instanceState = iota
	stateReleased
)

// Instance is one provisioned sandbox.
type Instance struct {
	id     string
	client *Client

	mu    sync.Mutex
	state instanceState
}

func (i *Instance) ID() string { return i.id }

// Acquire provisions a fresh sandbox, bounded by the configured
// provisioning timeout.
func (c *Client) Acquire(ctx context.Context) (*Instance, error) {
	if c.apiKey == "" {
		return nil, domain.ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.provisionTimeout)
	defer cancel()

	start := time.Now()
	var resp struct {
		SandboxID string `json:"sandboxID"`
	}
	err := c.do(ctx, http.MethodPost, "/sandboxes", map[string]string{"templateID": c.template}, &resp)
	metrics.ObserveSandboxAcquire(time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvisioning, err)
	}
	if resp.SandboxID == "" {
		return nil, fmt.Errorf("%w: provider returned no sandbox ID", domain.ErrProvisioning)
	}
	return &Instance{id: resp.SandboxID, client: c}, nil
}

// WriteFile places data at path inside the sandbox filesystem.
func (i *Instance) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := i.live(); err != nil {
		return err
	}
	body := map[string]string{"path": path, "content": string(data)}
	return i.client.do(ctx, http.MethodPost, "/sandboxes/"+i.id+"/files", body, nil)
}

// RunResult carries the streams of one code execution. Error is the
// runtime error raised by the code itself, empty on clean exit.
type RunResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Error  string `json:"error"`
}

// RunCode executes code inside the sandbox with the given environment
// and returns its captured streams.
func (i *Instance) RunCode(ctx context.Context, code string, env map[string]string) (*RunResult, error) {
	if err := i.live(); err != nil {
		return nil, err
	}
	body := map[string]interface{}{"code": code, "envVars": env}
	var out RunResult
	if err := i.client.do(ctx, http.MethodPost, "/sandboxes/"+i.id+"/code", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Release tears the sandbox down. Safe to call more than once; only the
// first call reaches the provider.
func (i *Instance) Release(ctx context.Context) error {
	i.mu.Lock()
	if i.state == stateReleased {
		i.mu.Unlock()
		metrics.IncSandboxRelease("noop")
		return nil
	}
	i.state = stateReleased
	i.mu.Unlock()

	err := i.client.do(ctx, http.MethodDelete, "/sandboxes/"+i.id, nil, nil)
	if err != nil {
		metrics.IncSandboxRelease("error")
		return err
	}
	metrics.IncSandboxRelease("released")
	return nil
}

func (i *Instance) live() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == stateReleased {
		return domain.ErrSandboxReleased
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("sandbox http %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("sandbox http %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
