// Package storage provides a directory-backed object store with signed,
// single-use upload targets.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"adept/internal/domain"
	"adept/internal/domain/ports/adapter"
)

var _ adapter.ObjectStorage = (*Local)(nil)

type pendingUpload struct {
	fileName    string
	contentType string
	expires     time.Time
}

// Local stores objects as files under dir and serves them under
// baseURL/files/. Signed uploads are single-use tokens held in memory;
// a restart invalidates outstanding tokens, which simply fails the
// job that was using one.
type Local struct {
	dir     string
	baseURL string
	ttl     time.Duration

	mu      sync.Mutex
	pending map[string]pendingUpload

	now func() time.Time
}

func NewLocal(dir, baseURL string, ttl time.Duration) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Local{
		dir:     dir,
		baseURL: baseURL,
		ttl:     ttl,
		pending: make(map[string]pendingUpload),
		now:     time.Now,
	}, nil
}

func (l *Local) SignUpload(ctx context.Context, fileName, contentType string) (*adapter.SignedUpload, error) {
	fileName = filepath.Base(fileName)
	token := uuid.NewString()

	l.mu.Lock()
	l.pending[token] = pendingUpload{
		fileName:    fileName,
		contentType: contentType,
		expires:     l.now().Add(l.ttl),
	}
	l.mu.Unlock()

	return &adapter.SignedUpload{
		UploadURL: l.baseURL + "/storage/" + token,
		FileURL:   l.FileURL(fileName),
	}, nil
}

// Redeem accepts the body of a signed upload. The token is consumed
// whether or not the write succeeds.
func (l *Local) Redeem(ctx context.Context, token string, data []byte) (string, error) {
	l.mu.Lock()
	p, ok := l.pending[token]
	delete(l.pending, token)
	l.mu.Unlock()

	if !ok || l.now().After(p.expires) {
		return "", domain.ErrUploadExpired
	}
	return l.Put(ctx, p.fileName, p.contentType, data)
}

func (l *Local) Put(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	fileName = filepath.Base(fileName)
	if err := os.WriteFile(filepath.Join(l.dir, fileName), data, 0o644); err != nil {
		return "", fmt.Errorf("store object: %w", err)
	}
	return l.FileURL(fileName), nil
}

// Open returns the stored object's path for serving, or ErrNotFound.
func (l *Local) Open(fileName string) (string, error) {
	path := filepath.Join(l.dir, filepath.Base(fileName))
	if _, err := os.Stat(path); err != nil {
		return "", domain.ErrNotFound
	}
	return path, nil
}

func (l *Local) FileURL(fileName string) string {
	return l.baseURL + "/files/" + filepath.Base(fileName)
}
