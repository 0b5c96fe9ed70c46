package adapter

import "context"

// SignedUpload is a short-lived write target paired with the URL the stored
// object will be readable at once the upload completes.
type SignedUpload struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
}

// ObjectStorage hands out signed upload targets for client uploads and for
// artifacts generated inside the sandbox, and stores server-generated
// artifacts directly.
type ObjectStorage interface {
	SignUpload(ctx context.Context, fileName, contentType string) (*SignedUpload, error)
	Put(ctx context.Context, fileName, contentType string, data []byte) (fileURL string, err error)
}
