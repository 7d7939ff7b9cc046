package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ImageUploader stores a market image and returns its public URL. The
// generated object name must be collision-resistant so a retried proposal
// flow never conflicts with a previous partial attempt.
type ImageUploader interface {
	Upload(ctx context.Context, data io.Reader, ext string, proposer string) (publicURL string, err error)
}
