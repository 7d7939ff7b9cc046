package s3blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// imagePrefix is the key prefix for uploaded market images.
const imagePrefix = "markets/"

// ImageStore implements domain.ImageUploader on top of the blob Writer.
// Object names combine a nanosecond timestamp with a random UUID so a
// retried proposal flow can never collide with a previous partial attempt.
type ImageStore struct {
	writer        *Writer
	publicBaseURL string
	now           func() time.Time
}

// NewImageStore creates an ImageStore that uploads through the given client.
func NewImageStore(c *Client) *ImageStore {
	return &ImageStore{
		writer:        NewWriter(c),
		publicBaseURL: c.PublicBaseURL(),
		now:           time.Now,
	}
}

// Upload stores a market image and returns its public URL. ext must include
// the leading dot (".png"); unrecognized extensions are stored as
// application/octet-stream.
func (is *ImageStore) Upload(ctx context.Context, data io.Reader, ext string, proposer string) (string, error) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	key := fmt.Sprintf("%s%d-%s%s", imagePrefix, is.now().UnixNano(), uuid.NewString(), ext)

	if err := is.writer.Put(ctx, key, data, contentTypeForExt(ext)); err != nil {
		return "", fmt.Errorf("s3blob: upload image for %s: %w", proposer, err)
	}

	return is.publicBaseURL + "/" + key, nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// Compile-time interface check.
var _ domain.ImageUploader = (*ImageStore)(nil)
