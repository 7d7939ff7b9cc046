package s3blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{".png", "image/png"},
		{".gif", "image/gif"},
		{".webp", "image/webp"},
		{".svg", "image/svg+xml"},
		{".bin", "application/octet-stream"},
		{"", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, contentTypeForExt(tt.ext))
		})
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://storage.example.com", normaliseEndpoint("https://storage.example.com", false))
	assert.Equal(t, "https://storage.example.com", normaliseEndpoint("storage.example.com", true))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
}

func TestDerivePublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://minio.local/market-images",
		derivePublicBaseURL(ClientConfig{Endpoint: "minio.local", Bucket: "market-images", UseSSL: true}))
	assert.Equal(t, "https://market-images.s3.us-east-1.amazonaws.com",
		derivePublicBaseURL(ClientConfig{Bucket: "market-images", Region: "us-east-1"}))
}
