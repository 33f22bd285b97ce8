package domain

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/Vovarama1992/sarvam_gateway/internal/ports"
)

// ArtifactMirror copies generated audio into the S3 bucket.
type ArtifactMirror struct {
	client ports.S3Client
	now    func() time.Time
}

func NewArtifactMirror(client ports.S3Client) *ArtifactMirror {
	return &ArtifactMirror{client: client, now: time.Now}
}

// ObjectKey — путь в бакете
func (m *ArtifactMirror) ObjectKey(filename string) string {
	date := m.now().Format("2006-01-02")
	return path.Join("tts", date, filepath.Base(filename))
}

func (m *ArtifactMirror) Mirror(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename required")
	}
	key := m.ObjectKey(filename)
	return m.client.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}
