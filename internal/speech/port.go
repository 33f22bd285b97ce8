package speech

import "context"

// Synthesizer turns text into one or more base64 encoded WAV payloads.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]string, error)
}

// Mirror copies a stored artifact somewhere public and returns its URL.
type Mirror interface {
	Mirror(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

type ArtifactRecorder interface {
	RecordArtifact(ctx context.Context, filename string, size int64) error
}
