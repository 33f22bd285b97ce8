package ports

import "context"

// Журнал запросов в Postgres
type HistoryRepo interface {
	EnsureSchema(ctx context.Context) error
	RecordJob(ctx context.Context, jobID, jobState, sourceName string) error
	RecordArtifact(ctx context.Context, filename string, size int64) error
}
