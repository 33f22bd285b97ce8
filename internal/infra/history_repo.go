package infra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Vovarama1992/sarvam_gateway/internal/ports"
)

type historyRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) ports.HistoryRepo {
	return &historyRepo{db: db}
}

func (r *historyRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS document_jobs (
			id          BIGSERIAL PRIMARY KEY,
			job_id      TEXT NOT NULL,
			job_state   TEXT NOT NULL,
			source_name TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS audio_artifacts (
			id         BIGSERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			size_bytes BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func (r *historyRepo) RecordJob(ctx context.Context, jobID, jobState, sourceName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO document_jobs (job_id, job_state, source_name, created_at)
		VALUES ($1, $2, $3, $4)
	`, jobID, jobState, sourceName, time.Now())
	return err
}

func (r *historyRepo) RecordArtifact(ctx context.Context, filename string, size int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audio_artifacts (filename, size_bytes, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (filename) DO NOTHING
	`, filename, size, time.Now())
	return err
}
