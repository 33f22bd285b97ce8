package docintel

import (
	"context"

	"github.com/Vovarama1992/sarvam_gateway/internal/sarvam"
)

// Job is one remote document intelligence job as seen by the gateway.
type Job interface {
	JobID() string
	UploadFile(ctx context.Context, path string) error
	Start(ctx context.Context) error
	WaitUntilComplete(ctx context.Context) (*sarvam.JobStatus, error)
	PageMetrics() sarvam.PageMetrics
	DownloadLinks(ctx context.Context) (*sarvam.DownloadLinks, error)
}

type JobCreator interface {
	CreateJob(ctx context.Context, params sarvam.JobParameters) (Job, error)
}

// JobRecorder keeps a history of finished jobs. Optional.
type JobRecorder interface {
	RecordJob(ctx context.Context, jobID, jobState, sourceName string) error
}
