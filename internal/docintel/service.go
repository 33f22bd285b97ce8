// Package docintel runs uploaded documents through the remote document
// intelligence job API: create, upload, start, wait, collect results.
package docintel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/google/uuid"

	"github.com/Vovarama1992/sarvam_gateway/internal/sarvam"
)

// MaxUploadBytes is the provider's per-file limit.
const MaxUploadBytes int64 = 200 << 20

const (
	DefaultLanguage     = "en-IN"
	DefaultOutputFormat = "html"
)

var ErrJobFailed = errors.New("document job failed")

var allowedExtensions = map[string]bool{
	".pdf": true,
	".zip": true,
}

// AllowedFile reports whether the provider accepts files with this name.
func AllowedFile(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

type Upload struct {
	Name string
	Body io.Reader
}

type Options struct {
	Language     string
	OutputFormat string
}

type Result struct {
	JobID         string                `json:"jobId"`
	JobState      string                `json:"jobState"`
	PageMetrics   sarvam.PageMetrics    `json:"pageMetrics"`
	DownloadLinks *sarvam.DownloadLinks `json:"downloadLinks"`
}

type Service struct {
	jobs     JobCreator
	recorder JobRecorder
	log      *logger.ZapLogger

	tempDir string
	timeout time.Duration
}

type Config struct {
	TempDir string
	// Timeout bounds the whole remote sequence. Zero means no bound.
	Timeout time.Duration
}

func NewService(jobs JobCreator, recorder JobRecorder, log *logger.ZapLogger, cfg Config) *Service {
	dir := cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &Service{
		jobs:     jobs,
		recorder: recorder,
		log:      log,
		tempDir:  dir,
		timeout:  cfg.Timeout,
	}
}

// Process runs the full job sequence for one upload. The first failing step
// aborts the sequence. Cancellation of ctx is ignored; only the configured
// timeout stops the remote dialogue.
func (s *Service) Process(ctx context.Context, up Upload, opts Options) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = DefaultOutputFormat
	}

	s.info("creating document intelligence job")
	job, err := s.jobs.CreateJob(ctx, sarvam.JobParameters{
		Language:     opts.Language,
		OutputFormat: opts.OutputFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	jobID := job.JobID()
	s.info("job created: " + jobID)

	if err := s.upload(ctx, job, up); err != nil {
		return nil, err
	}
	s.info("file uploaded: " + jobID)

	if err := job.Start(ctx); err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	s.info("job started, waiting for completion: " + jobID)

	status, err := job.WaitUntilComplete(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for job: %w", err)
	}
	s.info(fmt.Sprintf("job %s finished with state %s", jobID, status.JobState))

	if status.JobState == sarvam.JobStateFailed {
		msg := status.ErrorMessage
		if msg == "" {
			msg = "no error message from provider"
		}
		return nil, fmt.Errorf("%w: job %s: %s", ErrJobFailed, jobID, msg)
	}

	metrics := job.PageMetrics()

	links, err := job.DownloadLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("download links: %w", err)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordJob(ctx, jobID, status.JobState, up.Name); err != nil {
			s.log.Log(logger.LogEntry{Level: "warn", Message: "failed to record job " + jobID, Error: err})
		}
	}

	return &Result{
		JobID:         jobID,
		JobState:      status.JobState,
		PageMetrics:   metrics,
		DownloadLinks: links,
	}, nil
}

// upload spools the file to a temp path for the provider client and removes
// it again before returning, whatever the outcome.
func (s *Service) upload(ctx context.Context, job Job, up Upload) error {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return fmt.Errorf("prepare temp dir: %w", err)
	}

	path := filepath.Join(s.tempDir, fmt.Sprintf("temp_%s_%s", uuid.NewString(), filepath.Base(up.Name)))
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Log(logger.LogEntry{Level: "warn", Message: "failed to remove temp file " + path, Error: err})
		}
	}()

	if err := writeTemp(path, up.Body); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}

	if err := job.UploadFile(ctx, path); err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	return nil
}

func writeTemp(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Service) info(msg string) {
	s.log.Log(logger.LogEntry{Level: "info", Message: msg, Service: "docintel"})
}
