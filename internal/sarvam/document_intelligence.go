package sarvam

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const pathDocJobs = "/doc-digitization/job/v1"

// Job states reported by the document intelligence API.
const (
	JobStateAccepted           = "Accepted"
	JobStatePending            = "Pending"
	JobStateRunning            = "Running"
	JobStateCompleted          = "Completed"
	JobStatePartiallyCompleted = "PartiallyCompleted"
	JobStateFailed             = "Failed"
)

// IsTerminal reports whether a job in this state will not change any more.
func IsTerminal(state string) bool {
	switch state {
	case JobStateCompleted, JobStatePartiallyCompleted, JobStateFailed:
		return true
	}
	return false
}

type JobParameters struct {
	Language     string `json:"language"`
	OutputFormat string `json:"output_format"`
}

type PageMetrics struct {
	TotalPages     int `json:"total_pages"`
	PagesProcessed int `json:"pages_processed"`
	PagesSucceeded int `json:"pages_succeeded"`
	PagesFailed    int `json:"pages_failed"`
}

type JobStatus struct {
	JobID        string       `json:"job_id"`
	JobState     string       `json:"job_state"`
	ErrorMessage string       `json:"error_message,omitempty"`
	PageMetrics  *PageMetrics `json:"page_metrics,omitempty"`
}

type FileURL struct {
	FileURL string `json:"file_url"`
}

// DownloadLinks points at the job's output archive(s), keyed by file name.
type DownloadLinks struct {
	JobID        string             `json:"job_id"`
	JobState     string             `json:"job_state"`
	DownloadURLs map[string]FileURL `json:"download_urls"`
}

type uploadLinks struct {
	JobID      string             `json:"job_id"`
	UploadURLs map[string]FileURL `json:"upload_urls"`
}

// Job is a handle on one remote document intelligence job. It keeps the last
// status it observed so PageMetrics needs no round trip.
type Job struct {
	ID string

	client *Client
	status *JobStatus
}

func (c *Client) CreateJob(ctx context.Context, params JobParameters) (*Job, error) {
	body := struct {
		JobParameters JobParameters `json:"job_parameters"`
	}{params}

	var st JobStatus
	if err := c.doJSON(ctx, http.MethodPost, pathDocJobs, body, &st); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if st.JobID == "" {
		return nil, fmt.Errorf("create job: empty job id in response")
	}

	return &Job{ID: st.JobID, client: c, status: &st}, nil
}

func (j *Job) JobID() string { return j.ID }

// UploadFile asks the API for a presigned upload URL for the file's base name
// and PUTs the file contents there.
func (j *Job) UploadFile(ctx context.Context, path string) error {
	name := filepath.Base(path)

	body := struct {
		JobID string   `json:"job_id"`
		Files []string `json:"files"`
	}{JobID: j.ID, Files: []string{name}}

	var links uploadLinks
	if err := j.client.doJSON(ctx, http.MethodPost, pathDocJobs+"/upload-files", body, &links); err != nil {
		return fmt.Errorf("request upload url: %w", err)
	}

	target, ok := links.UploadURLs[name]
	if !ok || target.FileURL == "" {
		return fmt.Errorf("%w: %s", ErrNoUploadURL, name)
	}

	return j.client.putFile(ctx, target.FileURL, path)
}

func (c *Client) putFile(ctx context.Context, target, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set(headerContentType, contentTypeFor(path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload to %s: %w", redactQuery(target), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: "file upload rejected"}
	}
	return nil
}

func (j *Job) Start(ctx context.Context) error {
	var st JobStatus
	if err := j.client.doJSON(ctx, http.MethodPost, j.path("start"), nil, &st); err != nil {
		return fmt.Errorf("start job %s: %w", j.ID, err)
	}
	j.remember(&st)
	return nil
}

func (j *Job) Status(ctx context.Context) (*JobStatus, error) {
	var st JobStatus
	if err := j.client.doJSON(ctx, http.MethodGet, j.path("status"), nil, &st); err != nil {
		return nil, fmt.Errorf("job %s status: %w", j.ID, err)
	}
	j.remember(&st)
	return &st, nil
}

// WaitUntilComplete polls the job status until it reaches a terminal state or
// ctx is done. A Failed job is returned as a status, not an error.
func (j *Job) WaitUntilComplete(ctx context.Context) (*JobStatus, error) {
	ticker := time.NewTicker(j.client.pollInterval)
	defer ticker.Stop()

	for {
		st, err := j.Status(ctx)
		if err != nil {
			return nil, err
		}
		if IsTerminal(st.JobState) {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for job %s (last state %s): %w", j.ID, st.JobState, ctx.Err())
		case <-ticker.C:
		}
	}
}

// PageMetrics returns the metrics of the last observed status.
func (j *Job) PageMetrics() PageMetrics {
	if j.status == nil || j.status.PageMetrics == nil {
		return PageMetrics{}
	}
	return *j.status.PageMetrics
}

func (j *Job) DownloadLinks(ctx context.Context) (*DownloadLinks, error) {
	var links DownloadLinks
	if err := j.client.doJSON(ctx, http.MethodPost, j.path("download-files"), nil, &links); err != nil {
		return nil, fmt.Errorf("job %s download links: %w", j.ID, err)
	}
	return &links, nil
}

func (j *Job) path(action string) string {
	return pathDocJobs + "/" + url.PathEscape(j.ID) + "/" + action
}

func (j *Job) remember(st *JobStatus) {
	if st.JobID == "" {
		st.JobID = j.ID
	}
	j.status = st
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}

// presigned URLs carry credentials in the query string.
func redactQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<upload url>"
	}
	u.RawQuery = ""
	return u.String()
}
