package docintel

import (
	"context"

	"github.com/Vovarama1992/sarvam_gateway/internal/sarvam"
)

type SarvamJobs struct {
	client *sarvam.Client
}

func NewSarvamJobs(client *sarvam.Client) *SarvamJobs {
	return &SarvamJobs{client: client}
}

func (s *SarvamJobs) CreateJob(ctx context.Context, params sarvam.JobParameters) (Job, error) {
	job, err := s.client.CreateJob(ctx, params)
	if err != nil {
		return nil, err
	}
	return job, nil
}
