package speech

import (
	"context"

	"github.com/Vovarama1992/sarvam_gateway/internal/sarvam"
)

type SarvamSynthesizer struct {
	client *sarvam.Client
}

func NewSarvamSynthesizer(client *sarvam.Client) *SarvamSynthesizer {
	return &SarvamSynthesizer{client: client}
}

func (s *SarvamSynthesizer) Synthesize(ctx context.Context, req Request) ([]string, error) {
	resp, err := s.client.TextToSpeech(ctx, sarvam.TTSRequest{
		Text:                req.Text,
		TargetLanguageCode:  req.TargetLanguageCode,
		Speaker:             req.Speaker,
		Pace:                req.Pace,
		SpeechSampleRate:    req.SpeechSampleRate,
		EnablePreprocessing: req.EnablePreprocessing,
		Model:               req.Model,
	})
	if err != nil {
		return nil, err
	}
	return resp.Audios, nil
}
