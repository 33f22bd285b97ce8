// Package speech converts text to speech through a remote synthesizer and keeps
// the resulting audio on local disk for download.
package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
)

const (
	DownloadRoute = "/api/text-to-speech/download/"

	ContentTypeWAV = "audio/wav"
)

// Params are the synthesis options. Values are not checked here; they reach
// the provider exactly as the client sent them.
type Params struct {
	TargetLanguageCode  any `json:"target_language_code"`
	Speaker             any `json:"speaker"`
	Pace                any `json:"pace"`
	SpeechSampleRate    any `json:"speech_sample_rate"`
	EnablePreprocessing any `json:"enable_preprocessing"`
	Model               any `json:"model"`
}

func DefaultParams() Params {
	return Params{
		TargetLanguageCode:  "en-IN",
		Speaker:             "shubh",
		Pace:                1.0,
		SpeechSampleRate:    22050,
		EnablePreprocessing: true,
		Model:               "bulbul:v3",
	}
}

type Request struct {
	Text string
	Params
}

type DownloadURL struct {
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	MirrorURL string `json:"mirrorUrl,omitempty"`
}

type Result struct {
	DownloadURLs []DownloadURL `json:"downloadUrls"`
	Request      Params        `json:"request"`
}

type Service struct {
	synth    Synthesizer
	store    *AudioStore
	mirror   Mirror
	recorder ArtifactRecorder
	log      *logger.ZapLogger

	now func() time.Time
}

func NewService(synth Synthesizer, store *AudioStore, mirror Mirror, recorder ArtifactRecorder, log *logger.ZapLogger) *Service {
	return &Service{
		synth:    synth,
		store:    store,
		mirror:   mirror,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Store() *AudioStore { return s.store }

// Convert synthesizes text once and stores every returned payload as its own
// file. baseURL is the scheme and host the download URLs are built on.
func (s *Service) Convert(ctx context.Context, text string, p Params, baseURL string) (*Result, error) {
	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: fmt.Sprintf("converting text to speech [lang: %v, speaker: %v, model: %v]", p.TargetLanguageCode, p.Speaker, p.Model),
		Service: "speech",
	})

	audios, err := s.synth.Synthesize(ctx, Request{Text: strings.TrimSpace(text), Params: p})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	stamp := s.now().UnixMilli()
	urls := make([]DownloadURL, 0, len(audios))
	for i, encoded := range audios {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode audio %d: %w", i, err)
		}

		name := fmt.Sprintf("tts_%d_%d.wav", stamp, i)
		if err := s.store.Save(name, data); err != nil {
			return nil, err
		}

		u := DownloadURL{
			Filename:  name,
			URL:       strings.TrimRight(baseURL, "/") + DownloadRoute + name,
			MirrorURL: s.mirrorArtifact(ctx, name, data),
		}
		urls = append(urls, u)

		if s.recorder != nil {
			if err := s.recorder.RecordArtifact(ctx, name, int64(len(data))); err != nil {
				s.log.Log(logger.LogEntry{Level: "warn", Message: "failed to record artifact " + name, Error: err})
			}
		}
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: fmt.Sprintf("saved %d audio file(s)", len(urls)),
		Service: "speech",
	})

	return &Result{DownloadURLs: urls, Request: p}, nil
}

func (s *Service) mirrorArtifact(ctx context.Context, name string, data []byte) string {
	if s.mirror == nil {
		return ""
	}
	u, err := s.mirror.Mirror(ctx, name, data, ContentTypeWAV)
	if err != nil {
		s.log.Log(logger.LogEntry{Level: "warn", Message: "failed to mirror " + name, Error: err})
		return ""
	}
	return u
}
