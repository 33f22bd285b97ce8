package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var openAIVoices = map[openai.SpeechVoice]bool{
	openai.VoiceAlloy:   true,
	openai.VoiceEcho:    true,
	openai.VoiceFable:   true,
	openai.VoiceOnyx:    true,
	openai.VoiceNova:    true,
	openai.VoiceShimmer: true,
}

// OpenAISynthesizer is the alternative backend for TTS_PROVIDER=openai. It
// returns a single payload per request.
type OpenAISynthesizer struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

func NewOpenAISynthesizer(apiKey, voice string) *OpenAISynthesizer {
	v := openai.SpeechVoice(voice)
	if !openAIVoices[v] {
		v = openai.VoiceAlloy
	}
	return &OpenAISynthesizer{
		client: openai.NewClient(apiKey),
		voice:  v,
	}
}

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) ([]string, error) {
	voice := o.voice
	if v := openai.SpeechVoice(stringParam(req.Speaker)); openAIVoices[v] {
		voice = v
	}

	model := openai.TTSModel1
	if m := stringParam(req.Model); strings.HasPrefix(m, "tts-") || strings.HasPrefix(m, "gpt-") {
		model = openai.SpeechModel(m)
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          floatParam(req.Pace),
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read openai audio: %w", err)
	}

	return []string{base64.StdEncoding.EncodeToString(data)}, nil
}

func stringParam(v any) string {
	s, _ := v.(string)
	return s
}

// floatParam reads a pace value sent as a JSON number or a string. Anything
// else yields 0, which leaves the speed to the API default.
func floatParam(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
