// Package sarvam is a small HTTP client for the Sarvam AI REST API: synchronous
// text-to-speech and the asynchronous document intelligence job API.
package sarvam

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	DefaultBaseURL = "https://api.sarvam.ai"

	headerAPIKey      = "api-subscription-key"
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	pathTextToSpeech = "/text-to-speech"
)

type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPollInterval sets how often WaitUntilComplete asks for job status.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTSRequest is the body of POST /text-to-speech. Option values are sent
// verbatim, zero values included; the API does its own validation.
type TTSRequest struct {
	Text                string `json:"text"`
	TargetLanguageCode  any    `json:"target_language_code"`
	Speaker             any    `json:"speaker"`
	Pace                any    `json:"pace"`
	SpeechSampleRate    any    `json:"speech_sample_rate"`
	EnablePreprocessing any    `json:"enable_preprocessing"`
	Model               any    `json:"model"`
}

// TTSResponse carries one base64 encoded WAV payload per synthesized chunk.
type TTSResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

func (c *Client) TextToSpeech(ctx context.Context, req TTSRequest) (*TTSResponse, error) {
	var out TTSResponse
	if err := c.doJSON(ctx, http.MethodPost, pathTextToSpeech, req, &out); err != nil {
		return nil, fmt.Errorf("text-to-speech: %w", err)
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set("Accept", contentTypeJSON)
	if in != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
	Detail string `json:"detail"`
}

func parseAPIError(status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		if apiErr.Message == "" {
			apiErr.Message = env.Detail
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
