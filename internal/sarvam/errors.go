package sarvam

import (
	"errors"
	"fmt"
)

var (
	ErrNoUploadURL   = errors.New("no upload url returned for file")
	ErrMissingAPIKey = errors.New("sarvam api key is not set")
)

// APIError is a non-2xx reply from the Sarvam API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sarvam api error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("sarvam api error (%d): %s", e.StatusCode, e.Message)
}
