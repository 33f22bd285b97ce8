package delivery

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/goccy/go-json"
)

// HTTPError is an error with a status the client should see.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

func BadRequest(msg string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: msg}
}

func NotFound(msg string) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Message: msg}
}

// Internal hides err behind a generic message; err's text goes to the "error" field.
func Internal(msg string, err error) *HTTPError {
	return &HTTPError{Status: http.StatusInternalServerError, Message: msg, Err: err}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorReporter is told about every 5xx.
type ErrorReporter interface {
	NotifyAsync(err error, details string) <-chan struct{}
}

type Responder struct {
	log      *logger.ZapLogger
	reporter ErrorReporter
}

func NewResponder(log *logger.ZapLogger, reporter ErrorReporter) *Responder {
	return &Responder{log: log, reporter: reporter}
}

func (rs *Responder) JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.log.Log(logger.LogEntry{Level: "warn", Message: "failed to encode response", Error: err})
	}
}

func (rs *Responder) OK(w http.ResponseWriter, message string, data any) {
	rs.JSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// Error writes err as a JSON failure. Errors without a declared status are 500s.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = Internal("Internal Server Error", err)
	}

	body := envelope{Success: false, Message: httpErr.Message}
	if httpErr.Err != nil {
		body.Error = httpErr.Err.Error()
	}

	if httpErr.Status >= http.StatusInternalServerError {
		details := r.Method + " " + r.URL.RequestURI()
		rs.log.Log(logger.LogEntry{Level: "error", Message: httpErr.Message + " (" + details + ")", Error: httpErr.Err})
		if rs.reporter != nil {
			rs.reporter.NotifyAsync(err, details)
		}
	}

	rs.JSON(w, httpErr.Status, body)
}
