package delivery

import (
	"fmt"
	"net/http"
)

const (
	serviceName    = "SarvamAI API"
	serviceVersion = "1.0.0"
)

type serviceDescriptor struct {
	Success   bool                         `json:"success"`
	Message   string                       `json:"message"`
	Version   string                       `json:"version"`
	Endpoints map[string]map[string]string `json:"endpoints"`
}

var descriptor = serviceDescriptor{
	Success: true,
	Message: serviceName,
	Version: serviceVersion,
	Endpoints: map[string]map[string]string{
		"documentIntelligence": {
			"health":  "GET /api/document-intelligence/health",
			"process": "POST /api/document-intelligence/process",
		},
		"textToSpeech": {
			"health":   "GET /api/text-to-speech/health",
			"convert":  "POST /api/text-to-speech/convert",
			"download": "GET /api/text-to-speech/download/:filename",
		},
	},
}

type RootHandler struct {
	rs *Responder
}

func NewRootHandler(rs *Responder) *RootHandler {
	return &RootHandler{rs: rs}
}

// GET /
func (h *RootHandler) Index(w http.ResponseWriter, _ *http.Request) {
	h.rs.JSON(w, http.StatusOK, descriptor)
}

// NotFound also serves unsupported methods on known paths.
func (h *RootHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.rs.Error(w, r, NotFound(fmt.Sprintf("Route %s %s not found", r.Method, r.URL.RequestURI())))
}
