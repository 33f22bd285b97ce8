package delivery

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/Vovarama1992/sarvam_gateway/internal/speech"
)

const (
	maxConvertBody = 1 << 20

	msgTextRequired = "The 'text' field is required and must be a non-empty string."
)

type SpeechConverter interface {
	Convert(ctx context.Context, text string, p speech.Params, baseURL string) (*speech.Result, error)
}

type AudioResolver interface {
	Resolve(name string) (string, error)
}

type SpeechHandler struct {
	svc           SpeechConverter
	audio         AudioResolver
	rs            *Responder
	publicBaseURL string
}

func NewSpeechHandler(svc SpeechConverter, audio AudioResolver, rs *Responder, publicBaseURL string) *SpeechHandler {
	return &SpeechHandler{
		svc:           svc,
		audio:         audio,
		rs:            rs,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// convertRequest keeps text raw so a non-string value is reported the same
// way as a missing one. The other options are forwarded without checks.
type convertRequest struct {
	Text                json.RawMessage `json:"text"`
	TargetLanguageCode  any             `json:"target_language_code"`
	Speaker             any             `json:"speaker"`
	Pace                any             `json:"pace"`
	SpeechSampleRate    any             `json:"speech_sample_rate"`
	EnablePreprocessing any             `json:"enable_preprocessing"`
	Model               any             `json:"model"`
}

// params fills in defaults for absent (or null) options.
func (c convertRequest) params() speech.Params {
	p := speech.DefaultParams()
	set := func(dst *any, v any) {
		if v != nil {
			*dst = v
		}
	}
	set(&p.TargetLanguageCode, c.TargetLanguageCode)
	set(&p.Speaker, c.Speaker)
	set(&p.Pace, c.Pace)
	set(&p.SpeechSampleRate, c.SpeechSampleRate)
	set(&p.EnablePreprocessing, c.EnablePreprocessing)
	set(&p.Model, c.Model)
	return p
}

// POST /api/text-to-speech/convert
func (h *SpeechHandler) Convert(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeConvert(w, r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var text string
	if len(req.Text) == 0 || json.Unmarshal(req.Text, &text) != nil || strings.TrimSpace(text) == "" {
		h.rs.Error(w, r, BadRequest(msgTextRequired))
		return
	}

	res, err := h.svc.Convert(r.Context(), text, req.params(), h.baseURL(r))
	if err != nil {
		h.rs.Error(w, r, Internal("Failed to convert text to speech", err))
		return
	}

	h.rs.OK(w, "Text converted to speech successfully", res)
}

// GET /api/text-to-speech/download/{filename}
func (h *SpeechHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := speech.SafeName(chi.URLParam(r, "filename"))

	path, err := h.audio.Resolve(name)
	if err != nil {
		if errors.Is(err, speech.ErrAudioNotFound) {
			h.rs.Error(w, r, NotFound("Audio file '"+name+"' not found."))
			return
		}
		h.rs.Error(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", speech.ContentTypeWAV)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// GET /api/text-to-speech/health
func (h *SpeechHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.rs.OK(w, "Text-to-Speech route is healthy", nil)
}

func (h *SpeechHandler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// decodeConvert reads a JSON or urlencoded body. An empty body is an empty
// request, not an error.
func (h *SpeechHandler) decodeConvert(w http.ResponseWriter, r *http.Request) (convertRequest, error) {
	var req convertRequest

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		return decodeConvertForm(r)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxConvertBody)
	err := json.NewDecoder(r.Body).Decode(&req)
	if err == nil || errors.Is(err, io.EOF) {
		return req, nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return req, &HTTPError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
	}
	h.rs.log.Log(logger.LogEntry{Level: "warn", Message: "invalid convert body: " + err.Error(), Service: "speech"})
	return req, BadRequest("Invalid JSON body")
}

// decodeConvertForm keeps every option as the string the client posted.
func decodeConvertForm(r *http.Request) (convertRequest, error) {
	var req convertRequest
	if err := r.ParseForm(); err != nil {
		return req, BadRequest("Invalid form body")
	}

	if r.PostForm.Has("text") {
		raw, _ := json.Marshal(r.PostForm.Get("text"))
		req.Text = raw
	}

	str := func(key string) any {
		if !r.PostForm.Has(key) {
			return nil
		}
		return r.PostForm.Get(key)
	}
	req.TargetLanguageCode = str("target_language_code")
	req.Speaker = str("speaker")
	req.Pace = str("pace")
	req.SpeechSampleRate = str("speech_sample_rate")
	req.EnablePreprocessing = str("enable_preprocessing")
	req.Model = str("model")
	return req, nil
}
