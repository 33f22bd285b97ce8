package delivery_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vovarama1992/sarvam_gateway/internal/delivery"
	"github.com/Vovarama1992/sarvam_gateway/internal/docintel"
	"github.com/Vovarama1992/sarvam_gateway/internal/sarvam"
	"github.com/Vovarama1992/sarvam_gateway/internal/speech"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	opts  docintel.Options
	name  string
	body  string
	err   error
}

func (p *fakeProcessor) Process(_ context.Context, up docintel.Upload, opts docintel.Options) (*docintel.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.opts = opts
	p.name = up.Name
	b, _ := io.ReadAll(up.Body)
	p.body = string(b)
	if p.err != nil {
		return nil, p.err
	}
	return &docintel.Result{
		JobID:       "job-1",
		JobState:    sarvam.JobStateCompleted,
		PageMetrics: sarvam.PageMetrics{TotalPages: 1, PagesProcessed: 1, PagesSucceeded: 1},
		DownloadLinks: &sarvam.DownloadLinks{
			JobID:        "job-1",
			JobState:     sarvam.JobStateCompleted,
			DownloadURLs: map[string]sarvam.FileURL{"out.zip": {FileURL: "https://blob/out.zip"}},
		},
	}, nil
}

type fakeSynth struct {
	mu     sync.Mutex
	calls  int
	last   speech.Request
	audios []string
	err    error
}

func (s *fakeSynth) Synthesize(_ context.Context, req speech.Request) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = req
	return s.audios, s.err
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []string
}

func (r *fakeReporter) NotifyAsync(err error, details string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, details+": "+err.Error())
	done := make(chan struct{})
	close(done)
	return done
}

type testEnv struct {
	router   chi.Router
	proc     *fakeProcessor
	synth    *fakeSynth
	reporter *fakeReporter
	audioDir string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvWith(t, delivery.RouterOptions{})
}

func newEnvWith(t *testing.T, opts delivery.RouterOptions) *testEnv {
	t.Helper()

	log := logger.NewZapLogger(zap.NewNop().Sugar())
	env := &testEnv{
		proc:     &fakeProcessor{},
		synth:    &fakeSynth{},
		reporter: &fakeReporter{},
		audioDir: filepath.Join(t.TempDir(), "audio"),
	}

	rs := delivery.NewResponder(log, env.reporter)
	store := speech.NewAudioStore(env.audioDir)
	speechSvc := speech.NewService(env.synth, store, nil, nil, log)

	env.router = delivery.NewRouter(
		opts,
		log,
		rs,
		delivery.NewDocumentHandler(env.proc, rs),
		delivery.NewSpeechHandler(speechSvc, store, rs, ""),
	)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var out apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func multipartRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/document-intelligence/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRoot(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success   bool                         `json:"success"`
		Message   string                       `json:"message"`
		Version   string                       `json:"version"`
		Endpoints map[string]map[string]string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "SarvamAI API", body.Message)
	assert.Equal(t, "1.0.0", body.Version)
	assert.Equal(t, "POST /api/text-to-speech/convert", body.Endpoints["textToSpeech"]["convert"])
	assert.Equal(t, "POST /api/document-intelligence/process", body.Endpoints["documentIntelligence"]["process"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	for path, msg := range map[string]string{
		"/api/document-intelligence/health": "Document Intelligence route is healthy",
		"/api/text-to-speech/health":        "Text-to-Speech route is healthy",
	} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		body := decode(t, rec)
		assert.True(t, body.Success)
		assert.Equal(t, msg, body.Message)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	for _, tc := range []struct{ method, path, msg string }{
		{http.MethodGet, "/nope?x=1", "Route GET /nope?x=1 not found"},
		{http.MethodGet, "/api/text-to-speech/unknown", "Route GET /api/text-to-speech/unknown not found"},
		{http.MethodDelete, "/api/text-to-speech/health", "Route DELETE /api/text-to-speech/health not found"},
		{http.MethodGet, "/api/document-intelligence/process", "Route GET /api/document-intelligence/process not found"},
	} {
		rec := env.do(httptest.NewRequest(tc.method, tc.path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, tc.path)
		body := decode(t, rec)
		assert.False(t, body.Success)
		assert.Equal(t, tc.msg, body.Message)
	}
}

func TestProcess_Success(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	rec := env.do(multipartRequest(t, "Report.PDF", "%PDF-1.7", map[string]string{
		"language":      "hi-IN",
		"output_format": "md",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "Document processed successfully", body.Message)

	var data struct {
		JobID         string               `json:"jobId"`
		JobState      string               `json:"jobState"`
		PageMetrics   sarvam.PageMetrics   `json:"pageMetrics"`
		DownloadLinks sarvam.DownloadLinks `json:"downloadLinks"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "job-1", data.JobID)
	assert.Equal(t, "Completed", data.JobState)
	assert.Equal(t, 1, data.PageMetrics.TotalPages)
	assert.Equal(t, "https://blob/out.zip", data.DownloadLinks.DownloadURLs["out.zip"].FileURL)

	assert.Equal(t, 1, env.proc.calls)
	assert.Equal(t, "Report.PDF", env.proc.name)
	assert.Equal(t, "%PDF-1.7", env.proc.body)
	assert.Equal(t, docintel.Options{Language: "hi-IN", OutputFormat: "md"}, env.proc.opts)
}

func TestProcess_RejectsBadUploads(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	cases := map[string]*http.Request{
		"disallowed extension": multipartRequest(t, "notes.docx", "x", nil),
		"no extension":         multipartRequest(t, "pdf", "x", nil),
		"image":                multipartRequest(t, "scan.png", "x", nil),
		"missing file":         multipartRequest(t, "", "", map[string]string{"language": "en-IN"}),
		"not multipart": func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/api/document-intelligence/process", strings.NewReader(`{}`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}(),
	}

	for name, req := range cases {
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		body := decode(t, rec)
		assert.False(t, body.Success, name)
		assert.NotEmpty(t, body.Message, name)
	}

	assert.Zero(t, env.proc.calls)
	assert.Empty(t, env.reporter.errs)
}

func TestProcess_ServiceError(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.proc.err = errors.New("create job: sarvam api error (403): invalid key")

	rec := env.do(multipartRequest(t, "a.zip", "PK", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "Failed to process document", body.Message)
	assert.Equal(t, "create job: sarvam api error (403): invalid key", body.Error)
	assert.Len(t, env.reporter.errs, 1)
}

type fakeJobs struct {
	tempPath string
}

func (f *fakeJobs) CreateJob(context.Context, sarvam.JobParameters) (docintel.Job, error) {
	return &stubJob{parent: f}, nil
}

type stubJob struct{ parent *fakeJobs }

func (j *stubJob) JobID() string { return "j" }
func (j *stubJob) UploadFile(_ context.Context, path string) error {
	j.parent.tempPath = path
	return nil
}
func (j *stubJob) Start(context.Context) error { return nil }
func (j *stubJob) WaitUntilComplete(context.Context) (*sarvam.JobStatus, error) {
	return &sarvam.JobStatus{JobID: "j", JobState: sarvam.JobStateCompleted}, nil
}
func (j *stubJob) PageMetrics() sarvam.PageMetrics { return sarvam.PageMetrics{} }
func (j *stubJob) DownloadLinks(context.Context) (*sarvam.DownloadLinks, error) {
	return nil, errors.New("links unavailable")
}

func TestProcess_TempFileGoneAfterHandlerReturns(t *testing.T) {
	t.Parallel()

	log := logger.NewZapLogger(zap.NewNop().Sugar())
	rs := delivery.NewResponder(log, nil)
	jobs := &fakeJobs{}
	tempDir := t.TempDir()
	svc := docintel.NewService(jobs, nil, log, docintel.Config{TempDir: tempDir})
	h := delivery.NewDocumentHandler(svc, rs)

	rec := httptest.NewRecorder()
	h.Process(rec, multipartRequest(t, "doc.pdf", "%PDF", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotEmpty(t, jobs.tempPath)
	_, err := os.Stat(jobs.tempPath)
	assert.True(t, os.IsNotExist(err))
}

func TestConvert_Scenario(t *testing.T) {
	t.Parallel()

	wav := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	env := newEnv(t)
	env.synth.audios = []string{base64.StdEncoding.EncodeToString(wav)}

	req := httptest.NewRequest(http.MethodPost, "/api/text-to-speech/convert", strings.NewReader(`{"text":"Hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "gateway.test:3000"
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "Text converted to speech successfully", body.Message)

	var data struct {
		DownloadURLs []speech.DownloadURL `json:"downloadUrls"`
		Request      json.RawMessage      `json:"request"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Len(t, data.DownloadURLs, 1)
	defaults, err := json.Marshal(speech.DefaultParams())
	require.NoError(t, err)
	assert.JSONEq(t, string(defaults), string(data.Request))

	u := data.DownloadURLs[0]
	assert.Equal(t, "http://gateway.test:3000/api/text-to-speech/download/"+u.Filename, u.URL)

	dl := env.do(httptest.NewRequest(http.MethodGet, strings.TrimPrefix(u.URL, "http://gateway.test:3000"), nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "audio/wav", dl.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(dl.Header().Get("Content-Disposition"), "inline"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), u.Filename)
	assert.Equal(t, wav, dl.Body.Bytes())
}

func TestConvert_MultiplePayloads(t *testing.T) {
	t.Parallel()

	payloads := []string{"first", "second", "third"}
	env := newEnv(t)
	for _, p := range payloads {
		env.synth.audios = append(env.synth.audios, base64.StdEncoding.EncodeToString([]byte(p)))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/text-to-speech/convert",
		strings.NewReader(`{"text":"Namaste","target_language_code":"hi-IN","speaker":"anushka","pace":1.25,"speech_sample_rate":8000,"enable_preprocessing":false,"model":"bulbul:v2"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, speech.Params{
		TargetLanguageCode:  "hi-IN",
		Speaker:             "anushka",
		Pace:                1.25,
		SpeechSampleRate:    float64(8000),
		EnablePreprocessing: false,
		Model:               "bulbul:v2",
	}, env.synth.last.Params)

	var data struct {
		DownloadURLs []speech.DownloadURL `json:"downloadUrls"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	require.Len(t, data.DownloadURLs, len(payloads))

	entries, err := os.ReadDir(env.audioDir)
	require.NoError(t, err)
	assert.Len(t, entries, len(payloads))

	for i, u := range data.DownloadURLs {
		dl := env.do(httptest.NewRequest(http.MethodGet, "/api/text-to-speech/download/"+u.Filename, nil))
		require.Equal(t, http.StatusOK, dl.Code)
		assert.Equal(t, payloads[i], dl.Body.String())
	}
}

func TestConvert_FormBody(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/text-to-speech/convert",
		strings.NewReader("text=Hello&pace=0.8&enable_preprocessing=false"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "Hello", env.synth.last.Text)
	assert.Equal(t, "0.8", env.synth.last.Pace)
	assert.Equal(t, "false", env.synth.last.EnablePreprocessing)
	assert.Equal(t, "shubh", env.synth.last.Speaker)
}

func TestConvert_ForwardsOptionsUnchecked(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body  string
		check func(t *testing.T, p speech.Params)
	}{
		{`{"text":"Hello","pace":"1.2"}`, func(t *testing.T, p speech.Params) {
			assert.Equal(t, "1.2", p.Pace)
		}},
		{`{"text":"Hello","speech_sample_rate":"22050"}`, func(t *testing.T, p speech.Params) {
			assert.Equal(t, "22050", p.SpeechSampleRate)
		}},
		{`{"text":"Hello","enable_preprocessing":"yes"}`, func(t *testing.T, p speech.Params) {
			assert.Equal(t, "yes", p.EnablePreprocessing)
		}},
		{`{"text":"Hello","pace":0,"speech_sample_rate":0}`, func(t *testing.T, p speech.Params) {
			assert.Equal(t, float64(0), p.Pace)
			assert.Equal(t, float64(0), p.SpeechSampleRate)
		}},
		{`{"text":"Hello","speaker":7,"model":{"name":"x"}}`, func(t *testing.T, p speech.Params) {
			assert.Equal(t, float64(7), p.Speaker)
			assert.Equal(t, map[string]any{"name": "x"}, p.Model)
		}},
	}

	for _, tc := range cases {
		env := newEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/text-to-speech/convert", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)
		require.Equal(t, http.StatusOK, rec.Code, tc.body)
		require.Equal(t, 1, env.synth.calls, tc.body)
		tc.check(t, env.synth.last.Params)
	}
}

func TestConvert_RejectsMissingText(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	for _, payload := range []string{
		``,
		`{}`,
		`{"text":""}`,
		`{"text":"   \n\t "}`,
		`{"text":null}`,
		`{"text":42}`,
		`{"text":["Hello"]}`,
		`{"speaker":"shubh"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/text-to-speech/convert", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)
		require.Equal(t, http.StatusBadRequest, rec.Code, payload)
		body := decode(t, rec)
		assert.Equal(t, "The 'text' field is required and must be a non-empty string.", body.Message, payload)
	}

	assert.Zero(t, env.synth.calls)
}

func TestConvert_MalformedJSON(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/text-to-speech/convert", strings.NewReader(`{"text":`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "Invalid JSON body", body.Message)
	assert.Empty(t, body.Error)
	assert.Zero(t, env.synth.calls)
}

func TestConvert_ProviderError(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.synth.err = errors.New("sarvam api error (429): rate limited")

	req := httptest.NewRequest(http.MethodPost, "/api/text-to-speech/convert", strings.NewReader(`{"text":"Hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Failed to convert text to speech", body.Message)
	assert.Contains(t, body.Error, "rate limited")
}

func TestDownload_TraversalIsNeutralized(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	require.NoError(t, os.MkdirAll(env.audioDir, 0o755))
	secret := filepath.Join(filepath.Dir(env.audioDir), "secret.wav")
	require.NoError(t, os.WriteFile(secret, []byte("top secret"), 0o600))

	for _, path := range []string{
		"/api/text-to-speech/download/..%2Fsecret.wav",
		"/api/text-to-speech/download/..%2F..%2Fsecret.wav",
		"/api/text-to-speech/download/..%5Csecret.wav",
		"/api/text-to-speech/download/../secret.wav",
		"/api/text-to-speech/download/missing.wav",
	} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "top secret", path)
		assert.False(t, decode(t, rec).Success, path)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/text-to-speech/download/..%2Fsecret.wav", nil))
	assert.Equal(t, "Audio file 'secret.wav' not found.", decode(t, rec).Message)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	log := logger.NewZapLogger(zap.NewNop().Sugar())
	reporter := &fakeReporter{}
	rs := delivery.NewResponder(log, reporter)

	h := delivery.RecoverMiddleware(rs)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "Internal Server Error", body.Message)
	assert.Contains(t, body.Error, "kaboom")
	assert.Len(t, reporter.errs, 1)
}

func TestRecoverMiddleware_ResponseAlreadyStarted(t *testing.T) {
	t.Parallel()

	log := logger.NewZapLogger(zap.NewNop().Sugar())
	reporter := &fakeReporter{}
	rs := delivery.NewResponder(log, reporter)

	h := delivery.AccessLog(log)(delivery.RecoverMiddleware(rs)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		panic("kaboom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
	require.Len(t, reporter.errs, 1)
	assert.Contains(t, reporter.errs[0], "kaboom")
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	env := newEnvWith(t, delivery.RouterOptions{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/text-to-speech/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/text-to-speech/health", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, decode(t, rec).Success)
}
