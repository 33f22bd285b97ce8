package delivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/Vovarama1992/sarvam_gateway/internal/docintel"
)

const (
	// multipart parts beyond this stay on disk while parsing
	multipartMemory = 32 << 20
	// form fields and boundaries on top of the file itself
	multipartOverhead = 1 << 20

	msgNoFile = "No file uploaded. Please upload a PDF (.pdf) or ZIP (.zip) file."
)

type DocumentProcessor interface {
	Process(ctx context.Context, up docintel.Upload, opts docintel.Options) (*docintel.Result, error)
}

type DocumentHandler struct {
	svc DocumentProcessor
	rs  *Responder
}

func NewDocumentHandler(svc DocumentProcessor, rs *Responder) *DocumentHandler {
	return &DocumentHandler{svc: svc, rs: rs}
}

// POST /api/document-intelligence/process
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, docintel.MaxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.rs.Error(w, r, uploadError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.rs.Error(w, r, BadRequest(msgNoFile))
		return
	}
	defer file.Close()

	if header.Size > docintel.MaxUploadBytes {
		h.rs.Error(w, r, tooLarge())
		return
	}
	if !docintel.AllowedFile(header.Filename) {
		h.rs.Error(w, r, BadRequest("Only PDF (.pdf) or ZIP (.zip) files are allowed"))
		return
	}

	res, err := h.svc.Process(r.Context(), docintel.Upload{
		Name: header.Filename,
		Body: file,
	}, docintel.Options{
		Language:     r.FormValue("language"),
		OutputFormat: r.FormValue("output_format"),
	})
	if err != nil {
		h.rs.Error(w, r, Internal("Failed to process document", err))
		return
	}

	h.rs.OK(w, "Document processed successfully", res)
}

// GET /api/document-intelligence/health
func (h *DocumentHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.rs.OK(w, "Document Intelligence route is healthy", nil)
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return tooLarge()
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return BadRequest(msgNoFile)
	}
	return BadRequest("Invalid multipart upload: " + err.Error())
}

func tooLarge() error {
	return BadRequest("File too large. Maximum size is " + humanize.IBytes(uint64(docintel.MaxUploadBytes)) + ".")
}
