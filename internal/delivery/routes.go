package delivery

import (
	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	RateLimitPerMinute int
}

// NewRouter builds the full HTTP surface with its middleware stack.
func NewRouter(
	opts RouterOptions,
	log *logger.ZapLogger,
	rs *Responder,
	hDoc *DocumentHandler,
	hSpeech *SpeechHandler,
) chi.Router {
	r := chi.NewRouter()
	r.Use(
		AccessLog(log),
		RecoverMiddleware(rs),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", headerRequestID},
			ExposedHeaders: []string{headerRequestID},
		}),
		RateLimit(opts.RateLimitPerMinute, rs),
	)

	RegisterRoutes(r, NewRootHandler(rs), hDoc, hSpeech)
	return r
}

func RegisterRoutes(
	r chi.Router,
	hRoot *RootHandler,
	hDoc *DocumentHandler,
	hSpeech *SpeechHandler,
) {
	r.Get("/", hRoot.Index)

	// --- document intelligence ---
	r.Route("/api/document-intelligence", func(dr chi.Router) {
		dr.Post("/process", hDoc.Process)
		dr.Get("/health", hDoc.Health)
	})

	// --- text to speech ---
	r.Route("/api/text-to-speech", func(tr chi.Router) {
		tr.Post("/convert", hSpeech.Convert)
		tr.Get("/download/{filename}", hSpeech.Download)
		tr.Get("/health", hSpeech.Health)
	})

	r.NotFound(hRoot.NotFound)
	r.MethodNotAllowed(hRoot.NotFound)
}
