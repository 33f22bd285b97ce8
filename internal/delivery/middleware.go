package delivery

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// RecoverMiddleware turns a panic into a JSON 500. If the handler already
// started the response, the panic is only logged and reported.
func RecoverMiddleware(rs *Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww, ok := w.(middleware.WrapResponseWriter)
			if !ok {
				ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				rs.log.Log(logger.LogEntry{Level: "error", Message: "panic: " + string(debug.Stack())})

				err := fmt.Errorf("panic: %v", rec)
				if ww.Status() != 0 {
					if rs.reporter != nil {
						rs.reporter.NotifyAsync(err, r.Method+" "+r.URL.RequestURI()+" (response already started)")
					}
					return
				}
				rs.Error(ww, r, err)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// AccessLog tags each request with an ID and logs the outcome.
func AccessLog(log *logger.ZapLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(headerRequestID)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(headerRequestID, reqID)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Log(logger.LogEntry{
				Level: "info",
				Message: fmt.Sprintf("[%s] %s %s -> %d (%s, %s)",
					reqID, r.Method, r.URL.RequestURI(), status,
					humanize.Bytes(uint64(ww.BytesWritten())), time.Since(start).Round(time.Millisecond)),
			})
		})
	}
}

// RateLimit limits requests per client IP per minute. perMinute <= 0 disables it.
func RateLimit(perMinute int, rs *Responder) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			rs.JSON(w, http.StatusTooManyRequests, envelope{Success: false, Message: "Too many requests, please slow down."})
		}),
	)
}
