package httpapi

import (
	"log"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func loggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now().UTC()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Printf("%s %s status=%d from=%s id=%s dur=%s",
				r.Method, r.URL.Path, ww.Status(), r.RemoteAddr,
				chiMiddleware.GetReqID(r.Context()), time.Since(start))
		})
	}
}
