package app

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const requestIdHeader = "X-Request-Id"

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router) {
	r.Use(requestLogging)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// requestLogging tags every request with an id and logs its outcome.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestId := req.Header.Get(requestIdHeader)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		w.Header().Set(requestIdHeader, requestId)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(recorder, req)

		entry := log.WithFields(log.Fields{
			"request_id": requestId,
			"method":     req.Method,
			"path":       req.URL.Path,
			"status":     recorder.status,
			"duration":   time.Since(started),
		})
		if recorder.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Debug("request handled")
		}
	})
}
