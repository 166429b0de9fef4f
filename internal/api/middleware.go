package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/mockbank/internal/domain"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockbank_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mockbank_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	unmatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockbank_http_unmatched_total",
		Help: "Requests that matched no route",
	}, []string{"method"})
)

func newRequestID() string {
	return uuid.NewString()
}

// requestIDMiddleware keeps a client supplied X-Request-ID or mints one.
func (h *Handler) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// recoverMiddleware turns a handler panic into an INTERNAL_ERROR envelope.
func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.respondError(w, r, domain.Wrap(fmt.Errorf("panic: %v", rec), domain.CodeInternal, "handler panicked"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// instrumentMiddleware records request metrics and an access log line.
func (h *Handler) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(srw, r)

		elapsed := time.Since(start)
		endpoint := getEndpoint(r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, http.StatusText(srw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())

		h.log.Debug("request",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("endpoint", endpoint),
			zap.Int("status", srw.statusCode),
			zap.Duration("elapsed", elapsed),
		)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// getEndpoint returns the route template so metrics stay low cardinality.
func getEndpoint(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tpl
}
