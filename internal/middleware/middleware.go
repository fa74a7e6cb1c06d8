package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cartridge/multipolicy/internal/metrics"
)

// CorrelationHeader carries the per-request correlation id.
const CorrelationHeader = "X-Correlation-ID"

// CorrelationID assigns a correlation id to requests that lack one and echoes
// it on the response. It must run before RequestLogger.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(CorrelationHeader, id)
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per completed request and reports it to
// collector when collector is non-nil.
func RequestLogger(logger zerolog.Logger, collector *metrics.Collector) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&logFormatter{logger: logger, metrics: collector})
}

type logFormatter struct {
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// NewLogEntry implements chi's LogFormatter.
func (f *logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{
		logger: f.logger.With().
			Str("correlation_id", r.Header.Get(CorrelationHeader)).
			Str("method", r.Method).
			Str("url", r.URL.Path).
			Logger(),
		metrics: f.metrics,
		method:  r.Method,
		path:    r.URL.Path,
	}
}

type logEntry struct {
	logger  zerolog.Logger
	metrics *metrics.Collector
	method  string
	path    string
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Write implements chi's LogEntry.
func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.logger.WithLevel(levelFor(status)).
		Int("status", status).
		Int("bytes", bytes).
		Dur("elapsed", elapsed).
		Msg("Request completed")

	if e.metrics != nil {
		e.metrics.APIRequest(e.method, e.path, status, elapsed)
	}
}

// Panic implements chi's LogEntry.
func (e *logEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error().
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("Request panic")
}
