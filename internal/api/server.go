// Package api exposes the session store over HTTP.
package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/codec"
	"github.com/banshee-data/track.monitor/internal/diagnosis"
	"github.com/banshee-data/track.monitor/internal/httputil"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/session"
	"github.com/banshee-data/track.monitor/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxImportBytes bounds an uploaded CSV file.
const maxImportBytes = 32 << 20

type Server struct {
	store     *session.Store
	alerts    *alert.Broadcaster
	diagnoser diagnosis.Diagnoser
	clock     timeutil.Clock
}

// NewServer builds a server over store. alerts and diagnoser may be nil, in
// which case /api/alerts and the diagnose route report 503.
func NewServer(store *session.Store, alerts *alert.Broadcaster, diagnoser diagnosis.Diagnoser, clock timeutil.Clock) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		store:     store,
		alerts:    alerts,
		diagnoser: diagnoser,
		clock:     clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.showStatus)
	mux.HandleFunc("POST /api/session/start", s.startSession)
	mux.HandleFunc("POST /api/session/stop", s.stopSession)
	mux.HandleFunc("POST /api/session/resync", s.resyncSession)
	mux.HandleFunc("POST /api/observations/speed", s.postSpeed)
	mux.HandleFunc("POST /api/observations/motion", s.postMotion)
	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/export.csv", s.exportSummary)
	mux.HandleFunc("POST /api/sessions/import", s.importSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.showSession)
	mux.HandleFunc("GET /api/sessions/{id}/export.csv", s.exportSession)
	mux.HandleFunc("PUT /api/sessions/{id}/analysis", s.putAnalysis)
	mux.HandleFunc("POST /api/sessions/{id}/diagnose", s.diagnoseSession)
	mux.HandleFunc("GET /api/alerts", s.streamAlerts)
	mux.HandleFunc("GET /debug/session-chart", s.sessionChart)
	return mux
}

// writeError maps store, sampler and codec errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidState):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, session.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, motion.ErrInvalidSample),
		errors.Is(err, session.ErrInvalidSpeed),
		errors.Is(err, codec.ErrEmptyImport),
		errors.Is(err, codec.ErrUnmappedAxis),
		errors.Is(err, codec.ErrUnknownMapping),
		errors.Is(err, diagnosis.ErrTooFewSamples):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// recordResponse carries a record whose history write failed; the record
// itself is kept in memory.
type recordResponse struct {
	session.Record
	PersistError string `json:"persist_error,omitempty"`
}

// writeRecord writes rec, tolerating a persistence error.
func writeRecord(w http.ResponseWriter, rec session.Record, err error) {
	resp := recordResponse{Record: rec}
	if err != nil {
		if !errors.Is(err, session.ErrPersistence) {
			writeError(w, err)
			return
		}
		resp.PersistError = err.Error()
	}
	httputil.WriteJSONOK(w, resp)
}
