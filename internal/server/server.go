// Package server exposes the session engine over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/partswork/engine/internal/dialogue"
	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/session"
	"github.com/partswork/engine/internal/storage"
	"github.com/partswork/engine/internal/unburdening"
)

// Server routes HTTP requests to the session manager.
type Server struct {
	manager     *session.Manager
	store       storage.SessionStore
	logger      *log.Logger
	corsOrigins []string
}

// New creates a server over the given manager. The store, when non-nil,
// backs the journal endpoint; origins enable CORS for browsers.
func New(manager *session.Manager, store storage.SessionStore, logger *log.Logger, corsOrigins []string) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		manager:     manager,
		store:       store,
		logger:      logger,
		corsOrigins: corsOrigins,
	}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/log", s.handleSessionLog)
	mux.HandleFunc("GET /api/sessions/{id}/journal", s.handleSessionJournal)

	mux.HandleFunc("POST /api/sessions/{id}/parts", s.handleCreatePart)
	mux.HandleFunc("GET /api/sessions/{id}/parts", s.handleListParts)
	mux.HandleFunc("GET /api/sessions/{id}/parts/{partID}", s.handleGetPart)
	mux.HandleFunc("DELETE /api/sessions/{id}/parts/{partID}", s.handleDeletePart)
	mux.HandleFunc("GET /api/sessions/{id}/map", s.handlePartsMap)

	mux.HandleFunc("POST /api/sessions/{id}/relationships", s.handleAddRelationship)
	mux.HandleFunc("POST /api/sessions/{id}/conflicts", s.handleAddConflict)
	mux.HandleFunc("GET /api/sessions/{id}/conflicts/detected", s.handleDetectConflicts)

	mux.HandleFunc("POST /api/sessions/{id}/blends", s.handleBlend)
	mux.HandleFunc("DELETE /api/sessions/{id}/blends/{partID}", s.handleUnblend)

	mux.HandleFunc("POST /api/sessions/{id}/focus-shifts", s.handleRecordFocusShift)
	mux.HandleFunc("GET /api/sessions/{id}/focus-shifts", s.handleListFocusShifts)

	mux.HandleFunc("POST /api/sessions/{id}/workflow/find", s.handleFind)
	mux.HandleFunc("POST /api/sessions/{id}/workflow/focus", s.handleFocus)
	mux.HandleFunc("POST /api/sessions/{id}/workflow/flesh-out", s.handleFleshOut)
	mux.HandleFunc("POST /api/sessions/{id}/workflow/feel-toward", s.handleFeelToward)
	mux.HandleFunc("POST /api/sessions/{id}/workflow/befriend", s.handleBefriend)
	mux.HandleFunc("POST /api/sessions/{id}/workflow/fear", s.handleFear)

	mux.HandleFunc("POST /api/sessions/{id}/unburdening/witness", s.handleWitness)
	mux.HandleFunc("POST /api/sessions/{id}/unburdening/retrieve", s.handleRetrieve)
	mux.HandleFunc("POST /api/sessions/{id}/unburdening/reparent", s.handleReparent)
	mux.HandleFunc("POST /api/sessions/{id}/unburdening/purge", s.handlePurge)
	mux.HandleFunc("POST /api/sessions/{id}/unburdening/invite", s.handleInvite)

	mux.HandleFunc("POST /api/sessions/{id}/parts/{partID}/dialogue", s.handleDialogue)
	mux.HandleFunc("GET /api/sessions/{id}/parts/{partID}/dialogue", s.handleDialogueHistory)

	mux.HandleFunc("POST /api/sessions/{id}/markers", s.handleAddMarker)
	mux.HandleFunc("GET /api/sessions/{id}/markers", s.handleListMarkers)

	return s.withCORS(s.withLogging(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withLogging logs method, path, status, and duration per request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Printf("%s %s %d %s", r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
}

// withCORS answers preflight requests and stamps allowed origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses: missing records are
// 404, rejected values and sequencing violations are 422, provider
// outages are 503, and anything else is 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, graph.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, part.ErrUnknownKind),
		errors.Is(err, part.ErrOutOfRange),
		errors.Is(err, session.ErrInvalidFraction),
		errors.Is(err, unburdening.ErrOutOfSequence),
		errors.Is(err, unburdening.ErrTargetMismatch),
		errors.Is(err, unburdening.ErrNotExile),
		errors.Is(err, unburdening.ErrNoBurden),
		errors.Is(err, unburdening.ErrInvalidElement),
		errors.Is(err, dialogue.ErrLowEnergy):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, dialogue.ErrProviderFailure):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Printf("internal error: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}
