package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/partswork/engine/internal/facilitator"
	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/selfstate"
	"github.com/partswork/engine/internal/session"
	"github.com/partswork/engine/internal/somatic"
	"github.com/partswork/engine/internal/unburdening"
	"github.com/partswork/engine/internal/workflow"
)

type createSessionRequest struct {
	InitialEnergy *float64          `json:"initial_energy,omitempty"`
	Modifiers     *modifiersRequest `json:"modifiers,omitempty"`
}

type modifiersRequest struct {
	Presence    float64 `json:"presence"`
	Patience    float64 `json:"patience"`
	Perspective float64 `json:"perspective"`
	Persistence float64 `json:"persistence"`
	Playfulness float64 `json:"playfulness"`
}

type sessionResponse struct {
	ID                string            `json:"id"`
	Energy            float64           `json:"energy"`
	Vector            selfstate.Vector  `json:"vector"`
	IsSelfLed         bool              `json:"is_self_led"`
	PreservationRatio float64           `json:"preservation_ratio"`
	EngagementStep    string            `json:"engagement_step,omitempty"`
	UnburdeningStep   string            `json:"unburdening_step,omitempty"`
	PartCount         int               `json:"part_count"`
	Blends            []selfstate.Blend `json:"blends,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

func snapshot(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:                sess.ID(),
		Energy:            sess.Energy(),
		Vector:            sess.Vector(),
		IsSelfLed:         sess.IsSelfLed(),
		PreservationRatio: sess.PreservationRatio(),
		EngagementStep:    string(sess.EngagementStep()),
		UnburdeningStep:   string(sess.UnburdeningStep()),
		PartCount:         len(sess.Parts()),
		Blends:            sess.ActiveBlends(),
		CreatedAt:         sess.CreatedAt(),
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			s.badRequest(w, fmt.Errorf("decode request: %w", err))
			return
		}
	}

	var opts []session.Option
	if req.InitialEnergy != nil {
		if *req.InitialEnergy < 0 || *req.InitialEnergy > 1 {
			s.writeError(w, fmt.Errorf("initial_energy: %w", part.ErrOutOfRange))
			return
		}
		opts = append(opts, session.WithInitialEnergy(*req.InitialEnergy))
	}
	if req.Modifiers != nil {
		m := facilitator.Modifiers{
			Presence:    req.Modifiers.Presence,
			Patience:    req.Modifiers.Patience,
			Perspective: req.Modifiers.Perspective,
			Persistence: req.Modifiers.Persistence,
			Playfulness: req.Modifiers.Playfulness,
		}
		opts = append(opts, session.WithModifiers(&m))
	}

	sess, err := s.manager.Create(r.Context(), opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.manager.List()
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, snapshot(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionLog(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Log())
}

// handleSessionJournal serves the durable event journal. Without a
// store the in-memory log is the only record and the endpoint says so.
func (s *Server) handleSessionJournal(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "no durable store configured"})
		return
	}
	events, err := s.store.ListEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreatePart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.badRequest(w, fmt.Errorf("read request: %w", err))
		return
	}
	p, err := part.Decode(body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := sess.AddPart(r.Context(), p); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListParts(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Parts())
}

func (s *Server) handleGetPart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	p, err := sess.GetPart(r.PathValue("partID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemovePart(r.Context(), r.PathValue("partID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePartsMap(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.PartsMap())
}

type relationshipRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
}

func (s *Server) handleAddRelationship(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req relationshipRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := sess.AddRelationship(r.Context(), req.SourceID, req.TargetID, graph.EdgeType(req.Type)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type conflictRequest struct {
	PartAID string `json:"part_a_id"`
	PartBID string `json:"part_b_id"`
}

func (s *Server) handleAddConflict(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req conflictRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	conflict, err := sess.AddConflict(r.Context(), req.PartAID, req.PartBID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conflict)
}

func (s *Server) handleDetectConflicts(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conflicts := sess.DetectConflicts()
	if conflicts == nil {
		conflicts = []graph.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

type blendRequest struct {
	PartID    string                        `json:"part_id"`
	Fraction  float64                       `json:"fraction"`
	Overrides map[selfstate.Quality]float64 `json:"overrides,omitempty"`
}

func (s *Server) handleBlend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req blendRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := sess.Blend(r.Context(), req.PartID, req.Fraction, req.Overrides); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (s *Server) handleUnblend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Unblend(r.Context(), r.PathValue("partID")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

type findRequest struct {
	Modality    string  `json:"modality"`
	Intensity   float64 `json:"intensity"`
	Description string  `json:"description"`
	PartID      string  `json:"part_id,omitempty"`
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req findRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	result, err := sess.Find(r.Context(), workflow.Trailhead{
		Modality:    workflow.Modality(req.Modality),
		Intensity:   req.Intensity,
		Description: req.Description,
		PartID:      req.PartID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type focusShiftRequest struct {
	FromSubject string `json:"from_subject"`
	ToSubject   string `json:"to_subject"`
	TrailheadID string `json:"trailhead_id,omitempty"`
}

func (s *Server) handleRecordFocusShift(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req focusShiftRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	shift, err := sess.RecordFocusShift(r.Context(), workflow.FocusShift{
		FromSubject: req.FromSubject,
		ToSubject:   req.ToSubject,
		TrailheadID: req.TrailheadID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

func (s *Server) handleListFocusShifts(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.FocusShifts())
}

type stepRequest struct {
	PartID string `json:"part_id"`
}

func (s *Server) workflowStep(w http.ResponseWriter, r *http.Request, call func(sess *session.Session, partID string) (workflow.Result, error)) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req stepRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	result, err := call(sess, req.PartID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	s.workflowStep(w, r, func(sess *session.Session, partID string) (workflow.Result, error) {
		return sess.Focus(r.Context(), partID)
	})
}

func (s *Server) handleFleshOut(w http.ResponseWriter, r *http.Request) {
	s.workflowStep(w, r, func(sess *session.Session, partID string) (workflow.Result, error) {
		return sess.FleshOut(r.Context(), partID)
	})
}

func (s *Server) handleFeelToward(w http.ResponseWriter, r *http.Request) {
	s.workflowStep(w, r, func(sess *session.Session, partID string) (workflow.Result, error) {
		return sess.FeelToward(r.Context(), partID)
	})
}

func (s *Server) handleBefriend(w http.ResponseWriter, r *http.Request) {
	s.workflowStep(w, r, func(sess *session.Session, partID string) (workflow.Result, error) {
		return sess.Befriend(r.Context(), partID)
	})
}

func (s *Server) handleFear(w http.ResponseWriter, r *http.Request) {
	s.workflowStep(w, r, func(sess *session.Session, partID string) (workflow.Result, error) {
		return sess.Fear(r.Context(), partID)
	})
}

type unburdeningRequest struct {
	PartID    string   `json:"part_id"`
	Needed    string   `json:"needed,omitempty"`
	Element   string   `json:"element,omitempty"`
	Qualities []string `json:"qualities,omitempty"`
}

func (s *Server) unburdeningStep(w http.ResponseWriter, r *http.Request, call func(sess *session.Session, req unburdeningRequest) (unburdening.Result, error)) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req unburdeningRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	result, err := call(sess, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWitness(w http.ResponseWriter, r *http.Request) {
	s.unburdeningStep(w, r, func(sess *session.Session, req unburdeningRequest) (unburdening.Result, error) {
		return sess.Witness(r.Context(), req.PartID)
	})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	s.unburdeningStep(w, r, func(sess *session.Session, req unburdeningRequest) (unburdening.Result, error) {
		return sess.Retrieve(r.Context(), req.PartID)
	})
}

func (s *Server) handleReparent(w http.ResponseWriter, r *http.Request) {
	s.unburdeningStep(w, r, func(sess *session.Session, req unburdeningRequest) (unburdening.Result, error) {
		return sess.Reparent(r.Context(), req.PartID, req.Needed)
	})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	s.unburdeningStep(w, r, func(sess *session.Session, req unburdeningRequest) (unburdening.Result, error) {
		return sess.Purge(r.Context(), req.PartID, unburdening.Element(req.Element))
	})
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	s.unburdeningStep(w, r, func(sess *session.Session, req unburdeningRequest) (unburdening.Result, error) {
		return sess.Invite(r.Context(), req.PartID, req.Qualities)
	})
}

type dialogueRequest struct {
	Message      string `json:"message"`
	DirectAccess bool   `json:"direct_access,omitempty"`
}

type dialogueResponse struct {
	PartID   string `json:"part_id"`
	Response string `json:"response"`
}

func (s *Server) handleDialogue(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req dialogueRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	partID := r.PathValue("partID")

	var response string
	var err error
	if req.DirectAccess {
		response, err = sess.DirectAccess(r.Context(), partID, req.Message)
	} else {
		response, err = sess.SpeakAs(r.Context(), partID, req.Message)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dialogueResponse{PartID: partID, Response: response})
}

func (s *Server) handleDialogueHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	partID := r.PathValue("partID")
	if _, err := sess.GetPart(partID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.DialogueHistory(partID))
}

type markerRequest struct {
	PartID    string  `json:"part_id"`
	Region    string  `json:"region"`
	Side      string  `json:"side,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Quality   string  `json:"quality"`
	Intensity float64 `json:"intensity"`
}

func (s *Server) handleAddMarker(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req markerRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Intensity < 0 || req.Intensity > 1 {
		s.writeError(w, fmt.Errorf("intensity: %w", part.ErrOutOfRange))
		return
	}
	marker, err := sess.AddMarker(r.Context(), somatic.Marker{
		PartID: req.PartID,
		Location: somatic.Location{
			Region: somatic.Region(req.Region),
			Side:   somatic.Side(req.Side),
			Detail: req.Detail,
		},
		Quality:   req.Quality,
		Intensity: req.Intensity,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, marker)
}

func (s *Server) handleListMarkers(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.BodyMarkers())
}
