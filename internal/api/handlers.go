package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/model"
	"github.com/sells-group/familycheck/internal/session"
	"github.com/sells-group/familycheck/internal/store"
)

type reconcileRequest struct {
	Name          string `json:"name"`
	Authoritative string `json:"authoritative"`
	Stored        string `json:"stored"`
	Save          bool   `json:"save"`
}

type reconcileResponse struct {
	Name    string                   `json:"name,omitempty"`
	Result  *family.ComparisonResult `json:"result"`
	Verdict family.Verdict           `json:"verdict"`
	Summary string                   `json:"summary"`
	Metrics family.Metrics           `json:"metrics"`
	RunID   string                   `json:"run_id,omitempty"`
}

type sessionRequest struct {
	ID    string         `json:"id"`
	Pairs []session.Pair `json:"pairs"`
	Save  bool           `json:"save"`
}

type sessionResponse struct {
	ID       string            `json:"id"`
	Summary  session.Summary   `json:"summary"`
	Outcomes []session.Outcome `json:"outcomes"`
	RunIDs   []string          `json:"run_ids,omitempty"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Side  family.Side `json:"side,omitempty"`
	RunID string      `json:"run_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Save && s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run storage is not configured")
		return
	}

	result, err := s.matcher.ReconcileText(req.Authoritative, req.Stored)

	var verr *family.ValidationError
	if err != nil && !errors.As(err, &verr) {
		zap.L().Error("reconcile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var runID string
	if req.Save {
		run := model.NewCheckRun(req.Name, result, err)
		if saveErr := s.store.SaveRun(r.Context(), run); saveErr != nil {
			zap.L().Error("save run failed", zap.Error(saveErr))
			writeError(w, http.StatusInternalServerError, "failed to save run")
			return
		}
		runID = run.ID
	}

	if verr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Side: verr.Side, RunID: runID})
		return
	}

	verdict := family.Classify(result)
	writeJSON(w, http.StatusOK, reconcileResponse{
		Name:    req.Name,
		Result:  result,
		Verdict: verdict,
		Summary: verdict.Summary(),
		Metrics: result.Metrics(),
		RunID:   runID,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Pairs) == 0 {
		writeError(w, http.StatusBadRequest, "pairs is required")
		return
	}
	if req.Save && s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run storage is not configured")
		return
	}

	sess := session.New()
	if req.ID != "" {
		sess.ID = req.ID
	}
	for _, p := range req.Pairs {
		sess.Add(p)
	}

	outcomes, err := sess.Evaluate(r.Context(), s.matcher, s.opts.Concurrency)
	if err != nil {
		zap.L().Error("session evaluation failed", zap.String("session_id", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session evaluation failed")
		return
	}

	resp := sessionResponse{ID: sess.ID, Summary: session.Summarize(outcomes), Outcomes: outcomes}
	if req.Save {
		ids, err := saveOutcomes(r, s.store, sess.ID, outcomes)
		if err != nil {
			zap.L().Error("save session runs failed", zap.String("session_id", sess.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save runs")
			return
		}
		resp.RunIDs = ids
	}

	writeJSON(w, http.StatusOK, resp)
}

func saveOutcomes(r *http.Request, st store.Store, sessionID string, outcomes []session.Outcome) ([]string, error) {
	ids := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		run := model.RunFromOutcome(sessionID, o)
		if err := st.SaveRun(r.Context(), run); err != nil {
			return nil, eris.Wrapf(err, "api: save run for pair %q", o.Name)
		}
		ids = append(ids, run.ID)
	}
	return ids, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Verdict:   family.Verdict(q.Get("verdict")),
		SessionID: q.Get("session_id"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.CheckRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("store operation failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
