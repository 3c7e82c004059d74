package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ragmux/internal/apperror"
	"ragmux/internal/auth"
	"ragmux/internal/debugtrace"
	"ragmux/internal/manager"
	"ragmux/internal/model"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrNoAdminConfigured) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req manager.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if u, ok := auth.CurrentUser(r.Context()); ok && req.UserID == "" {
		req.UserID = u.ID
	}
	result, err := s.manager.Handle(r.Context(), req)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SelfScore  float64 `json:"self_score"`
		UserRating float64 `json:"user_rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	s.manager.RatingFeedback(req.SelfScore, req.UserRating)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, errors.New("user_id query parameter is required"))
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionID")
	sess, ok, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionID")
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionID")
	limit := intQuery(r, "limit", 50)
	turns, err := s.store.ListTurns(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("taskUID")
	task, ok, err := s.store.GetTask(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("task not found"))
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("taskUID")
	if err := s.manager.CancelTask(r.Context(), uid); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelled"})
}

func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("taskUID")
	steps, err := s.store.GetTaskHistory(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"steps": steps})
}

func (s *Server) handleTaskFlow(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("taskUID")
	flow := s.trace.GetTaskFlow(uid)
	respondJSON(w, http.StatusOK, flow)
}

func (s *Server) handleDebugTrace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := debugtrace.Filter{
		SessionID: q.Get("session_id"),
		TaskUID:   q.Get("task_uid"),
		AgentName: q.Get("agent"),
		Type:      model.TraceType(q.Get("type")),
		Limit:     intQuery(r, "limit", 100),
	}
	respondJSON(w, http.StatusOK, map[string]any{"traces": s.trace.Query(filter)})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.vectors.ListCollections(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"collections": cols})
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var kb model.KBCollection
	if err := json.NewDecoder(r.Body).Decode(&kb); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.vectors.CreateCollection(r.Context(), kb); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, kb)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.vectors.DeleteCollection(r.Context(), name); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if s.preferences == nil {
		respondJSON(w, http.StatusOK, map[string]any{"preferences": []model.Preference{}})
		return
	}
	prefs, err := s.preferences.List(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	key := r.PathValue("key")
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if s.preferences == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("preferences store not configured"))
		return
	}
	pref, err := s.preferences.Set(r.Context(), model.Preference{UserID: userID, Key: key, Value: body.Value})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, pref)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondAppError maps an apperror.Code to an HTTP status, falling back to
// 500 for anything not recognized (including plain, non-AppError errors).
func respondAppError(w http.ResponseWriter, err error) {
	code := apperror.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperror.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperror.CodeQuotaExceeded:
		status = http.StatusTooManyRequests
	case apperror.CodeCancelled:
		status = http.StatusRequestTimeout
	case apperror.CodeUpstreamTimeout:
		status = http.StatusGatewayTimeout
	case apperror.CodeQualityFailed, apperror.CodeStepBudgetExceeded, apperror.CodeAgentFailed, apperror.CodeClassifyFailed:
		status = http.StatusUnprocessableEntity
	case apperror.CodeStoreUnavailable, apperror.CodeAgentUnavailable:
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]any{"error": err.Error(), "code": string(code)})
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
