package services

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const maxBulkDelete = 100

type SessionEndpoints struct {
	sessions *SessionService
}

type AnswerRequest struct {
	Content string `json:"content"`
}

type BulkDeleteRequest struct {
	SessionIDs []string `json:"session_ids"`
}

func NewSessionEndpoints(sessions *SessionService) *SessionEndpoints {
	return &SessionEndpoints{
		sessions: sessions,
	}
}

// RegisterRoutes mounts /sessions. extra registers further per-session routes inside the same subrouter.
func (e *SessionEndpoints) RegisterRoutes(r chi.Router, extra ...func(chi.Router)) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", e.StartSessionHandler)
		r.Get("/", e.GetSessionsHandler)
		r.Delete("/bulk", e.BulkDeleteSessionsHandler)
		r.Get("/{id}", e.GetSessionHandler)
		r.Delete("/{id}", e.DeleteSessionHandler)
		r.Post("/{id}/pause", e.PauseSessionHandler)
		r.Post("/{id}/resume", e.ResumeSessionHandler)
		r.Post("/{id}/complete", e.CompleteSessionHandler)
		r.Post("/{id}/answer", e.AnswerHandler)
		r.Get("/{id}/messages", e.GetMessagesHandler)
		r.Get("/{id}/result", e.GetResultHandler)

		for _, register := range extra {
			register(r)
		}
	})
}

func (e *SessionEndpoints) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req StartSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := e.sessions.Start(r.Context(), user, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": session,
		"message": "Session created successfully",
	})
}

func (e *SessionEndpoints) GetSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, validationError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	sessions, err := e.sessions.List(r.Context(), user, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (e *SessionEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := e.sessions.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
	})
}

func (e *SessionEndpoints) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := e.sessions.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Session deleted successfully",
	})
}

func (e *SessionEndpoints) BulkDeleteSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req BulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.SessionIDs) == 0 {
		writeError(w, r, validationError("at least one session id is required"))
		return
	}
	if len(req.SessionIDs) > maxBulkDelete {
		writeError(w, r, validationError("at most %d sessions can be deleted at once", maxBulkDelete))
		return
	}

	deleted, err := e.sessions.DeleteMany(r.Context(), user, req.SessionIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Sessions deleted successfully",
		"deleted_count": deleted,
	})

	slog.Info("Bulk interview sessions deleted", "deleted_count", deleted, "user_id", user.ID)
}

func (e *SessionEndpoints) PauseSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := e.sessions.Pause(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"message": "Session paused successfully",
	})
}

func (e *SessionEndpoints) ResumeSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := e.sessions.Resume(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"message": "Session resumed successfully",
	})
}

func (e *SessionEndpoints) CompleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, result, err := e.sessions.Complete(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"result":  result,
		"message": "Session completed successfully",
	})
}

func (e *SessionEndpoints) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := e.sessions.Answer(r.Context(), user, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (e *SessionEndpoints) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	messages, err := e.sessions.Messages(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

func (e *SessionEndpoints) GetResultHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	_, result, analyses, err := e.sessions.Result(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":   result,
		"analyses": analyses,
	})
}
