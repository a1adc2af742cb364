package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/interviewcoach/backend/models"
)

const maxNoteLength = 4000

type NoteEndpoints struct {
	repo     NoteStore
	sessions *SessionService
}

type NoteRequest struct {
	Content string `json:"content"`
}

func NewNoteEndpoints(repo NoteStore, sessions *SessionService) *NoteEndpoints {
	return &NoteEndpoints{repo: repo, sessions: sessions}
}

// RegisterSessionRoutes registers the note routes inside the /sessions subrouter
func (e *NoteEndpoints) RegisterSessionRoutes(r chi.Router) {
	r.Get("/{id}/notes", e.ListNotesHandler)
	r.Post("/{id}/notes", e.CreateNoteHandler)
}

func (e *NoteEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/notes", func(r chi.Router) {
		r.Put("/{id}", e.UpdateNoteHandler)
		r.Delete("/{id}", e.DeleteNoteHandler)
	})
}

func (req *NoteRequest) normalize() error {
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return validationError("content is required")
	}
	if len(req.Content) > maxNoteLength {
		return validationError("content must be at most %d characters", maxNoteLength)
	}
	return nil
}

// ownNote returns the note when user wrote it. Notes of other users are reported as missing.
func (e *NoteEndpoints) ownNote(ctx context.Context, user *models.User, id string) (*models.InterviewNote, error) {
	note, err := e.repo.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if note == nil || note.UserID != user.ID {
		return nil, notFoundError("note")
	}
	return note, nil
}

func (e *NoteEndpoints) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := e.sessions.load(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	notes, err := e.repo.ListNotes(r.Context(), session.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notes": notes,
		"count": len(notes),
	})
}

func (e *NoteEndpoints) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := e.sessions.load(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req NoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	note := &models.InterviewNote{
		SessionID: session.ID,
		UserID:    user.ID,
		Content:   req.Content,
	}
	if err := e.repo.CreateNote(r.Context(), note); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"note":    note,
		"message": "Note created successfully",
	})

	slog.Info("Note created", "note_id", note.ID, "session_id", session.ID, "user_id", user.ID)
}

func (e *NoteEndpoints) UpdateNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	note, err := e.ownNote(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req NoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	note.Content = req.Content
	if err := e.repo.UpdateNote(r.Context(), note); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"note":    note,
		"message": "Note updated successfully",
	})

	slog.Info("Note updated", "note_id", note.ID, "user_id", user.ID)
}

func (e *NoteEndpoints) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	note, err := e.ownNote(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteNote(r.Context(), note.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Note deleted successfully",
	})

	slog.Info("Note deleted", "note_id", note.ID, "user_id", user.ID)
}
