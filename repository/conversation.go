package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krshsl/interviewcoach/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateSession stores the session together with its question plan
func (r *GORMRepository) CreateSession(ctx context.Context, session *models.InterviewSession, questions []models.InterviewQuestion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(session).Error; err != nil {
			slog.Error("Failed to create session", "error", err, "user_id", session.UserID)
			return translate(err)
		}
		if len(questions) == 0 {
			return nil
		}
		for i := range questions {
			questions[i].SessionID = session.ID
		}
		if err := tx.Create(&questions).Error; err != nil {
			slog.Error("Failed to create question plan", "error", err, "session_id", session.ID)
			return fmt.Errorf("failed to create question plan: %w", err)
		}
		session.Questions = questions
		return nil
	})
}

func (r *GORMRepository) GetSession(ctx context.Context, id string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	if err := r.db.WithContext(ctx).Preload("AgentRole").Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get session", "error", err, "session_id", id)
		return nil, err
	}
	return &session, nil
}

// GetSessionWithDetails loads the session with messages, questions and result
func (r *GORMRepository) GetSessionWithDetails(ctx context.Context, id string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.db.WithContext(ctx).
		Preload("AgentRole").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("turn_order ASC")
		}).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Result").
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get session details", "error", err, "session_id", id)
		return nil, err
	}
	return &session, nil
}

// ListSessions returns the user's sessions, newest first. limit <= 0 returns all.
func (r *GORMRepository) ListSessions(ctx context.Context, userID string, limit int) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		slog.Error("Failed to list sessions", "error", err, "user_id", userID)
		return nil, err
	}
	return sessions, nil
}

func (r *GORMRepository) ListSessionsByStatus(ctx context.Context, status string) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	if err := r.db.WithContext(ctx).Where("status = ?", status).Find(&sessions).Error; err != nil {
		slog.Error("Failed to list sessions by status", "error", err, "status", status)
		return nil, err
	}
	return sessions, nil
}

func (r *GORMRepository) UpdateSession(ctx context.Context, session *models.InterviewSession) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(session).Error; err != nil {
		slog.Error("Failed to update session", "error", err, "session_id", session.ID)
		return err
	}
	return nil
}

// DeleteSession removes the session and everything recorded under it
func (r *GORMRepository) DeleteSession(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents := []interface{}{
			&models.ChatMessage{},
			&models.InterviewQuestion{},
			&models.InterviewAnalysisResult{},
			&models.InterviewResult{},
			&models.InterviewNote{},
		}
		for _, model := range dependents {
			if err := tx.Where("session_id = ?", id).Delete(model).Error; err != nil {
				slog.Error("Failed to delete session dependents", "error", err, "session_id", id)
				return err
			}
		}
		if err := tx.Where("id = ?", id).Delete(&models.InterviewSession{}).Error; err != nil {
			slog.Error("Failed to delete session", "error", err, "session_id", id)
			return err
		}
		return nil
	})
}

// CreateChatMessage appends a message. A zero TurnOrder is assigned the next turn in the session.
func (r *GORMRepository) CreateChatMessage(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createMessage(tx, message)
	})
}

// createMessage appends message to its session, tx must be a transaction
func createMessage(tx *gorm.DB, message *models.ChatMessage) error {
	if message.TurnOrder == 0 {
		var last int
		if err := tx.Model(&models.ChatMessage{}).
			Where("session_id = ?", message.SessionID).
			Select("COALESCE(MAX(turn_order), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		message.TurnOrder = last + 1
	}
	if err := tx.Create(message).Error; err != nil {
		slog.Error("Failed to save message", "error", err, "session_id", message.SessionID)
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// RecordAnswer stores the candidate's message, the answered question and the advanced session together
func (r *GORMRepository) RecordAnswer(ctx context.Context, session *models.InterviewSession, question *models.InterviewQuestion, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createMessage(tx, message); err != nil {
			return err
		}
		if err := tx.Save(question).Error; err != nil {
			slog.Error("Failed to update question", "error", err, "question_id", question.ID)
			return err
		}
		if err := tx.Omit(clause.Associations).Save(session).Error; err != nil {
			slog.Error("Failed to update session", "error", err, "session_id", session.ID)
			return err
		}
		return nil
	})
}

func (r *GORMRepository) ListChatMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("turn_order ASC").
		Find(&messages).Error; err != nil {
		slog.Error("Failed to get conversation history", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	return messages, nil
}

func (r *GORMRepository) ListQuestions(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error) {
	var questions []models.InterviewQuestion
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("position ASC").
		Find(&questions).Error; err != nil {
		slog.Error("Failed to list questions", "error", err, "session_id", sessionID)
		return nil, err
	}
	return questions, nil
}

func (r *GORMRepository) UpdateQuestion(ctx context.Context, question *models.InterviewQuestion) error {
	if err := r.db.WithContext(ctx).Save(question).Error; err != nil {
		slog.Error("Failed to update question", "error", err, "question_id", question.ID)
		return err
	}
	return nil
}

// SaveEvaluation stores the result and its per-question analysis atomically.
// A second evaluation of the same session returns ErrDuplicate.
func (r *GORMRepository) SaveEvaluation(ctx context.Context, result *models.InterviewResult, analyses []models.InterviewAnalysisResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			slog.Error("Failed to save interview result", "error", err, "session_id", result.SessionID)
			return translate(err)
		}
		if len(analyses) == 0 {
			return nil
		}
		if err := tx.Create(&analyses).Error; err != nil {
			slog.Error("Failed to save analysis results", "error", err, "session_id", result.SessionID)
			return err
		}
		return nil
	})
}

func (r *GORMRepository) GetResult(ctx context.Context, sessionID string) (*models.InterviewResult, error) {
	var result models.InterviewResult
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview result", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &result, nil
}

func (r *GORMRepository) ListAnalysisResults(ctx context.Context, sessionID string) ([]models.InterviewAnalysisResult, error) {
	var analyses []models.InterviewAnalysisResult
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("position ASC").
		Find(&analyses).Error; err != nil {
		slog.Error("Failed to list analysis results", "error", err, "session_id", sessionID)
		return nil, err
	}
	return analyses, nil
}

// Note operations
func (r *GORMRepository) CreateNote(ctx context.Context, note *models.InterviewNote) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		slog.Error("Failed to create note", "error", err, "session_id", note.SessionID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetNote(ctx context.Context, id string) (*models.InterviewNote, error) {
	var note models.InterviewNote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get note", "error", err, "note_id", id)
		return nil, err
	}
	return &note, nil
}

func (r *GORMRepository) ListNotes(ctx context.Context, sessionID string) ([]models.InterviewNote, error) {
	var notes []models.InterviewNote
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&notes).Error; err != nil {
		slog.Error("Failed to list notes", "error", err, "session_id", sessionID)
		return nil, err
	}
	return notes, nil
}

func (r *GORMRepository) UpdateNote(ctx context.Context, note *models.InterviewNote) error {
	if err := r.db.WithContext(ctx).Save(note).Error; err != nil {
		slog.Error("Failed to update note", "error", err, "note_id", note.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteNote(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.InterviewNote{}).Error; err != nil {
		slog.Error("Failed to delete note", "error", err, "note_id", id)
		return err
	}
	return nil
}
