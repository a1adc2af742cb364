package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/krshsl/interviewcoach/backend/models"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert violates a unique constraint
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.PermanentToken{},
		&models.PasswordResetToken{},
		&models.Profile{},
		&models.Topic{},
		&models.SubTopic{},
		&models.AIAgentRole{},
		&models.InterviewCatalog{},
		&models.InterviewCatalogItem{},
		&models.CustomInterview{},
		&models.InterviewSession{},
		&models.ChatMessage{},
		&models.InterviewQuestion{},
		&models.InterviewResult{},
		&models.InterviewAnalysisResult{},
		&models.InterviewNote{},
		&models.ResumeAnalysis{},
		&models.Group{},
		&models.Task{},
		&models.Resource{},
	)
}

// Ping checks the underlying connection pool
func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver errors onto repository errors
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return translate(err)
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Omit("Profile", "Topics", "InterviewSessions", "RefreshTokens").Save(user).Error; err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		return translate(err)
	}
	return nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create permanent token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error) {
	var permanentToken models.PermanentToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&permanentToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get permanent token", "error", err)
		return nil, err
	}
	return &permanentToken, nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.PermanentToken{}).Error; err != nil {
			slog.Error("Failed to delete user permanent tokens", "error", err, "user_id", userID)
			return err
		}
		return nil
	})
}

func (r *GORMRepository) CreatePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create password reset token", "error", err, "user_id", token.UserID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetPasswordResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	var reset models.PasswordResetToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&reset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get password reset token", "error", err)
		return nil, err
	}
	return &reset, nil
}

func (r *GORMRepository) MarkPasswordResetTokenUsed(ctx context.Context, id string, usedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("id = ?", id).
		Update("used_at", usedAt).Error
	if err != nil {
		slog.Error("Failed to mark password reset token used", "error", err, "token_id", id)
		return err
	}
	return nil
}

// Profile operations
func (r *GORMRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get profile", "error", err, "user_id", userID)
		return nil, err
	}
	return &profile, nil
}

// SaveProfile inserts or updates the profile of profile.UserID
func (r *GORMRepository) SaveProfile(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Profile
		err := tx.Where("user_id = ?", profile.UserID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(profile).Error; err != nil {
				slog.Error("Failed to create profile", "error", err, "user_id", profile.UserID)
				return translate(err)
			}
		case err != nil:
			return err
		default:
			profile.ID = existing.ID
			profile.CreatedAt = existing.CreatedAt
			if err := tx.Save(profile).Error; err != nil {
				slog.Error("Failed to update profile", "error", err, "user_id", profile.UserID)
				return err
			}
		}
		slog.Info("Profile saved", "profile_id", profile.ID, "user_id", profile.UserID)
		return nil
	})
}

// GetUserStats aggregates interview statistics for the dashboard
func (r *GORMRepository) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.InterviewSession{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalSessions).Error; err != nil {
		slog.Error("Failed to count sessions", "error", err, "user_id", userID)
		return nil, err
	}

	if err := db.Model(&models.InterviewSession{}).
		Where("user_id = ? AND status = ?", userID, models.SessionCompleted).
		Count(&stats.CompletedSessions).Error; err != nil {
		slog.Error("Failed to count completed sessions", "error", err, "user_id", userID)
		return nil, err
	}

	if err := db.Model(&models.InterviewSession{}).
		Where("user_id = ? AND status IN ?", userID, []string{models.SessionActive, models.SessionPaused}).
		Count(&stats.ActiveSessions).Error; err != nil {
		slog.Error("Failed to count active sessions", "error", err, "user_id", userID)
		return nil, err
	}

	if err := db.Model(&models.ChatMessage{}).
		Joins("JOIN interview_sessions ON interview_sessions.id = chat_messages.session_id").
		Where("interview_sessions.user_id = ? AND interview_sessions.deleted_at IS NULL", userID).
		Count(&stats.TotalMessages).Error; err != nil {
		slog.Error("Failed to count messages", "error", err, "user_id", userID)
		return nil, err
	}

	var scores struct {
		Average *float64
		Best    *float64
	}
	if err := db.Model(&models.InterviewResult{}).
		Select("AVG(interview_results.overall_score) AS average, MAX(interview_results.overall_score) AS best").
		Joins("JOIN interview_sessions ON interview_sessions.id = interview_results.session_id").
		Where("interview_sessions.user_id = ? AND interview_sessions.deleted_at IS NULL", userID).
		Scan(&scores).Error; err != nil {
		slog.Error("Failed to aggregate scores", "error", err, "user_id", userID)
		return nil, err
	}
	if scores.Average != nil {
		stats.AverageScore = *scores.Average
	}
	if scores.Best != nil {
		stats.BestScore = *scores.Best
	}

	var last models.InterviewSession
	err := db.Where("user_id = ?", userID).Order("last_activity_at DESC").First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Error("Failed to get last activity", "error", err, "user_id", userID)
		return nil, err
	}
	if err == nil {
		stats.LastActivity = &last.LastActivityAt
	}

	return &stats, nil
}
