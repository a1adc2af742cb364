package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/krshsl/interviewcoach/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resume analysis operations
func (r *GORMRepository) CreateResumeAnalysis(ctx context.Context, analysis *models.ResumeAnalysis) error {
	if err := r.db.WithContext(ctx).Create(analysis).Error; err != nil {
		slog.Error("Failed to create resume analysis", "error", err, "user_id", analysis.UserID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetResumeAnalysis(ctx context.Context, id string) (*models.ResumeAnalysis, error) {
	var analysis models.ResumeAnalysis
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&analysis).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get resume analysis", "error", err, "resume_id", id)
		return nil, err
	}
	return &analysis, nil
}

func (r *GORMRepository) ListResumeAnalyses(ctx context.Context, userID string) ([]models.ResumeAnalysis, error) {
	var analyses []models.ResumeAnalysis
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&analyses).Error; err != nil {
		slog.Error("Failed to list resume analyses", "error", err, "user_id", userID)
		return nil, err
	}
	return analyses, nil
}

func (r *GORMRepository) DeleteResumeAnalysis(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ResumeAnalysis{}).Error; err != nil {
		slog.Error("Failed to delete resume analysis", "error", err, "resume_id", id)
		return err
	}
	return nil
}

// Group operations
func (r *GORMRepository) CreateGroup(ctx context.Context, group *models.Group) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(group).Error; err != nil {
		slog.Error("Failed to create group", "error", err, "user_id", group.UserID)
		return translate(err)
	}
	return nil
}

// GetGroup returns the group with its tasks and resources
func (r *GORMRepository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Resources", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get group", "error", err, "group_id", id)
		return nil, err
	}
	return &group, nil
}

func (r *GORMRepository) ListGroups(ctx context.Context, userID string) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&groups).Error; err != nil {
		slog.Error("Failed to list groups", "error", err, "user_id", userID)
		return nil, err
	}
	return groups, nil
}

func (r *GORMRepository) UpdateGroup(ctx context.Context, group *models.Group) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(group).Error; err != nil {
		slog.Error("Failed to update group", "error", err, "group_id", group.ID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) DeleteGroup(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			slog.Error("Failed to delete group tasks", "error", err, "group_id", id)
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.Resource{}).Error; err != nil {
			slog.Error("Failed to delete group resources", "error", err, "group_id", id)
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.Group{}).Error; err != nil {
			slog.Error("Failed to delete group", "error", err, "group_id", id)
			return err
		}
		return nil
	})
}

// Task operations
func (r *GORMRepository) CreateTask(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		slog.Error("Failed to create task", "error", err, "group_id", task.GroupID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get task", "error", err, "task_id", id)
		return nil, err
	}
	return &task, nil
}

func (r *GORMRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		slog.Error("Failed to update task", "error", err, "task_id", task.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteTask(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{}).Error; err != nil {
		slog.Error("Failed to delete task", "error", err, "task_id", id)
		return err
	}
	return nil
}

// Resource operations
func (r *GORMRepository) CreateResource(ctx context.Context, resource *models.Resource) error {
	if err := r.db.WithContext(ctx).Create(resource).Error; err != nil {
		slog.Error("Failed to create resource", "error", err, "group_id", resource.GroupID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	var resource models.Resource
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&resource).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get resource", "error", err, "resource_id", id)
		return nil, err
	}
	return &resource, nil
}

func (r *GORMRepository) DeleteResource(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Resource{}).Error; err != nil {
		slog.Error("Failed to delete resource", "error", err, "resource_id", id)
		return err
	}
	return nil
}
