package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/krshsl/interviewcoach/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Topic operations
func (r *GORMRepository) CreateTopic(ctx context.Context, topic *models.Topic) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(topic).Error; err != nil {
		slog.Error("Failed to create topic", "error", err, "user_id", topic.UserID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	var topic models.Topic
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get topic", "error", err, "topic_id", id)
		return nil, err
	}
	return &topic, nil
}

// ListTopics returns the user's own topics plus every published topic
func (r *GORMRepository) ListTopics(ctx context.Context, userID string) ([]models.Topic, error) {
	var topics []models.Topic
	if err := r.db.WithContext(ctx).
		Where("user_id = ? OR is_published = ?", userID, true).
		Order("name ASC").
		Find(&topics).Error; err != nil {
		slog.Error("Failed to list topics", "error", err, "user_id", userID)
		return nil, err
	}
	return topics, nil
}

func (r *GORMRepository) UpdateTopic(ctx context.Context, topic *models.Topic) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(topic).Error; err != nil {
		slog.Error("Failed to update topic", "error", err, "topic_id", topic.ID)
		return translate(err)
	}
	return nil
}

// DeleteTopic removes the topic and its subtopics. Sessions and catalog items that pointed at
// those subtopics keep their rows with the reference cleared.
func (r *GORMRepository) DeleteTopic(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subTopicIDs := tx.Model(&models.SubTopic{}).Select("id").Where("topic_id = ?", id)
		if err := clearSubTopicRefs(tx, subTopicIDs); err != nil {
			return err
		}
		if err := tx.Where("topic_id = ?", id).Delete(&models.SubTopic{}).Error; err != nil {
			slog.Error("Failed to delete subtopics", "error", err, "topic_id", id)
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.Topic{}).Error; err != nil {
			slog.Error("Failed to delete topic", "error", err, "topic_id", id)
			return err
		}
		return nil
	})
}

func clearSubTopicRefs(tx *gorm.DB, ids interface{}) error {
	if err := tx.Model(&models.InterviewSession{}).
		Where("sub_topic_id IN (?)", ids).
		Update("sub_topic_id", nil).Error; err != nil {
		slog.Error("Failed to detach sessions from subtopics", "error", err)
		return err
	}
	if err := tx.Model(&models.InterviewCatalogItem{}).
		Where("sub_topic_id IN (?)", ids).
		Update("sub_topic_id", nil).Error; err != nil {
		slog.Error("Failed to detach catalog items from subtopics", "error", err)
		return err
	}
	return nil
}

// SubTopic operations
func (r *GORMRepository) CreateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	if err := r.db.WithContext(ctx).Create(subTopic).Error; err != nil {
		slog.Error("Failed to create subtopic", "error", err, "topic_id", subTopic.TopicID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) GetSubTopic(ctx context.Context, id string) (*models.SubTopic, error) {
	var subTopic models.SubTopic
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&subTopic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get subtopic", "error", err, "subtopic_id", id)
		return nil, err
	}
	return &subTopic, nil
}

func (r *GORMRepository) ListSubTopics(ctx context.Context, topicID string) ([]models.SubTopic, error) {
	var subTopics []models.SubTopic
	if err := r.db.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("name ASC").
		Find(&subTopics).Error; err != nil {
		slog.Error("Failed to list subtopics", "error", err, "topic_id", topicID)
		return nil, err
	}
	return subTopics, nil
}

func (r *GORMRepository) UpdateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	if err := r.db.WithContext(ctx).Save(subTopic).Error; err != nil {
		slog.Error("Failed to update subtopic", "error", err, "subtopic_id", subTopic.ID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) DeleteSubTopic(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearSubTopicRefs(tx, []string{id}); err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.SubTopic{}).Error; err != nil {
			slog.Error("Failed to delete subtopic", "error", err, "subtopic_id", id)
			return err
		}
		return nil
	})
}

// Agent role operations
func (r *GORMRepository) CreateAgentRole(ctx context.Context, role *models.AIAgentRole) error {
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		slog.Error("Failed to create agent role", "error", err, "name", role.Name)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) GetAgentRole(ctx context.Context, id string) (*models.AIAgentRole, error) {
	var role models.AIAgentRole
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get agent role", "error", err, "agent_role_id", id)
		return nil, err
	}
	return &role, nil
}

func (r *GORMRepository) GetAgentRoleByName(ctx context.Context, name string) (*models.AIAgentRole, error) {
	var role models.AIAgentRole
	if err := r.db.WithContext(ctx).Where("name = ? AND user_id IS NULL", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get agent role by name", "error", err, "name", name)
		return nil, err
	}
	return &role, nil
}

// ListAgentRoles returns active built-in public roles and the user's own roles
func (r *GORMRepository) ListAgentRoles(ctx context.Context, userID string) ([]models.AIAgentRole, error) {
	var roles []models.AIAgentRole
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where(r.db.Where("user_id IS NULL AND is_public = ?", true).Or("user_id = ?", userID)).
		Order("name ASC").
		Find(&roles).Error; err != nil {
		slog.Error("Failed to list agent roles", "error", err, "user_id", userID)
		return nil, err
	}
	return roles, nil
}

func (r *GORMRepository) UpdateAgentRole(ctx context.Context, role *models.AIAgentRole) error {
	if err := r.db.WithContext(ctx).Save(role).Error; err != nil {
		slog.Error("Failed to update agent role", "error", err, "agent_role_id", role.ID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) DeleteAgentRole(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.InterviewSession{}).
			Where("agent_role_id = ?", id).
			Update("agent_role_id", nil).Error; err != nil {
			slog.Error("Failed to detach sessions from agent role", "error", err, "agent_role_id", id)
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.AIAgentRole{}).Error; err != nil {
			slog.Error("Failed to delete agent role", "error", err, "agent_role_id", id)
			return err
		}
		return nil
	})
}

// Catalog operations
func (r *GORMRepository) CreateCatalog(ctx context.Context, catalog *models.InterviewCatalog) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(catalog).Error; err != nil {
		slog.Error("Failed to create catalog", "error", err, "user_id", catalog.UserID)
		return translate(err)
	}
	return nil
}

// GetCatalog returns the catalog with its items in position order
func (r *GORMRepository) GetCatalog(ctx context.Context, id string) (*models.InterviewCatalog, error) {
	var catalog models.InterviewCatalog
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&catalog).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get catalog", "error", err, "catalog_id", id)
		return nil, err
	}
	return &catalog, nil
}

func (r *GORMRepository) ListCatalogsByUser(ctx context.Context, userID string) ([]models.InterviewCatalog, error) {
	var catalogs []models.InterviewCatalog
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&catalogs).Error; err != nil {
		slog.Error("Failed to list catalogs", "error", err, "user_id", userID)
		return nil, err
	}
	return catalogs, nil
}

func (r *GORMRepository) ListPublishedCatalogs(ctx context.Context) ([]models.InterviewCatalog, error) {
	var catalogs []models.InterviewCatalog
	if err := r.db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("title ASC").
		Find(&catalogs).Error; err != nil {
		slog.Error("Failed to list published catalogs", "error", err)
		return nil, err
	}
	return catalogs, nil
}

func (r *GORMRepository) UpdateCatalog(ctx context.Context, catalog *models.InterviewCatalog) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(catalog).Error; err != nil {
		slog.Error("Failed to update catalog", "error", err, "catalog_id", catalog.ID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) DeleteCatalog(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		itemIDs := tx.Model(&models.InterviewCatalogItem{}).Select("id").Where("catalog_id = ?", id)
		if err := tx.Model(&models.InterviewSession{}).
			Where("catalog_item_id IN (?)", itemIDs).
			Update("catalog_item_id", nil).Error; err != nil {
			slog.Error("Failed to detach sessions from catalog", "error", err, "catalog_id", id)
			return err
		}
		if err := tx.Where("catalog_id = ?", id).Delete(&models.InterviewCatalogItem{}).Error; err != nil {
			slog.Error("Failed to delete catalog items", "error", err, "catalog_id", id)
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.InterviewCatalog{}).Error; err != nil {
			slog.Error("Failed to delete catalog", "error", err, "catalog_id", id)
			return err
		}
		return nil
	})
}

// Catalog item operations
func (r *GORMRepository) CreateCatalogItem(ctx context.Context, item *models.InterviewCatalogItem) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error; err != nil {
		slog.Error("Failed to create catalog item", "error", err, "catalog_id", item.CatalogID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) GetCatalogItem(ctx context.Context, id string) (*models.InterviewCatalogItem, error) {
	var item models.InterviewCatalogItem
	if err := r.db.WithContext(ctx).Preload("SubTopic").Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get catalog item", "error", err, "catalog_item_id", id)
		return nil, err
	}
	return &item, nil
}

func (r *GORMRepository) ListCatalogItems(ctx context.Context, catalogID string) ([]models.InterviewCatalogItem, error) {
	var items []models.InterviewCatalogItem
	if err := r.db.WithContext(ctx).
		Where("catalog_id = ?", catalogID).
		Order("position ASC").
		Find(&items).Error; err != nil {
		slog.Error("Failed to list catalog items", "error", err, "catalog_id", catalogID)
		return nil, err
	}
	return items, nil
}

func (r *GORMRepository) UpdateCatalogItem(ctx context.Context, item *models.InterviewCatalogItem) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error; err != nil {
		slog.Error("Failed to update catalog item", "error", err, "catalog_item_id", item.ID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) DeleteCatalogItem(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.InterviewSession{}).
			Where("catalog_item_id = ?", id).
			Update("catalog_item_id", nil).Error; err != nil {
			slog.Error("Failed to detach sessions from catalog item", "error", err, "catalog_item_id", id)
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.InterviewCatalogItem{}).Error; err != nil {
			slog.Error("Failed to delete catalog item", "error", err, "catalog_item_id", id)
			return err
		}
		return nil
	})
}

// Custom interview operations
func (r *GORMRepository) CreateCustomInterview(ctx context.Context, interview *models.CustomInterview) error {
	if err := r.db.WithContext(ctx).Create(interview).Error; err != nil {
		slog.Error("Failed to create custom interview", "error", err, "user_id", interview.UserID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) GetCustomInterview(ctx context.Context, id string) (*models.CustomInterview, error) {
	var interview models.CustomInterview
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&interview).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get custom interview", "error", err, "custom_interview_id", id)
		return nil, err
	}
	return &interview, nil
}

func (r *GORMRepository) ListCustomInterviews(ctx context.Context, userID string) ([]models.CustomInterview, error) {
	var interviews []models.CustomInterview
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&interviews).Error; err != nil {
		slog.Error("Failed to list custom interviews", "error", err, "user_id", userID)
		return nil, err
	}
	return interviews, nil
}

func (r *GORMRepository) UpdateCustomInterview(ctx context.Context, interview *models.CustomInterview) error {
	if err := r.db.WithContext(ctx).Save(interview).Error; err != nil {
		slog.Error("Failed to update custom interview", "error", err, "custom_interview_id", interview.ID)
		return translate(err)
	}
	return nil
}

func (r *GORMRepository) DeleteCustomInterview(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.InterviewSession{}).
			Where("custom_interview_id = ?", id).
			Update("custom_interview_id", nil).Error; err != nil {
			slog.Error("Failed to detach sessions from custom interview", "error", err, "custom_interview_id", id)
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.CustomInterview{}).Error; err != nil {
			slog.Error("Failed to delete custom interview", "error", err, "custom_interview_id", id)
			return err
		}
		return nil
	})
}
