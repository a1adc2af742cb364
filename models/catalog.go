package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Topic is the top level of the interview subject hierarchy
type Topic struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	IsPublished bool           `gorm:"default:false" json:"is_published"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	SubTopics []SubTopic `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"subtopics,omitempty"`
}

// SubTopic is a concrete interview subject inside a topic
type SubTopic struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TopicID     string         `gorm:"type:uuid;not null;index" json:"topic_id"`
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Difficulty  string         `gorm:"size:20;not null;default:'medium';check:difficulty IN ('easy', 'medium', 'hard')" json:"difficulty"`
	IsPublished bool           `gorm:"default:false" json:"is_published"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// InterviewCatalog is a curated, ordered list of interview items
type InterviewCatalog struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	IsPublished bool           `gorm:"default:false" json:"is_published"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Items []InterviewCatalogItem `gorm:"foreignKey:CatalogID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// InterviewCatalogItem binds a subtopic and an optional fixed question list to a catalog
type InterviewCatalogItem struct {
	ID            string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CatalogID     string         `gorm:"type:uuid;not null;index" json:"catalog_id"`
	SubTopicID    *string        `gorm:"type:uuid;index" json:"subtopic_id,omitempty"` // set to NULL when the subtopic goes away
	Title         string         `gorm:"size:200;not null" json:"title"`
	Questions     datatypes.JSON `json:"questions"` // []string
	QuestionCount int            `gorm:"default:0" json:"question_count"`
	Position      int            `gorm:"not null;default:0" json:"position"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	SubTopic *SubTopic `gorm:"foreignKey:SubTopicID;constraint:OnDelete:SET NULL" json:"subtopic,omitempty"`
}

// CustomInterview is a user-built interview with its own question list
type CustomInterview struct {
	ID             string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID         string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Title          string         `gorm:"size:200;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	JobDescription string         `gorm:"type:text" json:"job_description"`
	Questions      datatypes.JSON `json:"questions"` // []string
	IsPublished    bool           `gorm:"default:false" json:"is_published"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
