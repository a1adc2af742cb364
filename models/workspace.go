package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResumeAnalysis stores one analyzed resume upload
type ResumeAnalysis struct {
	ID            string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID        string         `gorm:"type:uuid;not null;index" json:"user_id"`
	FileName      string         `gorm:"size:255" json:"file_name"`
	TargetRole    string         `gorm:"size:100" json:"target_role"`
	Content       string         `gorm:"type:text;not null" json:"-"`
	Summary       string         `gorm:"type:text" json:"summary"`
	Score         float64        `gorm:"type:decimal(5,2)" json:"score"`
	WordCount     int            `json:"word_count"`
	Skills        datatypes.JSON `json:"skills"`         // []string
	MissingSkills datatypes.JSON `json:"missing_skills"` // []string
	Sections      datatypes.JSON `json:"sections"`       // []string
	Suggestions   datatypes.JSON `json:"suggestions"`    // []string
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Group is a study group owned by a user
type Group struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Tasks     []Task     `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	Resources []Resource `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"resources,omitempty"`
}

type Task struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	GroupID     string         `gorm:"type:uuid;not null;index" json:"group_id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      string         `gorm:"size:20;not null;default:'todo';check:status IN ('todo', 'in_progress', 'done')" json:"status"`
	DueAt       *time.Time     `json:"due_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

type Resource struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	GroupID   string         `gorm:"type:uuid;not null;index" json:"group_id"`
	Title     string         `gorm:"size:200;not null" json:"title"`
	URL       string         `gorm:"size:2048;not null" json:"url"`
	Kind      string         `gorm:"size:20;not null;default:'link'" json:"kind"` // link, video, article, book
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
