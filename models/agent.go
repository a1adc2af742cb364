package models

import (
	"time"

	"gorm.io/gorm"
)

// AIAgentRole represents both built-in interviewer personas (user_id is NULL) and private user-created ones
type AIAgentRole struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      *string        `gorm:"type:uuid;index" json:"user_id,omitempty"` // NULL for built-in roles
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Personality string         `gorm:"type:text;not null" json:"personality"` // The AI personality/behavior
	Industry    string         `gorm:"size:100" json:"industry,omitempty"`
	Level       string         `gorm:"size:50" json:"level,omitempty"` // junior, mid, senior, executive
	IsPublic    bool           `gorm:"default:false" json:"is_public"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName returns the table name for the AIAgentRole model
func (AIAgentRole) TableName() string {
	return "ai_agent_roles"
}

// InterviewSession represents one candidate's attempt at a subtopic, catalog item or custom interview
type InterviewSession struct {
	ID                string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID            string         `gorm:"type:uuid;not null;index" json:"user_id"`
	SubTopicID        *string        `gorm:"type:uuid;index" json:"subtopic_id,omitempty"`
	CatalogItemID     *string        `gorm:"type:uuid;index" json:"catalog_item_id,omitempty"`
	CustomInterviewID *string        `gorm:"type:uuid;index" json:"custom_interview_id,omitempty"`
	AgentRoleID       *string        `gorm:"type:uuid;index" json:"agent_role_id,omitempty"`
	Title             string         `gorm:"size:200;not null" json:"title"`
	Status            string         `gorm:"not null;default:'active';check:status IN ('active', 'paused', 'completed', 'abandoned')" json:"status"`
	CurrentQuestion   int            `gorm:"not null;default:0" json:"current_question"` // index into the question plan
	StartedAt         time.Time      `gorm:"not null" json:"started_at"`
	PausedAt          *time.Time     `json:"paused_at,omitempty"`
	EndedAt           *time.Time     `json:"ended_at,omitempty"`
	PausedSeconds     int            `gorm:"not null;default:0" json:"paused_seconds"`
	Duration          int            `json:"duration"` // Active duration in seconds
	LastActivityAt    time.Time      `json:"last_activity_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	AgentRole *AIAgentRole        `gorm:"foreignKey:AgentRoleID;constraint:OnDelete:SET NULL" json:"agent_role,omitempty"`
	Messages  []ChatMessage       `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	Questions []InterviewQuestion `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Result    *InterviewResult    `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"result,omitempty"`
}

// IsFinished reports whether the session reached a terminal status
func (s *InterviewSession) IsFinished() bool {
	return s.Status == SessionCompleted || s.Status == SessionAbandoned
}
