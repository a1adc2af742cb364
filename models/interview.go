package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatMessage stores the ordered, turn-by-turn text of the conversation
type ChatMessage struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string         `gorm:"type:uuid;not null;index" json:"session_id"`
	TurnOrder int            `gorm:"not null" json:"turn_order"` // Order of the turn in the conversation
	Role      string         `gorm:"size:20;not null;check:role IN ('user', 'assistant', 'system')" json:"role"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// InterviewQuestion is one entry of the question plan built when a session starts
type InterviewQuestion struct {
	ID               string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID        string         `gorm:"type:uuid;not null;index" json:"session_id"`
	Position         int            `gorm:"not null" json:"position"`
	Prompt           string         `gorm:"type:text;not null" json:"prompt"`
	ExpectedKeywords datatypes.JSON `json:"expected_keywords"` // []string
	Answer           string         `gorm:"type:text" json:"answer"`
	AnsweredAt       *time.Time     `json:"answered_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// InterviewResult stores the final scored evaluation of a session
type InterviewResult struct {
	ID              string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID       string         `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`
	OverallScore    float64        `gorm:"type:decimal(5,2)" json:"overall_score"` // 0.00 to 100.00
	Summary         string         `gorm:"type:text;not null" json:"summary"`
	Strengths       string         `gorm:"type:text" json:"strengths,omitempty"`
	Weaknesses      string         `gorm:"type:text" json:"weaknesses,omitempty"`
	Recommendations string         `gorm:"type:text" json:"recommendations,omitempty"`
	MetricScores    datatypes.JSON `json:"metric_scores"` // map[string]float64
	Evaluator       string         `gorm:"size:50;not null;default:'heuristic'" json:"evaluator"`
	AnsweredCount   int            `json:"answered_count"`
	QuestionCount   int            `json:"question_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// InterviewAnalysisResult is the per-question part of an evaluation
type InterviewAnalysisResult struct {
	ID              string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID       string         `gorm:"type:uuid;not null;index" json:"session_id"`
	QuestionID      string         `gorm:"type:uuid;not null;index" json:"question_id"`
	Position        int            `gorm:"not null" json:"position"`
	Score           float64        `gorm:"type:decimal(5,2);not null" json:"score"`
	Feedback        string         `gorm:"type:text" json:"feedback"`
	MatchedKeywords datatypes.JSON `json:"matched_keywords"` // []string
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// InterviewNote is a private note the candidate keeps on a session
type InterviewNote struct {
	ID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string         `gorm:"type:uuid;not null;index" json:"session_id"`
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
