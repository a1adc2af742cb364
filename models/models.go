package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Database schema overview:
// 1. users, refresh_tokens, permanent_tokens, password_reset_tokens - cookie-based authentication
// 2. profiles - free-text career attributes, one per user
// 3. topics, sub_topics - the interview subject hierarchy
// 4. interview_catalogs, interview_catalog_items, custom_interviews - question sources
// 5. ai_agent_roles - built-in (user_id is NULL) and private interviewer personas
// 6. interview_sessions - each interview attempt
// 7. chat_messages, interview_questions - the conversation and its question plan
// 8. interview_results, interview_analysis_results - evaluation output
// 9. interview_notes, resume_analyses, groups, tasks, resources - candidate workspace

// Session statuses
const (
	SessionActive    = "active"
	SessionPaused    = "paused"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// StringList decodes a JSON column holding []string. Invalid or empty data yields nil.
func StringList(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// NewStringList encodes values for a JSON column. A nil slice is stored as [].
func NewStringList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return datatypes.JSON(data)
}

// ScoreMap decodes a JSON column holding map[string]float64.
func ScoreMap(data datatypes.JSON) map[string]float64 {
	out := map[string]float64{}
	if len(data) == 0 {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// NewScoreMap encodes scores for a JSON column.
func NewScoreMap(scores map[string]float64) datatypes.JSON {
	if scores == nil {
		scores = map[string]float64{}
	}
	data, _ := json.Marshal(scores)
	return datatypes.JSON(data)
}
