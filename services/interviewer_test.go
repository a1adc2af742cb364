package services

import (
	"context"
	"strings"
	"testing"

	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanQuestionsTemplates(t *testing.T) {
	iv := NewInterviewer(nil)
	src := QuestionSource{Title: "REST", Subject: "REST API Design", Description: "status codes and pagination", Difficulty: "hard"}

	plan := iv.PlanQuestions(context.Background(), src, 8)
	require.Len(t, plan, 8)
	assert.Equal(t, "Design a production system that relies heavily on REST API Design. What are the failure modes?", plan[0].Prompt)
	// The difficulty bank has six entries, general questions follow
	assert.Equal(t, "Tell me about your experience with REST API Design.", plan[6].Prompt)
	assert.Equal(t, []string{"rest", "api", "design", "status", "codes", "pagination"}, plan[0].Keywords)
}

func TestPlanQuestionsDefaults(t *testing.T) {
	iv := NewInterviewer(nil)

	plan := iv.PlanQuestions(context.Background(), QuestionSource{}, 0)
	require.Len(t, plan, 5)
	assert.Equal(t, "Walk me through a project where you applied this topic. What was your role?", plan[0].Prompt)

	plan = iv.PlanQuestions(context.Background(), QuestionSource{Title: "Kubernetes", Difficulty: "unknown"}, 1)
	require.Len(t, plan, 1)
	assert.Contains(t, plan[0].Prompt, "Kubernetes")
}

func TestPlanQuestionsWrapsTemplates(t *testing.T) {
	plan := NewInterviewer(nil).PlanQuestions(context.Background(), QuestionSource{Subject: "Go"}, 20)
	require.Len(t, plan, 20)
	assert.Equal(t, "What questions would you ask before starting a new Go project?", plan[19].Prompt)
}

func TestPlanQuestionsExplicitList(t *testing.T) {
	iv := NewInterviewer(nil)
	src := QuestionSource{Questions: []string{"Explain goroutine scheduling", "What is a channel?", "Why use context?"}}

	plan := iv.PlanQuestions(context.Background(), src, 0)
	require.Len(t, plan, 3)
	assert.Equal(t, []string{"goroutine", "scheduling"}, plan[0].Keywords)

	plan = iv.PlanQuestions(context.Background(), src, 2)
	require.Len(t, plan, 2)

	plan = iv.PlanQuestions(context.Background(), src, 10)
	assert.Len(t, plan, 3)
}

func TestPlanQuestionsWithModel(t *testing.T) {
	model := &fakeModel{responses: []string{"```json\n" +
		`[{"question": "What is a goroutine?", "keywords": ["Scheduler", "stack", "stack"]},` +
		`{"question": "  ", "keywords": []},` +
		`{"question": "How do channels block?", "keywords": ["buffer"]}]` +
		"\n```"}}
	iv := NewInterviewer(NewGuardedModel(model, nil))

	plan := iv.PlanQuestions(context.Background(), QuestionSource{Subject: "Go"}, 2)
	require.Len(t, plan, 2)
	assert.Equal(t, "What is a goroutine?", plan[0].Prompt)
	assert.Equal(t, []string{"scheduler", "stack"}, plan[0].Keywords)
	assert.Equal(t, "How do channels block?", plan[1].Prompt)
}

func TestPlanQuestionsFallsBackWhenModelIsShort(t *testing.T) {
	model := &fakeModel{responses: []string{`[{"question": "Only one", "keywords": []}]`}}
	iv := NewInterviewer(NewGuardedModel(model, nil))

	plan := iv.PlanQuestions(context.Background(), QuestionSource{Subject: "Go", Difficulty: "easy"}, 3)
	require.Len(t, plan, 3)
	assert.Equal(t, "What is Go and what problem does it solve?", plan[0].Prompt)
}

func TestGreetingAndFollowUpWithoutModel(t *testing.T) {
	iv := NewInterviewer(nil)
	ctx := context.Background()

	greeting := iv.Greeting(ctx, nil, "Go", "First question?")
	assert.Equal(t, "Hi, I'm your interviewer. Welcome to your Go interview. Let's begin.\n\nFirst question?", greeting)

	encouraging := &models.AIAgentRole{Name: "Sarah Chen", Personality: "Professional, encouraging and detail-oriented"}
	greeting = iv.Greeting(ctx, encouraging, "Go", "Q?")
	assert.True(t, strings.HasPrefix(greeting, "Hi, I'm Sarah Chen. Welcome to your Go interview. Take your time"))

	assert.Equal(t, "Thanks. Try to go into more detail on the next one.\n\nNext?", iv.FollowUp(ctx, nil, "Go", nil, "short", "Next?"))
	long := strings.Repeat("detail ", 20)
	assert.Equal(t, "Thanks, that is helpful.\n\nNext?", iv.FollowUp(ctx, nil, "Go", nil, long, "Next?"))
	assert.True(t, strings.HasPrefix(iv.FollowUp(ctx, encouraging, "Go", nil, "short", "Next?"), "Thanks! Feel free"))

	strict := &models.AIAgentRole{Name: "Lisa Wang", Personality: "Strict"}
	assert.True(t, strings.HasPrefix(iv.FollowUp(ctx, strict, "Go", nil, long, "Next?"), "Noted."))
}

func TestGreetingUsesModelIntro(t *testing.T) {
	model := &fakeModel{fallback: "Hello from the model."}
	iv := NewInterviewer(NewGuardedModel(model, nil))

	greeting := iv.Greeting(context.Background(), nil, "Go", "Q?")
	assert.Equal(t, "Hello from the model. Let's begin.\n\nQ?", greeting)

	reply := iv.FollowUp(context.Background(), nil, "Go", []Turn{{Role: models.RoleUser, Content: "a"}}, "a", "Next?")
	assert.Equal(t, "Hello from the model.\n\nNext?", reply)
}

func TestClosing(t *testing.T) {
	iv := NewInterviewer(nil)
	assert.Equal(t, "That was the last question. Thank you for your time, your evaluation is ready.", iv.Closing(nil))
	assert.Equal(t, "That was the last question. Thank you for your time, David Kim has prepared your evaluation.",
		iv.Closing(&models.AIAgentRole{Name: "David Kim"}))
}

func TestPersonaTone(t *testing.T) {
	tests := []struct {
		personality string
		expected    string
	}{
		{"Strict and performance-oriented", "strict"},
		{"Rigorous reviewer", "strict"},
		{"Supportive coach", "encouraging"},
		{"Challenging and automation-focused", "challenging"},
		{"Analytical and methodical", "balanced"},
	}
	for _, tt := range tests {
		t.Run(tt.personality, func(t *testing.T) {
			assert.Equal(t, tt.expected, personaTone(&models.AIAgentRole{Personality: tt.personality}))
		})
	}
	assert.Equal(t, "balanced", personaTone(nil))
}

func TestSignificantWords(t *testing.T) {
	assert.Equal(t, []string{"goroutines", "channels", "c++"}, significantWords("What are goroutines, channels and C++?", 6))
	assert.Equal(t, []string{"one", "two"}, significantWords("one two three", 2))
	assert.Empty(t, significantWords("is it a to", 6))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1]`, stripCodeFence("  [1]  "))
}
