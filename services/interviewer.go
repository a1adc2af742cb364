package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/krshsl/interviewcoach/backend/models"
)

const maxKeywords = 6

// QuestionSource describes what a session is about
type QuestionSource struct {
	Title          string
	Subject        string
	Description    string
	Difficulty     string
	JobDescription string
	Questions      []string // explicit list from a catalog item or custom interview
}

// PlannedQuestion is one question of a session plan together with the keywords a good answer mentions
type PlannedQuestion struct {
	Prompt   string   `json:"question"`
	Keywords []string `json:"keywords"`
}

// Interviewer builds question plans and the interviewer's side of the conversation.
// Every operation has a deterministic path used when no model is configured or it fails.
type Interviewer struct {
	model *GuardedModel
}

func NewInterviewer(model *GuardedModel) *Interviewer {
	return &Interviewer{model: model}
}

// PlanQuestions returns up to n questions. n <= 0 keeps an explicit list whole.
func (iv *Interviewer) PlanQuestions(ctx context.Context, src QuestionSource, n int) []PlannedQuestion {
	if len(src.Questions) > 0 {
		questions := src.Questions
		if n > 0 && n < len(questions) {
			questions = questions[:n]
		}
		plan := make([]PlannedQuestion, 0, len(questions))
		for _, q := range questions {
			plan = append(plan, PlannedQuestion{Prompt: q, Keywords: significantWords(q, maxKeywords)})
		}
		return plan
	}

	if n <= 0 {
		n = 5
	}
	if plan, err := iv.planWithModel(ctx, src, n); err == nil {
		return plan
	} else if !isModelUnavailable(err) {
		slog.Warn("Falling back to template questions", "subject", src.Subject, "error", err)
	}
	return templateQuestions(src, n)
}

func (iv *Interviewer) planWithModel(ctx context.Context, src QuestionSource, n int) ([]PlannedQuestion, error) {
	system := `You write interview questions. Respond with a JSON array only, no prose and no markdown.
Each element is {"question": string, "keywords": [string]} where keywords are up to 6 lowercase terms a strong answer would mention.`

	prompt := fmt.Sprintf("Write %d %s difficulty interview questions about %q.", n, difficultyOrDefault(src.Difficulty), src.Subject)
	if src.Description != "" {
		prompt += "\nContext: " + src.Description
	}
	if src.JobDescription != "" {
		prompt += "\nJob description: " + src.JobDescription
	}

	out, err := iv.model.Generate(ctx, "plan", system, []Turn{{Role: models.RoleUser, Content: prompt}})
	if err != nil {
		return nil, err
	}

	var plan []PlannedQuestion
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &plan); err != nil {
		return nil, fmt.Errorf("invalid question plan: %w", err)
	}

	valid := make([]PlannedQuestion, 0, n)
	for _, q := range plan {
		q.Prompt = strings.TrimSpace(q.Prompt)
		if q.Prompt == "" || len(q.Prompt) > maxQuestionLength {
			continue
		}
		q.Keywords = normalizeKeywords(q.Keywords)
		valid = append(valid, q)
		if len(valid) == n {
			break
		}
	}
	if len(valid) < n {
		return nil, fmt.Errorf("model returned %d usable questions, want %d", len(valid), n)
	}
	return valid, nil
}

var questionBank = map[string][]string{
	"easy": {
		"What is %s and what problem does it solve?",
		"Describe a simple example where you used %s.",
		"What are the basic building blocks of %s?",
		"Which mistakes do beginners commonly make with %s?",
		"How would you explain %s to a new teammate?",
		"Where would you look first when learning more about %s?",
	},
	"medium": {
		"Walk me through a project where you applied %s. What was your role?",
		"What trade-offs do you consider when working with %s?",
		"How do you test or validate work that involves %s?",
		"Describe a bug or failure related to %s and how you resolved it.",
		"How does %s compare to the alternatives you have used?",
		"Which best practices do you follow for %s, and why?",
	},
	"hard": {
		"Design a production system that relies heavily on %s. What are the failure modes?",
		"How would you scale a solution built on %s to ten times the current load?",
		"Describe the most difficult %s problem you have solved end to end.",
		"Where does %s break down, and how would you work around those limits?",
		"How would you review a teammate's design that uses %s?",
		"What metrics would you monitor for a %s based service, and what would alert you?",
	},
}

var generalQuestions = []string{
	"Tell me about your experience with %s.",
	"What resources helped you most when learning %s?",
	"Describe a time you had to explain a %s decision to a non-technical stakeholder.",
	"What would you improve in how your last team used %s?",
	"How do you keep your %s knowledge up to date?",
	"Describe a disagreement about %s and how it was settled.",
	"What is a common misconception about %s?",
	"If you had one week to improve a %s codebase, what would you do first?",
	"How do you approach debugging an unfamiliar %s problem?",
	"Which %s topic would you like to get better at, and how?",
	"What does good documentation for %s look like to you?",
	"How would you onboard a junior engineer onto a %s project?",
	"Describe a %s decision you would make differently today.",
	"What questions would you ask before starting a new %s project?",
}

// templateQuestions builds a deterministic plan from the subject and difficulty
func templateQuestions(src QuestionSource, n int) []PlannedQuestion {
	subject := strings.TrimSpace(src.Subject)
	if subject == "" {
		subject = strings.TrimSpace(src.Title)
	}
	if subject == "" {
		subject = "this topic"
	}

	templates := append(append([]string{}, questionBank[difficultyOrDefault(src.Difficulty)]...), generalQuestions...)
	keywords := significantWords(subject+" "+src.Description, maxKeywords)

	plan := make([]PlannedQuestion, 0, n)
	for i := 0; i < n; i++ {
		prompt := fmt.Sprintf(templates[i%len(templates)], subject)
		plan = append(plan, PlannedQuestion{Prompt: prompt, Keywords: keywords})
	}
	return plan
}

// Greeting opens the session and asks the first question
func (iv *Interviewer) Greeting(ctx context.Context, role *models.AIAgentRole, title, firstQuestion string) string {
	name := "your interviewer"
	if role != nil && role.Name != "" {
		name = role.Name
	}
	intro := fmt.Sprintf("Hi, I'm %s. Welcome to your %s interview.", name, title)

	system := buildInterviewerInstruction(role, title)
	prompt := fmt.Sprintf("Write a one or two sentence welcome for a candidate starting a %q interview. Introduce yourself by name. Do not ask a question.", title)
	if out, err := iv.model.Generate(ctx, "greeting", system, []Turn{{Role: models.RoleUser, Content: prompt}}); err == nil {
		intro = out
	}

	return fmt.Sprintf("%s %s\n\n%s", intro, personaOpening(role), firstQuestion)
}

// FollowUp acknowledges the candidate's answer and asks the next question
func (iv *Interviewer) FollowUp(ctx context.Context, role *models.AIAgentRole, subject string, history []Turn, answer, nextQuestion string) string {
	ack := deterministicAck(role, answer)

	system := buildInterviewerInstruction(role, subject) +
		"\n\nReply with one short sentence acknowledging the candidate's last answer. Do not ask a question."
	if out, err := iv.model.Generate(ctx, "follow_up", system, history); err == nil {
		ack = out
	}

	return fmt.Sprintf("%s\n\n%s", ack, nextQuestion)
}

// Closing ends the conversation after the last answer
func (iv *Interviewer) Closing(role *models.AIAgentRole) string {
	if role != nil && role.Name != "" {
		return fmt.Sprintf("That was the last question. Thank you for your time, %s has prepared your evaluation.", role.Name)
	}
	return "That was the last question. Thank you for your time, your evaluation is ready."
}

func personaOpening(role *models.AIAgentRole) string {
	switch personaTone(role) {
	case "strict":
		return "I will be direct, so please be precise. Let's begin."
	case "encouraging":
		return "Take your time and think out loud, there are no trick questions. Let's begin."
	case "challenging":
		return "Expect follow-ups that push on the details. Let's begin."
	default:
		return "Let's begin."
	}
}

func deterministicAck(role *models.AIAgentRole, answer string) string {
	short := len(strings.Fields(answer)) < 15
	switch personaTone(role) {
	case "strict":
		if short {
			return "That answer is thin. Be more specific next time."
		}
		return "Noted."
	case "encouraging":
		if short {
			return "Thanks! Feel free to add more detail on the next one."
		}
		return "Great, thank you for the detailed answer."
	}
	if short {
		return "Thanks. Try to go into more detail on the next one."
	}
	return "Thanks, that is helpful."
}

// personaTone reduces a free-text personality to a tone bucket
func personaTone(role *models.AIAgentRole) string {
	if role == nil {
		return "balanced"
	}
	p := strings.ToLower(role.Personality)
	switch {
	case strings.Contains(p, "strict") || strings.Contains(p, "rigorous") || strings.Contains(p, "demanding"):
		return "strict"
	case strings.Contains(p, "encouraging") || strings.Contains(p, "supportive") || strings.Contains(p, "mentor"):
		return "encouraging"
	case strings.Contains(p, "grilling") || strings.Contains(p, "intense") || strings.Contains(p, "challenging"):
		return "challenging"
	default:
		return "balanced"
	}
}

func difficultyOrDefault(difficulty string) string {
	if _, ok := questionBank[difficulty]; ok {
		return difficulty
	}
	return "medium"
}

var stopWords = map[string]bool{
	"about": true, "after": true, "also": true, "and": true, "are": true, "been": true,
	"before": true, "can": true, "could": true, "describe": true, "did": true, "does": true,
	"each": true, "explain": true, "for": true, "from": true, "give": true, "have": true,
	"how": true, "into": true, "its": true, "more": true, "most": true, "not": true,
	"that": true, "the": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true, "time": true,
	"used": true, "using": true, "was": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "who": true, "why": true, "will": true, "with": true,
	"would": true, "you": true, "your": true,
}

// significantWords returns up to limit distinct lowercase words of text that are not stop words
func significantWords(text string, limit int) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})

	seen := make(map[string]bool)
	out := make([]string, 0, limit)
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == limit {
			break
		}
	}
	return out
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// stripCodeFence removes a ```json fence models like to wrap JSON in
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func isModelUnavailable(err error) bool {
	return errors.Is(err, errModelUnavailable)
}
