package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/krshsl/interviewcoach/backend/models"
)

const (
	keywordWeight    = 70.0
	lengthWeight     = 30.0
	saturatingLength = 60 // words

	EvaluatorHeuristic = "heuristic"
	EvaluatorGemini    = "gemini"
)

const (
	MetricCommunication      = "communication"
	MetricTechnicalKnowledge = "technical_knowledge"
	MetricCompleteness       = "completeness"
	MetricProblemSolving     = "problem_solving"
)

var reasoningMarkers = []string{
	"because", "therefore", "for example", "for instance", "trade-off", "tradeoff",
	"first", "then", "instead", "so that", "which means", "as a result",
}

// Evaluation is the output of scoring one session
type Evaluation struct {
	Result   *models.InterviewResult
	Analyses []models.InterviewAnalysisResult
}

type Evaluator struct {
	model *GuardedModel
}

func NewEvaluator(model *GuardedModel) *Evaluator {
	return &Evaluator{model: model}
}

type ParsedSummary struct {
	Summary         string  `json:"summary"`
	Strengths       string  `json:"strengths"`
	Weaknesses      string  `json:"weaknesses"`
	Recommendations string  `json:"recommendations"`
	OverallScore    float64 `json:"overallScore"`
}

type questionScore struct {
	score    float64
	coverage float64
	length   float64
	answered bool
	matched  []string
}

// Evaluate scores every question of the plan and produces the session result.
// The deterministic score is always computed; a configured model only rewrites the narrative
// and may adjust the overall score.
func (e *Evaluator) Evaluate(ctx context.Context, session *models.InterviewSession, questions []models.InterviewQuestion) Evaluation {
	analyses := make([]models.InterviewAnalysisResult, 0, len(questions))
	scores := make([]questionScore, 0, len(questions))
	answered := 0
	var total, coverageSum, lengthSum, reasoningSum float64

	for _, q := range questions {
		qs := scoreAnswer(q.Answer, models.StringList(q.ExpectedKeywords))
		scores = append(scores, qs)
		total += qs.score
		coverageSum += qs.coverage
		if qs.answered {
			answered++
			lengthSum += qs.length
			reasoningSum += reasoningScore(q.Answer)
		}

		analyses = append(analyses, models.InterviewAnalysisResult{
			SessionID:       session.ID,
			QuestionID:      q.ID,
			Position:        q.Position,
			Score:           qs.score,
			Feedback:        questionFeedback(qs, models.StringList(q.ExpectedKeywords)),
			MatchedKeywords: models.NewStringList(qs.matched),
		})
	}

	metricScores := map[string]float64{
		MetricCommunication:      0,
		MetricTechnicalKnowledge: 0,
		MetricCompleteness:       0,
		MetricProblemSolving:     0,
	}
	overall := 0.0
	if len(questions) > 0 {
		overall = round2(total / float64(len(questions)))
		metricScores[MetricTechnicalKnowledge] = round2(coverageSum / float64(len(questions)) * 100)
		metricScores[MetricCompleteness] = round2(float64(answered) / float64(len(questions)) * 100)
	}
	if answered > 0 {
		metricScores[MetricCommunication] = round2(lengthSum / float64(answered) * 100)
		metricScores[MetricProblemSolving] = round2(reasoningSum / float64(answered) * 100)
	}

	parsed := deterministicSummary(answered, len(questions), overall, metricScores)
	evaluator := EvaluatorHeuristic
	if answered > 0 {
		if ai, err := e.summarizeWithModel(ctx, session, questions, overall); err == nil {
			parsed = ai
			evaluator = EvaluatorGemini
		}
	}

	result := &models.InterviewResult{
		SessionID:       session.ID,
		OverallScore:    parsed.OverallScore,
		Summary:         parsed.Summary,
		Strengths:       parsed.Strengths,
		Weaknesses:      parsed.Weaknesses,
		Recommendations: parsed.Recommendations,
		MetricScores:    models.NewScoreMap(metricScores),
		Evaluator:       evaluator,
		AnsweredCount:   answered,
		QuestionCount:   len(questions),
	}
	return Evaluation{Result: result, Analyses: analyses}
}

func scoreAnswer(answer string, keywords []string) questionScore {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return questionScore{matched: []string{}}
	}

	lower := strings.ToLower(answer)
	matched := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			matched = append(matched, k)
		}
	}

	coverage := 1.0
	if len(keywords) > 0 {
		coverage = float64(len(matched)) / float64(len(keywords))
	}
	length := math.Min(float64(len(strings.Fields(answer)))/saturatingLength, 1)

	return questionScore{
		score:    round2(coverage*keywordWeight + length*lengthWeight),
		coverage: coverage,
		length:   length,
		answered: true,
		matched:  matched,
	}
}

// reasoningScore saturates at two distinct reasoning markers
func reasoningScore(answer string) float64 {
	lower := strings.ToLower(answer)
	found := 0
	for _, m := range reasoningMarkers {
		if strings.Contains(lower, m) {
			found++
		}
	}
	return math.Min(float64(found)/2, 1)
}

func questionFeedback(qs questionScore, keywords []string) string {
	if !qs.answered {
		return "No answer was given."
	}

	var parts []string
	if qs.coverage < 0.5 && len(keywords) > 0 {
		missing := make([]string, 0, len(keywords))
		matched := make(map[string]bool, len(qs.matched))
		for _, k := range qs.matched {
			matched[k] = true
		}
		for _, k := range keywords {
			if !matched[k] {
				missing = append(missing, k)
			}
		}
		parts = append(parts, "Consider covering: "+strings.Join(missing, ", ")+".")
	}
	if qs.length < 0.34 {
		parts = append(parts, "Expand the answer with a concrete example.")
	}
	if len(parts) == 0 {
		return "Solid answer."
	}
	return strings.Join(parts, " ")
}

var metricLabels = map[string]string{
	MetricCommunication:      "communication",
	MetricTechnicalKnowledge: "technical knowledge",
	MetricCompleteness:       "completeness",
	MetricProblemSolving:     "problem solving",
}

var metricAdvice = map[string]string{
	MetricCommunication:      "Give fuller answers that walk through context, action and result.",
	MetricTechnicalKnowledge: "Review the core concepts of the topic and name them explicitly in answers.",
	MetricCompleteness:       "Answer every question, even briefly, instead of skipping.",
	MetricProblemSolving:     "Explain your reasoning and trade-offs, not only the final answer.",
}

func deterministicSummary(answered, total int, overall float64, metricScores map[string]float64) ParsedSummary {
	names := make([]string, 0, len(metricScores))
	for name := range metricScores {
		names = append(names, name)
	}
	sort.Strings(names)

	var strengths, weaknesses, recommendations []string
	for _, name := range names {
		switch score := metricScores[name]; {
		case score >= 70:
			strengths = append(strengths, metricLabels[name])
		case score < 50:
			weaknesses = append(weaknesses, metricLabels[name])
			recommendations = append(recommendations, metricAdvice[name])
		}
	}

	summary := ParsedSummary{
		Summary:      fmt.Sprintf("Answered %d of %d questions with an overall score of %.1f.", answered, total, overall),
		OverallScore: overall,
	}
	if len(strengths) > 0 {
		summary.Strengths = "Strong " + strings.Join(strengths, ", ") + "."
	}
	if len(weaknesses) > 0 {
		summary.Weaknesses = "Needs work on " + strings.Join(weaknesses, ", ") + "."
	}
	summary.Recommendations = strings.Join(recommendations, " ")
	return summary
}

func (e *Evaluator) summarizeWithModel(ctx context.Context, session *models.InterviewSession, questions []models.InterviewQuestion, baseline float64) (ParsedSummary, error) {
	var transcript strings.Builder
	for _, q := range questions {
		fmt.Fprintf(&transcript, "Q%d: %s\nA: %s\n\n", q.Position+1, q.Prompt, strings.TrimSpace(q.Answer))
	}

	system := buildInterviewerInstruction(session.AgentRole, session.Title) + "\n\n" + scoringGuidance(session.AgentRole) +
		"\n\nRespond with a single JSON object only: " +
		`{"summary": string, "strengths": string, "weaknesses": string, "recommendations": string, "overallScore": number}`
	prompt := fmt.Sprintf("Evaluate this interview. An automatic rubric scored it %.1f out of 100.\n\n%s", baseline, transcript.String())

	out, err := e.model.Generate(ctx, "evaluate", system, []Turn{{Role: models.RoleUser, Content: prompt}})
	if err != nil {
		return ParsedSummary{}, err
	}
	return parseAISummary(out)
}

// parseAISummary decodes the model's JSON summary and clamps the score to 0..100
func parseAISummary(aiResponse string) (ParsedSummary, error) {
	var parsed ParsedSummary
	if err := json.Unmarshal([]byte(stripCodeFence(aiResponse)), &parsed); err != nil {
		return ParsedSummary{}, fmt.Errorf("invalid summary: %w", err)
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return ParsedSummary{}, fmt.Errorf("summary is empty")
	}
	parsed.OverallScore = round2(math.Max(0, math.Min(100, parsed.OverallScore)))
	return parsed, nil
}

// scoringGuidance returns scoring criteria based on the interviewer's personality
func scoringGuidance(role *models.AIAgentRole) string {
	switch personaTone(role) {
	case "strict":
		return "Be very strict. Only give high scores (80+) for exceptional performance. Average performance should score 50-70."
	case "encouraging":
		return "Be encouraging and give credit for effort and potential. Average performance should score 60-80."
	case "challenging":
		return "Be challenging and thorough. Only give 85+ for outstanding performance. Average performance should score 40-70."
	default:
		return "Be fair and balanced. High scores (80+) for strong performance. Average performance should score 60-80."
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
