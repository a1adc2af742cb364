package services

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completedSession runs a custom interview to completion for the registered user
func completedSession(t *testing.T, env *testEnv, email string) *models.InterviewSession {
	t.Helper()
	user := env.user(email)
	session := startCustom(t, env, user)
	ctx := context.Background()
	_, err := env.server.Sessions().Answer(ctx, user, session.ID, "I size the pool by measuring throughput under load.")
	require.NoError(t, err)
	out, err := env.server.Sessions().Answer(ctx, user, session.ID, "A mutex guards shared state because ownership does not move.")
	require.NoError(t, err)
	require.Equal(t, models.SessionCompleted, out.Session.Status)
	return out.Session
}

func TestReportRequiresCompletedSession(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("report-active@example.com")
	session := startCustom(t, env, env.user("report-active@example.com"))

	rec := env.do(http.MethodGet, "/api/v1/sessions/"+session.ID+"/report.pdf", nil, cookies)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "reports are only available for completed sessions", errorMessage(t, rec))
}

func TestDownloadReport(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("report@example.com")
	other := env.register("report-other@example.com")
	session := completedSession(t, env, "report@example.com")

	rec := env.do(http.MethodGet, "/api/v1/sessions/"+session.ID+"/report.pdf", nil, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/sessions/"+session.ID+"/report.pdf", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "interview-report-"+session.ID+".pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestEmailReport(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("report-mail@example.com")
	session := completedSession(t, env, "report-mail@example.com")

	rec := env.do(http.MethodPost, "/api/v1/sessions/"+session.ID+"/report/email", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	msg, ok := env.mailer.last("report")
	require.True(t, ok)
	assert.Equal(t, "report-mail@example.com", msg.To)
	assert.Equal(t, "Your interview report: Platform Engineer", msg.Subject)
	assert.Contains(t, msg.Body, "Answered: 2 of 2 questions")
	require.Len(t, msg.Attachments, 1)
	assert.True(t, bytes.HasPrefix(msg.Attachments[0].Data, []byte("%PDF-")))

	env.mailer.err = errModelDown
	rec = env.do(http.MethodPost, "/api/v1/sessions/"+session.ID+"/report/email", nil, cookies)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", errorMessage(t, rec))
}

func TestRenderReportPDFWithoutAnswers(t *testing.T) {
	report := &Report{
		User:    &models.User{Email: "plain@example.com"},
		Session: &models.InterviewSession{ID: "s1", Title: "Café design review", Questions: []models.InterviewQuestion{{ID: "q1", Prompt: questionOne}}},
		Result: &models.InterviewResult{
			Summary:       "No answers were given.",
			MetricScores:  models.NewScoreMap(map[string]float64{"communication": 0}),
			QuestionCount: 1,
		},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderReportPDF(&buf, report))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	text := reportText(report)
	assert.Contains(t, text, `"Café design review"`)
	assert.Contains(t, text, "Answered: 0 of 1 questions")
	assert.NotContains(t, text, "Recommendations:")
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("dashboard@example.com")
	completedSession(t, env, "dashboard@example.com")
	startCustom(t, env, env.user("dashboard@example.com"))

	rec := env.do(http.MethodGet, "/api/v1/dashboard", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Stats          models.UserStats          `json:"stats"`
		RecentSessions []models.InterviewSession `json:"recent_sessions"`
	}
	decodeBody(t, rec, &body)
	assert.EqualValues(t, 2, body.Stats.TotalSessions)
	assert.EqualValues(t, 1, body.Stats.CompletedSessions)
	assert.EqualValues(t, 1, body.Stats.ActiveSessions)
	assert.Greater(t, body.Stats.AverageScore, 0.0)
	assert.Equal(t, body.Stats.AverageScore, body.Stats.BestScore)
	assert.Len(t, body.RecentSessions, 2)
}
