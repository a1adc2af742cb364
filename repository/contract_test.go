package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractRepo is the part of the storage contract both repositories are checked against
type contractRepo interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	CreateTopic(ctx context.Context, topic *models.Topic) error
	CreateSubTopic(ctx context.Context, subTopic *models.SubTopic) error
	GetSubTopic(ctx context.Context, id string) (*models.SubTopic, error)
	DeleteSubTopic(ctx context.Context, id string) error
	DeleteTopic(ctx context.Context, id string) error

	CreateCatalog(ctx context.Context, catalog *models.InterviewCatalog) error
	CreateCatalogItem(ctx context.Context, item *models.InterviewCatalogItem) error
	GetCatalogItem(ctx context.Context, id string) (*models.InterviewCatalogItem, error)

	CreateSession(ctx context.Context, session *models.InterviewSession, questions []models.InterviewQuestion) error
	GetSession(ctx context.Context, id string) (*models.InterviewSession, error)
	GetSessionWithDetails(ctx context.Context, id string) (*models.InterviewSession, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]models.InterviewSession, error)
	UpdateSession(ctx context.Context, session *models.InterviewSession) error
	DeleteSession(ctx context.Context, id string) error
	CreateChatMessage(ctx context.Context, message *models.ChatMessage) error
	ListChatMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	ListQuestions(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error)
	RecordAnswer(ctx context.Context, session *models.InterviewSession, question *models.InterviewQuestion, message *models.ChatMessage) error
	SaveEvaluation(ctx context.Context, result *models.InterviewResult, analyses []models.InterviewAnalysisResult) error
	GetResult(ctx context.Context, sessionID string) (*models.InterviewResult, error)
	ListAnalysisResults(ctx context.Context, sessionID string) ([]models.InterviewAnalysisResult, error)
	GetUserStats(ctx context.Context, userID string) (*models.UserStats, error)

	CreateNote(ctx context.Context, note *models.InterviewNote) error
	GetNote(ctx context.Context, id string) (*models.InterviewNote, error)

	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	DeleteGroup(ctx context.Context, id string) error
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateResource(ctx context.Context, resource *models.Resource) error
}

var (
	_ contractRepo = (*MemoryRepository)(nil)
	_ contractRepo = (*GORMRepository)(nil)
)

// runContract checks the behaviour services rely on regardless of the backing store
func runContract(t *testing.T, repo contractRepo) {
	t.Run("users", func(t *testing.T) { testUsers(t, repo) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, repo) })
	t.Run("record answer", func(t *testing.T) { testRecordAnswer(t, repo) })
	t.Run("subtopic delete detaches references", func(t *testing.T) { testSubTopicDelete(t, repo) })
	t.Run("groups", func(t *testing.T) { testGroups(t, repo) })
}

func newUser(t *testing.T, repo contractRepo) *models.User {
	t.Helper()
	user := &models.User{Email: uuid.NewString() + "@example.com", FullName: "Candidate", Role: "user"}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	require.NotEmpty(t, user.ID)
	return user
}

func newSession(t *testing.T, repo contractRepo, user *models.User, startedAt time.Time, prompts ...string) *models.InterviewSession {
	t.Helper()
	session := &models.InterviewSession{
		UserID:         user.ID,
		Title:          "Go Concurrency",
		Status:         models.SessionActive,
		StartedAt:      startedAt,
		LastActivityAt: startedAt,
	}
	questions := make([]models.InterviewQuestion, len(prompts))
	for i, p := range prompts {
		questions[i] = models.InterviewQuestion{
			Position:         i,
			Prompt:           p,
			ExpectedKeywords: models.NewStringList([]string{"goroutine"}),
		}
	}
	require.NoError(t, repo.CreateSession(context.Background(), session, questions))
	require.NotEmpty(t, session.ID)
	return session
}

func testUsers(t *testing.T, repo contractRepo) {
	ctx := context.Background()
	user := newUser(t, repo)

	dup := &models.User{Email: user.Email, Role: "user"}
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), ErrDuplicate)

	byEmail, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, user.Email, byID.Email)

	missing, err := repo.GetUserByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testSessions(t *testing.T, repo contractRepo) {
	ctx := context.Background()
	user := newUser(t, repo)
	start := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)

	older := newSession(t, repo, user, start, "first?")
	session := newSession(t, repo, user, start.Add(time.Minute), "second?", "first?")
	require.Len(t, session.Questions, 2)

	for _, content := range []string{"Welcome", "An answer"} {
		msg := &models.ChatMessage{SessionID: session.ID, Role: models.RoleAssistant, Content: content}
		require.NoError(t, repo.CreateChatMessage(ctx, msg))
	}
	messages, err := repo.ListChatMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, 1, messages[0].TurnOrder)
	assert.Equal(t, 2, messages[1].TurnOrder)

	detail, err := repo.GetSessionWithDetails(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, detail.Questions, 2)
	assert.Equal(t, "second?", detail.Questions[0].Prompt)
	assert.Len(t, detail.Messages, 2)
	assert.Nil(t, detail.Result)

	list, err := repo.ListSessions(ctx, user.ID, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, session.ID, list[0].ID, "newest first")

	session.Status = models.SessionCompleted
	session.Questions = nil
	require.NoError(t, repo.UpdateSession(ctx, session))

	result := &models.InterviewResult{
		SessionID:     session.ID,
		OverallScore:  80,
		Summary:       "good",
		MetricScores:  models.NewScoreMap(map[string]float64{"communication": 80}),
		Evaluator:     "heuristic",
		AnsweredCount: 2,
		QuestionCount: 2,
	}
	analyses := []models.InterviewAnalysisResult{
		{SessionID: session.ID, QuestionID: detail.Questions[1].ID, Position: 1, Score: 70, MatchedKeywords: models.NewStringList(nil)},
		{SessionID: session.ID, QuestionID: detail.Questions[0].ID, Position: 0, Score: 90, MatchedKeywords: models.NewStringList(nil)},
	}
	require.NoError(t, repo.SaveEvaluation(ctx, result, analyses))

	again := &models.InterviewResult{SessionID: session.ID, Summary: "again", Evaluator: "heuristic", MetricScores: models.NewScoreMap(nil)}
	assert.ErrorIs(t, repo.SaveEvaluation(ctx, again, nil), ErrDuplicate)

	stored, err := repo.ListAnalysisResults(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 0, stored[0].Position)

	stats, err := repo.GetUserStats(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalSessions)
	assert.EqualValues(t, 1, stats.CompletedSessions)
	assert.EqualValues(t, 1, stats.ActiveSessions)
	assert.EqualValues(t, 2, stats.TotalMessages)
	assert.InDelta(t, 80.0, stats.AverageScore, 0.001)

	note := &models.InterviewNote{SessionID: session.ID, UserID: user.ID, Content: "remember"}
	require.NoError(t, repo.CreateNote(ctx, note))

	require.NoError(t, repo.DeleteSession(ctx, session.ID))
	gone, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	noResult, err := repo.GetResult(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, noResult)
	noNote, err := repo.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Nil(t, noNote)

	kept, err := repo.GetSession(ctx, older.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func testSubTopicDelete(t *testing.T, repo contractRepo) {
	ctx := context.Background()
	user := newUser(t, repo)

	topic := &models.Topic{UserID: user.ID, Name: "Backend", IsPublished: true}
	require.NoError(t, repo.CreateTopic(ctx, topic))
	sub := &models.SubTopic{TopicID: topic.ID, UserID: user.ID, Name: "Caching", Difficulty: "easy"}
	require.NoError(t, repo.CreateSubTopic(ctx, sub))

	catalog := &models.InterviewCatalog{UserID: user.ID, Title: "Loop"}
	require.NoError(t, repo.CreateCatalog(ctx, catalog))
	item := &models.InterviewCatalogItem{
		CatalogID:     catalog.ID,
		SubTopicID:    &sub.ID,
		Title:         "Caching",
		Questions:     models.NewStringList(nil),
		QuestionCount: 3,
	}
	require.NoError(t, repo.CreateCatalogItem(ctx, item))

	session := newSession(t, repo, user, time.Now().UTC())
	session.SubTopicID = &sub.ID
	require.NoError(t, repo.UpdateSession(ctx, session))

	require.NoError(t, repo.DeleteSubTopic(ctx, sub.ID))

	gone, err := repo.GetSubTopic(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	storedItem, err := repo.GetCatalogItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, storedItem)
	assert.Nil(t, storedItem.SubTopicID)

	storedSession, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, storedSession)
	assert.Nil(t, storedSession.SubTopicID)
	assert.Equal(t, "Go Concurrency", storedSession.Title)

	require.NoError(t, repo.DeleteTopic(ctx, topic.ID))
}

func testGroups(t *testing.T, repo contractRepo) {
	ctx := context.Background()
	user := newUser(t, repo)

	group := &models.Group{UserID: user.ID, Name: "Study"}
	require.NoError(t, repo.CreateGroup(ctx, group))
	task := &models.Task{GroupID: group.ID, Title: "Read"}
	require.NoError(t, repo.CreateTask(ctx, task))
	resource := &models.Resource{GroupID: group.ID, Title: "Docs", URL: "https://go.dev/doc"}
	require.NoError(t, repo.CreateResource(ctx, resource))

	loaded, err := repo.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Tasks, 1)
	assert.Equal(t, "todo", loaded.Tasks[0].Status)
	require.Len(t, loaded.Resources, 1)
	assert.Equal(t, "link", loaded.Resources[0].Kind)

	require.NoError(t, repo.DeleteGroup(ctx, group.ID))
	gone, err := repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testRecordAnswer(t *testing.T, repo contractRepo) {
	ctx := context.Background()
	user := newUser(t, repo)
	session := newSession(t, repo, user, time.Now().UTC().Truncate(time.Second), "first?", "second?")
	greeting := &models.ChatMessage{SessionID: session.ID, Role: models.RoleAssistant, Content: "Welcome"}
	require.NoError(t, repo.CreateChatMessage(ctx, greeting))

	questions, err := repo.ListQuestions(ctx, session.ID)
	require.NoError(t, err)
	question := questions[0]
	answeredAt := time.Now().UTC().Truncate(time.Second)
	question.Answer = "my answer"
	question.AnsweredAt = &answeredAt
	session.CurrentQuestion = 1
	session.Questions = nil

	message := &models.ChatMessage{SessionID: session.ID, Role: models.RoleUser, Content: "my answer"}
	require.NoError(t, repo.RecordAnswer(ctx, session, &question, message))
	assert.Equal(t, 2, message.TurnOrder)

	stored, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentQuestion)

	questions, err = repo.ListQuestions(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "my answer", questions[0].Answer)
	assert.Empty(t, questions[1].Answer)
}
