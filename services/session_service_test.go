package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/krshsl/interviewcoach/backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	questionOne = "How do you size a goroutine pool?"
	questionTwo = "When would you reach for a mutex over a channel?"
)

func startCustom(t *testing.T, env *testEnv, user *models.User) *models.InterviewSession {
	t.Helper()
	interview := env.customInterview(user, questionOne, questionTwo)
	session, err := env.server.Sessions().Start(context.Background(), user, StartSessionRequest{
		CustomInterviewID: &interview.ID,
	})
	require.NoError(t, err)
	return session
}

func TestStartRequiresExactlyOneSource(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("one@example.com")
	sessions := env.server.Sessions()

	_, err := sessions.Start(context.Background(), user, StartSessionRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	sub := env.publishedSubTopic(user, "easy")
	interview := env.customInterview(user, questionOne)
	_, err = sessions.Start(context.Background(), user, StartSessionRequest{
		SubTopicID:        &sub.ID,
		CustomInterviewID: &interview.ID,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = sessions.Start(context.Background(), user, StartSessionRequest{
		SubTopicID:    &sub.ID,
		QuestionCount: maxQuestionCount + 1,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStartFromSubTopicUsesTemplates(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("templates@example.com")
	sub := env.publishedSubTopic(user, "easy")

	session, err := env.server.Sessions().Start(context.Background(), user, StartSessionRequest{SubTopicID: &sub.ID})
	require.NoError(t, err)

	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, "Go Concurrency", session.Title)
	require.Len(t, session.Questions, 5)
	assert.Equal(t, "What is Go Concurrency and what problem does it solve?", session.Questions[0].Prompt)

	require.Len(t, session.Messages, 1)
	greeting := session.Messages[0]
	assert.Equal(t, models.RoleAssistant, greeting.Role)
	assert.True(t, strings.HasPrefix(greeting.Content, "Hi, I'm your interviewer. Welcome to your Go Concurrency interview. Let's begin."))
	assert.True(t, strings.HasSuffix(greeting.Content, session.Questions[0].Prompt))
}

func TestStartHidesOtherUsersPrivateSources(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("owner@example.com")
	other := env.createUser("other@example.com")
	interview := env.customInterview(owner, questionOne)

	_, err := env.server.Sessions().Start(context.Background(), other, StartSessionRequest{CustomInterviewID: &interview.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartTruncatesExplicitQuestions(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("truncate@example.com")
	interview := env.customInterview(user, questionOne, questionTwo)

	session, err := env.server.Sessions().Start(context.Background(), user, StartSessionRequest{
		CustomInterviewID: &interview.ID,
		QuestionCount:     1,
	})
	require.NoError(t, err)
	require.Len(t, session.Questions, 1)
	assert.Equal(t, questionOne, session.Questions[0].Prompt)
}

func TestStartWithAgentRole(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("agent@example.com")
	role := &models.AIAgentRole{Name: "Lisa Wang", Personality: "Strict and precise", IsPublic: true, IsActive: true}
	require.NoError(t, env.repo.CreateAgentRole(context.Background(), role))
	interview := env.customInterview(user, questionOne)

	session, err := env.server.Sessions().Start(context.Background(), user, StartSessionRequest{
		CustomInterviewID: &interview.ID,
		AgentRoleID:       &role.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, session.AgentRoleID)
	assert.Equal(t, role.ID, *session.AgentRoleID)
	assert.Contains(t, session.Messages[0].Content, "Hi, I'm Lisa Wang.")
	assert.Contains(t, session.Messages[0].Content, "I will be direct, so please be precise.")

	missing := "does-not-exist"
	_, err = env.server.Sessions().Start(context.Background(), user, StartSessionRequest{
		CustomInterviewID: &interview.ID,
		AgentRoleID:       &missing,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnswerFlowCompletesSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("flow@example.com")
	sessions := env.server.Sessions()
	session := startCustom(t, env, user)
	ctx := context.Background()

	out, err := sessions.Answer(ctx, user, session.ID, "I size the goroutine pool by measuring throughput.")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Session.CurrentQuestion)
	assert.Nil(t, out.Result)
	assert.Equal(t, models.RoleUser, out.UserMessage.Role)
	assert.Equal(t, "Thanks. Try to go into more detail on the next one.\n\n"+questionTwo, out.Reply.Content)

	out, err = sessions.Answer(ctx, user, session.ID, "A mutex protects shared state because a channel would add ownership transfer I do not need.")
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, models.SessionCompleted, out.Session.Status)
	assert.Equal(t, "That was the last question. Thank you for your time, your evaluation is ready.", out.Reply.Content)
	assert.Equal(t, 2, out.Result.AnsweredCount)
	assert.Equal(t, 2, out.Result.QuestionCount)
	assert.Equal(t, EvaluatorHeuristic, out.Result.Evaluator)
	assert.Greater(t, out.Result.OverallScore, 0.0)

	_, err = sessions.Answer(ctx, user, session.ID, "one more")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, result, analyses, err := sessions.Result(ctx, user, session.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Result.ID, result.ID)
	assert.Len(t, analyses, 2)

	messages, err := sessions.Messages(ctx, user, session.ID)
	require.NoError(t, err)
	// greeting, answer, follow-up, answer, closing
	require.Len(t, messages, 5)
	for i, m := range messages {
		assert.Equal(t, i+1, m.TurnOrder)
	}
}

func TestAnswerValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("validate@example.com")
	session := startCustom(t, env, user)
	sessions := env.server.Sessions()

	_, err := sessions.Answer(context.Background(), user, session.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = sessions.Answer(context.Background(), user, session.ID, strings.Repeat("a", maxAnswerLength+1))
	assert.ErrorIs(t, err, ErrValidation)

	other := env.createUser("intruder@example.com")
	_, err = sessions.Answer(context.Background(), other, session.ID, "hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPauseResumeAccumulatesPausedTime(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("pause@example.com")
	session := startCustom(t, env, user)
	sessions := env.server.Sessions()
	ctx := context.Background()

	paused, err := sessions.Pause(ctx, user, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)

	_, err = sessions.Pause(ctx, user, session.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = sessions.Answer(ctx, user, session.ID, "answer while paused")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	env.clock.Advance(90 * time.Second)

	resumed, err := sessions.Resume(ctx, user, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	assert.Equal(t, 90, resumed.PausedSeconds)

	_, err = sessions.Resume(ctx, user, session.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteEvaluatesAndIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("complete@example.com")
	session := startCustom(t, env, user)
	sessions := env.server.Sessions()
	ctx := context.Background()

	env.clock.Advance(2 * time.Minute)
	completed, result, err := sessions.Complete(ctx, user, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, completed.Status)
	require.NotNil(t, completed.EndedAt)
	assert.Equal(t, 120, completed.Duration)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.AnsweredCount)
	assert.Equal(t, 0.0, result.OverallScore)

	_, _, err = sessions.Complete(ctx, user, session.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = sessions.Pause(ctx, user, session.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResultMissingForActiveSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("result@example.com")
	session := startCustom(t, env, user)

	_, _, _, err := env.server.Sessions().Result(context.Background(), user, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIdleSessionIsAbandonedAndEvaluated(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("idle@example.com")
	session := startCustom(t, env, user)
	sessions := env.server.Sessions()
	ctx := context.Background()

	_, err := sessions.Answer(ctx, user, session.ID, "I measure throughput and size the goroutine pool to the cores.")
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, env.server.sweeper.Sweep(ctx))

	env.clock.Advance(21 * time.Minute)
	assert.Equal(t, 1, env.server.sweeper.Sweep(ctx))

	stored, err := sessions.Get(ctx, user, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionAbandoned, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, 1, stored.Result.AnsweredCount)

	last := stored.Messages[len(stored.Messages)-1]
	assert.Equal(t, models.RoleSystem, last.Role)

	// A second sweep finds nothing left to abandon
	env.clock.Advance(time.Hour)
	assert.Equal(t, 0, env.server.sweeper.Sweep(ctx))

	_, err = sessions.Report(ctx, user, session.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestIdleSessionWithoutAnswersIsNotEvaluated(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("silent@example.com")
	session := startCustom(t, env, user)
	ctx := context.Background()

	env.clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, env.server.sweeper.Sweep(ctx))

	_, _, _, err := env.server.Sessions().Result(ctx, user, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPausedSessionIsNotSwept(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("paused-idle@example.com")
	session := startCustom(t, env, user)
	ctx := context.Background()

	_, err := env.server.Sessions().Pause(ctx, user, session.ID)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	assert.Equal(t, 0, env.server.sweeper.Sweep(ctx))
}

func TestDeleteManyRequiresOwnershipOfAll(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("bulk@example.com")
	other := env.createUser("bulk-other@example.com")
	mine := startCustom(t, env, owner)
	theirs := startCustom(t, env, other)
	sessions := env.server.Sessions()
	ctx := context.Background()

	_, err := sessions.DeleteMany(ctx, owner, []string{mine.ID, theirs.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = sessions.Get(ctx, owner, mine.ID)
	require.NoError(t, err, "nothing is deleted when one id is foreign")

	deleted, err := sessions.DeleteMany(ctx, owner, []string{mine.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = sessions.Get(ctx, owner, mine.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreActivityTracksActiveSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("restore@example.com")
	startCustom(t, env, user)
	paused := startCustom(t, env, user)
	_, err := env.server.Sessions().Pause(context.Background(), user, paused.ID)
	require.NoError(t, err)

	restored, err := env.server.Sessions().RestoreActivity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
}

type recordingBroadcaster struct {
	events []SessionEvent
}

func (b *recordingBroadcaster) Broadcast(_ string, event interface{}) {
	b.events = append(b.events, event.(SessionEvent))
}

func TestAnswerBroadcastsMessages(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("broadcast@example.com")
	interview := env.customInterview(user, questionOne, questionTwo)

	b := &recordingBroadcaster{}
	sessions := NewSessionService(env.repo, SessionServiceOptions{Clock: env.clock, Broadcaster: b})
	session, err := sessions.Start(context.Background(), user, StartSessionRequest{CustomInterviewID: &interview.ID})
	require.NoError(t, err)

	_, err = sessions.Answer(context.Background(), user, session.ID, "first answer")
	require.NoError(t, err)

	require.Len(t, b.events, 2)
	assert.Equal(t, EventMessage, b.events[0].Type)
	assert.Equal(t, models.RoleUser, b.events[0].Message.Role)
	assert.Equal(t, models.RoleAssistant, b.events[1].Message.Role)
}

func TestSessionEndpointsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("http-flow@example.com")
	user := env.user("http-flow@example.com")
	interview := env.customInterview(user, questionOne, questionTwo)

	rec := env.do(http.MethodPost, "/api/v1/sessions", StartSessionRequest{CustomInterviewID: &interview.ID}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started struct {
		Session models.InterviewSession `json:"session"`
		Message string                  `json:"message"`
	}
	decodeBody(t, rec, &started)
	assert.Equal(t, "Session created successfully", started.Message)
	id := started.Session.ID

	rec = env.do(http.MethodPost, "/api/v1/sessions/"+id+"/pause", nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/api/v1/sessions/"+id+"/pause", nil, cookies)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cannot pause a paused session", errorMessage(t, rec))
	rec = env.do(http.MethodPost, "/api/v1/sessions/"+id+"/resume", nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/sessions/"+id+"/answer", AnswerRequest{Content: ""}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/sessions/"+id+"/answer", AnswerRequest{Content: "first"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPost, "/api/v1/sessions/"+id+"/answer", AnswerRequest{Content: "second"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var final AnswerResult
	decodeBody(t, rec, &final)
	require.NotNil(t, final.Result)
	assert.Equal(t, models.SessionCompleted, final.Session.Status)

	rec = env.do(http.MethodGet, "/api/v1/sessions/"+id+"/result", nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/sessions?limit=10", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = env.do(http.MethodGet, "/api/v1/sessions?limit=-1", nil, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/api/v1/sessions/"+id, nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/v1/sessions/"+id, nil, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionEndpointsHideForeignSessions(t *testing.T) {
	env := newTestEnv(t)
	ownerCookies := env.register("http-owner@example.com")
	otherCookies := env.register("http-other@example.com")
	owner := env.user("http-owner@example.com")
	interview := env.customInterview(owner, questionOne)

	rec := env.do(http.MethodPost, "/api/v1/sessions", StartSessionRequest{CustomInterviewID: &interview.ID}, ownerCookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started struct {
		Session models.InterviewSession `json:"session"`
	}
	decodeBody(t, rec, &started)

	for _, path := range []string{"", "/messages", "/result", "/ws"} {
		rec = env.do(http.MethodGet, "/api/v1/sessions/"+started.Session.ID+path, nil, otherCookies)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec = env.do(http.MethodDelete, "/api/v1/sessions/bulk", BulkDeleteRequest{SessionIDs: []string{started.Session.ID}}, otherCookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/api/v1/sessions/bulk", BulkDeleteRequest{}, ownerCookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/v1/sessions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", errorMessage(t, rec))
}

func TestTransitionErrorUnwrapsToSentinel(t *testing.T) {
	err := transitionError("answer", models.SessionCompleted)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, http.StatusConflict, err.HTTPStatus())
	assert.Equal(t, "cannot answer a completed session", err.Message)
}

// replyFailingStore fails assistant message writes while failReplies is set
type replyFailingStore struct {
	*repository.MemoryRepository
	failReplies bool
}

func (s *replyFailingStore) CreateChatMessage(ctx context.Context, message *models.ChatMessage) error {
	if s.failReplies && message.Role == models.RoleAssistant {
		return errors.New("insert failed")
	}
	return s.MemoryRepository.CreateChatMessage(ctx, message)
}

func TestAnswerIsNotReplayedAfterReplyFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	store := &replyFailingStore{MemoryRepository: env.repo}
	env.server = NewServer(testConfig(), ServerDeps{
		Store:    store,
		Mailer:   env.mailer,
		Clock:    env.clock,
		Registry: metrics.NewRegistry(),
	})
	user := env.createUser("reply-failure@example.com")
	session := startCustom(t, env, user)
	sessions := env.server.Sessions()

	store.failReplies = true
	_, err := sessions.Answer(ctx, user, session.ID, "Measure throughput first.")
	require.Error(t, err)
	store.failReplies = false

	stored, err := env.repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentQuestion, "the answer is committed with the session")

	out, err := sessions.Answer(ctx, user, session.ID, "A mutex guards shared state.")
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	questions, err := env.repo.ListQuestions(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "Measure throughput first.", questions[0].Answer)
	assert.Equal(t, "A mutex guards shared state.", questions[1].Answer)

	messages, err := env.repo.ListChatMessages(ctx, session.ID)
	require.NoError(t, err)
	users := 0
	for _, m := range messages {
		if m.Role == models.RoleUser {
			users++
		}
	}
	assert.Equal(t, 2, users)
}

func TestConfiguredQuestionCountIsClamped(t *testing.T) {
	env := newTestEnv(t)
	cfg := testConfig()
	cfg.Interview.QuestionCount = 50
	env.server = NewServer(cfg, ServerDeps{
		Store:    env.repo,
		Mailer:   env.mailer,
		Clock:    env.clock,
		Registry: metrics.NewRegistry(),
	})
	user := env.createUser("clamp@example.com")
	sub := env.publishedSubTopic(user, "medium")

	session, err := env.server.Sessions().Start(context.Background(), user, StartSessionRequest{SubTopicID: &sub.ID})
	require.NoError(t, err)
	assert.Len(t, session.Questions, maxQuestionCount)
}

func TestSessionLockSurvivesTerminalTransition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.createUser("locks@example.com")
	sessions := env.server.Sessions()
	session := startCustom(t, env, user)

	var wg sync.WaitGroup
	errs := make(chan error, 9)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := sessions.Complete(ctx, user, session.ID)
		errs <- err
	}()
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sessions.Answer(ctx, user, session.ID, "An answer racing completion.")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}

	_, loaded := sessions.locks.Load(session.ID)
	assert.True(t, loaded, "finished sessions keep their mutex")

	stored, err := env.repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, stored.Status)
	result, err := env.repo.GetResult(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, result)
}
