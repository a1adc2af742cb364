package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/krshsl/interviewcoach/backend/repository"
	"github.com/stretchr/testify/require"
)

const testPassword = "password123"

func testConfig() *Config {
	return &Config{
		Environment: "test",
		JWT:         JWTConfig{Secret: "test-secret"},
		App:         AppConfig{BaseURL: "http://localhost:3000"},
		WebSocket:   WebSocketConfig{AllowedOrigins: "http://localhost:5173"},
		RateLimit:   RateLimitConfig{RPS: 100, Burst: 100},
		Interview: InterviewConfig{
			QuestionCount: 5,
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(kind string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i], true
		}
	}
	return Message{}, false
}

// fakeModel replies with the queued responses in order, then with fallback
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	fallback  string
	err       error
	calls     int
}

func (m *fakeModel) Generate(_ context.Context, _ string, _ []Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) > 0 {
		out := m.responses[0]
		m.responses = m.responses[1:]
		return out, nil
	}
	return m.fallback, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var errModelDown = errors.New("model down")

type testEnv struct {
	t      *testing.T
	repo   *repository.MemoryRepository
	clock  *clockwork.FakeClock
	mailer *recordingMailer
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithModel(t, nil)
}

func newTestEnvWithModel(t *testing.T, model LanguageModel) *testEnv {
	t.Helper()
	env := &testEnv{
		t:      t,
		repo:   repository.NewMemoryRepository(),
		clock:  clockwork.NewFakeClockAt(time.Now()),
		mailer: &recordingMailer{},
	}
	env.server = NewServer(testConfig(), ServerDeps{
		Store:    env.repo,
		Model:    model,
		Mailer:   env.mailer,
		Clock:    env.clock,
		Registry: metrics.NewRegistry(),
	})
	return env
}

func (e *testEnv) do(method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// register signs up a new account and returns its auth cookies
func (e *testEnv) register(email string) []*http.Cookie {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Email:    email,
		Password: testPassword,
		FullName: "Test User",
	}, nil)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return rec.Result().Cookies()
}

func (e *testEnv) user(email string) *models.User {
	e.t.Helper()
	user, err := e.repo.GetUserByEmail(context.Background(), email)
	require.NoError(e.t, err)
	require.NotNil(e.t, user)
	return user
}

// createUser stores a user directly, skipping password hashing
func (e *testEnv) createUser(email string) *models.User {
	e.t.Helper()
	user := &models.User{Email: email, FullName: "Candidate", Role: "user"}
	require.NoError(e.t, e.repo.CreateUser(context.Background(), user))
	return user
}

// publishedSubTopic creates a published topic with one subtopic owned by owner
func (e *testEnv) publishedSubTopic(owner *models.User, difficulty string) *models.SubTopic {
	e.t.Helper()
	ctx := context.Background()
	topic := &models.Topic{UserID: owner.ID, Name: "Backend", IsPublished: true}
	require.NoError(e.t, e.repo.CreateTopic(ctx, topic))
	sub := &models.SubTopic{
		TopicID:     topic.ID,
		UserID:      owner.ID,
		Name:        "Go Concurrency",
		Description: "goroutines channels mutexes",
		Difficulty:  difficulty,
		IsPublished: true,
	}
	require.NoError(e.t, e.repo.CreateSubTopic(ctx, sub))
	return sub
}

// customInterview creates a private custom interview with explicit questions
func (e *testEnv) customInterview(owner *models.User, questions ...string) *models.CustomInterview {
	e.t.Helper()
	interview := &models.CustomInterview{
		UserID:    owner.ID,
		Title:     "Platform Engineer",
		Questions: models.NewStringList(questions),
	}
	require.NoError(e.t, e.repo.CreateCustomInterview(context.Background(), interview))
	return interview
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error
}

func strPtr(s string) *string {
	return &s
}
