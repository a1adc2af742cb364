package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/krshsl/interviewcoach/backend/models"
)

const (
	DefaultQuestionCount = 5
	maxAnswerLength      = 10000
)

// Live event types pushed to websocket clients
const (
	EventMessage = "message"
	EventStatus  = "status"
	EventError   = "error"
)

// SessionEvent is one frame pushed to every live client of a session
type SessionEvent struct {
	Type    string              `json:"type"`
	Message *models.ChatMessage `json:"message,omitempty"`
	Status  string              `json:"status,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Broadcaster delivers an event to every client watching sessionID
type Broadcaster interface {
	Broadcast(sessionID string, event interface{})
}

// SessionRepository is the persistence SessionService needs
type SessionRepository interface {
	SessionStore
	TopicStore
	CatalogStore
	AgentRoleStore
}

type SessionServiceOptions struct {
	Interviewer   *Interviewer
	Evaluator     *Evaluator
	Tracker       ActivityTracker
	Clock         clockwork.Clock
	Metrics       *metrics.Metrics
	Broadcaster   Broadcaster
	QuestionCount int
}

// SessionService owns the interview lifecycle. Operations on one session are serialized.
type SessionService struct {
	repo          SessionRepository
	interviewer   *Interviewer
	evaluator     *Evaluator
	tracker       ActivityTracker
	clock         clockwork.Clock
	metrics       *metrics.Metrics
	broadcaster   Broadcaster
	questionCount int

	// session id -> *sync.Mutex. Entries are never removed so a waiter and a newcomer always share one mutex.
	locks sync.Map
}

type StartSessionRequest struct {
	SubTopicID        *string `json:"subtopic_id"`
	CatalogItemID     *string `json:"catalog_item_id"`
	CustomInterviewID *string `json:"custom_interview_id"`
	AgentRoleID       *string `json:"agent_role_id"`
	QuestionCount     int     `json:"question_count"`
}

// AnswerResult is what one answer produced
type AnswerResult struct {
	Session     *models.InterviewSession `json:"session"`
	UserMessage *models.ChatMessage      `json:"user_message"`
	Reply       *models.ChatMessage      `json:"reply"`
	Result      *models.InterviewResult  `json:"result,omitempty"`
}

func NewSessionService(repo SessionRepository, opts SessionServiceOptions) *SessionService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Tracker == nil {
		opts.Tracker = NewMemoryActivityTracker()
	}
	if opts.Interviewer == nil {
		opts.Interviewer = NewInterviewer(nil)
	}
	if opts.Evaluator == nil {
		opts.Evaluator = NewEvaluator(nil)
	}
	if opts.QuestionCount <= 0 {
		opts.QuestionCount = DefaultQuestionCount
	}
	if opts.QuestionCount > maxQuestionCount {
		slog.Warn("Configured question count above the maximum, clamping", "configured", opts.QuestionCount, "max", maxQuestionCount)
		opts.QuestionCount = maxQuestionCount
	}

	return &SessionService{
		repo:          repo,
		interviewer:   opts.Interviewer,
		evaluator:     opts.Evaluator,
		tracker:       opts.Tracker,
		clock:         opts.Clock,
		metrics:       opts.Metrics,
		broadcaster:   opts.Broadcaster,
		questionCount: opts.QuestionCount,
	}
}

// SetBroadcaster attaches the live chat hub after construction
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *SessionService) lock(sessionID string) func() {
	m, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *SessionService) publish(sessionID string, event SessionEvent) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(sessionID, event)
	}
}

func (s *SessionService) touch(ctx context.Context, sessionID string, at time.Time) {
	if err := s.tracker.Touch(ctx, sessionID, at); err != nil {
		slog.Warn("Failed to record session activity", "session_id", sessionID, "error", err)
	}
}

func (s *SessionService) untrack(ctx context.Context, sessionID string) {
	if err := s.tracker.Remove(ctx, sessionID); err != nil {
		slog.Warn("Failed to stop tracking session", "session_id", sessionID, "error", err)
	}
}

// load returns the session when user owns it. Sessions of other users are reported as missing.
func (s *SessionService) load(ctx context.Context, user *models.User, id string) (*models.InterviewSession, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != user.ID {
		return nil, notFoundError("session")
	}
	return session, nil
}

func nonEmpty(id *string) bool {
	return id != nil && strings.TrimSpace(*id) != ""
}

// Start creates a session from exactly one question source and asks the first question
func (s *SessionService) Start(ctx context.Context, user *models.User, req StartSessionRequest) (*models.InterviewSession, error) {
	sources := 0
	for _, id := range []*string{req.SubTopicID, req.CatalogItemID, req.CustomInterviewID} {
		if nonEmpty(id) {
			sources++
		}
	}
	if sources != 1 {
		return nil, validationError("exactly one of subtopic_id, catalog_item_id or custom_interview_id is required")
	}
	if req.QuestionCount < 0 || req.QuestionCount > maxQuestionCount {
		return nil, validationError("question_count must be between 0 and %d", maxQuestionCount)
	}

	session := &models.InterviewSession{UserID: user.ID, Status: models.SessionActive}
	src, count, err := s.resolveSource(ctx, user, req, session)
	if err != nil {
		return nil, err
	}

	var role *models.AIAgentRole
	if nonEmpty(req.AgentRoleID) {
		role, err = s.repo.GetAgentRole(ctx, *req.AgentRoleID)
		if err != nil {
			return nil, err
		}
		if role == nil || !visibleRole(user, role) {
			return nil, notFoundError("agent")
		}
		session.AgentRoleID = &role.ID
	}

	plan := s.interviewer.PlanQuestions(ctx, src, count)
	if len(plan) == 0 {
		return nil, validationError("interview has no questions")
	}

	now := s.clock.Now()
	session.Title = src.Title
	session.StartedAt = now
	session.LastActivityAt = now

	questions := make([]models.InterviewQuestion, 0, len(plan))
	for i, q := range plan {
		questions = append(questions, models.InterviewQuestion{
			Position:         i,
			Prompt:           q.Prompt,
			ExpectedKeywords: models.NewStringList(q.Keywords),
		})
	}
	if err := s.repo.CreateSession(ctx, session, questions); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	greeting := &models.ChatMessage{
		SessionID: session.ID,
		Role:      models.RoleAssistant,
		Content:   s.interviewer.Greeting(ctx, role, session.Title, plan[0].Prompt),
	}
	if err := s.repo.CreateChatMessage(ctx, greeting); err != nil {
		return nil, fmt.Errorf("failed to store greeting: %w", err)
	}

	session.AgentRole = role
	session.Messages = []models.ChatMessage{*greeting}
	s.touch(ctx, session.ID, now)
	s.metrics.Session(metrics.SessionStarted)

	slog.Info("Interview session started", "session_id", session.ID, "user_id", user.ID, "questions", len(questions))
	return session, nil
}

// resolveSource checks that the requested source is visible to user and links it to session
func (s *SessionService) resolveSource(ctx context.Context, user *models.User, req StartSessionRequest, session *models.InterviewSession) (QuestionSource, int, error) {
	count := req.QuestionCount

	switch {
	case nonEmpty(req.SubTopicID):
		subTopic, err := s.repo.GetSubTopic(ctx, *req.SubTopicID)
		if err != nil {
			return QuestionSource{}, 0, err
		}
		if subTopic == nil || !canView(user, subTopic.UserID, subTopic.IsPublished) {
			return QuestionSource{}, 0, notFoundError("subtopic")
		}
		session.SubTopicID = &subTopic.ID
		if count == 0 {
			count = s.questionCount
		}
		return QuestionSource{
			Title:       subTopic.Name,
			Subject:     subTopic.Name,
			Description: subTopic.Description,
			Difficulty:  subTopic.Difficulty,
		}, count, nil

	case nonEmpty(req.CatalogItemID):
		item, err := s.repo.GetCatalogItem(ctx, *req.CatalogItemID)
		if err != nil {
			return QuestionSource{}, 0, err
		}
		if item == nil {
			return QuestionSource{}, 0, notFoundError("catalog item")
		}
		catalog, err := s.repo.GetCatalog(ctx, item.CatalogID)
		if err != nil {
			return QuestionSource{}, 0, err
		}
		if catalog == nil || !canView(user, catalog.UserID, catalog.IsPublished) {
			return QuestionSource{}, 0, notFoundError("catalog item")
		}
		session.CatalogItemID = &item.ID

		src := QuestionSource{
			Title:     item.Title,
			Subject:   item.Title,
			Questions: models.StringList(item.Questions),
		}
		if item.SubTopic != nil {
			src.Subject = item.SubTopic.Name
			src.Description = item.SubTopic.Description
			src.Difficulty = item.SubTopic.Difficulty
		}
		if count == 0 && len(src.Questions) == 0 {
			count = item.QuestionCount
			if count == 0 {
				count = s.questionCount
			}
		}
		return src, count, nil

	default:
		interview, err := s.repo.GetCustomInterview(ctx, *req.CustomInterviewID)
		if err != nil {
			return QuestionSource{}, 0, err
		}
		if interview == nil || !canView(user, interview.UserID, interview.IsPublished) {
			return QuestionSource{}, 0, notFoundError("custom interview")
		}
		session.CustomInterviewID = &interview.ID
		return QuestionSource{
			Title:          interview.Title,
			Subject:        interview.Title,
			Description:    interview.Description,
			JobDescription: interview.JobDescription,
			Questions:      models.StringList(interview.Questions),
		}, count, nil
	}
}

func (s *SessionService) Pause(ctx context.Context, user *models.User, id string) (*models.InterviewSession, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, transitionError("pause", session.Status)
	}

	now := s.clock.Now()
	session.Status = models.SessionPaused
	session.PausedAt = &now
	session.LastActivityAt = now
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to pause session: %w", err)
	}
	s.untrack(ctx, session.ID)
	s.publish(session.ID, SessionEvent{Type: EventStatus, Status: session.Status})

	slog.Info("Interview session paused", "session_id", session.ID, "user_id", user.ID)
	return session, nil
}

func (s *SessionService) Resume(ctx context.Context, user *models.User, id string) (*models.InterviewSession, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionPaused {
		return nil, transitionError("resume", session.Status)
	}

	now := s.clock.Now()
	accumulatePause(session, now)
	session.Status = models.SessionActive
	session.LastActivityAt = now
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to resume session: %w", err)
	}
	s.touch(ctx, session.ID, now)
	s.publish(session.ID, SessionEvent{Type: EventStatus, Status: session.Status})

	slog.Info("Interview session resumed", "session_id", session.ID, "user_id", user.ID, "paused_seconds", session.PausedSeconds)
	return session, nil
}

func accumulatePause(session *models.InterviewSession, now time.Time) {
	if session.PausedAt == nil {
		return
	}
	if paused := now.Sub(*session.PausedAt); paused > 0 {
		session.PausedSeconds += int(paused.Seconds())
	}
	session.PausedAt = nil
}

// Complete finishes a session on the candidate's request and evaluates it
func (s *SessionService) Complete(ctx context.Context, user *models.User, id string) (*models.InterviewSession, *models.InterviewResult, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, user, id)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != models.SessionActive && session.Status != models.SessionPaused {
		return nil, nil, transitionError("complete", session.Status)
	}

	result, err := s.finish(ctx, session, models.SessionCompleted, true)
	if err != nil {
		return nil, nil, err
	}
	return session, result, nil
}

// Abandon ends an idle active session. It is called by the sweeper, not by users.
func (s *SessionService) Abandon(ctx context.Context, id string, idleSince time.Time) error {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return notFoundError("session")
	}
	if session.Status != models.SessionActive {
		return transitionError("abandon", session.Status)
	}
	// Activity after the sweeper's snapshot wins
	if session.LastActivityAt.After(idleSince) {
		return ErrRecentActivity
	}

	notice := &models.ChatMessage{
		SessionID: session.ID,
		Role:      models.RoleSystem,
		Content:   "The session ended after a period of inactivity.",
	}
	if err := s.repo.CreateChatMessage(ctx, notice); err != nil {
		slog.Warn("Failed to store abandon notice", "session_id", session.ID, "error", err)
	} else {
		s.publish(session.ID, SessionEvent{Type: EventMessage, Message: notice})
	}

	questions, err := s.repo.ListQuestions(ctx, session.ID)
	if err != nil {
		return err
	}
	answered := false
	for _, q := range questions {
		if strings.TrimSpace(q.Answer) != "" {
			answered = true
			break
		}
	}

	_, err = s.finish(ctx, session, models.SessionAbandoned, answered)
	return err
}

// finish moves session to a terminal status and optionally evaluates it
func (s *SessionService) finish(ctx context.Context, session *models.InterviewSession, status string, evaluate bool) (*models.InterviewResult, error) {
	now := s.clock.Now()
	accumulatePause(session, now)
	session.Status = status
	session.EndedAt = &now
	session.LastActivityAt = now
	session.Duration = int(now.Sub(session.StartedAt).Seconds()) - session.PausedSeconds
	if session.Duration < 0 {
		session.Duration = 0
	}
	session.Messages = nil
	session.Questions = nil
	session.Result = nil

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to finish session: %w", err)
	}
	s.untrack(ctx, session.ID)

	event := metrics.SessionCompleted
	if status == models.SessionAbandoned {
		event = metrics.SessionAbandoned
	}
	s.metrics.Session(event)

	var result *models.InterviewResult
	if evaluate {
		questions, err := s.repo.ListQuestions(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		evaluation := s.evaluator.Evaluate(ctx, session, questions)
		if err := s.repo.SaveEvaluation(ctx, evaluation.Result, evaluation.Analyses); err != nil {
			return nil, fmt.Errorf("failed to save evaluation: %w", err)
		}
		result = evaluation.Result
		session.Result = result
	}

	s.publish(session.ID, SessionEvent{Type: EventStatus, Status: session.Status})
	slog.Info("Interview session finished", "session_id", session.ID, "status", status, "duration", session.Duration, "evaluated", result != nil)
	return result, nil
}

// Answer records the candidate's answer to the current question and replies with the next one.
// The last answer completes the session.
func (s *SessionService) Answer(ctx context.Context, user *models.User, id, content string) (*AnswerResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("answer must not be empty")
	}
	if len(content) > maxAnswerLength {
		return nil, validationError("answer must be at most %d characters", maxAnswerLength)
	}

	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, transitionError("answer", session.Status)
	}

	questions, err := s.repo.ListQuestions(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if session.CurrentQuestion >= len(questions) {
		return nil, transitionError("answer", session.Status)
	}

	now := s.clock.Now()
	userMessage := &models.ChatMessage{SessionID: session.ID, Role: models.RoleUser, Content: content}
	question := questions[session.CurrentQuestion]
	question.Answer = content
	question.AnsweredAt = &now
	session.CurrentQuestion++
	session.LastActivityAt = now

	// The answer is committed before any reply so a failed reply never replays this question
	if err := s.repo.RecordAnswer(ctx, session, &question, userMessage); err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}
	s.touch(ctx, session.ID, now)
	s.metrics.Answer()
	s.publish(session.ID, SessionEvent{Type: EventMessage, Message: userMessage})

	out := &AnswerResult{Session: session, UserMessage: userMessage}

	if session.CurrentQuestion < len(questions) {
		history, err := s.history(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		reply := &models.ChatMessage{
			SessionID: session.ID,
			Role:      models.RoleAssistant,
			Content:   s.interviewer.FollowUp(ctx, session.AgentRole, session.Title, history, content, questions[session.CurrentQuestion].Prompt),
		}
		if err := s.repo.CreateChatMessage(ctx, reply); err != nil {
			return nil, fmt.Errorf("failed to store reply: %w", err)
		}
		s.publish(session.ID, SessionEvent{Type: EventMessage, Message: reply})
		out.Reply = reply

		slog.Info("Answer recorded", "session_id", session.ID, "question", question.Position)
		return out, nil
	}

	reply := &models.ChatMessage{
		SessionID: session.ID,
		Role:      models.RoleAssistant,
		Content:   s.interviewer.Closing(session.AgentRole),
	}
	if err := s.repo.CreateChatMessage(ctx, reply); err != nil {
		return nil, fmt.Errorf("failed to store reply: %w", err)
	}
	s.publish(session.ID, SessionEvent{Type: EventMessage, Message: reply})
	out.Reply = reply

	result, err := s.finish(ctx, session, models.SessionCompleted, true)
	if err != nil {
		return nil, err
	}
	out.Result = result

	slog.Info("Final answer recorded", "session_id", session.ID, "question", question.Position)
	return out, nil
}

func (s *SessionService) history(ctx context.Context, sessionID string) ([]Turn, error) {
	messages, err := s.repo.ListChatMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			continue
		}
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

func (s *SessionService) List(ctx context.Context, user *models.User, limit int) ([]models.InterviewSession, error) {
	return s.repo.ListSessions(ctx, user.ID, limit)
}

// Get returns the session with its messages, questions and result
func (s *SessionService) Get(ctx context.Context, user *models.User, id string) (*models.InterviewSession, error) {
	session, err := s.repo.GetSessionWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != user.ID {
		return nil, notFoundError("session")
	}
	return session, nil
}

func (s *SessionService) Messages(ctx context.Context, user *models.User, id string) ([]models.ChatMessage, error) {
	session, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListChatMessages(ctx, session.ID)
}

func (s *SessionService) Delete(ctx context.Context, user *models.User, id string) error {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.untrack(ctx, session.ID)

	slog.Info("Interview session deleted", "session_id", session.ID, "user_id", user.ID)
	return nil
}

// DeleteMany deletes sessions only when every id belongs to user
func (s *SessionService) DeleteMany(ctx context.Context, user *models.User, ids []string) (int, error) {
	for _, id := range ids {
		if _, err := s.load(ctx, user, id); err != nil {
			return 0, err
		}
	}
	deleted := 0
	for _, id := range ids {
		if err := s.Delete(ctx, user, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Result returns the evaluation of a finished session
func (s *SessionService) Result(ctx context.Context, user *models.User, id string) (*models.InterviewSession, *models.InterviewResult, []models.InterviewAnalysisResult, error) {
	session, err := s.load(ctx, user, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if !session.IsFinished() {
		return nil, nil, nil, notFoundError("result")
	}
	result, err := s.repo.GetResult(ctx, session.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if result == nil {
		return nil, nil, nil, notFoundError("result")
	}
	analyses, err := s.repo.ListAnalysisResults(ctx, session.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return session, result, analyses, nil
}

// RestoreActivity re-registers every active session with the tracker after a restart
func (s *SessionService) RestoreActivity(ctx context.Context) (int, error) {
	sessions, err := s.repo.ListSessionsByStatus(ctx, models.SessionActive)
	if err != nil {
		return 0, err
	}
	for _, session := range sessions {
		at := session.LastActivityAt
		if at.IsZero() {
			at = session.StartedAt
		}
		s.touch(ctx, session.ID, at)
	}
	return len(sessions), nil
}
