package services

import (
	"context"
	"time"

	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/krshsl/interviewcoach/backend/repository"
)

// Lookups return (nil, nil) when the record does not exist.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error
	GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error)
	DeleteAllUserTokens(ctx context.Context, userID string) error

	CreatePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error
	GetPasswordResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	MarkPasswordResetTokenUsed(ctx context.Context, id string, usedAt time.Time) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error
}

type TopicStore interface {
	CreateTopic(ctx context.Context, topic *models.Topic) error
	GetTopic(ctx context.Context, id string) (*models.Topic, error)
	ListTopics(ctx context.Context, userID string) ([]models.Topic, error)
	UpdateTopic(ctx context.Context, topic *models.Topic) error
	DeleteTopic(ctx context.Context, id string) error

	CreateSubTopic(ctx context.Context, subTopic *models.SubTopic) error
	GetSubTopic(ctx context.Context, id string) (*models.SubTopic, error)
	ListSubTopics(ctx context.Context, topicID string) ([]models.SubTopic, error)
	UpdateSubTopic(ctx context.Context, subTopic *models.SubTopic) error
	DeleteSubTopic(ctx context.Context, id string) error
}

type AgentRoleStore interface {
	CreateAgentRole(ctx context.Context, role *models.AIAgentRole) error
	GetAgentRole(ctx context.Context, id string) (*models.AIAgentRole, error)
	GetAgentRoleByName(ctx context.Context, name string) (*models.AIAgentRole, error)
	ListAgentRoles(ctx context.Context, userID string) ([]models.AIAgentRole, error)
	UpdateAgentRole(ctx context.Context, role *models.AIAgentRole) error
	DeleteAgentRole(ctx context.Context, id string) error
}

type CatalogStore interface {
	CreateCatalog(ctx context.Context, catalog *models.InterviewCatalog) error
	GetCatalog(ctx context.Context, id string) (*models.InterviewCatalog, error)
	ListCatalogsByUser(ctx context.Context, userID string) ([]models.InterviewCatalog, error)
	ListPublishedCatalogs(ctx context.Context) ([]models.InterviewCatalog, error)
	UpdateCatalog(ctx context.Context, catalog *models.InterviewCatalog) error
	DeleteCatalog(ctx context.Context, id string) error

	CreateCatalogItem(ctx context.Context, item *models.InterviewCatalogItem) error
	GetCatalogItem(ctx context.Context, id string) (*models.InterviewCatalogItem, error)
	ListCatalogItems(ctx context.Context, catalogID string) ([]models.InterviewCatalogItem, error)
	UpdateCatalogItem(ctx context.Context, item *models.InterviewCatalogItem) error
	DeleteCatalogItem(ctx context.Context, id string) error

	CreateCustomInterview(ctx context.Context, interview *models.CustomInterview) error
	GetCustomInterview(ctx context.Context, id string) (*models.CustomInterview, error)
	ListCustomInterviews(ctx context.Context, userID string) ([]models.CustomInterview, error)
	UpdateCustomInterview(ctx context.Context, interview *models.CustomInterview) error
	DeleteCustomInterview(ctx context.Context, id string) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, session *models.InterviewSession, questions []models.InterviewQuestion) error
	GetSession(ctx context.Context, id string) (*models.InterviewSession, error)
	GetSessionWithDetails(ctx context.Context, id string) (*models.InterviewSession, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]models.InterviewSession, error)
	ListSessionsByStatus(ctx context.Context, status string) ([]models.InterviewSession, error)
	UpdateSession(ctx context.Context, session *models.InterviewSession) error
	DeleteSession(ctx context.Context, id string) error

	CreateChatMessage(ctx context.Context, message *models.ChatMessage) error
	ListChatMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	ListQuestions(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error)
	UpdateQuestion(ctx context.Context, question *models.InterviewQuestion) error
	RecordAnswer(ctx context.Context, session *models.InterviewSession, question *models.InterviewQuestion, message *models.ChatMessage) error

	SaveEvaluation(ctx context.Context, result *models.InterviewResult, analyses []models.InterviewAnalysisResult) error
	GetResult(ctx context.Context, sessionID string) (*models.InterviewResult, error)
	ListAnalysisResults(ctx context.Context, sessionID string) ([]models.InterviewAnalysisResult, error)
	GetUserStats(ctx context.Context, userID string) (*models.UserStats, error)
}

type NoteStore interface {
	CreateNote(ctx context.Context, note *models.InterviewNote) error
	GetNote(ctx context.Context, id string) (*models.InterviewNote, error)
	ListNotes(ctx context.Context, sessionID string) ([]models.InterviewNote, error)
	UpdateNote(ctx context.Context, note *models.InterviewNote) error
	DeleteNote(ctx context.Context, id string) error
}

type WorkspaceStore interface {
	CreateResumeAnalysis(ctx context.Context, analysis *models.ResumeAnalysis) error
	GetResumeAnalysis(ctx context.Context, id string) (*models.ResumeAnalysis, error)
	ListResumeAnalyses(ctx context.Context, userID string) ([]models.ResumeAnalysis, error)
	DeleteResumeAnalysis(ctx context.Context, id string) error

	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context, userID string) ([]models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, id string) error

	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	CreateResource(ctx context.Context, resource *models.Resource) error
	GetResource(ctx context.Context, id string) (*models.Resource, error)
	DeleteResource(ctx context.Context, id string) error
}

// Store is everything the server needs from persistence.
type Store interface {
	UserStore
	ProfileStore
	TopicStore
	AgentRoleStore
	CatalogStore
	SessionStore
	NoteStore
	WorkspaceStore
	Ping(ctx context.Context) error
}

var (
	_ Store = (*repository.GORMRepository)(nil)
	_ Store = (*repository.MemoryRepository)(nil)
)
