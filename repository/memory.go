package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/interviewcoach/backend/models"
)

// MemoryRepository is an in-process implementation of the same storage contract as
// GORMRepository. It is not persistent and is meant for tests and local runs without a database.
// Values are copied in and out so callers never share state with the store.
type MemoryRepository struct {
	mu sync.RWMutex

	users           map[string]models.User
	refreshTokens   map[string]models.RefreshToken
	permanentTokens map[string]models.PermanentToken
	resetTokens     map[string]models.PasswordResetToken
	profiles        map[string]models.Profile // by user id
	topics          map[string]models.Topic
	subTopics       map[string]models.SubTopic
	agentRoles      map[string]models.AIAgentRole
	catalogs        map[string]models.InterviewCatalog
	catalogItems    map[string]models.InterviewCatalogItem
	customs         map[string]models.CustomInterview
	sessions        map[string]models.InterviewSession
	messages        map[string][]models.ChatMessage       // by session id
	questions       map[string][]models.InterviewQuestion // by session id
	results         map[string]models.InterviewResult     // by session id
	analyses        map[string][]models.InterviewAnalysisResult
	notes           map[string]models.InterviewNote
	resumes         map[string]models.ResumeAnalysis
	groups          map[string]models.Group
	tasks           map[string]models.Task
	resources       map[string]models.Resource
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:           make(map[string]models.User),
		refreshTokens:   make(map[string]models.RefreshToken),
		permanentTokens: make(map[string]models.PermanentToken),
		resetTokens:     make(map[string]models.PasswordResetToken),
		profiles:        make(map[string]models.Profile),
		topics:          make(map[string]models.Topic),
		subTopics:       make(map[string]models.SubTopic),
		agentRoles:      make(map[string]models.AIAgentRole),
		catalogs:        make(map[string]models.InterviewCatalog),
		catalogItems:    make(map[string]models.InterviewCatalogItem),
		customs:         make(map[string]models.CustomInterview),
		sessions:        make(map[string]models.InterviewSession),
		messages:        make(map[string][]models.ChatMessage),
		questions:       make(map[string][]models.InterviewQuestion),
		results:         make(map[string]models.InterviewResult),
		analyses:        make(map[string][]models.InterviewAnalysisResult),
		notes:           make(map[string]models.InterviewNote),
		resumes:         make(map[string]models.ResumeAnalysis),
		groups:          make(map[string]models.Group),
		tasks:           make(map[string]models.Task),
		resources:       make(map[string]models.Resource),
	}
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// stamp fills the id and timestamps the database would normally provide
func stamp(id *string, createdAt, updatedAt *time.Time) {
	now := time.Now()
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

// User operations
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	stamp(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.users {
		if id != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	stamp(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	r.users[user.ID] = *user
	return nil
}

// Token operations
func (r *MemoryRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	r.refreshTokens[token.ID] = *token
	return nil
}

func (r *MemoryRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now()
	for _, t := range r.refreshTokens {
		if t.Token == token && t.ExpiresAt.After(now) {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	r.permanentTokens[token.ID] = *token
	return nil
}

func (r *MemoryRepository) GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.permanentTokens {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.refreshTokens {
		if t.UserID == userID {
			delete(r.refreshTokens, id)
		}
	}
	for id, t := range r.permanentTokens {
		if t.UserID == userID {
			delete(r.permanentTokens, id)
		}
	}
	return nil
}

func (r *MemoryRepository) CreatePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	r.resetTokens[token.ID] = *token
	return nil
}

func (r *MemoryRepository) GetPasswordResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.resetTokens {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) MarkPasswordResetTokenUsed(ctx context.Context, id string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.resetTokens[id]; ok {
		t.UsedAt = &usedAt
		r.resetTokens[id] = t
	}
	return nil
}

// Profile operations
func (r *MemoryRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[userID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *MemoryRepository) SaveProfile(ctx context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.profiles[profile.UserID]; ok {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	}
	stamp(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	r.profiles[profile.UserID] = *profile
	return nil
}

// Topic operations
func (r *MemoryRepository) CreateTopic(ctx context.Context, topic *models.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&topic.ID, &topic.CreatedAt, &topic.UpdatedAt)
	stored := *topic
	stored.SubTopics = nil
	r.topics[topic.ID] = stored
	return nil
}

func (r *MemoryRepository) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.topics[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListTopics(ctx context.Context, userID string) ([]models.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Topic{}
	for _, t := range r.topics {
		if t.UserID == userID || t.IsPublished {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) UpdateTopic(ctx context.Context, topic *models.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&topic.ID, &topic.CreatedAt, &topic.UpdatedAt)
	stored := *topic
	stored.SubTopics = nil
	r.topics[topic.ID] = stored
	return nil
}

func (r *MemoryRepository) DeleteTopic(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for subID, s := range r.subTopics {
		if s.TopicID == id {
			r.clearSubTopicRefs(subID)
			delete(r.subTopics, subID)
		}
	}
	delete(r.topics, id)
	return nil
}

func (r *MemoryRepository) clearSubTopicRefs(subTopicID string) {
	for id, s := range r.sessions {
		if s.SubTopicID != nil && *s.SubTopicID == subTopicID {
			s.SubTopicID = nil
			r.sessions[id] = s
		}
	}
	for id, item := range r.catalogItems {
		if item.SubTopicID != nil && *item.SubTopicID == subTopicID {
			item.SubTopicID = nil
			r.catalogItems[id] = item
		}
	}
}

// SubTopic operations
func (r *MemoryRepository) CreateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&subTopic.ID, &subTopic.CreatedAt, &subTopic.UpdatedAt)
	if subTopic.Difficulty == "" {
		subTopic.Difficulty = "medium"
	}
	r.subTopics[subTopic.ID] = *subTopic
	return nil
}

func (r *MemoryRepository) GetSubTopic(ctx context.Context, id string) (*models.SubTopic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.subTopics[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListSubTopics(ctx context.Context, topicID string) ([]models.SubTopic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.SubTopic{}
	for _, s := range r.subTopics {
		if s.TopicID == topicID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) UpdateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&subTopic.ID, &subTopic.CreatedAt, &subTopic.UpdatedAt)
	r.subTopics[subTopic.ID] = *subTopic
	return nil
}

func (r *MemoryRepository) DeleteSubTopic(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearSubTopicRefs(id)
	delete(r.subTopics, id)
	return nil
}

// Agent role operations
func (r *MemoryRepository) CreateAgentRole(ctx context.Context, role *models.AIAgentRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	r.agentRoles[role.ID] = *role
	return nil
}

func (r *MemoryRepository) GetAgentRole(ctx context.Context, id string) (*models.AIAgentRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if role, ok := r.agentRoles[id]; ok {
		return &role, nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetAgentRoleByName(ctx context.Context, name string) (*models.AIAgentRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.agentRoles {
		if role.UserID == nil && role.Name == name {
			return &role, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListAgentRoles(ctx context.Context, userID string) ([]models.AIAgentRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.AIAgentRole{}
	for _, role := range r.agentRoles {
		if !role.IsActive {
			continue
		}
		builtIn := role.UserID == nil && role.IsPublic
		own := role.UserID != nil && *role.UserID == userID
		if builtIn || own {
			out = append(out, role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) UpdateAgentRole(ctx context.Context, role *models.AIAgentRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	r.agentRoles[role.ID] = *role
	return nil
}

func (r *MemoryRepository) DeleteAgentRole(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, s := range r.sessions {
		if s.AgentRoleID != nil && *s.AgentRoleID == id {
			s.AgentRoleID = nil
			r.sessions[sid] = s
		}
	}
	delete(r.agentRoles, id)
	return nil
}

// Catalog operations
func (r *MemoryRepository) CreateCatalog(ctx context.Context, catalog *models.InterviewCatalog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&catalog.ID, &catalog.CreatedAt, &catalog.UpdatedAt)
	stored := *catalog
	stored.Items = nil
	r.catalogs[catalog.ID] = stored
	return nil
}

func (r *MemoryRepository) GetCatalog(ctx context.Context, id string) (*models.InterviewCatalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	catalog, ok := r.catalogs[id]
	if !ok {
		return nil, nil
	}
	catalog.Items = r.itemsOf(id)
	return &catalog, nil
}

func (r *MemoryRepository) itemsOf(catalogID string) []models.InterviewCatalogItem {
	out := []models.InterviewCatalogItem{}
	for _, item := range r.catalogItems {
		if item.CatalogID == catalogID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (r *MemoryRepository) ListCatalogsByUser(ctx context.Context, userID string) ([]models.InterviewCatalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.InterviewCatalog{}
	for _, c := range r.catalogs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) ListPublishedCatalogs(ctx context.Context) ([]models.InterviewCatalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.InterviewCatalog{}
	for _, c := range r.catalogs {
		if c.IsPublished {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *MemoryRepository) UpdateCatalog(ctx context.Context, catalog *models.InterviewCatalog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&catalog.ID, &catalog.CreatedAt, &catalog.UpdatedAt)
	stored := *catalog
	stored.Items = nil
	r.catalogs[catalog.ID] = stored
	return nil
}

func (r *MemoryRepository) DeleteCatalog(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for itemID, item := range r.catalogItems {
		if item.CatalogID == id {
			r.clearCatalogItemRefs(itemID)
			delete(r.catalogItems, itemID)
		}
	}
	delete(r.catalogs, id)
	return nil
}

func (r *MemoryRepository) clearCatalogItemRefs(itemID string) {
	for sid, s := range r.sessions {
		if s.CatalogItemID != nil && *s.CatalogItemID == itemID {
			s.CatalogItemID = nil
			r.sessions[sid] = s
		}
	}
}

// Catalog item operations
func (r *MemoryRepository) CreateCatalogItem(ctx context.Context, item *models.InterviewCatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	stored := *item
	stored.SubTopic = nil
	r.catalogItems[item.ID] = stored
	return nil
}

func (r *MemoryRepository) GetCatalogItem(ctx context.Context, id string) (*models.InterviewCatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.catalogItems[id]
	if !ok {
		return nil, nil
	}
	if item.SubTopicID != nil {
		if s, ok := r.subTopics[*item.SubTopicID]; ok {
			item.SubTopic = &s
		}
	}
	return &item, nil
}

func (r *MemoryRepository) ListCatalogItems(ctx context.Context, catalogID string) ([]models.InterviewCatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.itemsOf(catalogID), nil
}

func (r *MemoryRepository) UpdateCatalogItem(ctx context.Context, item *models.InterviewCatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	stored := *item
	stored.SubTopic = nil
	r.catalogItems[item.ID] = stored
	return nil
}

func (r *MemoryRepository) DeleteCatalogItem(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearCatalogItemRefs(id)
	delete(r.catalogItems, id)
	return nil
}

// Custom interview operations
func (r *MemoryRepository) CreateCustomInterview(ctx context.Context, interview *models.CustomInterview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&interview.ID, &interview.CreatedAt, &interview.UpdatedAt)
	r.customs[interview.ID] = *interview
	return nil
}

func (r *MemoryRepository) GetCustomInterview(ctx context.Context, id string) (*models.CustomInterview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.customs[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListCustomInterviews(ctx context.Context, userID string) ([]models.CustomInterview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.CustomInterview{}
	for _, c := range r.customs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateCustomInterview(ctx context.Context, interview *models.CustomInterview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&interview.ID, &interview.CreatedAt, &interview.UpdatedAt)
	r.customs[interview.ID] = *interview
	return nil
}

func (r *MemoryRepository) DeleteCustomInterview(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, s := range r.sessions {
		if s.CustomInterviewID != nil && *s.CustomInterviewID == id {
			s.CustomInterviewID = nil
			r.sessions[sid] = s
		}
	}
	delete(r.customs, id)
	return nil
}

// Session operations
func (r *MemoryRepository) CreateSession(ctx context.Context, session *models.InterviewSession, questions []models.InterviewQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	for i := range questions {
		questions[i].SessionID = session.ID
		stamp(&questions[i].ID, &questions[i].CreatedAt, &questions[i].UpdatedAt)
	}
	r.sessions[session.ID] = bareSession(*session)
	r.questions[session.ID] = append([]models.InterviewQuestion(nil), questions...)
	session.Questions = questions
	return nil
}

func bareSession(s models.InterviewSession) models.InterviewSession {
	s.AgentRole = nil
	s.Messages = nil
	s.Questions = nil
	s.Result = nil
	return s
}

func (r *MemoryRepository) attachAgentRole(s *models.InterviewSession) {
	if s.AgentRoleID == nil {
		return
	}
	if role, ok := r.agentRoles[*s.AgentRoleID]; ok {
		s.AgentRole = &role
	}
}

func (r *MemoryRepository) GetSession(ctx context.Context, id string) (*models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	r.attachAgentRole(&s)
	return &s, nil
}

func (r *MemoryRepository) GetSessionWithDetails(ctx context.Context, id string) (*models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	r.attachAgentRole(&s)
	s.Messages = append([]models.ChatMessage{}, r.messages[id]...)
	s.Questions = r.sortedQuestions(id)
	if result, ok := r.results[id]; ok {
		s.Result = &result
	}
	return &s, nil
}

func (r *MemoryRepository) ListSessions(ctx context.Context, userID string, limit int) ([]models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.InterviewSession{}
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListSessionsByStatus(ctx context.Context, status string) ([]models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.InterviewSession{}
	for _, s := range r.sessions {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdateSession(ctx context.Context, session *models.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	r.sessions[session.ID] = bareSession(*session)
	return nil
}

func (r *MemoryRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	delete(r.questions, id)
	delete(r.results, id)
	delete(r.analyses, id)
	for nid, n := range r.notes {
		if n.SessionID == id {
			delete(r.notes, nid)
		}
	}
	delete(r.sessions, id)
	return nil
}

// Conversation operations
func (r *MemoryRepository) CreateChatMessage(ctx context.Context, message *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendMessage(message)
	return nil
}

// RecordAnswer applies the message, question and session writes under one lock
func (r *MemoryRepository) RecordAnswer(ctx context.Context, session *models.InterviewSession, question *models.InterviewQuestion, message *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendMessage(message)
	list := r.questions[question.SessionID]
	for i := range list {
		if list[i].ID == question.ID {
			question.UpdatedAt = time.Now()
			list[i] = *question
		}
	}
	stamp(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	r.sessions[session.ID] = bareSession(*session)
	return nil
}

func (r *MemoryRepository) appendMessage(message *models.ChatMessage) {
	existing := r.messages[message.SessionID]
	if message.TurnOrder == 0 {
		message.TurnOrder = 1
		if n := len(existing); n > 0 {
			message.TurnOrder = existing[n-1].TurnOrder + 1
		}
	}
	stamp(&message.ID, &message.CreatedAt, &message.UpdatedAt)
	r.messages[message.SessionID] = append(existing, *message)
}

func (r *MemoryRepository) ListChatMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.ChatMessage{}, r.messages[sessionID]...), nil
}

func (r *MemoryRepository) sortedQuestions(sessionID string) []models.InterviewQuestion {
	out := append([]models.InterviewQuestion{}, r.questions[sessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (r *MemoryRepository) ListQuestions(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedQuestions(sessionID), nil
}

func (r *MemoryRepository) UpdateQuestion(ctx context.Context, question *models.InterviewQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.questions[question.SessionID]
	for i := range list {
		if list[i].ID == question.ID {
			question.UpdatedAt = time.Now()
			list[i] = *question
			return nil
		}
	}
	return nil
}

// Evaluation operations
func (r *MemoryRepository) SaveEvaluation(ctx context.Context, result *models.InterviewResult, analyses []models.InterviewAnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[result.SessionID]; ok {
		return ErrDuplicate
	}
	stamp(&result.ID, &result.CreatedAt, &result.UpdatedAt)
	for i := range analyses {
		stamp(&analyses[i].ID, &analyses[i].CreatedAt, &analyses[i].UpdatedAt)
	}
	r.results[result.SessionID] = *result
	r.analyses[result.SessionID] = append([]models.InterviewAnalysisResult(nil), analyses...)
	return nil
}

func (r *MemoryRepository) GetResult(ctx context.Context, sessionID string) (*models.InterviewResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if result, ok := r.results[sessionID]; ok {
		return &result, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListAnalysisResults(ctx context.Context, sessionID string) ([]models.InterviewAnalysisResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]models.InterviewAnalysisResult{}, r.analyses[sessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *MemoryRepository) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats models.UserStats
	var scored int
	for id, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		stats.TotalSessions++
		switch s.Status {
		case models.SessionCompleted:
			stats.CompletedSessions++
		case models.SessionActive, models.SessionPaused:
			stats.ActiveSessions++
		}
		stats.TotalMessages += int64(len(r.messages[id]))
		if result, ok := r.results[id]; ok {
			stats.AverageScore += result.OverallScore
			if scored == 0 || result.OverallScore > stats.BestScore {
				stats.BestScore = result.OverallScore
			}
			scored++
		}
		if stats.LastActivity == nil || s.LastActivityAt.After(*stats.LastActivity) {
			last := s.LastActivityAt
			stats.LastActivity = &last
		}
	}
	if scored > 0 {
		stats.AverageScore /= float64(scored)
	}
	return &stats, nil
}

// Note operations
func (r *MemoryRepository) CreateNote(ctx context.Context, note *models.InterviewNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	r.notes[note.ID] = *note
	return nil
}

func (r *MemoryRepository) GetNote(ctx context.Context, id string) (*models.InterviewNote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.notes[id]; ok {
		return &n, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListNotes(ctx context.Context, sessionID string) ([]models.InterviewNote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.InterviewNote{}
	for _, n := range r.notes {
		if n.SessionID == sessionID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateNote(ctx context.Context, note *models.InterviewNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	r.notes[note.ID] = *note
	return nil
}

func (r *MemoryRepository) DeleteNote(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notes, id)
	return nil
}

// Resume analysis operations
func (r *MemoryRepository) CreateResumeAnalysis(ctx context.Context, analysis *models.ResumeAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&analysis.ID, &analysis.CreatedAt, &analysis.UpdatedAt)
	r.resumes[analysis.ID] = *analysis
	return nil
}

func (r *MemoryRepository) GetResumeAnalysis(ctx context.Context, id string) (*models.ResumeAnalysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.resumes[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListResumeAnalyses(ctx context.Context, userID string) ([]models.ResumeAnalysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.ResumeAnalysis{}
	for _, a := range r.resumes {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) DeleteResumeAnalysis(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resumes, id)
	return nil
}

// Group operations
func (r *MemoryRepository) CreateGroup(ctx context.Context, group *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&group.ID, &group.CreatedAt, &group.UpdatedAt)
	stored := *group
	stored.Tasks, stored.Resources = nil, nil
	r.groups[group.ID] = stored
	return nil
}

func (r *MemoryRepository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group, ok := r.groups[id]
	if !ok {
		return nil, nil
	}
	group.Tasks = []models.Task{}
	for _, t := range r.tasks {
		if t.GroupID == id {
			group.Tasks = append(group.Tasks, t)
		}
	}
	sort.Slice(group.Tasks, func(i, j int) bool { return group.Tasks[i].CreatedAt.Before(group.Tasks[j].CreatedAt) })
	group.Resources = []models.Resource{}
	for _, res := range r.resources {
		if res.GroupID == id {
			group.Resources = append(group.Resources, res)
		}
	}
	sort.Slice(group.Resources, func(i, j int) bool {
		return group.Resources[i].CreatedAt.Before(group.Resources[j].CreatedAt)
	})
	return &group, nil
}

func (r *MemoryRepository) ListGroups(ctx context.Context, userID string) ([]models.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Group{}
	for _, g := range r.groups {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) UpdateGroup(ctx context.Context, group *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&group.ID, &group.CreatedAt, &group.UpdatedAt)
	stored := *group
	stored.Tasks, stored.Resources = nil, nil
	r.groups[group.ID] = stored
	return nil
}

func (r *MemoryRepository) DeleteGroup(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tid, t := range r.tasks {
		if t.GroupID == id {
			delete(r.tasks, tid)
		}
	}
	for rid, res := range r.resources {
		if res.GroupID == id {
			delete(r.resources, rid)
		}
	}
	delete(r.groups, id)
	return nil
}

// Task operations
func (r *MemoryRepository) CreateTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if task.Status == "" {
		task.Status = "todo"
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tasks[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryRepository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

// Resource operations
func (r *MemoryRepository) CreateResource(ctx context.Context, resource *models.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&resource.ID, &resource.CreatedAt, &resource.UpdatedAt)
	if resource.Kind == "" {
		resource.Kind = "link"
	}
	r.resources[resource.ID] = *resource
	return nil
}

func (r *MemoryRepository) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if res, ok := r.resources[id]; ok {
		return &res, nil
	}
	return nil, nil
}

func (r *MemoryRepository) DeleteResource(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resources, id)
	return nil
}
