package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/interviewcoach/backend/models"
)

const maxNameLength = 100

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

type TopicEndpoints struct {
	repo TopicStore
}

type TopicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublished bool   `json:"is_published"`
}

type SubTopicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	IsPublished bool   `json:"is_published"`
}

func NewTopicEndpoints(repo TopicStore) *TopicEndpoints {
	return &TopicEndpoints{repo: repo}
}

func (e *TopicEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/topics", func(r chi.Router) {
		r.Get("/", e.ListTopicsHandler)
		r.Post("/", e.CreateTopicHandler)
		r.Get("/{id}", e.GetTopicHandler)
		r.Put("/{id}", e.UpdateTopicHandler)
		r.Delete("/{id}", e.DeleteTopicHandler)
		r.Get("/{id}/subtopics", e.ListSubTopicsHandler)
		r.Post("/{id}/subtopics", e.CreateSubTopicHandler)
	})
	r.Route("/subtopics", func(r chi.Router) {
		r.Get("/{id}", e.GetSubTopicHandler)
		r.Put("/{id}", e.UpdateSubTopicHandler)
		r.Delete("/{id}", e.DeleteSubTopicHandler)
	})
}

// canView reports whether user may read a record owned by ownerID
func canView(user *models.User, ownerID string, published bool) bool {
	return ownerID == user.ID || published
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationError("name is required")
	}
	if len(name) > maxNameLength {
		return "", validationError("name must be at most %d characters", maxNameLength)
	}
	return name, nil
}

func (req *SubTopicRequest) normalize() error {
	name, err := requireName(req.Name)
	if err != nil {
		return err
	}
	req.Name = name
	req.Difficulty = strings.ToLower(strings.TrimSpace(req.Difficulty))
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}
	if !difficulties[req.Difficulty] {
		return validationError("difficulty must be one of easy, medium, hard")
	}
	return nil
}

// loadTopic returns a topic the user may see. Topics hidden from the user are reported as missing.
func (e *TopicEndpoints) loadTopic(ctx context.Context, user *models.User, id string) (*models.Topic, error) {
	topic, err := e.repo.GetTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if topic == nil || !canView(user, topic.UserID, topic.IsPublished) {
		return nil, notFoundError("topic")
	}
	return topic, nil
}

func (e *TopicEndpoints) ownTopic(ctx context.Context, user *models.User, id string) (*models.Topic, error) {
	topic, err := e.loadTopic(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if topic.UserID != user.ID {
		return nil, forbiddenError("not authorized to modify this topic")
	}
	return topic, nil
}

func (e *TopicEndpoints) loadSubTopic(ctx context.Context, user *models.User, id string) (*models.SubTopic, error) {
	subTopic, err := e.repo.GetSubTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if subTopic == nil || !canView(user, subTopic.UserID, subTopic.IsPublished) {
		return nil, notFoundError("subtopic")
	}
	return subTopic, nil
}

func (e *TopicEndpoints) ownSubTopic(ctx context.Context, user *models.User, id string) (*models.SubTopic, error) {
	subTopic, err := e.loadSubTopic(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if subTopic.UserID != user.ID {
		return nil, forbiddenError("not authorized to modify this subtopic")
	}
	return subTopic, nil
}

func (e *TopicEndpoints) ListTopicsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	topics, err := e.repo.ListTopics(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topics": topics,
		"count":  len(topics),
	})
}

func (e *TopicEndpoints) CreateTopicHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req TopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := requireName(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	topic := &models.Topic{
		UserID:      user.ID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsPublished: req.IsPublished,
	}
	if err := e.repo.CreateTopic(r.Context(), topic); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"topic":   topic,
		"message": "Topic created successfully",
	})

	slog.Info("Topic created", "topic_id", topic.ID, "user_id", user.ID)
}

func (e *TopicEndpoints) GetTopicHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	topic, err := e.loadTopic(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topic": topic,
	})
}

func (e *TopicEndpoints) UpdateTopicHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	topic, err := e.ownTopic(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req TopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := requireName(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	topic.Name = name
	topic.Description = strings.TrimSpace(req.Description)
	topic.IsPublished = req.IsPublished
	if err := e.repo.UpdateTopic(r.Context(), topic); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topic":   topic,
		"message": "Topic updated successfully",
	})

	slog.Info("Topic updated", "topic_id", topic.ID, "user_id", user.ID)
}

func (e *TopicEndpoints) DeleteTopicHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	topic, err := e.ownTopic(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteTopic(r.Context(), topic.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Topic deleted successfully",
	})

	slog.Info("Topic deleted", "topic_id", topic.ID, "user_id", user.ID)
}

func (e *TopicEndpoints) ListSubTopicsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	topic, err := e.loadTopic(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	all, err := e.repo.ListSubTopics(r.Context(), topic.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	subTopics := make([]models.SubTopic, 0, len(all))
	for _, s := range all {
		if canView(user, s.UserID, s.IsPublished) {
			subTopics = append(subTopics, s)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subtopics": subTopics,
		"count":     len(subTopics),
	})
}

func (e *TopicEndpoints) CreateSubTopicHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	topic, err := e.ownTopic(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req SubTopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	subTopic := &models.SubTopic{
		TopicID:     topic.ID,
		UserID:      user.ID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Difficulty:  req.Difficulty,
		IsPublished: req.IsPublished,
	}
	if err := e.repo.CreateSubTopic(r.Context(), subTopic); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"subtopic": subTopic,
		"message":  "Subtopic created successfully",
	})

	slog.Info("Subtopic created", "subtopic_id", subTopic.ID, "topic_id", topic.ID, "user_id", user.ID)
}

func (e *TopicEndpoints) GetSubTopicHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	subTopic, err := e.loadSubTopic(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subtopic": subTopic,
	})
}

func (e *TopicEndpoints) UpdateSubTopicHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	subTopic, err := e.ownSubTopic(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req SubTopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	subTopic.Name = req.Name
	subTopic.Description = strings.TrimSpace(req.Description)
	subTopic.Difficulty = req.Difficulty
	subTopic.IsPublished = req.IsPublished
	if err := e.repo.UpdateSubTopic(r.Context(), subTopic); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subtopic": subTopic,
		"message":  "Subtopic updated successfully",
	})

	slog.Info("Subtopic updated", "subtopic_id", subTopic.ID, "user_id", user.ID)
}

func (e *TopicEndpoints) DeleteSubTopicHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	subTopic, err := e.ownSubTopic(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteSubTopic(r.Context(), subTopic.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Subtopic deleted successfully",
	})

	slog.Info("Subtopic deleted", "subtopic_id", subTopic.ID, "user_id", user.ID)
}
