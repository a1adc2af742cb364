package services

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/interviewcoach/backend/models"
)

var (
	taskStatuses  = map[string]bool{"todo": true, "in_progress": true, "done": true}
	resourceKinds = map[string]bool{"link": true, "video": true, "article": true, "book": true}
)

type GroupEndpoints struct {
	repo WorkspaceStore
}

type GroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type TaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"due_at"`
}

type ResourceRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
}

func NewGroupEndpoints(repo WorkspaceStore) *GroupEndpoints {
	return &GroupEndpoints{repo: repo}
}

func (e *GroupEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", e.ListGroupsHandler)
		r.Post("/", e.CreateGroupHandler)
		r.Get("/{id}", e.GetGroupHandler)
		r.Put("/{id}", e.UpdateGroupHandler)
		r.Delete("/{id}", e.DeleteGroupHandler)
		r.Post("/{id}/tasks", e.CreateTaskHandler)
		r.Post("/{id}/resources", e.CreateResourceHandler)
	})
	r.Route("/tasks", func(r chi.Router) {
		r.Put("/{id}", e.UpdateTaskHandler)
		r.Delete("/{id}", e.DeleteTaskHandler)
	})
	r.Route("/resources", func(r chi.Router) {
		r.Delete("/{id}", e.DeleteResourceHandler)
	})
}

func (req *TaskRequest) normalize() error {
	title, err := requireTitle(req.Title)
	if err != nil {
		return err
	}
	req.Title = title
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if req.Status == "" {
		req.Status = "todo"
	}
	if !taskStatuses[req.Status] {
		return validationError("status must be one of todo, in_progress, done")
	}
	return nil
}

func (req *ResourceRequest) normalize() error {
	title, err := requireTitle(req.Title)
	if err != nil {
		return err
	}
	req.Title = title

	req.URL = strings.TrimSpace(req.URL)
	u, err := url.Parse(req.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validationError("url must be an absolute http or https URL")
	}

	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if req.Kind == "" {
		req.Kind = "link"
	}
	if !resourceKinds[req.Kind] {
		return validationError("kind must be one of link, video, article, book")
	}
	return nil
}

// ownGroup returns the group when user owns it. Groups of other users are reported as missing.
func (e *GroupEndpoints) ownGroup(ctx context.Context, user *models.User, id string) (*models.Group, error) {
	group, err := e.repo.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil || group.UserID != user.ID {
		return nil, notFoundError("group")
	}
	return group, nil
}

func (e *GroupEndpoints) ownTask(ctx context.Context, user *models.User, id string) (*models.Task, error) {
	task, err := e.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, notFoundError("task")
	}
	if _, err := e.ownGroup(ctx, user, task.GroupID); err != nil {
		return nil, notFoundError("task")
	}
	return task, nil
}

func (e *GroupEndpoints) ListGroupsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	groups, err := e.repo.ListGroups(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
		"count":  len(groups),
	})
}

func (e *GroupEndpoints) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req GroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := requireName(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	group := &models.Group{
		UserID:      user.ID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
	}
	if err := e.repo.CreateGroup(r.Context(), group); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"group":   group,
		"message": "Group created successfully",
	})

	slog.Info("Group created", "group_id", group.ID, "user_id", user.ID)
}

func (e *GroupEndpoints) GetGroupHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	group, err := e.ownGroup(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group": group,
	})
}

func (e *GroupEndpoints) UpdateGroupHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	group, err := e.ownGroup(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req GroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := requireName(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	group.Name = name
	group.Description = strings.TrimSpace(req.Description)
	if err := e.repo.UpdateGroup(r.Context(), group); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group":   group,
		"message": "Group updated successfully",
	})
}

func (e *GroupEndpoints) DeleteGroupHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	group, err := e.ownGroup(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteGroup(r.Context(), group.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Group deleted successfully",
	})

	slog.Info("Group deleted", "group_id", group.ID, "user_id", user.ID)
}

func (e *GroupEndpoints) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	group, err := e.ownGroup(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req TaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	task := &models.Task{
		GroupID:     group.ID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Status:      req.Status,
		DueAt:       req.DueAt,
	}
	if err := e.repo.CreateTask(r.Context(), task); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"task":    task,
		"message": "Task created successfully",
	})
}

func (e *GroupEndpoints) UpdateTaskHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	task, err := e.ownTask(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req TaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	task.Title = req.Title
	task.Description = strings.TrimSpace(req.Description)
	task.Status = req.Status
	task.DueAt = req.DueAt
	if err := e.repo.UpdateTask(r.Context(), task); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task":    task,
		"message": "Task updated successfully",
	})
}

func (e *GroupEndpoints) DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	task, err := e.ownTask(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteTask(r.Context(), task.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Task deleted successfully",
	})
}

func (e *GroupEndpoints) CreateResourceHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	group, err := e.ownGroup(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req ResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	resource := &models.Resource{
		GroupID: group.ID,
		Title:   req.Title,
		URL:     req.URL,
		Kind:    req.Kind,
	}
	if err := e.repo.CreateResource(r.Context(), resource); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"resource": resource,
		"message":  "Resource created successfully",
	})
}

func (e *GroupEndpoints) DeleteResourceHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	resource, err := e.repo.GetResource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if resource == nil {
		writeError(w, r, notFoundError("resource"))
		return
	}
	if _, err := e.ownGroup(r.Context(), user, resource.GroupID); err != nil {
		writeError(w, r, notFoundError("resource"))
		return
	}

	if err := e.repo.DeleteResource(r.Context(), resource.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Resource deleted successfully",
	})
}
