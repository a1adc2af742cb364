package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/interviewcoach/backend/models"
)

var agentLevels = map[string]bool{"": true, "junior": true, "mid": true, "senior": true, "executive": true}

type AgentEndpoints struct {
	repo AgentRoleStore
}

type AgentRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Personality string `json:"personality"`
	Industry    string `json:"industry"`
	Level       string `json:"level"`
	IsPublic    bool   `json:"is_public"`
}

func NewAgentEndpoints(repo AgentRoleStore) *AgentEndpoints {
	return &AgentEndpoints{
		repo: repo,
	}
}

func (e *AgentEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/agents", func(r chi.Router) {
		r.Post("/", e.CreateAgentHandler)
		r.Get("/", e.GetAgentsHandler)
		r.Get("/{id}", e.GetAgentHandler)
		r.Put("/{id}", e.UpdateAgentHandler)
		r.Delete("/{id}", e.DeleteAgentHandler)
	})
}

func (req *AgentRoleRequest) apply(role *models.AIAgentRole) error {
	name, err := requireName(req.Name)
	if err != nil {
		return err
	}
	personality := strings.TrimSpace(req.Personality)
	if personality == "" {
		return validationError("personality is required")
	}
	level := strings.ToLower(strings.TrimSpace(req.Level))
	if !agentLevels[level] {
		return validationError("level must be one of junior, mid, senior, executive")
	}

	role.Name = name
	role.Description = strings.TrimSpace(req.Description)
	role.Personality = personality
	role.Industry = strings.TrimSpace(req.Industry)
	role.Level = level
	role.IsPublic = req.IsPublic
	return nil
}

// visibleRole reports whether user may use role. Built-in roles are visible when public.
func visibleRole(user *models.User, role *models.AIAgentRole) bool {
	if !role.IsActive {
		return false
	}
	if role.UserID == nil {
		return role.IsPublic
	}
	return *role.UserID == user.ID || role.IsPublic
}

func (e *AgentEndpoints) loadAgent(ctx context.Context, user *models.User, id string) (*models.AIAgentRole, error) {
	role, err := e.repo.GetAgentRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil || !visibleRole(user, role) {
		return nil, notFoundError("agent")
	}
	return role, nil
}

func (e *AgentEndpoints) ownAgent(ctx context.Context, user *models.User, id string) (*models.AIAgentRole, error) {
	role, err := e.loadAgent(ctx, user, id)
	if err != nil {
		return nil, err
	}
	// Built-in roles have no owner and cannot be modified through the API
	if role.UserID == nil || *role.UserID != user.ID {
		return nil, forbiddenError("not authorized to modify this agent")
	}
	return role, nil
}

func (e *AgentEndpoints) CreateAgentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AgentRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	role := &models.AIAgentRole{
		UserID:   &user.ID,
		IsActive: true,
	}
	if err := req.apply(role); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.repo.CreateAgentRole(r.Context(), role); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"agent":   role,
		"message": "Agent created successfully",
	})

	slog.Info("Agent created", "agent_id", role.ID, "user_id", user.ID, "name", role.Name)
}

func (e *AgentEndpoints) GetAgentsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	roles, err := e.repo.ListAgentRoles(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": roles,
		"count":  len(roles),
	})
}

func (e *AgentEndpoints) GetAgentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	role, err := e.loadAgent(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent": role,
	})
}

func (e *AgentEndpoints) UpdateAgentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	role, err := e.ownAgent(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req AgentRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.apply(role); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.repo.UpdateAgentRole(r.Context(), role); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent":   role,
		"message": "Agent updated successfully",
	})

	slog.Info("Agent updated", "agent_id", role.ID, "user_id", user.ID)
}

func (e *AgentEndpoints) DeleteAgentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	role, err := e.ownAgent(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteAgentRole(r.Context(), role.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Agent deleted successfully",
	})

	slog.Info("Agent deleted", "agent_id", role.ID, "user_id", user.ID)
}
