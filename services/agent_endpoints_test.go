package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAgent(t *testing.T, env *testEnv, cookies []*http.Cookie, req AgentRoleRequest) models.AIAgentRole {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/v1/agents", req, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Agent models.AIAgentRole `json:"agent"`
	}
	decodeBody(t, rec, &body)
	return body.Agent
}

func TestAgentValidation(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("agent-validation@example.com")

	tests := []struct {
		name string
		req  AgentRoleRequest
		want string
	}{
		{"missing name", AgentRoleRequest{Personality: "calm"}, "name is required"},
		{"missing personality", AgentRoleRequest{Name: "Ada", Personality: "  "}, "personality is required"},
		{"unknown level", AgentRoleRequest{Name: "Ada", Personality: "calm", Level: "intern"}, "level must be one of junior, mid, senior, executive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/v1/agents", tt.req, cookies)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorMessage(t, rec))
		})
	}

	agent := createAgent(t, env, cookies, AgentRoleRequest{Name: "Ada", Personality: "calm", Level: " Senior "})
	assert.Equal(t, "senior", agent.Level)
	assert.True(t, agent.IsActive)
}

func TestAgentVisibilityAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register("agent-owner@example.com")
	other := env.register("agent-other@example.com")

	builtIn := &models.AIAgentRole{Name: "Coach", Personality: "supportive", IsPublic: true, IsActive: true}
	require.NoError(t, env.repo.CreateAgentRole(ctx, builtIn))

	private := createAgent(t, env, owner, AgentRoleRequest{Name: "Grace", Personality: "strict"})
	public := createAgent(t, env, owner, AgentRoleRequest{Name: "Linus", Personality: "blunt", IsPublic: true})

	rec := env.do(http.MethodGet, "/api/v1/agents/"+private.ID, nil, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "agent not found", errorMessage(t, rec))

	rec = env.do(http.MethodGet, "/api/v1/agents/"+public.ID, nil, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPut, "/api/v1/agents/"+public.ID, AgentRoleRequest{Name: "Mine", Personality: "x"}, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodDelete, "/api/v1/agents/"+builtIn.ID, nil, owner)
	assert.Equal(t, http.StatusForbidden, rec.Code, "built-in roles are read-only")

	rec = env.do(http.MethodGet, "/api/v1/agents", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Agents []models.AIAgentRole `json:"agents"`
		Count  int                  `json:"count"`
	}
	decodeBody(t, rec, &list)
	assert.Equal(t, 3, list.Count)

	rec = env.do(http.MethodPut, "/api/v1/agents/"+private.ID, AgentRoleRequest{Name: "Grace H", Personality: "strict", Level: "mid"}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodDelete, "/api/v1/agents/"+private.ID, nil, owner)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/v1/agents/"+private.ID, nil, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
