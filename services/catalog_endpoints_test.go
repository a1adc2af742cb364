package services

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache is an in-memory CatalogCache that records its calls
type countingCache struct {
	mu          sync.Mutex
	published   []models.InterviewCatalog
	hit         bool
	gets        int
	invalidates int
}

func (c *countingCache) GetPublished(context.Context) ([]models.InterviewCatalog, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.published, c.hit
}

func (c *countingCache) SetPublished(_ context.Context, catalogs []models.InterviewCatalog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published, c.hit = catalogs, true
}

func (c *countingCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published, c.hit = nil, false
	c.invalidates++
}

func newTestEnvWithCache(t *testing.T, cache CatalogCache) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.server = NewServer(testConfig(), ServerDeps{
		Store:    env.repo,
		Cache:    cache,
		Mailer:   env.mailer,
		Clock:    env.clock,
		Registry: metrics.NewRegistry(),
	})
	return env
}

type catalogList struct {
	Owned     []models.InterviewCatalog `json:"owned"`
	Published []models.InterviewCatalog `json:"published"`
}

func createCatalog(t *testing.T, env *testEnv, cookies []*http.Cookie, req CatalogRequest) models.InterviewCatalog {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/v1/catalogs", req, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Catalog models.InterviewCatalog `json:"catalog"`
	}
	decodeBody(t, rec, &body)
	return body.Catalog
}

func TestCatalogListingUsesCache(t *testing.T) {
	cache := &countingCache{}
	env := newTestEnvWithCache(t, cache)
	owner := env.register("catalog-owner@example.com")
	other := env.register("catalog-other@example.com")

	createCatalog(t, env, owner, CatalogRequest{Title: "Private prep"})
	public := createCatalog(t, env, owner, CatalogRequest{Title: "Public prep", IsPublished: true})
	assert.Equal(t, 2, cache.invalidates)

	rec := env.do(http.MethodGet, "/api/v1/catalogs", nil, other)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list catalogList
	decodeBody(t, rec, &list)
	assert.Empty(t, list.Owned)
	require.Len(t, list.Published, 1)
	assert.Equal(t, public.ID, list.Published[0].ID)
	assert.True(t, cache.hit)

	// a cache hit is served without touching the repository
	cache.published = []models.InterviewCatalog{{ID: "cached", Title: "From cache"}}
	rec = env.do(http.MethodGet, "/api/v1/catalogs", nil, other)
	decodeBody(t, rec, &list)
	require.Len(t, list.Published, 1)
	assert.Equal(t, "cached", list.Published[0].ID)

	rec = env.do(http.MethodPut, "/api/v1/catalogs/"+public.ID, CatalogRequest{Title: "Public prep v2", IsPublished: true}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, cache.invalidates)
	assert.False(t, cache.hit)

	rec = env.do(http.MethodGet, "/api/v1/catalogs", nil, owner)
	decodeBody(t, rec, &list)
	assert.Len(t, list.Owned, 2)
	require.Len(t, list.Published, 1)
	assert.Equal(t, "Public prep v2", list.Published[0].Title)
}

func TestCatalogAccessControl(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register("acl-owner@example.com")
	other := env.register("acl-other@example.com")

	private := createCatalog(t, env, owner, CatalogRequest{Title: "Mine"})
	public := createCatalog(t, env, owner, CatalogRequest{Title: "Shared", IsPublished: true})

	rec := env.do(http.MethodGet, "/api/v1/catalogs/"+private.ID, nil, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/catalogs/"+public.ID, nil, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPut, "/api/v1/catalogs/"+public.ID, CatalogRequest{Title: "Hijacked"}, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodDelete, "/api/v1/catalogs/"+public.ID, nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/catalogs", CatalogRequest{Title: strings.Repeat("t", maxTitleLength+1)}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "title must be at most 200 characters", errorMessage(t, rec))

	rec = env.do(http.MethodDelete, "/api/v1/catalogs/"+private.ID, nil, owner)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/v1/catalogs/"+private.ID, nil, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogItems(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("items@example.com")
	other := env.register("items-other@example.com")
	user := env.user("items@example.com")
	sub := env.publishedSubTopic(user, "medium")
	catalog := createCatalog(t, env, cookies, CatalogRequest{Title: "Backend loop", IsPublished: true})
	itemsPath := "/api/v1/catalogs/" + catalog.ID + "/items"

	rec := env.do(http.MethodPost, itemsPath, CatalogItemRequest{Title: "Empty"}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "an item needs a subtopic or at least one question", errorMessage(t, rec))

	missing := "missing-subtopic"
	rec = env.do(http.MethodPost, itemsPath, CatalogItemRequest{SubTopicID: &missing}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "subtopic not found", errorMessage(t, rec))

	rec = env.do(http.MethodPost, itemsPath, CatalogItemRequest{SubTopicID: &sub.ID, QuestionCount: maxQuestionCount + 1}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the title falls back to the subtopic name
	rec = env.do(http.MethodPost, itemsPath, CatalogItemRequest{SubTopicID: &sub.ID, QuestionCount: 3}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first struct {
		Item models.InterviewCatalogItem `json:"item"`
	}
	decodeBody(t, rec, &first)
	assert.Equal(t, "Go Concurrency", first.Item.Title)
	assert.Equal(t, 3, first.Item.QuestionCount)
	assert.Equal(t, 0, first.Item.Position)

	// explicit questions override question_count and blanks are dropped
	rec = env.do(http.MethodPost, itemsPath, CatalogItemRequest{
		Title:         "Warmup",
		Questions:     []string{"  Explain a goroutine leak.  ", "", questionTwo},
		QuestionCount: 10,
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var second struct {
		Item models.InterviewCatalogItem `json:"item"`
	}
	decodeBody(t, rec, &second)
	assert.Equal(t, 2, second.Item.QuestionCount)
	assert.Equal(t, 1, second.Item.Position)
	assert.Equal(t, []string{"Explain a goroutine leak.", questionTwo}, models.StringList(second.Item.Questions))

	rec = env.do(http.MethodGet, itemsPath, nil, other)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	assert.Equal(t, 2, list.Count)

	rec = env.do(http.MethodPut, "/api/v1/catalog-items/"+second.Item.ID, CatalogItemRequest{
		Title:     "Warmup",
		Questions: []string{questionOne},
	}, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	negative := -1
	rec = env.do(http.MethodPut, "/api/v1/catalog-items/"+second.Item.ID, CatalogItemRequest{
		Title:     "Warmup",
		Questions: []string{questionOne},
		Position:  &negative,
	}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/api/v1/catalog-items/"+first.Item.ID, nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/v1/catalog-items/"+first.Item.ID, nil, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomInterviewEndpoints(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("custom@example.com")
	other := env.register("custom-other@example.com")

	rec := env.do(http.MethodPost, "/api/v1/custom-interviews", CustomInterviewRequest{
		Title:     "Staff SRE",
		Questions: []string{"   "},
	}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "at least one question is required", errorMessage(t, rec))

	tooMany := make([]string, maxQuestions+1)
	for i := range tooMany {
		tooMany[i] = questionOne
	}
	rec = env.do(http.MethodPost, "/api/v1/custom-interviews", CustomInterviewRequest{Title: "Staff SRE", Questions: tooMany}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/custom-interviews", CustomInterviewRequest{
		Title:          "Staff SRE",
		JobDescription: "  Own the incident process.  ",
		Questions:      []string{questionOne, questionTwo},
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		CustomInterview models.CustomInterview `json:"custom_interview"`
	}
	decodeBody(t, rec, &created)
	assert.Equal(t, "Own the incident process.", created.CustomInterview.JobDescription)
	id := created.CustomInterview.ID

	rec = env.do(http.MethodGet, "/api/v1/custom-interviews/"+id, nil, other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPut, "/api/v1/custom-interviews/"+id, CustomInterviewRequest{
		Title:       "Staff SRE",
		Questions:   []string{questionOne},
		IsPublished: true,
	}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/v1/custom-interviews/"+id, nil, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodDelete, "/api/v1/custom-interviews/"+id, nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/custom-interviews", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = env.do(http.MethodDelete, "/api/v1/custom-interviews/"+id, nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	stored, err := env.repo.GetCustomInterview(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
