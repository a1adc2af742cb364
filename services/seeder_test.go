package services

import (
	"context"
	"testing"

	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/krshsl/interviewcoach/backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadSeedData(t *testing.T) {
	data, err := LoadSeedData()
	require.NoError(t, err)

	assert.Equal(t, "demo@example.com", data.DemoUser.Email)
	assert.Len(t, data.AgentRoles, 5)
	require.Len(t, data.Topics, 2)
	assert.Len(t, data.Topics[0].SubTopics, 3)
	require.Len(t, data.Catalogs, 1)
	assert.Len(t, data.Catalogs[0].Items, 3)
}

func TestSeedDatabaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	data, err := LoadSeedData()
	require.NoError(t, err)
	seeder := NewDatabaseSeeder(repo, data)

	require.NoError(t, seeder.SeedDatabase(ctx))
	require.NoError(t, seeder.SeedDatabase(ctx))

	user, err := repo.GetUserByEmail(ctx, "demo@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password")))

	roles, err := repo.ListAgentRoles(ctx, "someone-else")
	require.NoError(t, err)
	assert.Len(t, roles, 5, "built-in roles are visible to every user")
	for _, role := range roles {
		assert.Nil(t, role.UserID)
	}

	topics, err := repo.ListTopics(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, topics, 2)

	catalogs, err := repo.ListPublishedCatalogs(ctx)
	require.NoError(t, err)
	require.Len(t, catalogs, 1)
	items, err := repo.ListCatalogItems(ctx, catalogs[0].ID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "REST API Design", items[0].Title)
	assert.Equal(t, 3, items[0].QuestionCount)
	require.NotNil(t, items[0].SubTopicID)

	warmup := items[2]
	assert.Equal(t, "System Design Warm-up", warmup.Title)
	assert.Equal(t, 3, warmup.QuestionCount)
	assert.Len(t, models.StringList(warmup.Questions), 3)
}

func TestSeededCatalogItemStartsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	data, err := LoadSeedData()
	require.NoError(t, err)
	require.NoError(t, NewDatabaseSeeder(env.repo, data).SeedDatabase(ctx))

	catalogs, err := env.repo.ListPublishedCatalogs(ctx)
	require.NoError(t, err)
	items, err := env.repo.ListCatalogItems(ctx, catalogs[0].ID)
	require.NoError(t, err)

	user := env.createUser("seeded@example.com")
	session, err := env.server.Sessions().Start(ctx, user, StartSessionRequest{CatalogItemID: &items[1].ID})
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency", session.Title)
	assert.Len(t, session.Questions, 4)
}
