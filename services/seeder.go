package services

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/krshsl/interviewcoach/backend/models"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

//go:embed seed_data.yaml
var seedYAML []byte

type SeedData struct {
	DemoUser   SeedUser        `yaml:"demo_user"`
	AgentRoles []SeedAgentRole `yaml:"agent_roles"`
	Topics     []SeedTopic     `yaml:"topics"`
	Catalogs   []SeedCatalog   `yaml:"catalogs"`
}

type SeedUser struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
}

type SeedAgentRole struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Personality string `yaml:"personality"`
	Industry    string `yaml:"industry"`
	Level       string `yaml:"level"`
}

type SeedTopic struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	SubTopics   []SeedSubTopic `yaml:"subtopics"`
}

type SeedSubTopic struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Difficulty  string `yaml:"difficulty"`
}

type SeedCatalog struct {
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Items       []SeedCatalogItem `yaml:"items"`
}

type SeedCatalogItem struct {
	Title         string   `yaml:"title"`
	SubTopic      string   `yaml:"subtopic"`
	QuestionCount int      `yaml:"question_count"`
	Questions     []string `yaml:"questions"`
}

// LoadSeedData parses the embedded seed file
func LoadSeedData() (*SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return &data, nil
}

// SeedStore is the persistence the seeder writes to
type SeedStore interface {
	UserStore
	TopicStore
	AgentRoleStore
	CatalogStore
}

// DatabaseSeeder inserts built-in agent roles and demo content. Running it twice is a no-op.
type DatabaseSeeder struct {
	repo SeedStore
	data *SeedData
}

func NewDatabaseSeeder(repo SeedStore, data *SeedData) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo, data: data}
}

func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	for _, role := range s.data.AgentRoles {
		if err := s.seedAgentRole(ctx, role); err != nil {
			return err
		}
	}

	user, err := s.seedUser(ctx, s.data.DemoUser)
	if err != nil {
		return err
	}

	subTopics := make(map[string]string)
	for _, topic := range s.data.Topics {
		if err := s.seedTopic(ctx, user, topic, subTopics); err != nil {
			return err
		}
	}

	for _, catalog := range s.data.Catalogs {
		if err := s.seedCatalog(ctx, user, catalog, subTopics); err != nil {
			return err
		}
	}

	slog.Info("Database seeding completed successfully")
	return nil
}

func (s *DatabaseSeeder) seedAgentRole(ctx context.Context, seed SeedAgentRole) error {
	existing, err := s.repo.GetAgentRoleByName(ctx, seed.Name)
	if err != nil {
		return fmt.Errorf("error checking agent role %s: %w", seed.Name, err)
	}
	if existing != nil {
		return nil
	}

	role := &models.AIAgentRole{
		Name:        seed.Name,
		Description: seed.Description,
		Personality: seed.Personality,
		Industry:    seed.Industry,
		Level:       seed.Level,
		IsPublic:    true,
		IsActive:    true,
	}
	if err := s.repo.CreateAgentRole(ctx, role); err != nil {
		return fmt.Errorf("failed to create agent role %s: %w", seed.Name, err)
	}

	slog.Info("Created agent role", "name", role.Name, "agent_role_id", role.ID)
	return nil
}

func (s *DatabaseSeeder) seedUser(ctx context.Context, seed SeedUser) (*models.User, error) {
	email := normalizeEmail(seed.Email)
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error checking user %s: %w", email, err)
	}
	if existing != nil {
		return existing, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Email:    email,
		Password: string(hashed),
		FullName: seed.FullName,
		Role:     "user",
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", email, err)
	}

	slog.Info("Created user", "email", user.Email, "user_id", user.ID)
	return user, nil
}

// seedTopic creates the topic and its subtopics, recording subtopic ids by name in ids
func (s *DatabaseSeeder) seedTopic(ctx context.Context, user *models.User, seed SeedTopic, ids map[string]string) error {
	topics, err := s.repo.ListTopics(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("error checking topics: %w", err)
	}
	var topic *models.Topic
	for i := range topics {
		if topics[i].UserID == user.ID && topics[i].Name == seed.Name {
			topic = &topics[i]
			break
		}
	}
	if topic == nil {
		topic = &models.Topic{
			UserID:      user.ID,
			Name:        seed.Name,
			Description: seed.Description,
			IsPublished: true,
		}
		if err := s.repo.CreateTopic(ctx, topic); err != nil {
			return fmt.Errorf("failed to create topic %s: %w", seed.Name, err)
		}
		slog.Info("Created topic", "name", topic.Name, "topic_id", topic.ID)
	}

	existing, err := s.repo.ListSubTopics(ctx, topic.ID)
	if err != nil {
		return fmt.Errorf("error checking subtopics: %w", err)
	}
	for _, st := range existing {
		ids[st.Name] = st.ID
	}

	for _, seedSub := range seed.SubTopics {
		if _, ok := ids[seedSub.Name]; ok {
			continue
		}
		difficulty := seedSub.Difficulty
		if difficulty == "" {
			difficulty = "medium"
		}
		subTopic := &models.SubTopic{
			TopicID:     topic.ID,
			UserID:      user.ID,
			Name:        seedSub.Name,
			Description: seedSub.Description,
			Difficulty:  difficulty,
			IsPublished: true,
		}
		if err := s.repo.CreateSubTopic(ctx, subTopic); err != nil {
			return fmt.Errorf("failed to create subtopic %s: %w", seedSub.Name, err)
		}
		ids[subTopic.Name] = subTopic.ID
	}
	return nil
}

func (s *DatabaseSeeder) seedCatalog(ctx context.Context, user *models.User, seed SeedCatalog, subTopics map[string]string) error {
	catalogs, err := s.repo.ListCatalogsByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("error checking catalogs: %w", err)
	}
	for _, c := range catalogs {
		if c.Title == seed.Title {
			return nil
		}
	}

	catalog := &models.InterviewCatalog{
		UserID:      user.ID,
		Title:       seed.Title,
		Description: seed.Description,
		IsPublished: true,
	}
	if err := s.repo.CreateCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("failed to create catalog %s: %w", seed.Title, err)
	}

	for i, seedItem := range seed.Items {
		item := &models.InterviewCatalogItem{
			CatalogID:     catalog.ID,
			Title:         seedItem.Title,
			Questions:     models.NewStringList(seedItem.Questions),
			QuestionCount: seedItem.QuestionCount,
			Position:      i,
		}
		if id, ok := subTopics[seedItem.SubTopic]; ok {
			item.SubTopicID = &id
			if item.Title == "" {
				item.Title = seedItem.SubTopic
			}
		}
		if len(seedItem.Questions) > 0 && item.QuestionCount == 0 {
			item.QuestionCount = len(seedItem.Questions)
		}
		if item.Title == "" {
			return fmt.Errorf("catalog item %d of %s has no title", i, seed.Title)
		}
		if err := s.repo.CreateCatalogItem(ctx, item); err != nil {
			return fmt.Errorf("failed to create catalog item %s: %w", item.Title, err)
		}
	}

	slog.Info("Created catalog", "title", catalog.Title, "catalog_id", catalog.ID, "items", len(seed.Items))
	return nil
}
