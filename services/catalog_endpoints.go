package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/interviewcoach/backend/models"
)

const (
	maxTitleLength    = 200
	maxQuestions      = 50
	maxQuestionLength = 1000
	maxQuestionCount  = 20
)

type CatalogEndpoints struct {
	repo   CatalogStore
	topics TopicStore
	cache  CatalogCache
}

type CatalogRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublished bool   `json:"is_published"`
}

type CatalogItemRequest struct {
	Title         string   `json:"title"`
	SubTopicID    *string  `json:"subtopic_id"`
	Questions     []string `json:"questions"`
	QuestionCount int      `json:"question_count"`
	Position      *int     `json:"position"`
}

type CustomInterviewRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	JobDescription string   `json:"job_description"`
	Questions      []string `json:"questions"`
	IsPublished    bool     `json:"is_published"`
}

func NewCatalogEndpoints(repo CatalogStore, topics TopicStore, cache CatalogCache) *CatalogEndpoints {
	if cache == nil {
		cache = NoopCatalogCache{}
	}
	return &CatalogEndpoints{repo: repo, topics: topics, cache: cache}
}

func (e *CatalogEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/catalogs", func(r chi.Router) {
		r.Get("/", e.ListCatalogsHandler)
		r.Post("/", e.CreateCatalogHandler)
		r.Get("/{id}", e.GetCatalogHandler)
		r.Put("/{id}", e.UpdateCatalogHandler)
		r.Delete("/{id}", e.DeleteCatalogHandler)
		r.Get("/{id}/items", e.ListCatalogItemsHandler)
		r.Post("/{id}/items", e.CreateCatalogItemHandler)
	})
	r.Route("/catalog-items", func(r chi.Router) {
		r.Get("/{id}", e.GetCatalogItemHandler)
		r.Put("/{id}", e.UpdateCatalogItemHandler)
		r.Delete("/{id}", e.DeleteCatalogItemHandler)
	})
	r.Route("/custom-interviews", func(r chi.Router) {
		r.Get("/", e.ListCustomInterviewsHandler)
		r.Post("/", e.CreateCustomInterviewHandler)
		r.Get("/{id}", e.GetCustomInterviewHandler)
		r.Put("/{id}", e.UpdateCustomInterviewHandler)
		r.Delete("/{id}", e.DeleteCustomInterviewHandler)
	})
}

func requireTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", validationError("title is required")
	}
	if len(title) > maxTitleLength {
		return "", validationError("title must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

// normalizeQuestions trims the list, drops blanks and enforces the size limits
func normalizeQuestions(questions []string, required bool) ([]string, error) {
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if len(q) > maxQuestionLength {
			return nil, validationError("each question must be at most %d characters", maxQuestionLength)
		}
		out = append(out, q)
	}
	if len(out) > maxQuestions {
		return nil, validationError("at most %d questions are allowed", maxQuestions)
	}
	if required && len(out) == 0 {
		return nil, validationError("at least one question is required")
	}
	return out, nil
}

func (e *CatalogEndpoints) loadCatalog(ctx context.Context, user *models.User, id string) (*models.InterviewCatalog, error) {
	catalog, err := e.repo.GetCatalog(ctx, id)
	if err != nil {
		return nil, err
	}
	if catalog == nil || !canView(user, catalog.UserID, catalog.IsPublished) {
		return nil, notFoundError("catalog")
	}
	return catalog, nil
}

func (e *CatalogEndpoints) ownCatalog(ctx context.Context, user *models.User, id string) (*models.InterviewCatalog, error) {
	catalog, err := e.loadCatalog(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if catalog.UserID != user.ID {
		return nil, forbiddenError("not authorized to modify this catalog")
	}
	return catalog, nil
}

// loadCatalogItem returns the item together with its catalog when the catalog is visible to user
func (e *CatalogEndpoints) loadCatalogItem(ctx context.Context, user *models.User, id string) (*models.InterviewCatalogItem, *models.InterviewCatalog, error) {
	item, err := e.repo.GetCatalogItem(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, notFoundError("catalog item")
	}
	catalog, err := e.repo.GetCatalog(ctx, item.CatalogID)
	if err != nil {
		return nil, nil, err
	}
	if catalog == nil || !canView(user, catalog.UserID, catalog.IsPublished) {
		return nil, nil, notFoundError("catalog item")
	}
	return item, catalog, nil
}

func (e *CatalogEndpoints) buildItem(ctx context.Context, user *models.User, req *CatalogItemRequest, item *models.InterviewCatalogItem) error {
	questions, err := normalizeQuestions(req.Questions, false)
	if err != nil {
		return err
	}

	var subTopic *models.SubTopic
	if req.SubTopicID != nil && *req.SubTopicID != "" {
		subTopic, err = e.topics.GetSubTopic(ctx, *req.SubTopicID)
		if err != nil {
			return err
		}
		if subTopic == nil || !canView(user, subTopic.UserID, subTopic.IsPublished) {
			return validationError("subtopic not found")
		}
	}
	if subTopic == nil && len(questions) == 0 {
		return validationError("an item needs a subtopic or at least one question")
	}

	title := req.Title
	if strings.TrimSpace(title) == "" && subTopic != nil {
		title = subTopic.Name
	}
	if item.Title, err = requireTitle(title); err != nil {
		return err
	}

	if req.QuestionCount < 0 || req.QuestionCount > maxQuestionCount {
		return validationError("question_count must be between 0 and %d", maxQuestionCount)
	}
	item.QuestionCount = req.QuestionCount
	if len(questions) > 0 {
		item.QuestionCount = len(questions)
	}

	item.SubTopicID = nil
	if subTopic != nil {
		item.SubTopicID = &subTopic.ID
	}
	item.Questions = models.NewStringList(questions)
	if req.Position != nil {
		if *req.Position < 0 {
			return validationError("position must not be negative")
		}
		item.Position = *req.Position
	}
	return nil
}

func (e *CatalogEndpoints) ListCatalogsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	owned, err := e.repo.ListCatalogsByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	published, hit := e.cache.GetPublished(r.Context())
	if !hit {
		published, err = e.repo.ListPublishedCatalogs(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		e.cache.SetPublished(r.Context(), published)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owned":     owned,
		"published": published,
	})
}

func (e *CatalogEndpoints) CreateCatalogHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CatalogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	title, err := requireTitle(req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}

	catalog := &models.InterviewCatalog{
		UserID:      user.ID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		IsPublished: req.IsPublished,
	}
	if err := e.repo.CreateCatalog(r.Context(), catalog); err != nil {
		writeError(w, r, err)
		return
	}
	e.cache.Invalidate(r.Context())

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"catalog": catalog,
		"message": "Catalog created successfully",
	})

	slog.Info("Catalog created", "catalog_id", catalog.ID, "user_id", user.ID)
}

func (e *CatalogEndpoints) GetCatalogHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	catalog, err := e.loadCatalog(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"catalog": catalog,
	})
}

func (e *CatalogEndpoints) UpdateCatalogHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	catalog, err := e.ownCatalog(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CatalogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	title, err := requireTitle(req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}

	catalog.Title = title
	catalog.Description = strings.TrimSpace(req.Description)
	catalog.IsPublished = req.IsPublished
	if err := e.repo.UpdateCatalog(r.Context(), catalog); err != nil {
		writeError(w, r, err)
		return
	}
	e.cache.Invalidate(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"catalog": catalog,
		"message": "Catalog updated successfully",
	})

	slog.Info("Catalog updated", "catalog_id", catalog.ID, "user_id", user.ID)
}

func (e *CatalogEndpoints) DeleteCatalogHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	catalog, err := e.ownCatalog(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteCatalog(r.Context(), catalog.ID); err != nil {
		writeError(w, r, err)
		return
	}
	e.cache.Invalidate(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Catalog deleted successfully",
	})

	slog.Info("Catalog deleted", "catalog_id", catalog.ID, "user_id", user.ID)
}

func (e *CatalogEndpoints) ListCatalogItemsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	catalog, err := e.loadCatalog(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := e.repo.ListCatalogItems(r.Context(), catalog.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

func (e *CatalogEndpoints) CreateCatalogItemHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	catalog, err := e.ownCatalog(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CatalogItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item := &models.InterviewCatalogItem{
		CatalogID: catalog.ID,
		Position:  len(catalog.Items),
	}
	if err := e.buildItem(r.Context(), user, &req, item); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.repo.CreateCatalogItem(r.Context(), item); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"item":    item,
		"message": "Catalog item created successfully",
	})

	slog.Info("Catalog item created", "catalog_item_id", item.ID, "catalog_id", catalog.ID, "user_id", user.ID)
}

func (e *CatalogEndpoints) GetCatalogItemHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	item, _, err := e.loadCatalogItem(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item": item,
	})
}

func (e *CatalogEndpoints) UpdateCatalogItemHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	item, catalog, err := e.loadCatalogItem(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if catalog.UserID != user.ID {
		writeError(w, r, forbiddenError("not authorized to modify this catalog"))
		return
	}

	var req CatalogItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.buildItem(r.Context(), user, &req, item); err != nil {
		writeError(w, r, err)
		return
	}
	item.SubTopic = nil
	if err := e.repo.UpdateCatalogItem(r.Context(), item); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item":    item,
		"message": "Catalog item updated successfully",
	})

	slog.Info("Catalog item updated", "catalog_item_id", item.ID, "user_id", user.ID)
}

func (e *CatalogEndpoints) DeleteCatalogItemHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	item, catalog, err := e.loadCatalogItem(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if catalog.UserID != user.ID {
		writeError(w, r, forbiddenError("not authorized to modify this catalog"))
		return
	}

	if err := e.repo.DeleteCatalogItem(r.Context(), item.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Catalog item deleted successfully",
	})

	slog.Info("Catalog item deleted", "catalog_item_id", item.ID, "user_id", user.ID)
}

func (e *CatalogEndpoints) loadCustomInterview(ctx context.Context, user *models.User, id string) (*models.CustomInterview, error) {
	interview, err := e.repo.GetCustomInterview(ctx, id)
	if err != nil {
		return nil, err
	}
	if interview == nil || !canView(user, interview.UserID, interview.IsPublished) {
		return nil, notFoundError("custom interview")
	}
	return interview, nil
}

func (e *CatalogEndpoints) ownCustomInterview(ctx context.Context, user *models.User, id string) (*models.CustomInterview, error) {
	interview, err := e.loadCustomInterview(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if interview.UserID != user.ID {
		return nil, forbiddenError("not authorized to modify this interview")
	}
	return interview, nil
}

func (req *CustomInterviewRequest) apply(interview *models.CustomInterview) error {
	title, err := requireTitle(req.Title)
	if err != nil {
		return err
	}
	questions, err := normalizeQuestions(req.Questions, true)
	if err != nil {
		return err
	}
	interview.Title = title
	interview.Description = strings.TrimSpace(req.Description)
	interview.JobDescription = strings.TrimSpace(req.JobDescription)
	interview.Questions = models.NewStringList(questions)
	interview.IsPublished = req.IsPublished
	return nil
}

func (e *CatalogEndpoints) ListCustomInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	interviews, err := e.repo.ListCustomInterviews(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"custom_interviews": interviews,
		"count":             len(interviews),
	})
}

func (e *CatalogEndpoints) CreateCustomInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CustomInterviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	interview := &models.CustomInterview{UserID: user.ID}
	if err := req.apply(interview); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.repo.CreateCustomInterview(r.Context(), interview); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"custom_interview": interview,
		"message":          "Custom interview created successfully",
	})

	slog.Info("Custom interview created", "custom_interview_id", interview.ID, "user_id", user.ID)
}

func (e *CatalogEndpoints) GetCustomInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	interview, err := e.loadCustomInterview(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"custom_interview": interview,
	})
}

func (e *CatalogEndpoints) UpdateCustomInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	interview, err := e.ownCustomInterview(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CustomInterviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.apply(interview); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.repo.UpdateCustomInterview(r.Context(), interview); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"custom_interview": interview,
		"message":          "Custom interview updated successfully",
	})

	slog.Info("Custom interview updated", "custom_interview_id", interview.ID, "user_id", user.ID)
}

func (e *CatalogEndpoints) DeleteCustomInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	interview, err := e.ownCustomInterview(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := e.repo.DeleteCustomInterview(r.Context(), interview.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Custom interview deleted successfully",
	})

	slog.Info("Custom interview deleted", "custom_interview_id", interview.ID, "user_id", user.ID)
}
