package services

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/interviewcoach/backend/models"
)

type ProfileEndpoints struct {
	repo ProfileStore
}

type UpdateProfileRequest struct {
	Headline        string `json:"headline"`
	CurrentRole     string `json:"current_role"`
	TargetRole      string `json:"target_role"`
	YearsExperience int    `json:"years_experience"`
	Skills          string `json:"skills"`
	CareerGoals     string `json:"career_goals"`
	Bio             string `json:"bio"`
}

func NewProfileEndpoints(repo ProfileStore) *ProfileEndpoints {
	return &ProfileEndpoints{repo: repo}
}

func (e *ProfileEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/profile", e.GetProfileHandler)
	r.Put("/profile", e.UpdateProfileHandler)
}

func (req *UpdateProfileRequest) validate() error {
	limits := []struct {
		field string
		value string
		max   int
	}{
		{"headline", req.Headline, 200},
		{"current_role", req.CurrentRole, 100},
		{"target_role", req.TargetRole, 100},
		{"skills", req.Skills, 2000},
		{"career_goals", req.CareerGoals, 4000},
		{"bio", req.Bio, 4000},
	}
	for _, l := range limits {
		if len(l.value) > l.max {
			return validationError("%s must be at most %d characters", l.field, l.max)
		}
	}
	if req.YearsExperience < 0 || req.YearsExperience > 60 {
		return validationError("years_experience must be between 0 and 60")
	}
	return nil
}

func (e *ProfileEndpoints) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := e.repo.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if profile == nil {
		profile = &models.Profile{UserID: user.ID}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": profile,
	})
}

func (e *ProfileEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	profile := &models.Profile{
		UserID:          user.ID,
		Headline:        strings.TrimSpace(req.Headline),
		CurrentRole:     strings.TrimSpace(req.CurrentRole),
		TargetRole:      strings.TrimSpace(req.TargetRole),
		YearsExperience: req.YearsExperience,
		Skills:          strings.TrimSpace(req.Skills),
		CareerGoals:     strings.TrimSpace(req.CareerGoals),
		Bio:             strings.TrimSpace(req.Bio),
	}
	if err := e.repo.SaveProfile(r.Context(), profile); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": profile,
		"message": "Profile updated successfully",
	})

	slog.Info("Profile updated", "user_id", user.ID)
}
