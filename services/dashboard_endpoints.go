package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const dashboardRecentSessions = 5

type DashboardEndpoints struct {
	repo SessionStore
}

func NewDashboardEndpoints(repo SessionStore) *DashboardEndpoints {
	return &DashboardEndpoints{repo: repo}
}

func (e *DashboardEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", e.DashboardHandler)
}

// DashboardHandler returns aggregate statistics with the most recent sessions
func (e *DashboardEndpoints) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := e.repo.GetUserStats(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	recent, err := e.repo.ListSessions(r.Context(), user.ID, dashboardRecentSessions)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":           stats,
		"recent_sessions": recent,
	})
}
