package handler

import (
	"encoding/json"
	"net/http"

	"github.com/vmarkovic/inboxpilot/api/internal/middleware"
	"github.com/vmarkovic/inboxpilot/api/internal/repository"
)

type GoalsHandler struct {
	repo *repository.UserGoalsRepo
}

func NewGoalsHandler(repo *repository.UserGoalsRepo) *GoalsHandler {
	return &GoalsHandler{repo: repo}
}

func (h *GoalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	goals, err := h.repo.GetByUserID(r.Context(), userID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	if goals == nil {
		writeJSON(w, map[string]any{"user_id": userID})
		return
	}
	writeJSON(w, goals)
}

func (h *GoalsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	var req struct {
		Goals       *string  `json:"goals"`
		FocusAreas  []string `json:"focus_areas"`
		IgnoreNoise bool     `json:"ignore_noise"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.repo.Upsert(r.Context(), userID, req.Goals, req.FocusAreas, req.IgnoreNoise); err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}
