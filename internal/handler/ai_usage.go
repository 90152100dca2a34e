package handler

import (
	"net/http"

	"github.com/vmarkovic/inboxpilot/api/internal/middleware"
	"github.com/vmarkovic/inboxpilot/api/internal/repository"
)

type AiUsageHandler struct {
	repo *repository.AiUsageLogRepo
}

func NewAiUsageHandler(repo *repository.AiUsageLogRepo) *AiUsageHandler {
	return &AiUsageHandler{repo: repo}
}

func (h *AiUsageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 100)

	logs, err := h.repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, map[string]any{"logs": logs})
}

func (h *AiUsageHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	days := parseIntOrDefault(r.URL.Query().Get("days"), 14)

	summary, err := h.repo.DailySummaryByUser(r.Context(), userID, days)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, map[string]any{"summary": summary})
}
