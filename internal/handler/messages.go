package handler

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vmarkovic/inboxpilot/api/internal/middleware"
	"github.com/vmarkovic/inboxpilot/api/internal/model"
	"github.com/vmarkovic/inboxpilot/api/internal/repository"
	"github.com/vmarkovic/inboxpilot/api/internal/service"
)

type MessageHandler struct {
	repo      *repository.MessageRepo
	publisher *service.EventPublisher
	cache     service.JSONCache
}

const messagesListCacheTTL = 30 * time.Second

func NewMessageHandler(repo *repository.MessageRepo, publisher *service.EventPublisher, cache service.JSONCache) *MessageHandler {
	return &MessageHandler{repo: repo, publisher: publisher, cache: cache}
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	q := r.URL.Query()
	var status, label *string
	if v := q.Get("status"); v != "" {
		status = &v
	}
	if v := q.Get("label"); v != "" {
		label = &v
	}
	page := parseIntOrDefault(q.Get("page"), 1)
	pageSize := parseIntOrDefault(q.Get("page_size"), 20)
	if page < 1 || page > 100000 {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	if pageSize < 1 || pageSize > 200 {
		http.Error(w, "invalid page_size", http.StatusBadRequest)
		return
	}
	unreadOnly := q.Get("unread_only") == "true"
	starred := q.Get("starred") == "true"

	cacheKey := fmt.Sprintf(
		"messages:list:%s:status=%s:label=%s:unread=%t:starred=%t:page=%d:size=%d",
		userID, q.Get("status"), q.Get("label"), unreadOnly, starred, page, pageSize,
	)
	if h.cache != nil {
		var cached model.MessageListResponse
		if ok, err := h.cache.GetJSON(r.Context(), cacheKey, &cached); err == nil && ok {
			writeJSON(w, &cached)
			return
		} else if err != nil {
			log.Printf("messages-list cache get failed user_id=%s err=%v", userID, err)
		}
	}

	resp, err := h.repo.ListPage(r.Context(), userID, repository.MessageListParams{
		Status:     status,
		Label:      label,
		UnreadOnly: unreadOnly,
		Starred:    starred,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		writeRepoError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.SetJSON(r.Context(), cacheKey, resp, messagesListCacheTTL); err != nil {
			log.Printf("messages-list cache set failed user_id=%s err=%v", userID, err)
		}
	}
	writeJSON(w, resp)
}

func (h *MessageHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id := chi.URLParam(r, "id")

	detail, err := h.repo.GetDetail(r.Context(), id, userID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, detail)
}

func (h *MessageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	stats, err := h.repo.Stats(r.Context(), userID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (h *MessageHandler) Star(w http.ResponseWriter, r *http.Request) {
	h.setStarred(w, r, true)
}

func (h *MessageHandler) Unstar(w http.ResponseWriter, r *http.Request) {
	h.setStarred(w, r, false)
}

func (h *MessageHandler) setStarred(w http.ResponseWriter, r *http.Request, starred bool) {
	userID := middleware.GetUserID(r)
	id := chi.URLParam(r, "id")
	if err := h.repo.SetStarred(r.Context(), userID, id, starred); err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "is_starred": starred})
}

func (h *MessageHandler) Trash(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id := chi.URLParam(r, "id")
	if err := h.repo.SetTrashed(r.Context(), userID, id, true); err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "is_trashed": true})
}

// Process queues a single message for analysis. The heavy lifting runs in
// the background function; this endpoint only validates and enqueues.
func (h *MessageHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id := chi.URLParam(r, "id")

	msg, err := h.repo.Get(r.Context(), id, userID)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	h.publisher.SendMessageSynced(r.Context(), msg.ID, userID)
	writeJSON(w, map[string]any{"id": msg.ID, "queued": true})
}

// ProcessBatch queues an analysis sweep over every message that still needs
// processing; force=true reprocesses completed ones too.
func (h *MessageHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	force := r.URL.Query().Get("force") == "true"

	h.publisher.SendBatchRequested(r.Context(), userID, force)
	writeJSON(w, map[string]any{"queued": true, "force": force})
}

func (h *MessageHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	failed, err := h.repo.ListFailedForRetry(r.Context(), userID, 100)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	for _, m := range failed {
		h.publisher.SendMessageSynced(r.Context(), m.ID, userID)
	}
	writeJSON(w, map[string]any{"queued": len(failed)})
}
