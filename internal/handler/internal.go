package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/vmarkovic/inboxpilot/api/internal/repository"
	"github.com/vmarkovic/inboxpilot/api/internal/service"
	"github.com/vmarkovic/inboxpilot/api/internal/timeutil"
)

// InternalHandler serves endpoints called by trusted collaborators only
// (the sync worker and the auth frontend), protected by X-Internal-Secret.
type InternalHandler struct {
	userRepo    *repository.UserRepo
	messageRepo *repository.MessageRepo
	publisher   *service.EventPublisher
}

func NewInternalHandler(userRepo *repository.UserRepo, messageRepo *repository.MessageRepo, publisher *service.EventPublisher) *InternalHandler {
	return &InternalHandler{userRepo: userRepo, messageRepo: messageRepo, publisher: publisher}
}

func (h *InternalHandler) authorized(r *http.Request) bool {
	secret := os.Getenv("INTERNAL_API_SECRET")
	return secret != "" && r.Header.Get("X-Internal-Secret") == secret
}

func (h *InternalHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var req struct {
		Email string  `json:"email"`
		Name  *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	user, err := h.userRepo.Upsert(r.Context(), req.Email, req.Name)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, user)
}

type ingestMessageRequest struct {
	UserID         string   `json:"user_id"`
	GmailID        string   `json:"gmail_id"`
	ThreadID       *string  `json:"thread_id"`
	Sender         string   `json:"sender"`
	Subject        string   `json:"subject"`
	Snippet        *string  `json:"snippet"`
	BodyText       *string  `json:"body_text"`
	Labels         []string `json:"labels"`
	HasAttachments bool     `json:"has_attachments"`
	IsUnread       bool     `json:"is_unread"`
	IsPriority     bool     `json:"is_priority"`
	ReceivedAt     *string  `json:"received_at"`
}

// IngestMessage accepts one synced message from the sync worker and queues
// it for analysis when it is new.
func (h *InternalHandler) IngestMessage(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var req ingestMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.GmailID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var receivedAt *time.Time
	if req.ReceivedAt != nil {
		if t, err := timeutil.ParseToBelgrade(*req.ReceivedAt); err == nil {
			receivedAt = &t
		}
	}

	id, created, err := h.messageRepo.UpsertSynced(r.Context(), repository.SyncedMessageInput{
		UserID:         req.UserID,
		GmailID:        req.GmailID,
		ThreadID:       req.ThreadID,
		Sender:         req.Sender,
		Subject:        req.Subject,
		Snippet:        req.Snippet,
		BodyText:       req.BodyText,
		Labels:         req.Labels,
		HasAttachments: req.HasAttachments,
		IsUnread:       req.IsUnread,
		IsPriority:     req.IsPriority,
		ReceivedAt:     receivedAt,
	})
	if err != nil {
		writeRepoError(w, err)
		return
	}
	if created {
		h.publisher.SendMessageSynced(r.Context(), id, req.UserID)
	}
	writeJSON(w, map[string]any{"id": id, "created": created})
}
