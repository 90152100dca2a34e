package service

import (
	"context"
	"log"

	"github.com/inngest/inngestgo"
)

type EventPublisher struct {
	client inngestgo.Client
}

func NewEventPublisher() (*EventPublisher, error) {
	client, err := inngestgo.NewClient(inngestgo.ClientOpts{
		AppID: "inboxpilot-api",
	})
	if err != nil {
		return nil, err
	}
	return &EventPublisher{client: client}, nil
}

// SendMessageSynced queues a single message for analysis.
func (p *EventPublisher) SendMessageSynced(ctx context.Context, messageID, userID string) {
	_ = p.SendMessageSyncedE(ctx, messageID, userID)
}

func (p *EventPublisher) SendMessageSyncedE(ctx context.Context, messageID, userID string) error {
	if p == nil {
		return nil
	}
	if _, err := p.client.Send(ctx, inngestgo.Event{
		Name: "message/synced",
		Data: map[string]any{
			"message_id": messageID,
			"user_id":    userID,
		},
	}); err != nil {
		log.Printf("send message/synced: %v", err)
		return err
	}
	return nil
}

// SendBatchRequested queues a batch analysis sweep for a user, optionally
// forcing reprocessing of completed messages.
func (p *EventPublisher) SendBatchRequested(ctx context.Context, userID string, force bool) {
	if p == nil {
		return
	}
	if _, err := p.client.Send(ctx, inngestgo.Event{
		Name: "messages/batch-requested",
		Data: map[string]any{
			"user_id": userID,
			"force":   force,
		},
	}); err != nil {
		log.Printf("send messages/batch-requested: %v", err)
	}
}
