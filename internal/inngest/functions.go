package inngest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarkovic/inboxpilot/api/internal/ai"
	"github.com/vmarkovic/inboxpilot/api/internal/repository"
)

func NewHandler(db *pgxpool.Pool, budget ai.BudgetStore) http.Handler {
	client, err := inngestgo.NewClient(inngestgo.ClientOpts{
		AppID: "inboxpilot-api",
	})
	if err != nil {
		log.Fatalf("inngest client: %v", err)
	}

	router := ai.NewRouter(ai.AdaptersFromEnv(), budget)
	analyzer := ai.NewAnalyzer(router)
	processor := ai.NewProcessor(analyzer, repository.NewMessageAIRepo(db))

	register := func(f inngestgo.ServableFunction, err error) {
		if err != nil {
			log.Fatalf("register function: %v", err)
		}
	}

	register(analyzeMessageFn(client, db, processor))
	register(analyzeBatchFn(client, db, processor))
	register(sweepPendingFn(client, db))

	return client.Serve()
}

// recordAiUsage writes one usage log row per run. The idempotency key keeps
// inngest retries from double-counting.
func recordAiUsage(ctx context.Context, repo *repository.AiUsageLogRepo, purpose string, usage ai.Usage, models []string, userID, messageID, batchRunID *string) {
	if repo == nil || usage.TotalTokens <= 0 {
		return
	}
	modelName := ""
	if len(models) > 0 {
		modelName = models[0]
	}
	key := aiUsageIdempotencyKey(purpose, modelName, usage, userID, messageID, batchRunID)
	if err := repo.Insert(ctx, repository.AiUsageLogInput{
		IdempotencyKey:   &key,
		UserID:           userID,
		MessageID:        messageID,
		BatchRunID:       batchRunID,
		Provider:         providerOf(modelName),
		Model:            modelName,
		Purpose:          purpose,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}); err != nil {
		log.Printf("record ai usage purpose=%s: %v", purpose, err)
	}
}

func aiUsageIdempotencyKey(purpose, model string, usage ai.Usage, userID, messageID, batchRunID *string) string {
	toVal := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	raw := fmt.Sprintf(
		"purpose=%s|model=%s|u=%s|m=%s|b=%s|in=%d|out=%d",
		purpose, model, toVal(userID), toVal(messageID), toVal(batchRunID),
		usage.PromptTokens, usage.CompletionTokens,
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// providerOf maps a model name back to its provider for the usage log.
// Adapters report provider separately, but by the time usage reaches here
// only the model name survives aggregation.
func providerOf(model string) string {
	switch {
	case model == "":
		return "unknown"
	case len(model) >= 6 && model[:6] == "gemini":
		return "gemini"
	case len(model) >= 5 && model[:5] == "llama":
		return "groq"
	default:
		return "openrouter"
	}
}

func analyzeMessageFn(client inngestgo.Client, db *pgxpool.Pool, processor *ai.Processor) (inngestgo.ServableFunction, error) {
	messageRepo := repository.NewMessageRepo(db)
	goalsRepo := repository.NewUserGoalsRepo(db)
	usageRepo := repository.NewAiUsageLogRepo(db)

	type EventData struct {
		MessageID string `json:"message_id"`
		UserID    string `json:"user_id"`
	}

	return inngestgo.CreateFunction(
		client,
		inngestgo.FunctionOpts{ID: "analyze-message", Name: "Analyze Message"},
		inngestgo.EventTrigger("message/synced", nil),
		func(ctx context.Context, input inngestgo.Input[EventData]) (any, error) {
			data := input.Event.Data
			log.Printf("analyze-message start message_id=%s", data.MessageID)

			msg, err := messageRepo.Get(ctx, data.MessageID, data.UserID)
			if err != nil {
				return nil, fmt.Errorf("load message: %w", err)
			}
			goals, err := goalsRepo.GetByUserID(ctx, data.UserID)
			if err != nil {
				log.Printf("analyze-message goals lookup failed user_id=%s err=%v", data.UserID, err)
			}

			result, err := step.Run(ctx, "analyze", func(ctx context.Context) (*ai.SingleResult, error) {
				return processor.ProcessSingle(ctx, *msg, goals, false)
			})
			if err != nil {
				log.Printf("analyze-message failed message_id=%s err=%v", data.MessageID, err)
				return nil, fmt.Errorf("analyze message: %w", err)
			}
			if result.Skipped {
				log.Printf("analyze-message skipped message_id=%s", data.MessageID)
				return map[string]any{"skipped": true}, nil
			}

			recordAiUsage(ctx, usageRepo, "analyze_message", result.Usage, result.ModelsUsed,
				&data.UserID, &data.MessageID, nil)
			log.Printf("analyze-message done message_id=%s tokens=%d", data.MessageID, result.Usage.TotalTokens)
			return map[string]any{"tokens": result.Usage.TotalTokens}, nil
		},
	)
}

func analyzeBatchFn(client inngestgo.Client, db *pgxpool.Pool, processor *ai.Processor) (inngestgo.ServableFunction, error) {
	messageRepo := repository.NewMessageRepo(db)
	goalsRepo := repository.NewUserGoalsRepo(db)
	usageRepo := repository.NewAiUsageLogRepo(db)

	type EventData struct {
		UserID string `json:"user_id"`
		Force  bool   `json:"force"`
	}

	return inngestgo.CreateFunction(
		client,
		inngestgo.FunctionOpts{ID: "analyze-batch", Name: "Analyze Batch"},
		inngestgo.EventTrigger("messages/batch-requested", nil),
		func(ctx context.Context, input inngestgo.Input[EventData]) (any, error) {
			data := input.Event.Data
			log.Printf("analyze-batch start user_id=%s force=%t", data.UserID, data.Force)

			msgs, err := messageRepo.ListForProcessing(ctx, data.UserID, 100)
			if err != nil {
				return nil, fmt.Errorf("list messages: %w", err)
			}
			goals, err := goalsRepo.GetByUserID(ctx, data.UserID)
			if err != nil {
				log.Printf("analyze-batch goals lookup failed user_id=%s err=%v", data.UserID, err)
			}

			result, err := step.Run(ctx, "analyze-batch", func(ctx context.Context) (*ai.BatchResult, error) {
				return processor.ProcessBatch(ctx, msgs, goals, data.Force)
			})
			if result != nil {
				recordAiUsage(ctx, usageRepo, "analyze_batch", result.Usage, result.ModelsUsed,
					&data.UserID, nil, &result.RunID)
			}
			if err != nil {
				log.Printf("analyze-batch failed user_id=%s err=%v", data.UserID, err)
				return nil, fmt.Errorf("analyze batch: %w", err)
			}

			log.Printf("analyze-batch done user_id=%s processed=%d skipped=%d failed=%d",
				data.UserID, result.Processed, result.Skipped, result.Failed)
			return result, nil
		},
	)
}

// sweepPendingFn periodically queues a batch run for every user with
// messages still waiting on analysis, so nothing stays pending forever.
func sweepPendingFn(client inngestgo.Client, db *pgxpool.Pool) (inngestgo.ServableFunction, error) {
	return inngestgo.CreateFunction(
		client,
		inngestgo.FunctionOpts{ID: "sweep-pending", Name: "Sweep Pending Messages"},
		inngestgo.CronTrigger("*/30 * * * *"),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			rows, err := db.Query(ctx, `
				SELECT DISTINCT user_id FROM messages
				WHERE ai_status IN ('pending', 'failed') AND NOT is_trashed`)
			if err != nil {
				return nil, fmt.Errorf("list users with pending: %w", err)
			}
			defer rows.Close()

			var userIDs []string
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					return nil, err
				}
				userIDs = append(userIDs, id)
			}
			if err := rows.Err(); err != nil {
				return nil, err
			}

			queued := 0
			for _, userID := range userIDs {
				if _, err := client.Send(ctx, inngestgo.Event{
					Name: "messages/batch-requested",
					Data: map[string]any{"user_id": userID, "force": false},
				}); err != nil {
					log.Printf("sweep-pending send failed user_id=%s err=%v", userID, err)
					continue
				}
				queued++
			}
			log.Printf("sweep-pending queued=%d users=%d", queued, len(userIDs))
			return map[string]any{"queued": queued}, nil
		},
	)
}
