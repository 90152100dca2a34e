package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vmarkovic/inboxpilot/api/internal/ai"
	"github.com/vmarkovic/inboxpilot/api/internal/handler"
	inngestfn "github.com/vmarkovic/inboxpilot/api/internal/inngest"
	"github.com/vmarkovic/inboxpilot/api/internal/middleware"
	"github.com/vmarkovic/inboxpilot/api/internal/repository"
	"github.com/vmarkovic/inboxpilot/api/internal/service"
)

func main() {
	ctx := context.Background()

	db, err := repository.NewPool(ctx)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	budget, err := ai.NewBudgetStoreFromEnv()
	if err != nil {
		log.Fatalf("budget store: %v", err)
	}
	cache, err := service.NewJSONCacheFromEnv()
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	eventPublisher, err := service.NewEventPublisher()
	if err != nil {
		log.Fatalf("event publisher: %v", err)
	}

	userRepo := repository.NewUserRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	goalsRepo := repository.NewUserGoalsRepo(db)
	usageRepo := repository.NewAiUsageLogRepo(db)

	internalH := handler.NewInternalHandler(userRepo, messageRepo, eventPublisher)
	messageH := handler.NewMessageHandler(messageRepo, eventPublisher, cache)
	goalsH := handler.NewGoalsHandler(goalsRepo)
	usageH := handler.NewAiUsageHandler(usageRepo)

	inngestHandler := inngestfn.NewHandler(db, budget)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	r.Mount("/api/inngest", inngestHandler)

	// Called by the sync worker and the auth frontend only.
	r.Post("/api/internal/users/upsert", internalH.UpsertUser)
	r.Post("/api/internal/messages/ingest", internalH.IngestMessage)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", messageH.List)
			r.Get("/stats", messageH.Stats)
			r.Post("/process-batch", messageH.ProcessBatch)
			r.Post("/retry-failed", messageH.RetryFailed)
			r.Get("/{id}", messageH.GetDetail)
			r.Post("/{id}/star", messageH.Star)
			r.Delete("/{id}/star", messageH.Unstar)
			r.Post("/{id}/trash", messageH.Trash)
			r.Post("/{id}/process", messageH.Process)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", goalsH.Get)
			r.Put("/", goalsH.Update)
		})

		r.Route("/ai-usage", func(r chi.Router) {
			r.Get("/", usageH.List)
			r.Get("/summary", usageH.DailySummary)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("api listening on :%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
