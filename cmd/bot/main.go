package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/caritasdigital/misionbot/internal/config"
	"github.com/caritasdigital/misionbot/internal/handler"
	"github.com/caritasdigital/misionbot/internal/model/catalog"
	"github.com/caritasdigital/misionbot/internal/model/session"
	"github.com/caritasdigital/misionbot/internal/service/ai"
	"github.com/caritasdigital/misionbot/internal/service/conversation"
	"github.com/caritasdigital/misionbot/internal/service/enhance"
	"github.com/caritasdigital/misionbot/internal/service/gender"
	"github.com/caritasdigital/misionbot/internal/service/history"
	"github.com/caritasdigital/misionbot/internal/service/match"
	"github.com/caritasdigital/misionbot/internal/transport/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	cat, err := catalog.Load(cfg.Catalog.ResponsesPath, cfg.Catalog.InfoPath)
	if err != nil {
		log.Printf("warning: %v", err)
		log.Println("continuing with a degraded catalog - canned lookups will miss")
	} else {
		log.Printf("[bot] catalog loaded with %d entries", cat.Len())
	}

	sessions := session.NewMemoryStore()
	transcripts := history.NewService()

	aiSvc, err := ai.New(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: failed to initialize AI service: %v", err)
		log.Println("continuing without generative replies - check the OPENAI_* environment variables")
	} else {
		log.Println("AI service initialized successfully")
	}

	var (
		resolver  conversation.Resolver
		enhancer  conversation.Enhancer
		generator conversation.Generator
	)
	if aiSvc != nil {
		resolver = gender.NewResolver(aiSvc)
		enhancer = enhance.New(aiSvc)
		generator = aiSvc
	} else {
		resolver = gender.NewResolver(nil)
		enhancer = enhance.New(nil)
	}

	matcher := match.New(cat.Keys(), cfg.Match.Threshold)
	orchestrator := conversation.New(cat, sessions, matcher, resolver, enhancer, generator, transcripts)

	bot, err := telegram.NewBot(telegram.Options{
		Token:          cfg.Telegram.Token,
		BaseURL:        cfg.Telegram.BaseURL,
		PollTimeoutSec: cfg.Telegram.PollTimeoutSec,
		OnMessage: func(ctx context.Context, userID int64, text string) (string, time.Duration) {
			outcome := orchestrator.Reply(ctx, userID, text)
			return outcome.Text, outcome.Delay
		},
	})
	if err != nil {
		log.Fatalf("failed to create telegram bot: %v", err)
	}

	router := handler.NewRouter(cat, sessions, transcripts)
	go startServer(ctx, cfg.Server, router)

	if err := bot.Run(ctx); err != nil {
		log.Fatalf("bot error: %v", err)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("[bot] ops server listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("ops server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
