package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketchat/internal/app/devchat"
	"marketchat/internal/domain/chat"
	"marketchat/internal/infra/broker/kafka"
	"marketchat/internal/infra/config"
	mongostore "marketchat/internal/infra/db/mongo"
	ginserver "marketchat/internal/infra/http/gin"
	"marketchat/internal/infra/obs"
	"marketchat/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	repo, ready, closeRepo, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("conversation store unavailable", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	svc := &devchat.Service{
		Repo:   repo,
		Users:  directory(cfg.DevUsers),
		Logger: logger,
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, "marketchat-dev", nil)
		if err != nil {
			logger.Warn("kafka producer unavailable, chat events disabled", "error", err)
		} else {
			defer producer.Close()
			svc.Publisher = &kafka.EventPublisher{Producer: producer, TopicPrefix: cfg.KafkaTopicPrefix}
		}
	}

	tokens := ginserver.TokenTable(cfg.DevUsers)
	server := ginserver.NewServer(cfg.HTTPAddr, cfg.Env, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: ready}, ginserver.Handlers{
		Chat:           ginserver.ChatHandler{Service: svc, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Tokens: tokens}.Handle,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "users", len(tokens))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// buildRepository picks Mongo when MONGO_URI is set and memory otherwise.
func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (chat.Repository, func(context.Context) error, func(), error) {
	if cfg.MongoURI == "" {
		logger.Info("using in-memory conversation store")
		repo := memory.NewConversationRepository()
		return repo, repo.Ping, func() {}, nil
	}
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, nil, err
	}
	repo, err := mongostore.NewConversationRepository(ctx, client.DB)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("using mongo conversation store", "db", cfg.MongoDB)
	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("mongo disconnect failed", "error", err)
		}
	}
	return repo, client.Ping, closeFn, nil
}

func directory(users map[string]config.DevUser) devchat.StaticDirectory {
	dir := make(devchat.StaticDirectory, len(users))
	for _, u := range users {
		dir[u.ID] = chat.OtherUser{ID: u.ID, Name: u.Name}
	}
	return dir
}
