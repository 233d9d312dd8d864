package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"marketchat/internal/app/chatsync"
	"marketchat/internal/app/notify"
	"marketchat/internal/app/policies"
	"marketchat/internal/app/schedule"
	"marketchat/internal/infra/broker/kafka"
	"marketchat/internal/infra/config"
	"marketchat/internal/infra/gateway/rest"
	infranotify "marketchat/internal/infra/notify"
	"marketchat/internal/infra/obs"
	"marketchat/internal/infra/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "marketchat:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireClient(); err != nil {
		return err
	}

	logFile, err := obs.OpenLogFile(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := obs.NewLoggerTo(logFile, cfg.Env)

	gateway := rest.NewClient(cfg.APIURL, cfg.Token, &http.Client{Timeout: cfg.HTTPTimeout}, rest.BreakerSettings{
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		MaxFailures: cfg.BreakerFailures,
	}, logger)

	toasts := infranotify.NewChannelSink(16)
	sinks := infranotify.Fanout{infranotify.LogSink{Logger: logger}, toasts}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, "marketchat-client", nil)
		if err != nil {
			logger.Warn("kafka producer unavailable, notifications stay local", "error", err)
		} else {
			defer producer.Close()
			sinks = append(sinks, infranotify.KafkaSink{
				Producer:    producer,
				TopicPrefix: cfg.KafkaTopicPrefix,
				UserID:      cfg.UserID,
			})
		}
	}
	dispatcher := notify.NewDispatcher(sinks, cfg.NotifyDedupWindow, logger)

	sched := schedule.New(ctx, logger)
	defer sched.Stop()
	store := chatsync.NewStore(chatsync.Session{UserID: cfg.UserID, Name: cfg.UserName}, gateway, chatsync.Options{
		ConversationsInterval: cfg.ConversationsInterval,
		ThreadInterval:        cfg.ThreadInterval,
		Notifier:              dispatcher,
		Scheduler:             sched,
		Logger:                logger,
	})
	defer store.Close()

	logger.Info("client starting", "api", cfg.APIURL, "user_id", cfg.UserID)
	if unread, err := gateway.UnreadCount(ctx); err == nil {
		logger.Info("unread messages", "count", unread)
	} else {
		logger.Warn("unread count failed", "error", err)
	}

	var toastCh <-chan policies.Notification = toasts.C
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	model := tui.New(ctx, store, toastCh)
	if cfg.StartAdID != "" {
		logger.Info("opening listing conversation", "ad_id", cfg.StartAdID, "receiver_id", cfg.StartReceiverID)
		model.OpenListing(cfg.StartAdID, cfg.StartReceiverID)
	}
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
