// Package main runs the Telegram webhook API server.
//
// This process is the chat-facing half of the pipeline: it receives
// Telegram webhook updates, parses founder messages, creates draft
// posts, and enqueues pipeline work onto Redis. The heavy lifting
// (download, styling, video generation, publishing) happens in the
// worker process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/config"
	"github.com/naman7474/vak-social-media/internal/db"
	"github.com/naman7474/vak-social-media/internal/logging"
	"github.com/naman7474/vak-social-media/internal/queue"
	"github.com/naman7474/vak-social-media/internal/telegram"
	"github.com/naman7474/vak-social-media/internal/webhook"
)

func main() {
	start := time.Now()
	logging.Init()

	settings := config.Load()

	gdb, err := db.Open(settings.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	q, err := queue.New(settings.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer q.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := q.Ping(pingCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Redis ping failed")
	}
	cancel()

	bot, err := tgbotapi.NewBotAPI(settings.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram bot client")
	}

	handler := telegram.NewHandler(gdb, settings, bot, q)
	wh := webhook.NewHandler(settings.TelegramWebhookSecret, handler)

	logging.NewStartupLogger("api").
		Queue("pipeline", queue.PipelineQueue).
		Queue("maintenance", queue.MaintenanceQueue).
		Feature("dryRun", settings.DryRun).
		Feature("preservationEnforce", settings.PreservationEnforce).
		Config("port", strconv.Itoa(settings.APIPort)).
		Config("allowedUsers", strconv.Itoa(len(settings.AllowedUserIDs))).
		InitDuration(time.Since(start)).
		Log()

	addr := fmt.Sprintf("%s:%d", settings.APIHost, settings.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      wh.Mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().Str("addr", addr).Msg("Starting webhook server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
