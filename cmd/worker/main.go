// Package main runs the pipeline worker.
//
// The worker consumes tasks from Redis and executes the content
// pipeline: reference download, style analysis, image and video
// generation, captioning, review delivery, and publishing. It also
// runs the scheduled maintenance jobs (Meta token refresh, reference
// image cleanup) on an in-process cron.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/config"
	"github.com/naman7474/vak-social-media/internal/db"
	"github.com/naman7474/vak-social-media/internal/instagram"
	"github.com/naman7474/vak-social-media/internal/logging"
	"github.com/naman7474/vak-social-media/internal/pipeline"
	"github.com/naman7474/vak-social-media/internal/queue"
	"github.com/naman7474/vak-social-media/internal/storage"
	"github.com/naman7474/vak-social-media/internal/telegram"
)

// referenceRetentionDays is how long downloaded inspiration images are
// kept in object storage before the nightly cleanup removes them.
const referenceRetentionDays = 30

func main() {
	start := time.Now()
	logging.Init()

	settings := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	bot, err := tgbotapi.NewBotAPI(settings.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram bot client")
	}

	store, err := storage.New(ctx, settings)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}

	veo, err := pipeline.NewVeoClient(ctx, settings)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Veo client")
	}

	media, err := pipeline.NewFFmpegTools(settings.FFmpegPath)
	if err != nil {
		log.Fatal().Err(err).Msg("ffmpeg not available")
	}

	orch := &pipeline.Orchestrator{
		DB:         gdb,
		Settings:   settings,
		Downloader: pipeline.NewDataBrightDownloader(settings),
		Analyzer:   pipeline.NewOpenAIAnalyzer(settings),
		Styler:     pipeline.NewGeminiStyler(settings, store),
		Captioner:  pipeline.NewClaudeCaptioner(settings),
		Publisher:  instagram.NewClient(settings),
		Storage:    store,
		Reviewer:   telegram.NewSender(bot),
		Validator:  pipeline.NewSareeValidator(settings.PreservationThreshold),
		Veo:        veo,
		Media:      media,
	}

	worker := &queue.Worker{Queue: q, Orch: orch, Settings: settings}

	c := cron.New()
	c.AddFunc("0 4 * * *", func() {
		if err := q.EnqueueTokenRefresh(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue token refresh")
		}
	})
	c.AddFunc("30 4 * * *", func() {
		if err := q.EnqueueReferenceCleanup(context.Background(), referenceRetentionDays); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue reference cleanup")
		}
	})
	c.Start()
	defer c.Stop()

	logging.NewStartupLogger("worker").
		Queue("pipeline", queue.PipelineQueue).
		Queue("maintenance", queue.MaintenanceQueue).
		Bucket("media", settings.StorageBucket).
		Feature("dryRun", settings.DryRun).
		Feature("preservationEnforce", settings.PreservationEnforce).
		Config("veoModel", settings.VeoModel).
		Config("graphAPIVersion", settings.MetaGraphAPIVersion).
		InitDuration(time.Since(start)).
		Log()

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Worker stopped")
	}
	log.Info().Msg("Worker shut down")
}
