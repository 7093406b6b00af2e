package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/naman7474/vak-social-media/internal/config"
	"github.com/naman7474/vak-social-media/internal/metrics"
	"github.com/naman7474/vak-social-media/internal/pipeline"
)

// Worker consumes both queues and dispatches tasks to the orchestrator.
type Worker struct {
	Queue    *Client
	Orch     *pipeline.Orchestrator
	Settings *config.Settings
}

// Run consumes tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Msg("Worker started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		task, err := w.Queue.Dequeue(ctx, 5*time.Second, PipelineQueue, MaintenanceQueue)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}
		w.handle(ctx, task)
	}
}

func (w *Worker) handle(ctx context.Context, task *Task) {
	start := time.Now()
	err := w.Dispatch(ctx, task)
	emitTaskMetrics(task, time.Since(start), err)
	if err == nil {
		log.Info().Str("task_id", task.ID).Str("type", task.Type).
			Dur("duration", time.Since(start)).Msg("Task complete")
		return
	}

	log.Error().Err(err).Str("task_id", task.ID).Str("type", task.Type).
		Int("attempt", task.Attempt).Msg("Task failed")

	// Typed pipeline failures were already reported to the user and written
	// to the post; retrying them would repeat side effects.
	if _, typed := pipeline.AsPipelineError(err); typed {
		return
	}

	retried, retryErr := w.Queue.Retry(ctx, queueFor(task.Type), task)
	if retryErr != nil {
		log.Error().Err(retryErr).Str("task_id", task.ID).Msg("Failed to re-enqueue task")
		return
	}
	if !retried {
		log.Warn().Str("task_id", task.ID).Str("type", task.Type).Msg("Task dropped after max retries")
	}
}

func emitTaskMetrics(task *Task, elapsed time.Duration, err error) {
	rec := metrics.New("VakSocialMedia/Worker").
		Dimension("TaskType", task.Type).
		Metric("TaskDurationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Property("taskId", task.ID).
		Property("attempt", task.Attempt)
	if err != nil {
		rec.Count("TaskFailed")
		rec.Property("errorCode", pipeline.ErrorCode(err))
	} else {
		rec.Count("TaskSucceeded")
	}
	rec.Flush()
}

func queueFor(taskType string) string {
	switch taskType {
	case TaskRefreshMetaToken, TaskCleanupRefImages:
		return MaintenanceQueue
	}
	return PipelineQueue
}

// Dispatch routes one task to its handler.
func (w *Worker) Dispatch(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskProcessPost:
		p, err := decodePayload[PostTaskPayload](task)
		if err != nil {
			return err
		}
		return w.Orch.RunGenerationPipeline(ctx, p.PostID, p.ChatID)

	case TaskProcessVideoPost:
		p, err := decodePayload[PostTaskPayload](task)
		if err != nil {
			return err
		}
		return w.Orch.RunVideoGenerationPipeline(ctx, p.PostID, p.ChatID)

	case TaskReelThis:
		p, err := decodePayload[PostTaskPayload](task)
		if err != nil {
			return err
		}
		return w.Orch.RunReelThisConversion(ctx, p.PostID, p.ChatID)

	case TaskExtendVideo:
		p, err := decodePayload[ExtendTaskPayload](task)
		if err != nil {
			return err
		}
		return w.Orch.RunVideoExtension(ctx, p.PostID, p.ChatID, p.Variation, p.Instruction)

	case TaskMultiSceneAd:
		p, err := decodePayload[AdTaskPayload](task)
		if err != nil {
			return err
		}
		return w.Orch.RunMultiSceneAd(ctx, p.PostID, p.ChatID, p.Structure)

	case TaskPublishPost:
		p, err := decodePayload[PublishTaskPayload](task)
		if err != nil {
			return err
		}
		return w.Orch.RunPublish(ctx, p.PostID, p.ChatID, p.PostedBy)

	case TaskRewriteCaption:
		p, err := decodePayload[InstructionTaskPayload](task)
		if err != nil {
			return err
		}
		return w.Orch.RunCaptionRewrite(ctx, p.PostID, p.ChatID, p.Instruction)

	case TaskRefreshMetaToken:
		return w.refreshToken(ctx)

	case TaskCleanupRefImages:
		p, err := decodePayload[CleanupTaskPayload](task)
		if err != nil {
			return err
		}
		if p.Days <= 0 {
			p.Days = 30
		}
		deleted, err := w.Orch.PurgeOldReferenceImages(ctx, p.Days)
		if err != nil {
			return err
		}
		log.Info().Int("deleted", deleted).Msg("Reference cleanup task finished")
		return nil
	}
	return fmt.Errorf("unknown task type %q", task.Type)
}

// refreshToken rotates the Meta page token and warns the founder chat when
// the configured expiry is less than a week out.
func (w *Worker) refreshToken(ctx context.Context) error {
	expiresIn, err := w.Orch.Publisher.RefreshPageToken(ctx)
	if err != nil {
		return err
	}
	log.Info().Int64("expires_in", expiresIn).Msg("Meta token refresh complete")

	expiry := w.Settings.MetaTokenExpiresAt
	if expiry == "" || w.Settings.FounderTelegramChat == 0 {
		return nil
	}
	expiryTime, err := time.Parse(time.RFC3339, expiry)
	if err != nil {
		log.Warn().Str("value", expiry).Msg("Unparseable META_TOKEN_EXPIRES_AT")
		return nil
	}
	if time.Until(expiryTime) <= 7*24*time.Hour {
		return w.Orch.NotifyTokenExpiry(ctx, w.Settings.FounderTelegramChat, expiryTime.Format(time.RFC3339))
	}
	return nil
}
