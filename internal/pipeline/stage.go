package pipeline

import (
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/naman7474/vak-social-media/internal/models"
)

// RunStage wraps one pipeline stage in the audit ledger. A JobRun row with
// status=started is committed before fn runs, so a crash mid-stage leaves
// visible evidence. On success the row is marked succeeded; on failure it is
// marked failed with the error's code and message, and the error is returned
// unchanged. Retry is never decided here.
func RunStage(gdb *gorm.DB, postID uint, stage string, fn func() error) error {
	run := &models.JobRun{
		PostID:  postID,
		Stage:   stage,
		Attempt: nextAttempt(gdb, postID, stage),
		Status:  models.JobStatusStarted,
	}
	if err := gdb.Create(run).Error; err != nil {
		log.Error().Err(err).Uint("post_id", postID).Str("stage", stage).Msg("Failed to record stage start")
	}

	log.Info().Uint("post_id", postID).Str("stage", stage).Int("attempt", run.Attempt).Msg("Stage started")
	started := time.Now()

	if err := fn(); err != nil {
		code := ErrorCode(err)
		msg := err.Error()
		now := time.Now()
		run.Status = models.JobStatusFailed
		run.ErrorCode = &code
		run.ErrorMessage = &msg
		run.FinishedAt = &now
		if saveErr := gdb.Save(run).Error; saveErr != nil {
			log.Error().Err(saveErr).Uint("post_id", postID).Str("stage", stage).Msg("Failed to record stage failure")
		}
		log.Warn().Err(err).Uint("post_id", postID).Str("stage", stage).
			Dur("elapsed", time.Since(started)).Str("error_code", code).Msg("Stage failed")
		return err
	}

	now := time.Now()
	run.Status = models.JobStatusSucceeded
	run.FinishedAt = &now
	if err := gdb.Save(run).Error; err != nil {
		log.Error().Err(err).Uint("post_id", postID).Str("stage", stage).Msg("Failed to record stage success")
	}
	log.Info().Uint("post_id", postID).Str("stage", stage).
		Dur("elapsed", time.Since(started)).Msg("Stage succeeded")
	return nil
}

// nextAttempt is 1 + the number of prior runs of this stage for this post.
func nextAttempt(gdb *gorm.DB, postID uint, stage string) int {
	var count int64
	gdb.Model(&models.JobRun{}).Where("post_id = ? AND stage = ?", postID, stage).Count(&count)
	return int(count) + 1
}
