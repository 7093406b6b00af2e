package pipeline

import (
	"errors"
	"testing"

	"github.com/naman7474/vak-social-media/internal/db"
	"github.com/naman7474/vak-social-media/internal/models"
)

func TestRunStageRecordsSuccess(t *testing.T) {
	gdb := db.OpenTest(t)
	post := &models.Post{Status: models.PostStatusProcessing}
	if err := gdb.Create(post).Error; err != nil {
		t.Fatalf("creating post: %v", err)
	}

	called := false
	err := RunStage(gdb, post.ID, models.StageDownload, func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("RunStage returned error: %v", err)
	}
	if !called {
		t.Fatal("stage function was not called")
	}

	var run models.JobRun
	if err := gdb.First(&run, "post_id = ?", post.ID).Error; err != nil {
		t.Fatalf("loading job run: %v", err)
	}
	if run.Status != models.JobStatusSucceeded {
		t.Errorf("status = %q, want succeeded", run.Status)
	}
	if run.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", run.Attempt)
	}
	if run.FinishedAt == nil {
		t.Error("finished_at not set")
	}
}

func TestRunStageRecordsTypedFailure(t *testing.T) {
	gdb := db.OpenTest(t)
	post := &models.Post{Status: models.PostStatusProcessing}
	if err := gdb.Create(post).Error; err != nil {
		t.Fatalf("creating post: %v", err)
	}

	wantErr := DownloadError(errors.New("404 from scraper"))
	err := RunStage(gdb, post.ID, models.StageDownload, func() error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("RunStage error = %v, want the stage error returned unchanged", err)
	}

	var run models.JobRun
	if err := gdb.First(&run, "post_id = ?", post.ID).Error; err != nil {
		t.Fatalf("loading job run: %v", err)
	}
	if run.Status != models.JobStatusFailed {
		t.Errorf("status = %q, want failed", run.Status)
	}
	if run.ErrorCode == nil || *run.ErrorCode != "download_error" {
		t.Errorf("error_code = %v, want download_error", run.ErrorCode)
	}
	if run.ErrorMessage == nil || *run.ErrorMessage == "" {
		t.Error("error_message not recorded")
	}
}

func TestRunStageUntypedErrorGetsInternalCode(t *testing.T) {
	gdb := db.OpenTest(t)
	post := &models.Post{Status: models.PostStatusProcessing}
	if err := gdb.Create(post).Error; err != nil {
		t.Fatalf("creating post: %v", err)
	}

	err := RunStage(gdb, post.ID, models.StageStyle, func() error {
		return errors.New("nil pointer somewhere")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var run models.JobRun
	if err := gdb.First(&run, "post_id = ?", post.ID).Error; err != nil {
		t.Fatalf("loading job run: %v", err)
	}
	if run.ErrorCode == nil || *run.ErrorCode != "internal_error" {
		t.Errorf("error_code = %v, want internal_error", run.ErrorCode)
	}
}

func TestRunStageAttemptIncrements(t *testing.T) {
	gdb := db.OpenTest(t)
	post := &models.Post{Status: models.PostStatusProcessing}
	if err := gdb.Create(post).Error; err != nil {
		t.Fatalf("creating post: %v", err)
	}

	for i := 0; i < 3; i++ {
		_ = RunStage(gdb, post.ID, models.StageAnalyze, func() error { return nil })
	}
	// A different stage keeps its own attempt counter.
	_ = RunStage(gdb, post.ID, models.StageStyle, func() error { return nil })

	var runs []models.JobRun
	if err := gdb.Order("id").Find(&runs, "post_id = ? AND stage = ?", post.ID, models.StageAnalyze).Error; err != nil {
		t.Fatalf("loading runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d analyze runs, want 3", len(runs))
	}
	for i, run := range runs {
		if run.Attempt != i+1 {
			t.Errorf("run %d attempt = %d, want %d", i, run.Attempt, i+1)
		}
	}

	var styleRun models.JobRun
	if err := gdb.First(&styleRun, "post_id = ? AND stage = ?", post.ID, models.StageStyle).Error; err != nil {
		t.Fatalf("loading style run: %v", err)
	}
	if styleRun.Attempt != 1 {
		t.Errorf("style attempt = %d, want 1", styleRun.Attempt)
	}
}
