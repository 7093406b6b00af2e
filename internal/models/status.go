package models

import "fmt"

// Post statuses. Posted and Cancelled are terminal: no transitions leave them.
const (
	PostStatusDraft       = "draft"
	PostStatusProcessing  = "processing"
	PostStatusReviewReady = "review_ready"
	PostStatusApproved    = "approved"
	PostStatusPosted      = "posted"
	PostStatusFailed      = "failed"
	PostStatusCancelled   = "cancelled"
)

// Media types for a post.
const (
	MediaTypeSingle   = "single"
	MediaTypeCarousel = "carousel"
	MediaTypeReel     = "reel"
)

// Session states for the Telegram conversation flow.
const (
	SessionStateIdle                     = "idle"
	SessionStateAwaitingPhotos           = "awaiting_photos"
	SessionStateReviewReady              = "review_ready"
	SessionStateAwaitingCaptionEdit      = "awaiting_caption_edit"
	SessionStateAwaitingApproval         = "awaiting_approval"
	SessionStateAwaitingPostConfirmation = "awaiting_post_confirmation"
	SessionStateAwaitingVideoSelection   = "awaiting_video_selection"
)

// Pipeline stages recorded in the JobRun ledger.
const (
	StageIntake        = "intake"
	StageDownload      = "download"
	StageAnalyze       = "analyze"
	StageStyle         = "style"
	StageValidate      = "validate"
	StageCaption       = "caption"
	StageReview        = "review"
	StagePost          = "post"
	StageVideoGenerate = "video_generate"
	StageExtend        = "extend"
	StageCleanup       = "cleanup"
	StageTokenRefresh  = "token_refresh"
)

// JobRun statuses.
const (
	JobStatusStarted   = "started"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// VideoJob statuses. Extended marks a clip that was overwritten in place by
// a video extension.
const (
	VideoJobPending    = "pending"
	VideoJobGenerating = "generating"
	VideoJobDone       = "done"
	VideoJobFailed     = "failed"
	VideoJobExtended   = "extended"
)

// review_ready can fail: reel conversion, extension, and caption rewrite all
// run against review-ready posts.
var allowedPostTransitions = map[string]map[string]bool{
	PostStatusDraft:       {PostStatusProcessing: true, PostStatusCancelled: true},
	PostStatusProcessing:  {PostStatusReviewReady: true, PostStatusFailed: true, PostStatusCancelled: true},
	PostStatusReviewReady: {PostStatusApproved: true, PostStatusProcessing: true, PostStatusFailed: true, PostStatusCancelled: true},
	PostStatusApproved:    {PostStatusPosted: true, PostStatusFailed: true, PostStatusCancelled: true},
	PostStatusPosted:      {},
	PostStatusFailed:      {PostStatusProcessing: true, PostStatusCancelled: true},
	PostStatusCancelled:   {},
}

var allowedSessionTransitions = map[string]map[string]bool{
	SessionStateIdle: {
		SessionStateAwaitingPhotos:      true,
		SessionStateReviewReady:         true,
		SessionStateAwaitingCaptionEdit: true,
		SessionStateAwaitingApproval:    true,
	},
	SessionStateAwaitingPhotos: {
		SessionStateIdle: true,
	},
	SessionStateReviewReady: {
		SessionStateAwaitingCaptionEdit:    true,
		SessionStateAwaitingApproval:       true,
		SessionStateAwaitingVideoSelection: true,
		SessionStateIdle:                   true,
	},
	SessionStateAwaitingCaptionEdit: {
		SessionStateReviewReady: true,
		SessionStateIdle:        true,
	},
	SessionStateAwaitingApproval: {
		SessionStateAwaitingPostConfirmation: true,
		SessionStateReviewReady:              true,
		SessionStateIdle:                     true,
	},
	SessionStateAwaitingPostConfirmation: {
		SessionStateIdle:        true,
		SessionStateReviewReady: true,
	},
	SessionStateAwaitingVideoSelection: {
		SessionStateAwaitingApproval: true,
		SessionStateReviewReady:      true,
		SessionStateIdle:             true,
	},
}

// CanTransitionPost reports whether a post may move from current to target.
func CanTransitionPost(current, target string) bool {
	return allowedPostTransitions[current][target]
}

// CanTransitionSession reports whether a session may move from current to target.
func CanTransitionSession(current, target string) bool {
	return allowedSessionTransitions[current][target]
}

// SetStatus mutates the post status through the transition gate. An illegal
// transition is a programmer error and returns a non-nil error; callers must
// not swallow it. The caller is responsible for persisting the change.
func (p *Post) SetStatus(target string) error {
	if !CanTransitionPost(p.Status, target) {
		return fmt.Errorf("illegal post transition %s -> %s (post %d)", p.Status, target, p.ID)
	}
	p.Status = target
	return nil
}

// SetState mutates the session state through the transition gate.
func (s *TelegramSession) SetState(target string) error {
	if !CanTransitionSession(s.State, target) {
		return fmt.Errorf("illegal session transition %s -> %s (session %d)", s.State, target, s.ID)
	}
	s.State = target
	return nil
}
