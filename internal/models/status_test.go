package models

import "testing"

func TestCanTransitionPost(t *testing.T) {
	tests := []struct {
		name    string
		current string
		target  string
		want    bool
	}{
		{"draft to processing", PostStatusDraft, PostStatusProcessing, true},
		{"draft to cancelled", PostStatusDraft, PostStatusCancelled, true},
		{"draft to posted skips pipeline", PostStatusDraft, PostStatusPosted, false},
		{"processing to review_ready", PostStatusProcessing, PostStatusReviewReady, true},
		{"processing to failed", PostStatusProcessing, PostStatusFailed, true},
		{"review_ready to approved", PostStatusReviewReady, PostStatusApproved, true},
		{"review_ready back to processing for redo", PostStatusReviewReady, PostStatusProcessing, true},
		{"review_ready to failed on extension error", PostStatusReviewReady, PostStatusFailed, true},
		{"approved to posted", PostStatusApproved, PostStatusPosted, true},
		{"failed to processing for retry", PostStatusFailed, PostStatusProcessing, true},
		{"posted is absorbing", PostStatusPosted, PostStatusProcessing, false},
		{"posted to cancelled", PostStatusPosted, PostStatusCancelled, false},
		{"cancelled is absorbing", PostStatusCancelled, PostStatusProcessing, false},
		{"unknown status", "bogus", PostStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransitionPost(tt.current, tt.target); got != tt.want {
				t.Errorf("CanTransitionPost(%q, %q) = %v, want %v", tt.current, tt.target, got, tt.want)
			}
		})
	}
}

func TestCanTransitionSession(t *testing.T) {
	tests := []struct {
		name    string
		current string
		target  string
		want    bool
	}{
		{"idle to awaiting_photos", SessionStateIdle, SessionStateAwaitingPhotos, true},
		{"idle to review_ready", SessionStateIdle, SessionStateReviewReady, true},
		{"idle cannot jump to confirmation", SessionStateIdle, SessionStateAwaitingPostConfirmation, false},
		{"review_ready to caption edit", SessionStateReviewReady, SessionStateAwaitingCaptionEdit, true},
		{"review_ready to video selection", SessionStateReviewReady, SessionStateAwaitingVideoSelection, true},
		{"caption edit back to review", SessionStateAwaitingCaptionEdit, SessionStateReviewReady, true},
		{"approval to confirmation", SessionStateAwaitingApproval, SessionStateAwaitingPostConfirmation, true},
		{"confirmation to idle", SessionStateAwaitingPostConfirmation, SessionStateIdle, true},
		{"video selection to approval", SessionStateAwaitingVideoSelection, SessionStateAwaitingApproval, true},
		{"awaiting_photos to review skips pipeline", SessionStateAwaitingPhotos, SessionStateReviewReady, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransitionSession(tt.current, tt.target); got != tt.want {
				t.Errorf("CanTransitionSession(%q, %q) = %v, want %v", tt.current, tt.target, got, tt.want)
			}
		})
	}
}

func TestPostSetStatus(t *testing.T) {
	p := &Post{ID: 7, Status: PostStatusDraft}

	if err := p.SetStatus(PostStatusProcessing); err != nil {
		t.Fatalf("SetStatus(processing) returned error: %v", err)
	}
	if p.Status != PostStatusProcessing {
		t.Errorf("status = %q, want %q", p.Status, PostStatusProcessing)
	}

	if err := p.SetStatus(PostStatusPosted); err == nil {
		t.Error("SetStatus(posted) from processing should fail")
	}
	if p.Status != PostStatusProcessing {
		t.Errorf("status mutated on rejected transition: %q", p.Status)
	}
}

func TestSessionSetState(t *testing.T) {
	s := &TelegramSession{ID: 3, State: SessionStateIdle}

	if err := s.SetState(SessionStateAwaitingPhotos); err != nil {
		t.Fatalf("SetState(awaiting_photos) returned error: %v", err)
	}
	if err := s.SetState(SessionStateAwaitingApproval); err == nil {
		t.Error("SetState(awaiting_approval) from awaiting_photos should fail")
	}
}
