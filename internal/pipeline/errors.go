package pipeline

import "errors"

// Error is a typed pipeline failure. Code is stored in the stage ledger and
// on the post; UserMessage is the canned reply sent to the operator's chat.
// Err, when set, carries the underlying cause for logs.
type Error struct {
	Code        string
	UserMessage string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// AsPipelineError unwraps err to a typed pipeline error, if it is one.
func AsPipelineError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ErrorCode returns the typed code for err, or "internal_error" for anything
// untyped.
func ErrorCode(err error) string {
	if pe, ok := AsPipelineError(err); ok {
		return pe.Code
	}
	return "internal_error"
}

// UserMessage returns the canned chat reply for err, or a generic apology for
// untyped errors.
func UserMessage(err error) string {
	if pe, ok := AsPipelineError(err); ok {
		return pe.UserMessage
	}
	return "Something went wrong. Please try again."
}

func newError(code, userMessage string, cause error) *Error {
	return &Error{Code: code, UserMessage: userMessage, Err: cause}
}

// Typed failure constructors, one per external collaborator. The messages are
// written for the founder reading them in Telegram, not for logs.

func DownloadError(cause error) *Error {
	return newError("download_error",
		"Couldn't download that post. Try a different link or send me a screenshot instead.", cause)
}

func PrivatePostError(cause error) *Error {
	return newError("private_or_deleted",
		"That post seems to be private or deleted. Can you try another one?", cause)
}

func UnsupportedMediaError(cause error) *Error {
	return newError("unsupported_media",
		"I can't determine the media type. Want me to make an image post or a Reel?", cause)
}

func AnalysisError(cause error) *Error {
	return newError("analysis_error",
		"Taking a bit longer than usual. Hang tight...", cause)
}

func StylingError(cause error) *Error {
	return newError("styling_error",
		"Styling is taking longer. Trying a different approach...", cause)
}

func SareePreservationError(cause error) *Error {
	return newError("saree_preservation_failed",
		"The styled image didn't look right. Let me try again with a different approach...", cause)
}

func CaptionError(cause error) *Error {
	return newError("caption_error",
		"Almost there, just polishing the caption...", cause)
}

func PublishError(cause error) *Error {
	return newError("publish_error",
		"Posting failed. I've saved your post — want me to try again or you can post manually?", cause)
}

func VeoGenerationError(cause error) *Error {
	return newError("veo_generation_error",
		"Video generation hit a snag. Want me to try again, or should I make this an image post instead?", cause)
}

func VeoTimeoutError(cause error) *Error {
	return newError("veo_timeout",
		"Still generating — Veo is taking longer than usual. I'll send it as soon as it's ready.", cause)
}

func VideoQualityError(cause error) *Error {
	return newError("video_quality_error",
		"The video didn't come out great. Let me try with a different motion style...", cause)
}

func SceneExtensionError(cause error) *Error {
	return newError("scene_extension_error",
		"Couldn't extend the video. Want to post the 8-second version instead?", cause)
}
