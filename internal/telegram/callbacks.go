package telegram

import (
	"fmt"
	"regexp"
	"strconv"
)

// Callback actions encoded into inline keyboard buttons.
const (
	ActionSelect      = "select"
	ActionApprove     = "approve"
	ActionRedo        = "redo"
	ActionCancel      = "cancel"
	ActionEditCaption = "edit_caption"
	ActionSelectVideo = "select_video"
	ActionExtend      = "extend"
	ActionReelThis    = "reel_this"
)

var callbackPattern = regexp.MustCompile(
	`^post:(\d+):variant:(\d+):action:(select|approve|redo|cancel|edit_caption|select_video|extend|reel_this)$`)

// ParsedCallback is a decoded inline button press.
type ParsedCallback struct {
	PostID  uint
	Variant int
	Action  string
}

// MakeCallback encodes an inline button payload.
func MakeCallback(postID uint, variant int, action string) string {
	return fmt.Sprintf("post:%d:variant:%d:action:%s", postID, variant, action)
}

// ParseCallback decodes an inline button payload. Returns nil for anything
// that doesn't match the expected shape.
func ParseCallback(data string) *ParsedCallback {
	match := callbackPattern.FindStringSubmatch(data)
	if match == nil {
		return nil
	}
	postID, err := strconv.ParseUint(match[1], 10, 64)
	if err != nil {
		return nil
	}
	variant, err := strconv.Atoi(match[2])
	if err != nil {
		return nil
	}
	return &ParsedCallback{PostID: uint(postID), Variant: variant, Action: match[3]}
}
