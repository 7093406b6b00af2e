package queue

import (
	"context"
	"encoding/json"
)

// Task types carried on the pipeline queue.
const (
	TaskProcessPost      = "process_post"
	TaskProcessVideoPost = "process_video_post"
	TaskReelThis         = "reel_this"
	TaskExtendVideo      = "extend_video"
	TaskMultiSceneAd     = "multi_scene_ad"
	TaskPublishPost      = "publish_post"
	TaskRewriteCaption   = "rewrite_caption"
)

// Task types carried on the maintenance queue.
const (
	TaskRefreshMetaToken = "refresh_meta_token"
	TaskCleanupRefImages = "cleanup_reference_images"
)

// PostTaskPayload addresses a post and the chat that should hear about it.
type PostTaskPayload struct {
	PostID uint  `json:"post_id"`
	ChatID int64 `json:"chat_id"`
}

// PublishTaskPayload additionally records who approved the publish.
type PublishTaskPayload struct {
	PostID   uint   `json:"post_id"`
	ChatID   int64  `json:"chat_id"`
	PostedBy string `json:"posted_by"`
}

// InstructionTaskPayload carries a free-text instruction for caption rewrites.
type InstructionTaskPayload struct {
	PostID      uint   `json:"post_id"`
	ChatID      int64  `json:"chat_id"`
	Instruction string `json:"instruction"`
}

// ExtendTaskPayload names the video variation to extend. Variation 0 means
// the clip currently on the post.
type ExtendTaskPayload struct {
	PostID      uint   `json:"post_id"`
	ChatID      int64  `json:"chat_id"`
	Variation   int    `json:"variation"`
	Instruction string `json:"instruction"`
}

// AdTaskPayload names the scene structure preset for a multi-scene ad.
type AdTaskPayload struct {
	PostID    uint   `json:"post_id"`
	ChatID    int64  `json:"chat_id"`
	Structure string `json:"structure"`
}

// CleanupTaskPayload sets the retention window for reference image purges.
type CleanupTaskPayload struct {
	Days int `json:"days"`
}

// The Enqueue* methods implement telegram.TaskQueue.

func (c *Client) EnqueueProcessPost(ctx context.Context, postID uint, chatID int64) error {
	return c.Enqueue(ctx, PipelineQueue, TaskProcessPost, PostTaskPayload{PostID: postID, ChatID: chatID})
}

func (c *Client) EnqueueProcessVideoPost(ctx context.Context, postID uint, chatID int64) error {
	return c.Enqueue(ctx, PipelineQueue, TaskProcessVideoPost, PostTaskPayload{PostID: postID, ChatID: chatID})
}

func (c *Client) EnqueueReelThis(ctx context.Context, postID uint, chatID int64) error {
	return c.Enqueue(ctx, PipelineQueue, TaskReelThis, PostTaskPayload{PostID: postID, ChatID: chatID})
}

func (c *Client) EnqueueExtendVideo(ctx context.Context, postID uint, chatID int64, variation int, instruction string) error {
	return c.Enqueue(ctx, PipelineQueue, TaskExtendVideo,
		ExtendTaskPayload{PostID: postID, ChatID: chatID, Variation: variation, Instruction: instruction})
}

func (c *Client) EnqueueMultiSceneAd(ctx context.Context, postID uint, chatID int64, structure string) error {
	return c.Enqueue(ctx, PipelineQueue, TaskMultiSceneAd,
		AdTaskPayload{PostID: postID, ChatID: chatID, Structure: structure})
}

func (c *Client) EnqueuePublish(ctx context.Context, postID uint, chatID int64, postedBy string) error {
	return c.Enqueue(ctx, PipelineQueue, TaskPublishPost,
		PublishTaskPayload{PostID: postID, ChatID: chatID, PostedBy: postedBy})
}

func (c *Client) EnqueueRewriteCaption(ctx context.Context, postID uint, chatID int64, instruction string) error {
	return c.Enqueue(ctx, PipelineQueue, TaskRewriteCaption,
		InstructionTaskPayload{PostID: postID, ChatID: chatID, Instruction: instruction})
}

func (c *Client) EnqueueTokenRefresh(ctx context.Context) error {
	return c.Enqueue(ctx, MaintenanceQueue, TaskRefreshMetaToken, struct{}{})
}

func (c *Client) EnqueueReferenceCleanup(ctx context.Context, days int) error {
	return c.Enqueue(ctx, MaintenanceQueue, TaskCleanupRefImages, CleanupTaskPayload{Days: days})
}

func decodePayload[T any](task *Task) (T, error) {
	var payload T
	err := json.Unmarshal(task.Payload, &payload)
	return payload, err
}
