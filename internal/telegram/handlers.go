package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/naman7474/vak-social-media/internal/config"
	"github.com/naman7474/vak-social-media/internal/models"
)

// TaskQueue hands pipeline work off to the background worker. Implemented by
// the Redis queue.
type TaskQueue interface {
	EnqueueProcessPost(ctx context.Context, postID uint, chatID int64) error
	EnqueueProcessVideoPost(ctx context.Context, postID uint, chatID int64) error
	EnqueueReelThis(ctx context.Context, postID uint, chatID int64) error
	EnqueueExtendVideo(ctx context.Context, postID uint, chatID int64, variation int, instruction string) error
	EnqueueMultiSceneAd(ctx context.Context, postID uint, chatID int64, structure string) error
	EnqueuePublish(ctx context.Context, postID uint, chatID int64, postedBy string) error
	EnqueueRewriteCaption(ctx context.Context, postID uint, chatID int64, instruction string) error
}

// Handler routes incoming Telegram updates: commands, review actions, photo
// albums, and inline button presses.
type Handler struct {
	DB       *gorm.DB
	Settings *config.Settings
	Bot      *tgbotapi.BotAPI
	Sender   *Sender
	Queue    TaskQueue
	Albums   *AlbumCache
}

// NewHandler wires a handler, including the album quiescence buffer.
func NewHandler(gdb *gorm.DB, settings *config.Settings, bot *tgbotapi.BotAPI, queue TaskQueue) *Handler {
	h := &Handler{
		DB:       gdb,
		Settings: settings,
		Bot:      bot,
		Sender:   NewSender(bot),
		Queue:    queue,
	}
	h.Albums = NewAlbumCache(settings.AlbumQuiescence, func(album *Album) {
		ctx := context.Background()
		h.processIngestion(ctx, album.ChatID, album.UserID, album.Text, album.PhotoURLs, album.PhotoFileIDs)
	})
	return h
}

// HandleUpdate dispatches one update from the webhook.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.Sender.SendText(ctx, chatID, text); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	chatID := message.Chat.ID
	userID := message.From.ID

	if !h.Settings.IsAllowed(userID) {
		h.reply(ctx, chatID, UnauthorizedMessage)
		return
	}

	// Album photos arrive as separate messages sharing a media group ID.
	if message.MediaGroupID != "" {
		fileIDs, urls := h.extractPhotos(message)
		h.Albums.Add(message.MediaGroupID, chatID, userID, fileIDs, urls, message.Caption)
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	parsed := ParseMessageText(text)

	switch parsed.Command {
	case "/start":
		h.reply(ctx, chatID, WelcomeMessage)
		return
	case "/help":
		h.reply(ctx, chatID, HelpMessage)
		return
	}
	if strings.HasPrefix(parsed.Command, "/") && parsed.Command != "/reel" && parsed.Command != "/ad" {
		h.reply(ctx, chatID, "Unknown command. Use /help.")
		return
	}

	if parsed.Command != "" && !strings.HasPrefix(parsed.Command, "/") {
		if h.handleAction(ctx, chatID, userID, parsed.Command, text) {
			return
		}
		h.reply(ctx, chatID, NoActivePostMessage)
		return
	}

	fileIDs, urls := h.extractPhotos(message)
	h.processIngestion(ctx, chatID, userID, text, urls, fileIDs)
}

// extractPhotos pulls photo file IDs and their download URLs from a message.
func (h *Handler) extractPhotos(message *tgbotapi.Message) (fileIDs, urls []string) {
	if len(message.Photo) > 0 {
		// The last size is the largest rendition.
		fileIDs = append(fileIDs, message.Photo[len(message.Photo)-1].FileID)
	}
	if message.Document != nil && strings.HasPrefix(message.Document.MimeType, "image/") {
		fileIDs = append(fileIDs, message.Document.FileID)
	}
	for _, fileID := range fileIDs {
		file, err := h.Bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
		if err != nil {
			log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to resolve file")
			continue
		}
		urls = append(urls, file.Link(h.Bot.Token))
	}
	return fileIDs, urls
}

// processIngestion validates an inspiration message and kicks off the right
// pipeline for it.
func (h *Handler) processIngestion(ctx context.Context, chatID, userID int64, text string, photoURLs, photoFileIDs []string) {
	parsed := ParseMessageText(text)
	if parsed.SourceURL == "" || !IsSupportedReferenceURL(parsed.SourceURL) {
		h.reply(ctx, chatID, UnsupportedLinkMessage)
		return
	}

	count, err := UserPostsToday(h.DB, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count posts")
		return
	}
	if count >= int64(h.Settings.DailyPostLimit) {
		h.reply(ctx, chatID, DailyLimitMessage)
		return
	}

	var product *models.Product
	if parsed.ProductCode != "" {
		product, err = LookupProductByCode(h.DB, parsed.ProductCode)
		if err != nil {
			log.Error().Err(err).Msg("Product lookup failed")
			return
		}
		if product == nil {
			h.reply(ctx, chatID, fmt.Sprintf("Product %s not found. Send photos or a valid code.", parsed.ProductCode))
			return
		}
		if len(photoURLs) == 0 {
			photoURLs = ProductPhotoURLs(product)
		}
	}

	if len(photoURLs) == 0 {
		h.reply(ctx, chatID, NeedPhotoMessage)
		return
	}

	post, err := CreateDraftPost(h.DB, userID, parsed.SourceURL, product, photoURLs, photoFileIDs)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create draft post")
		return
	}

	session, err := GetOrCreateSession(h.DB, userID, chatID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load session")
		return
	}
	session.PostID = &post.ID
	if err := h.setSessionState(session, models.SessionStateAwaitingApproval); err != nil {
		log.Error().Err(err).Msg("Session transition failed")
	}
	h.DB.Model(session).Update("post_id", post.ID)

	pipelineType := parsed.MediaOverride
	if pipelineType == "" {
		pipelineType = ResolvePipelineType(parsed.SourceURL, text)
	}

	switch pipelineType {
	case "reel":
		h.reply(ctx, chatID, VideoProcessingMessage)
		err = h.Queue.EnqueueProcessVideoPost(ctx, post.ID, chatID)
	case "ad":
		h.reply(ctx, chatID, VideoProcessingMessage)
		err = h.Queue.EnqueueMultiSceneAd(ctx, post.ID, chatID, AdPresetFromText(text))
	default:
		h.reply(ctx, chatID, ProcessingMessage)
		err = h.Queue.EnqueueProcessPost(ctx, post.ID, chatID)
	}
	if err != nil {
		log.Error().Err(err).Uint("post_id", post.ID).Msg("Failed to enqueue pipeline task")
		h.reply(ctx, chatID, "Something went wrong starting the pipeline. Please try again.")
	}
}

// setSessionState applies a session transition, hopping through review_ready
// when the direct edge doesn't exist.
func (h *Handler) setSessionState(session *models.TelegramSession, target string) error {
	if err := session.SetState(target); err != nil {
		if hopErr := session.SetState(models.SessionStateReviewReady); hopErr != nil {
			return err
		}
		if hopErr := session.SetState(target); hopErr != nil {
			return err
		}
	}
	return h.DB.Model(session).Update("state", session.State).Error
}

// handleAction processes a review reply. Returns false when there is no
// active post to act on.
func (h *Handler) handleAction(ctx context.Context, chatID, userID int64, action, fullText string) bool {
	session, err := GetOrCreateSession(h.DB, userID, chatID)
	if err != nil || session.PostID == nil {
		return false
	}
	var post models.Post
	if err := h.DB.First(&post, *session.PostID).Error; err != nil {
		return false
	}

	switch {
	case action == "1" || action == "2" || action == "3":
		index, _ := strconv.Atoi(action)
		h.DB.Model(&post).Update("selected_variant_index", index)
		h.reply(ctx, chatID, fmt.Sprintf("Selected option %s. Reply 'approve' when ready.", action))
		return true

	case action == "edit caption":
		if err := h.setSessionState(session, models.SessionStateAwaitingCaptionEdit); err != nil {
			log.Error().Err(err).Msg("Session transition failed")
		}
		h.reply(ctx, chatID, "What would you like to change? You can say: shorter, more festive, add price, or custom instructions.")
		return true

	case action == "redo":
		if post.Status != models.PostStatusProcessing {
			if err := post.SetStatus(models.PostStatusProcessing); err != nil {
				log.Error().Err(err).Msg("Post transition failed")
				h.reply(ctx, chatID, "This post can't be regenerated anymore.")
				return true
			}
			h.DB.Model(&post).Update("status", post.Status)
		}
		h.reply(ctx, chatID, "Regenerating options...")
		h.enqueueOrWarn(ctx, chatID, h.Queue.EnqueueProcessPost(ctx, post.ID, chatID))
		return true

	case action == "cancel":
		if err := post.SetStatus(models.PostStatusCancelled); err != nil {
			log.Error().Err(err).Msg("Post transition failed")
		} else {
			h.DB.Model(&post).Update("status", post.Status)
		}
		if err := h.setSessionState(session, models.SessionStateIdle); err != nil {
			log.Error().Err(err).Msg("Session transition failed")
		}
		h.reply(ctx, chatID, "Cancelled this post.")
		return true

	case action == "approve":
		if err := post.SetStatus(models.PostStatusApproved); err != nil {
			log.Error().Err(err).Msg("Post transition failed")
			h.reply(ctx, chatID, "This post isn't ready to approve yet.")
			return true
		}
		h.DB.Model(&post).Update("status", post.Status)
		if err := h.setSessionState(session, models.SessionStateAwaitingPostConfirmation); err != nil {
			log.Error().Err(err).Msg("Session transition failed")
		}
		h.reply(ctx, chatID, "Ready to post. Reply 'post now'.")
		return true

	case strings.HasPrefix(action, "schedule"):
		h.reply(ctx, chatID, SchedulingMessage)
		return true

	case action == "post now":
		h.reply(ctx, chatID, "Posting now...")
		h.enqueueOrWarn(ctx, chatID, h.Queue.EnqueuePublish(ctx, post.ID, chatID, fmt.Sprintf("%d", userID)))
		return true

	case action == "reel this":
		h.reply(ctx, chatID, "Turning this post into a reel...")
		h.enqueueOrWarn(ctx, chatID, h.Queue.EnqueueReelThis(ctx, post.ID, chatID))
		return true

	case action == "extend" || strings.HasPrefix(action, "extend "):
		instruction := strings.TrimSpace(strings.TrimPrefix(fullText, "extend"))
		if instruction == "" {
			instruction = "Continue the motion naturally into a follow-on scene."
		}
		variation := 0
		if post.SelectedVariantIndex != nil {
			variation = *post.SelectedVariantIndex
		}
		h.reply(ctx, chatID, "Extending the video...")
		h.enqueueOrWarn(ctx, chatID, h.Queue.EnqueueExtendVideo(ctx, post.ID, chatID, variation, instruction))
		return true

	case session.State == models.SessionStateAwaitingCaptionEdit:
		h.enqueueOrWarn(ctx, chatID, h.Queue.EnqueueRewriteCaption(ctx, post.ID, chatID, fullText))
		if err := h.setSessionState(session, models.SessionStateReviewReady); err != nil {
			log.Error().Err(err).Msg("Session transition failed")
		}
		h.reply(ctx, chatID, "Updating caption...")
		return true
	}
	return false
}

func (h *Handler) enqueueOrWarn(ctx context.Context, chatID int64, err error) {
	if err != nil {
		log.Error().Err(err).Msg("Failed to enqueue task")
		h.reply(ctx, chatID, "Something went wrong queuing that. Please try again.")
	}
}

// handleCallback processes an inline keyboard press.
func (h *Handler) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.From == nil || !h.Settings.IsAllowed(callback.From.ID) {
		h.answerCallback(callback.ID, "Unauthorized")
		return
	}
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID

	parsed := ParseCallback(callback.Data)
	if parsed == nil {
		h.answerCallback(callback.ID, "Invalid action")
		return
	}

	var post models.Post
	if err := h.DB.First(&post, parsed.PostID).Error; err != nil {
		h.answerCallback(callback.ID, "Post not found")
		return
	}

	switch parsed.Action {
	case ActionSelect, ActionSelectVideo:
		h.DB.Model(&post).Update("selected_variant_index", parsed.Variant)
		h.reply(ctx, chatID, fmt.Sprintf("Selected option %d. Reply 'approve' when ready.", parsed.Variant))
	case ActionEditCaption:
		if session, err := GetOrCreateSession(h.DB, userID, chatID); err == nil {
			session.PostID = &post.ID
			h.DB.Model(session).Update("post_id", post.ID)
			if err := h.setSessionState(session, models.SessionStateAwaitingCaptionEdit); err != nil {
				log.Error().Err(err).Msg("Session transition failed")
			}
		}
		h.reply(ctx, chatID, "Tell me how you want to change the caption.")
	case ActionRedo:
		if post.Status != models.PostStatusProcessing {
			if err := post.SetStatus(models.PostStatusProcessing); err != nil {
				h.answerCallback(callback.ID, "Can't redo this post")
				return
			}
			h.DB.Model(&post).Update("status", post.Status)
		}
		h.reply(ctx, chatID, "Regenerating options...")
		h.enqueueOrWarn(ctx, chatID, h.Queue.EnqueueProcessPost(ctx, post.ID, chatID))
	case ActionCancel:
		if err := post.SetStatus(models.PostStatusCancelled); err == nil {
			h.DB.Model(&post).Update("status", post.Status)
		}
		h.reply(ctx, chatID, "Cancelled this post.")
	case ActionApprove:
		if err := post.SetStatus(models.PostStatusApproved); err != nil {
			h.answerCallback(callback.ID, "Not ready to approve")
			return
		}
		h.DB.Model(&post).Update("status", post.Status)
		h.reply(ctx, chatID, "Approved. Reply 'post now' to publish.")
	case ActionReelThis:
		h.reply(ctx, chatID, "Turning this post into a reel...")
		h.enqueueOrWarn(ctx, chatID, h.Queue.EnqueueReelThis(ctx, post.ID, chatID))
	case ActionExtend:
		h.reply(ctx, chatID, "Extending the video...")
		h.enqueueOrWarn(ctx, chatID, h.Queue.EnqueueExtendVideo(ctx, post.ID, chatID, parsed.Variant,
			"Continue the motion naturally into a follow-on scene."))
	}

	h.answerCallback(callback.ID, "")
}

func (h *Handler) answerCallback(callbackID, text string) {
	if _, err := h.Bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Warn().Err(err).Msg("Failed to answer callback")
	}
}
