package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Sender delivers pipeline output to the founder chat. It implements
// pipeline.Reviewer.
type Sender struct {
	bot *tgbotapi.BotAPI
}

// NewSender wraps a bot API handle.
func NewSender(bot *tgbotapi.BotAPI) *Sender {
	return &Sender{bot: bot}
}

// SendText sends a plain text message.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendReview sends the styled previews as a media group followed by the
// caption package and the review keyboard.
func (s *Sender) SendReview(ctx context.Context, chatID int64, postID uint, imageURLs []string, caption, hashtags string) error {
	var media []interface{}
	for _, u := range imageURLs {
		if u == "" {
			continue
		}
		if len(media) == 3 {
			break
		}
		media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(u)))
	}
	if len(media) > 0 {
		if _, err := s.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send preview media group")
		}
	}

	text := fmt.Sprintf(
		"Here are your options for this post:\n\nCaption:\n%q\n\nHashtags:\n%s\n\nReply with 1, 2, or 3; or use the buttons below.",
		caption, hashtags)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = reviewKeyboard(postID)
	_, err := s.bot.Send(msg)
	return err
}

// SendVideoReview sends the generated clips followed by the caption package
// and the video review keyboard.
func (s *Sender) SendVideoReview(ctx context.Context, chatID int64, postID uint, videoURLs []string, startFrameURL, caption, hashtags string) error {
	for i, u := range videoURLs {
		if u == "" {
			continue
		}
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(u))
		video.Caption = fmt.Sprintf("Clip %d", i+1)
		if _, err := s.bot.Send(video); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Int("clip", i+1).Msg("Failed to send clip")
		}
	}

	text := fmt.Sprintf(
		"Your reel is ready.\n\nCaption:\n%q\n\nHashtags:\n%s\n\nPick a clip, extend it, or approve.",
		caption, hashtags)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = videoReviewKeyboard(postID, len(videoURLs))
	_, err := s.bot.Send(msg)
	return err
}

func reviewKeyboard(postID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1", MakeCallback(postID, 1, ActionSelect)),
			tgbotapi.NewInlineKeyboardButtonData("2", MakeCallback(postID, 2, ActionSelect)),
			tgbotapi.NewInlineKeyboardButtonData("3", MakeCallback(postID, 3, ActionSelect)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Edit Caption", MakeCallback(postID, 0, ActionEditCaption)),
			tgbotapi.NewInlineKeyboardButtonData("Redo", MakeCallback(postID, 0, ActionRedo)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Reel This", MakeCallback(postID, 0, ActionReelThis)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", MakeCallback(postID, 0, ActionApprove)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", MakeCallback(postID, 0, ActionCancel)),
		),
	)
}

func videoReviewKeyboard(postID uint, clips int) tgbotapi.InlineKeyboardMarkup {
	var selectRow []tgbotapi.InlineKeyboardButton
	for i := 1; i <= clips && i <= 3; i++ {
		selectRow = append(selectRow, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("Clip %d", i), MakeCallback(postID, i, ActionSelectVideo)))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(selectRow) > 0 {
		rows = append(rows, selectRow)
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Extend", MakeCallback(postID, 0, ActionExtend)),
			tgbotapi.NewInlineKeyboardButtonData("Redo", MakeCallback(postID, 0, ActionRedo)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", MakeCallback(postID, 0, ActionApprove)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", MakeCallback(postID, 0, ActionCancel)),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
