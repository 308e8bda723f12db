// Package telegram is the chat delivery collaborator. Transport errors are
// returned to the caller as plain failures so it can decide whether a
// listing counts as delivered.
package telegram

import (
	"context"
	"fmt"
	"log"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"flatwatch/format"
	"flatwatch/models"
)

// maxAlbumSize is Telegram's media group limit.
const maxAlbumSize = 10

// LongFormHost publishes oversized descriptions and returns a link.
type LongFormHost interface {
	CreatePage(ctx context.Context, l *models.Listing, description string) (string, error)
}

type Sender struct {
	bot  *tgbotapi.BotAPI
	host LongFormHost
}

func NewSender(token string, host LongFormHost) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Printf("Telegram: authorized as @%s", bot.Self.UserName)
	return &Sender{bot: bot, host: host}, nil
}

// Send delivers one listing as an alert notification: photo with caption for
// a single image, album plus follow-up text for several, text only for none.
func (s *Sender) Send(ctx context.Context, userID int64, l *models.Listing) error {
	text := format.AlertHeader() + format.Message(l, s.longDescURL(ctx, l))

	switch {
	case len(l.Images) == 1:
		photo := tgbotapi.NewPhoto(userID, tgbotapi.FileURL(l.Images[0]))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		if _, err := s.bot.Send(photo); err != nil {
			return fmt.Errorf("send photo: %w", err)
		}
		return nil

	case len(l.Images) > 1:
		if _, err := s.bot.SendMediaGroup(mediaGroup(userID, l)); err != nil {
			return fmt.Errorf("send album: %w", err)
		}
		return s.sendText(userID, text)

	default:
		return s.sendText(userID, text)
	}
}

func (s *Sender) sendText(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// longDescURL hosts the description externally when it is too long to
// inline. Hosting failure falls back to truncation inside format.Message.
func (s *Sender) longDescURL(ctx context.Context, l *models.Listing) string {
	desc := format.StripHTML(l.Description)
	if utf8.RuneCountInString(desc) <= format.InlineDescriptionLimit || s.host == nil {
		return ""
	}

	url, err := s.host.CreatePage(ctx, l, desc)
	if err != nil {
		log.Printf("Telegram: long description page for pk %d failed: %v", l.PK, err)
		return ""
	}
	return url
}

func mediaGroup(userID int64, l *models.Listing) tgbotapi.MediaGroupConfig {
	images := l.Images
	if len(images) > maxAlbumSize {
		images = images[:maxAlbumSize]
	}

	var media []any
	for i, url := range images {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(url))
		if i == 0 {
			photo.Caption = format.Caption(l)
			photo.ParseMode = tgbotapi.ModeHTML
		}
		media = append(media, photo)
	}

	return tgbotapi.NewMediaGroup(userID, media)
}
