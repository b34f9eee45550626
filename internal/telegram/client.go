package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"anonchat/backend/internal/models"
)

// Client реалізує інтерфейс relay.Transport для одного Telegram-чату.
type Client struct {
	ChatID int64
	bot    *tgbotapi.BotAPI
}

func newClient(chatID int64, bot *tgbotapi.BotAPI) *Client {
	return &Client{ChatID: chatID, bot: bot}
}

// UserID is the chat ID rendered as the engine's opaque user id.
func (c *Client) UserID() string {
	return strconv.FormatInt(c.ChatID, 10)
}

// Notify sends a plain service message.
func (c *Client) Notify(text string) error {
	_, err := c.bot.Send(tgbotapi.NewMessage(c.ChatID, text))
	return err
}

// Deliver forwards a relayed payload. Media is re-sent by FileID, so
// Telegram serves the bytes itself and the partner never sees the
// sender's identity.
func (c *Client) Deliver(msg models.RelayMessage) error {
	var out tgbotapi.Chattable

	switch msg.Kind {
	case models.KindText:
		out = tgbotapi.NewMessage(c.ChatID, msg.Content)
	case models.KindPhoto:
		photo := tgbotapi.NewPhoto(c.ChatID, tgbotapi.FileID(msg.Content))
		photo.Caption = msg.Caption
		out = photo
	case models.KindVideo:
		video := tgbotapi.NewVideo(c.ChatID, tgbotapi.FileID(msg.Content))
		video.Caption = msg.Caption
		out = video
	case models.KindVoice:
		out = tgbotapi.NewVoice(c.ChatID, tgbotapi.FileID(msg.Content))
	case models.KindAudio:
		audio := tgbotapi.NewAudio(c.ChatID, tgbotapi.FileID(msg.Content))
		audio.Caption = msg.Caption
		out = audio
	case models.KindDocument:
		doc := tgbotapi.NewDocument(c.ChatID, tgbotapi.FileID(msg.Content))
		doc.Caption = msg.Caption
		out = doc
	case models.KindSticker:
		out = tgbotapi.NewSticker(c.ChatID, tgbotapi.FileID(msg.Content))
	default:
		return fmt.Errorf("unsupported content kind %q", msg.Kind)
	}

	_, err := c.bot.Send(out)
	return err
}
