package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"anonchat/backend/internal/models"
)

// Content is what extractContent pulled out of an inbound message.
type Content struct {
	Kind models.MediaKind
	// FileID is the Telegram file reference; empty for text.
	FileID string
	// Text carries the message body (text) or caption (media).
	Text string
	// OriginalName is the payload's filename when Telegram provides one.
	OriginalName string
}

// extractors is the content-kind dispatch table: first entry whose probe
// matches wins. Order encodes precedence, not type checks scattered
// through the handler.
var extractors = []struct {
	kind  models.MediaKind
	probe func(m *tgbotapi.Message) (fileID, originalName string, ok bool)
}{
	{models.KindPhoto, func(m *tgbotapi.Message) (string, string, bool) {
		if len(m.Photo) == 0 {
			return "", "", false
		}
		// Найбільший розмір — останній у списку.
		return m.Photo[len(m.Photo)-1].FileID, "", true
	}},
	{models.KindVideo, func(m *tgbotapi.Message) (string, string, bool) {
		if m.Video == nil {
			return "", "", false
		}
		return m.Video.FileID, m.Video.FileName, true
	}},
	{models.KindVoice, func(m *tgbotapi.Message) (string, string, bool) {
		if m.Voice == nil {
			return "", "", false
		}
		return m.Voice.FileID, "", true
	}},
	{models.KindAudio, func(m *tgbotapi.Message) (string, string, bool) {
		if m.Audio == nil {
			return "", "", false
		}
		return m.Audio.FileID, m.Audio.FileName, true
	}},
	{models.KindDocument, func(m *tgbotapi.Message) (string, string, bool) {
		if m.Document == nil {
			return "", "", false
		}
		return m.Document.FileID, m.Document.FileName, true
	}},
	{models.KindSticker, func(m *tgbotapi.Message) (string, string, bool) {
		if m.Sticker == nil {
			return "", "", false
		}
		return m.Sticker.FileID, "", true
	}},
}

// extractContent classifies an inbound message. ok is false for message
// types the relay does not support.
func extractContent(m *tgbotapi.Message) (Content, bool) {
	for _, e := range extractors {
		if fileID, name, ok := e.probe(m); ok {
			return Content{Kind: e.kind, FileID: fileID, Text: m.Caption, OriginalName: name}, true
		}
	}
	if m.Text != "" {
		return Content{Kind: models.KindText, Text: m.Text}, true
	}
	return Content{}, false
}
