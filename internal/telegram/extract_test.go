package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/backend/internal/models"
)

func TestExtractText(t *testing.T) {
	content, ok := extractContent(&tgbotapi.Message{Text: "привіт"})
	require.True(t, ok)
	assert.Equal(t, models.KindText, content.Kind)
	assert.Equal(t, "привіт", content.Text)
	assert.Empty(t, content.FileID)
}

func TestExtractPhotoPicksLargestSize(t *testing.T) {
	msg := &tgbotapi.Message{
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "medium", Width: 320},
			{FileID: "large", Width: 1280},
		},
		Caption: "look",
	}
	content, ok := extractContent(msg)
	require.True(t, ok)
	assert.Equal(t, models.KindPhoto, content.Kind)
	assert.Equal(t, "large", content.FileID)
	assert.Equal(t, "look", content.Text)
}

func TestExtractDocumentKeepsFileName(t *testing.T) {
	msg := &tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "doc-1", FileName: "report.pdf"},
	}
	content, ok := extractContent(msg)
	require.True(t, ok)
	assert.Equal(t, models.KindDocument, content.Kind)
	assert.Equal(t, "doc-1", content.FileID)
	assert.Equal(t, "report.pdf", content.OriginalName)
}

func TestExtractVoice(t *testing.T) {
	msg := &tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "voice-1"}}
	content, ok := extractContent(msg)
	require.True(t, ok)
	assert.Equal(t, models.KindVoice, content.Kind)
	assert.Equal(t, "voice-1", content.FileID)
}

func TestExtractUnsupported(t *testing.T) {
	// Location, polls etc. have no extractor and no text body.
	_, ok := extractContent(&tgbotapi.Message{Location: &tgbotapi.Location{}})
	assert.False(t, ok)
}
