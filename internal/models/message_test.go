package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownKind(t *testing.T) {
	for _, k := range []MediaKind{
		KindText, KindPhoto, KindVideo, KindVoice,
		KindDocument, KindAudio, KindSticker,
	} {
		assert.True(t, KnownKind(k), string(k))
	}
	assert.False(t, KnownKind("location"))
	assert.False(t, KnownKind(""))
}

func TestMediaFolder(t *testing.T) {
	cases := map[MediaKind]string{
		KindPhoto:    "photos",
		KindVideo:    "videos",
		KindDocument: "docs",
		KindVoice:    "voice",
		KindAudio:    "audio",
	}
	for kind, want := range cases {
		folder, ok := MediaFolder(kind)
		assert.True(t, ok, string(kind))
		assert.Equal(t, want, folder)
	}

	// Text and stickers are forwarded but never written to disk.
	_, ok := MediaFolder(KindText)
	assert.False(t, ok)
	_, ok = MediaFolder(KindSticker)
	assert.False(t, ok)
}
