package models

import "io"

// MediaKind is the content kind of a relayed message.
type MediaKind string

const (
	KindText     MediaKind = "text"
	KindPhoto    MediaKind = "photo"
	KindVideo    MediaKind = "video"
	KindVoice    MediaKind = "voice"
	KindDocument MediaKind = "document"
	KindAudio    MediaKind = "audio"
	KindSticker  MediaKind = "sticker"
)

// mediaFolders maps each stored content kind to its directory under the
// media root. Kinds absent here (text, sticker) are forwarded without
// being persisted.
var mediaFolders = map[MediaKind]string{
	KindPhoto:    "photos",
	KindVideo:    "videos",
	KindDocument: "docs",
	KindVoice:    "voice",
	KindAudio:    "audio",
}

// KnownKind reports whether k is a relayable content kind.
func KnownKind(k MediaKind) bool {
	if k == KindText || k == KindSticker {
		return true
	}
	_, ok := mediaFolders[k]
	return ok
}

// MediaFolder returns the storage sub-directory for k, and whether
// payloads of this kind are persisted at all.
func MediaFolder(k MediaKind) (string, bool) {
	folder, ok := mediaFolders[k]
	return folder, ok
}

// RelayMessage is one inbound payload handed to the relay dispatcher.
// Content carries the text body for KindText and the transport file
// reference (Telegram FileID) for everything else.
type RelayMessage struct {
	SenderID string    `json:"sender_id"`
	Kind     MediaKind `json:"kind"`
	Content  string    `json:"content"`
	Caption  string    `json:"caption,omitempty"`

	// Sequence is the transport's message sequence number; together with
	// SenderID and OriginalName it fixes the on-disk media filename.
	Sequence     int    `json:"sequence,omitempty"`
	OriginalName string `json:"original_name,omitempty"`

	// Data, when non-nil, is the media payload to persist before the
	// message is forwarded. Never set for text or sticker messages.
	Data io.Reader `json:"-"`
}
