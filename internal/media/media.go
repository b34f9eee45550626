// Package media persists relayed media payloads on disk: one directory
// per content kind, filenames of the form
// {senderId}_{messageSequence}_{originalFilename}.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"anonchat/backend/internal/models"
)

// Store writes media payloads under a base directory.
type Store struct {
	baseDir string
}

// NewStore creates the per-kind directories at startup so Save never
// races a mkdir.
func NewStore(baseDir string) (*Store, error) {
	for _, kind := range []models.MediaKind{
		models.KindPhoto, models.KindVideo, models.KindDocument,
		models.KindVoice, models.KindAudio,
	} {
		folder, _ := models.MediaFolder(kind)
		if err := os.MkdirAll(filepath.Join(baseDir, folder), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create media directory for %s: %w", kind, err)
		}
	}
	return &Store{baseDir: baseDir}, nil
}

// Save streams r to the file for this payload and returns the path the
// payload was written to.
func (s *Store) Save(kind models.MediaKind, senderID string, seq int, originalName string, r io.Reader) (string, error) {
	folder, ok := models.MediaFolder(kind)
	if !ok {
		return "", fmt.Errorf("content kind %q is not persisted", kind)
	}

	filename := fmt.Sprintf("%s_%d_%s", senderID, seq, filepath.Base(originalName))
	path := filepath.Join(s.baseDir, folder, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return path, nil
}
