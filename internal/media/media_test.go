package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/backend/internal/models"
)

func TestNewStoreCreatesKindDirectories(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(dir)
	require.NoError(t, err)

	for _, folder := range []string{"photos", "videos", "docs", "voice", "audio"} {
		info, err := os.Stat(filepath.Join(dir, folder))
		require.NoError(t, err, folder)
		assert.True(t, info.IsDir())
	}
}

func TestSaveFilenameLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	path, err := s.Save(models.KindDocument, "42", 17, "report.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "docs", "42_17_report.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))
}

func TestSaveStripsDirectoryFromOriginalName(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	path, err := s.Save(models.KindPhoto, "7", 1, "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photos", "7_1_passwd"), path)
}

func TestSaveRejectsUnpersistedKind(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save(models.KindText, "1", 1, "x", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = s.Save(models.KindSticker, "1", 1, "x", strings.NewReader("x"))
	assert.Error(t, err)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, os.ErrClosed }

func TestSaveCleansUpOnCopyFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	_, err = s.Save(models.KindVoice, "3", 5, "note.ogg", brokenReader{})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "voice", "3_5_note.ogg"))
	assert.True(t, os.IsNotExist(statErr), "partial file must be removed")
}
