package storage

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	gifBytes = append([]byte("GIF89a\x01\x00\x01\x00\x80\x00\x00"), make([]byte, 16)...)
)

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestParseDataURL(t *testing.T) {
	mime, data, err := ParseDataURL(dataURL("image/png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngBytes, data)

	for _, bad := range []string{"", "http://x/y.png", "data:image/png,raw", "data:image/png;base64,@@@"} {
		_, _, err := ParseDataURL(bad)
		assert.ErrorIs(t, err, ErrInvalidDataURL, bad)
	}
	assert.True(t, IsDataURL(dataURL("image/gif", gifBytes)))
	assert.False(t, IsDataURL("https://cdn/x.gif"))
}

func TestUploadDataURLLocal(t *testing.T) {
	dir := t.TempDir()
	u := NewUploader(NewLocalStore(dir, "/media/"), 1<<20)

	m, err := u.UploadDataURL(context.Background(), "posts", dataURL("image/png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, model.MediaImage, m.Kind)
	assert.Equal(t, "image/png", m.ContentType)
	require.True(t, strings.HasPrefix(m.URL, "/media/posts/"))
	assert.True(t, strings.HasSuffix(m.URL, ".png"))

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(m.URL, "/media/"))))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)

	// 声明的 mime 不可信，以内容为准
	m, err = u.UploadDataURL(context.Background(), "comments", dataURL("image/png", gifBytes))
	require.NoError(t, err)
	assert.Equal(t, model.MediaGIF, m.Kind)
}

func TestUploadDataURLRejects(t *testing.T) {
	u := NewUploader(NewLocalStore(t.TempDir(), "/media"), 16)

	_, err := u.UploadDataURL(context.Background(), "posts", dataURL("image/png", pngBytes))
	assert.ErrorIs(t, err, ErrTooLarge)

	u = NewUploader(NewLocalStore(t.TempDir(), "/media"), 1<<20)
	_, err = u.UploadDataURL(context.Background(), "posts", dataURL("image/png", []byte("just some text, not an image")))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestDownloadURLEscapesKey(t *testing.T) {
	got := DownloadURL("bucket.appspot.com", "posts/2024/01/02/a.png", "tok")
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/bucket.appspot.com/o/posts%2F2024%2F01%2F02%2Fa.png?alt=media&token=tok", got)
}
