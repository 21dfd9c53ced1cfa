package blob

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"testing"

	"chat-relay/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// Smallest valid PNG header followed by padding.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

func newStore(t *testing.T, maxBytes int64) (*DiskStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "http://localhost:8080/files/", maxBytes, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	return store, dir
}

func TestDiskStore_PutAndOpen(t *testing.T) {
	req := require.New(t)
	store, _ := newStore(t, 1<<20)

	// When a png is uploaded under a misleading name
	ref, err := store.Put("../../scan.txt", bytes.NewReader(pngBytes))

	// Then it is accepted on its content
	req.NoError(err)
	req.Equal("image/png", ref.MimeType)
	req.Equal("scan.txt", ref.Name)
	req.True(strings.HasPrefix(ref.URL, "http://localhost:8080/files/"))
	req.True(strings.HasSuffix(ref.URL, ".png"))

	// And it can be read back by its stored name
	rc, err := store.Open(path.Base(ref.URL))
	req.NoError(err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	req.NoError(err)
	req.Equal(pngBytes, content)
}

func TestDiskStore_PDF(t *testing.T) {
	req := require.New(t)
	store, _ := newStore(t, 1<<20)

	ref, err := store.Put("report.pdf", strings.NewReader("%PDF-1.4\n%some content\n"))
	req.NoError(err)
	req.Equal("application/pdf", ref.MimeType)
}

func TestDiskStore_RejectsUnsupportedType(t *testing.T) {
	req := require.New(t)
	store, dir := newStore(t, 1<<20)

	_, err := store.Put("photo.png", strings.NewReader("just some text pretending to be an image"))

	req.ErrorIs(err, errors.ErrUnsupportedFileType)
	entries, err := os.ReadDir(dir)
	req.NoError(err)
	req.Empty(entries)
}

func TestDiskStore_RejectsTooLarge(t *testing.T) {
	req := require.New(t)
	store, dir := newStore(t, 32)

	_, err := store.Put("big.png", bytes.NewReader(pngBytes))

	req.ErrorIs(err, errors.ErrFileTooLarge)
	entries, err := os.ReadDir(dir)
	req.NoError(err)
	req.Empty(entries)
}

func TestDiskStore_OpenRejectsTraversal(t *testing.T) {
	req := require.New(t)
	store, _ := newStore(t, 1<<20)

	for _, name := range []string{"", "../etc/passwd", ".hidden", "a/b.png", "missing.png"} {
		_, err := store.Open(name)
		req.ErrorIs(err, errors.ErrNotFound, name)
	}
}
