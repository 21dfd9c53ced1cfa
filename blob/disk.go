package blob

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chat-relay/domain"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const sniffLen = 512

// DiskStore keeps uploaded files in a single directory under random names.
// The type is decided on content, never on the client's file name.
type DiskStore struct {
	dir      string
	baseURL  string
	maxBytes int64
	log      *slog.Logger
}

// NewDiskStore creates dir if needed. baseURL prefixes the returned file URLs,
// it is the public address of the files route (e.g. "http://host/files").
func NewDiskStore(dir, baseURL string, maxBytes int64, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/"), maxBytes: maxBytes, log: log}, nil
}

// Put stores the content of r. name is the client's file name, kept for display only.
func (s *DiskStore) Put(name string, r io.Reader) (domain.FileRef, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return domain.FileRef{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head).String()
	mime, ok := mimetypes.Allowed(detected)
	if !ok {
		return domain.FileRef{}, fmt.Errorf("%w: detected %s", errors.ErrUnsupportedFileType, detected)
	}

	stored := uuid.NewString() + mime.Extension()
	path := filepath.Join(s.dir, stored)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("%w: %w", errors.ErrStoreFailure, err)
	}

	// One byte over the limit is enough to know the upload is too large
	body := io.MultiReader(bytes.NewReader(head), r)
	written, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		s.discard(path)
		return domain.FileRef{}, fmt.Errorf("write upload: %w", err)
	case closeErr != nil:
		s.discard(path)
		return domain.FileRef{}, fmt.Errorf("%w: %w", errors.ErrStoreFailure, closeErr)
	case written > s.maxBytes:
		s.discard(path)
		return domain.FileRef{}, fmt.Errorf("%w: limit is %d bytes", errors.ErrFileTooLarge, s.maxBytes)
	}

	s.log.Debug("File stored", "name", stored, "type", mime, "size", written)
	return domain.FileRef{
		URL:      s.baseURL + "/" + stored,
		MimeType: string(mime),
		Name:     filepath.Base(name),
	}, nil
}

// Open returns a stored file by the name Put generated for it.
func (s *DiskStore) Open(name string) (io.ReadCloser, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: invalid file name", errors.ErrNotFound)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s", errors.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreFailure, err)
	}
	return f, nil
}

func (s *DiskStore) discard(path string) {
	if err := os.Remove(path); err != nil {
		s.log.Warn("Failed to remove rejected upload", "path", path, "error", err)
	}
}
