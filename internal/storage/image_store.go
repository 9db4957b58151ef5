package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DefaultMaxBytes is the upload size limit used when none is configured
const DefaultMaxBytes = 5 << 20

// sniffLen matches the read limit mimetype uses for detection
const sniffLen = 3072

// allowedImageTypes are the only uploads accepted, each stored under a fixed extension
var allowedImageTypes = []struct {
	mime string
	ext  string
}{
	{"image/jpeg", ".jpg"},
	{"image/png", ".png"},
	{"image/gif", ".gif"},
	{"image/webp", ".webp"},
}

var (
	ErrNotImage      = errors.New("only jpg, png, gif and webp images are allowed")
	ErrImageTooLarge = errors.New("image exceeds the maximum upload size")
)

// ImageStore persists product images and hands back the public reference
// the catalog stores in Product.PhotoURL.
type ImageStore interface {
	Save(ctx context.Context, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

type fsImageStore struct {
	fs        afero.Fs
	urlPrefix string
	maxBytes  int64
	now       func() time.Time
}

// NewImageStore stores images at the root of fs; references are urlPrefix + "/" + name.
func NewImageStore(fs afero.Fs, urlPrefix string, maxBytes int64) ImageStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &fsImageStore{
		fs:        fs,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

// NewDiskFs returns an afero filesystem rooted at dir, creating it if needed
func NewDiskFs(dir string) (afero.Fs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return afero.NewBasePathFs(afero.NewOsFs(), dir), nil
}

// Save stores the image read from r. The file extension is taken from the
// detected content type, never from the client-supplied name.
func (s *fsImageStore) Save(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	head = head[:n]

	ext, ok := imageExtension(mimetype.Detect(head))
	if !ok {
		return "", ErrNotImage
	}

	name := fmt.Sprintf("%d-%s%s", s.now().UnixNano(), uuid.NewString(), ext)

	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	written, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()

	switch {
	case err != nil:
		s.fs.Remove(name)
		return "", fmt.Errorf("failed to write image: %w", err)
	case written > s.maxBytes:
		s.fs.Remove(name)
		return "", ErrImageTooLarge
	case closeErr != nil:
		s.fs.Remove(name)
		return "", fmt.Errorf("failed to write image: %w", closeErr)
	}

	return s.urlPrefix + "/" + name, nil
}

// Delete removes a stored image. References outside this store are ignored.
func (s *fsImageStore) Delete(ctx context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.urlPrefix+"/") {
		return nil
	}
	name := path.Base(ref)
	if err := s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// imageExtension returns the stored extension for an accepted image type
func imageExtension(mtype *mimetype.MIME) (string, bool) {
	for _, allowed := range allowedImageTypes {
		if mtype.Is(allowed.mime) {
			return allowed.ext, true
		}
	}
	return "", false
}
