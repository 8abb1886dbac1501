package resource

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const maxNameAttempts = 100

var ErrFileNotFound = errors.New("file not found")

// FileStore persists uploaded files.
type FileStore interface {
	// Save writes `r` under `name` and returns the storage path.
	Save(name string, r io.Reader) (string, error)
	Open(path string) (*os.File, error)
	Remove(path string) error
}

// DiskStore keeps files in a local directory.
type DiskStore struct {
	dir     string
	maxSize int64
}

func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &DiskStore{dir: dir, maxSize: maxSize}, nil
}

// Save writes to a temp file first so a failed upload never leaves a partial file under `name`.
func (s *DiskStore) Save(name string, r io.Reader) (string, error) {
	tmpPath := filepath.Join(s.dir, "."+uuid.New().String()+".part")
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}

	if s.maxSize > 0 {
		r = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	defer func() { _ = os.Remove(tmpPath) }()
	return s.claim(tmpPath, name)
}

// claim hard links `tmpPath` under the first free name among `name`, `<base>_1<ext>`, `<base>_2<ext>`...
// Existing files are never replaced.
func (s *DiskStore) claim(tmpPath, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		err := os.Link(tmpPath, filepath.Join(s.dir, candidate))
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", errors.Wrap(err, "moving uploaded file")
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	return "", errors.Errorf("no free file name for %q", name)
}

func (s *DiskStore) Open(path string) (*os.File, error) {
	f, err := os.Open(s.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *DiskStore) Remove(path string) error {
	if err := os.Remove(s.fullPath(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStore) fullPath(path string) string {
	return filepath.Join(s.dir, filepath.Base(path))
}
