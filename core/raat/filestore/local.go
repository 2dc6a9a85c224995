package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
)

type localStore struct {
	dir string
}

func NewLocal(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Save(_ context.Context, r io.Reader, _ string) (string, int64, error) {
	ref := uuid.Must(uuid.NewV4()).String()
	f, err := os.OpenFile(filepath.Join(s.dir, ref), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, err
	}
	return ref, n, nil
}

func (s *localStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.dir, cleanRef(ref)))
}

func (s *localStore) Delete(_ context.Context, ref string) error {
	err := os.Remove(filepath.Join(s.dir, cleanRef(ref)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// cleanRef strips path separators so a stored reference can never escape
// the storage directory.
func cleanRef(ref string) string {
	return filepath.Base(strings.TrimSpace(ref))
}
