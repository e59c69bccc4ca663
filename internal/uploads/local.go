package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps uploads in a single directory on the local filesystem.
type LocalStore struct {
	dir string
}

// NewLocalStore returns a LocalStore rooted at dir, creating it if absent.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local upload store: directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Type returns the backend identifier.
func (s *LocalStore) Type() string {
	return "local"
}

// Dir returns the storage directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put writes r to a new file. Existing files are never overwritten.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.dir, name)
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return fmt.Errorf("create upload %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(target)
		return fmt.Errorf("write upload %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return fmt.Errorf("close upload %s: %w", name, err)
	}
	return nil
}

// Open returns the named file.
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open upload %s: %w", name, err)
	}
	return f, nil
}

// Delete removes the named file. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload %s: %w", name, err)
	}
	return nil
}
