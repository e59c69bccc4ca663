// Package uploads stores permit attachments on local disk or in an
// S3-compatible bucket.
package uploads

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// tokenPrefixLen is the hex token plus its underscore separator.
	tokenPrefixLen = 33
	// maxNameBytes is the common filesystem limit for one path component.
	maxNameBytes = 255
	// MaxBaseNameBytes is the longest base name StoredName will keep.
	MaxBaseNameBytes = maxNameBytes - tokenPrefixLen
	// maxExtBytes bounds how much of a long extension survives truncation.
	maxExtBytes = 32
)

var (
	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("upload not found")
	// ErrInvalidName is returned for names that are empty or contain path components.
	ErrInvalidName = errors.New("invalid upload name")
)

// Store persists uploaded files by name.
type Store interface {
	// Type returns the backend identifier.
	Type() string

	// Put stores the contents of r under name.
	Put(ctx context.Context, name string, r io.Reader) error

	// Open returns a reader for the named file.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes the named file.
	Delete(ctx context.Context, name string) error
}

// BaseName returns the final path component of a client-supplied filename.
// Both forward and back slashes are treated as separators. Control
// characters are dropped and the result is cut to MaxBaseNameBytes, keeping
// the extension. An empty result means the upload has no usable name.
func BaseName(filename string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, filename)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	name = truncateName(name, MaxBaseNameBytes)
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}

// truncateName shortens name to at most limit bytes on a rune boundary.
// A short extension is preserved and the stem is cut instead.
func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if len(ext) > maxExtBytes || len(ext) == len(name) {
		ext = ""
	}
	stem := cutRunes(strings.TrimSuffix(name, ext), limit-len(ext))
	return strings.TrimSpace(stem) + ext
}

func cutRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// StoredName derives a collision-resistant storage name from a client
// filename: a random 32 character hex token, an underscore, then the base name.
func StoredName(filename string) string {
	base := BaseName(filename)
	if base == "" {
		return ""
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + base
}

// ValidateName rejects names that could escape the storage root.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}
