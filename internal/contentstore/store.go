// Package contentstore abstracts the surrounding application's persistence
// for live file contents. The streaming core only ever reads a field, writes
// a field, or registers a previously-unseen custom file.
package contentstore

import (
	"context"
	"errors"

	"blockforge/internal/filekey"
)

var ErrNotFound = errors.New("content field not found")

// Store is the external content collaborator contract.
type Store interface {
	// ReadField returns the current text for key. Missing fields read as
	// empty: a file the subject never had simply has no content yet.
	ReadField(ctx context.Context, key filekey.Key) (string, error)
	// WriteField replaces the current text for key.
	WriteField(ctx context.Context, key filekey.Key, text string) error
	// RegisterNewFile creates the editable slot for a custom filename and
	// returns its allocated key. Registering an existing filename returns
	// the existing key.
	RegisterNewFile(ctx context.Context, filename string) (filekey.Key, error)
	// Keys lists every tracked key, core files first.
	Keys(ctx context.Context) ([]filekey.Key, error)
}
