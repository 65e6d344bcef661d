// Package blob is the boundary to the object store holding document bytes.
package blob

import "context"

// Store puts and deletes document objects. A just-uploaded URL is assumed to
// be immediately readable.
type Store interface {
	PutObject(ctx context.Context, path string, data []byte, contentType string) (string, error)
	DeleteObject(ctx context.Context, url string) error
}
