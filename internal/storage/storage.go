package storage

import "context"

// BlobStore is the narrow object-storage contract the services depend on.
// Put stores bytes under path and returns a public URL for the object; Get
// returns the stored bytes.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	PublicURL(path string) string
}
