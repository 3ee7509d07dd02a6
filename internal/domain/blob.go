package domain

import "context"

// BlobObject is one object bound for the archive bucket.
type BlobObject struct {
	Key         string
	Body        []byte
	ContentType string
	// Metadata is stored as user metadata on the object.
	Metadata map[string]string
}

// BlobWriter stores archive objects. Implementations pick the upload
// strategy from the body size.
type BlobWriter interface {
	Write(ctx context.Context, obj BlobObject) error
}
