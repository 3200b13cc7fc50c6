package storage

import (
	"context"
	"io"
	"time"
)

// Uploader stores vehicle media and returns a publicly fetchable URL.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (url string, err error)
}

// Signer mints time-limited GET URLs so the messaging gateway can fetch
// private objects referenced as gs:// media.
type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}
