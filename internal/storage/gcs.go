package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSMedia struct {
	client *gcs.Client
	bucket string
}

func NewGCSMedia(ctx context.Context, bucket string) (*GCSMedia, error) {
	var opts []option.ClientOption
	if f := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_FILE"); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSMedia{client: c, bucket: bucket}, nil
}

func (m *GCSMedia) Close() error { return m.client.Close() }

// Upload writes the object and makes it public; vehicle photos are
// shared over WhatsApp and the public catalog.
func (m *GCSMedia) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	obj := m.client.Bucket(m.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
		return "", err
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", m.bucket, objectName), nil
}

func (m *GCSMedia) SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return m.client.Bucket(m.bucket).SignedURL(objectName, &gcs.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
		Scheme:  gcs.SigningSchemeV4,
	})
}
