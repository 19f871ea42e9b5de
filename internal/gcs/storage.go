// Package gcs reads and writes whole Cloud Storage objects addressed by
// gs://bucket/object URIs.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const scheme = "gs://"

// ObjectStore provides the storage operations used by the catalog loader and
// the batch exporter. This interface enables mocking in tests.
type ObjectStore interface {
	// Fetch downloads the object at uri.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Upload writes data to uri, replacing any existing object.
	Upload(ctx context.Context, uri string, data []byte, contentType string) error
}

// Client is the Cloud Storage implementation of ObjectStore.
// It assumes Application Default Credentials are configured.
type Client struct {
	// UploadTimeout bounds a single upload. Zero means two minutes.
	UploadTimeout time.Duration
}

// NewClient creates a new Client.
func NewClient() *Client {
	return &Client{}
}

// IsURI reports whether s uses the gs:// scheme.
func IsURI(s string) bool {
	return strings.HasPrefix(s, scheme)
}

// ParseURI splits gs://bucket/path/to/object into bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, scheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: open object %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Fetch: read object %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

func (c *Client) Upload(ctx context.Context, uri string, data []byte, contentType string) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("Upload: create storage client: %w", err)
	}
	defer client.Close()

	timeout := c.UploadTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: write object %s/%s: %w", bucket, object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalize %s/%s: %w", bucket, object, err)
	}
	return nil
}
