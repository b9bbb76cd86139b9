// README: Object storage for chat media; Firebase Storage in production, a local directory otherwise.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
)

// Bucket writes objects to a Firebase Storage bucket.
type Bucket struct {
	handle *gcs.BucketHandle
	name   string
}

func NewFirebaseBucket(ctx context.Context, app *firebase.App, name string) (*Bucket, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Storage: %w", err)
	}
	handle, err := client.Bucket(name)
	if err != nil {
		return nil, fmt.Errorf("firebase bucket %q: %w", name, err)
	}
	return &Bucket{handle: handle, name: name}, nil
}

func (b *Bucket) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	w := b.handle.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return PublicURL(b.name, name), nil
}

// PublicURL is the download address of an object in a public bucket.
func PublicURL(bucket, object string) string {
	u := url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + object}
	return u.String()
}
