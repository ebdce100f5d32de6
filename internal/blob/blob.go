// Package blob stores attachment bytes either in Google Cloud Storage or
// inline in the attachments table.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const MaxSize = 10 << 20

var (
	ErrTooLarge       = errors.New("attachment exceeds 10 MiB")
	ErrTypeNotAllowed = errors.New("attachment type not allowed")
	ErrInline         = errors.New("attachment is stored inline")
)

// allowedTypes are sniffed media types; entries ending in "/" match a family.
// Office documents (docx, xlsx, pptx) sniff as zip.
var allowedTypes = []string{
	"application/pdf",
	"application/zip",
	"image/",
	"text/plain",
}

// Sniff detects the content type of data and rejects files that are too
// large or of a type we do not keep.
func Sniff(data []byte) (string, error) {
	if len(data) > MaxSize {
		return "", ErrTooLarge
	}
	ct := http.DetectContentType(data)
	base := strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	for _, a := range allowedTypes {
		if base == a || strings.HasSuffix(a, "/") && strings.HasPrefix(base, a) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTypeNotAllowed, base)
}

// Store keeps attachment bytes. An empty URL from Put means the caller must
// keep the bytes itself.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	Delete(ctx context.Context, url string) error
}

// Inline keeps nothing; bytes stay in the attachments row.
type Inline struct{}

func (Inline) Put(context.Context, string, string, []byte) (string, error) { return "", nil }

func (Inline) Open(context.Context, string) (io.ReadCloser, error) { return nil, ErrInline }

func (Inline) Delete(context.Context, string) error { return nil }

// GCS stores objects in one bucket and addresses them as gs://bucket/key.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS connects with credentialsJSON when given, else application default credentials.
func NewGCS(ctx context.Context, bucket, credentialsJSON string) (*GCS, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not accessible: %w", bucket, err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", key, err)
	}
	return g.url(key), nil
}

func (g *GCS) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	key, err := g.key(url)
	if err != nil {
		return nil, err
	}
	return g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
}

func (g *GCS) Delete(ctx context.Context, url string) error {
	key, err := g.key(url)
	if err != nil {
		return err
	}
	err = g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCS) url(key string) string {
	return "gs://" + g.bucket + "/" + key
}

func (g *GCS) key(url string) (string, error) {
	key, ok := strings.CutPrefix(url, "gs://"+g.bucket+"/")
	if !ok || key == "" {
		return "", fmt.Errorf("object %q is not in bucket %s", url, g.bucket)
	}
	return key, nil
}
