package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// Store keeps uploads in a Cloud Storage bucket. Objects are write-once.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, bucket: client.Bucket(bucket), prefix: strings.Trim(prefix, "/")}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Save(ctx context.Context, key string, data io.Reader) error {
	name := objectName(s.prefix, key)
	writer := s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, data); err != nil {
		_ = writer.Close()
		return classifyWriteError(name, err)
	}
	if err := writer.Close(); err != nil {
		return classifyWriteError(name, err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	name := objectName(s.prefix, key)
	reader, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "gcs open object", fmt.Errorf("object=%s", name))
		}
		return nil, fmt.Errorf("gcs open object %s: %w", name, err)
	}
	return reader, nil
}

// classifyWriteError treats a failed DoesNotExist precondition as success: keys embed the
// document id, so an existing object is a retried upload of the same bytes.
func classifyWriteError(name string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return nil
	}
	return fmt.Errorf("gcs write object %s: %w", name, err)
}

func objectName(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
