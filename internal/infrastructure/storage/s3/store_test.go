package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type objectAPIFake struct {
	objects map[string][]byte
	putErr  error
}

func (f *objectAPIFake) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *objectAPIFake) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "doc_file.pdf", want: "doc_file.pdf"},
		{name: "simple prefix", prefix: "uploads", key: "doc_file.pdf", want: "uploads/doc_file.pdf"},
		{name: "prefix and key slashes", prefix: "/uploads/", key: "/doc_file.pdf", want: "uploads/doc_file.pdf"},
		{name: "nested prefix", prefix: "env/uploads", key: "doc_file.pdf", want: "env/uploads/doc_file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestSaveAndOpenUsePrefixedKey(t *testing.T) {
	fake := &objectAPIFake{objects: map[string][]byte{}}
	store := newWithClient(fake, "invoices", "/uploads/")

	if err := store.Save(context.Background(), "doc-1_a.pdf", strings.NewReader("pdf")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok := fake.objects["invoices/uploads/doc-1_a.pdf"]; !ok {
		t.Fatalf("object stored under unexpected key: %v", fake.objects)
	}

	rc, err := store.Open(context.Background(), "doc-1_a.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "pdf" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	store := newWithClient(&objectAPIFake{objects: map[string][]byte{}}, "invoices", "")
	if _, err := store.Open(context.Background(), "nope.pdf"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSaveWrapsClientError(t *testing.T) {
	store := newWithClient(&objectAPIFake{putErr: errors.New("access denied")}, "invoices", "")
	err := store.Save(context.Background(), "doc.pdf", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "access denied") || !strings.Contains(err.Error(), "key=doc.pdf") {
		t.Fatalf("unexpected error %v", err)
	}
}
