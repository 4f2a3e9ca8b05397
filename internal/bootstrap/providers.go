package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/ports"
	"github.com/kirillkom/docflow/internal/infrastructure/completion"
	"github.com/kirillkom/docflow/internal/infrastructure/llm/httpjson"
	"github.com/kirillkom/docflow/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docflow/internal/infrastructure/llm/openai"
	"github.com/kirillkom/docflow/internal/infrastructure/llm/vertex"
	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
	"github.com/kirillkom/docflow/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/docflow/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docflow/internal/infrastructure/storage/s3"
)

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, func() error, error) {
	switch cfg.StorageBackend {
	case "local", "":
		storage, err := localfs.New(cfg.StoragePath)
		return storage, nil, err
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, nil, fmt.Errorf("S3_BUCKET is required for the s3 storage backend")
		}
		storage, err := s3.New(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
		return storage, nil, err
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, nil, fmt.Errorf("GCS_BUCKET is required for the gcs storage backend")
		}
		storage, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, nil, err
		}
		return storage, storage.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q (want local, s3 or gcs)", cfg.StorageBackend)
	}
}

// newFieldCompleter returns completion.Disabled when no provider is configured, so the
// pipeline always falls through to the pattern cascade.
func newFieldCompleter(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.FieldCompleter, func() error, error) {
	var (
		gen     completion.JSONGenerator
		closeFn func() error
	)
	switch cfg.CompletionProvider {
	case "none", "":
		return completion.Disabled{}, nil, nil
	case "ollama":
		gen = ollama.New(cfg.OllamaURL, cfg.OllamaModel, httpjson.WithExecutor(executor))
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required for the openai completion provider")
		}
		gen = openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, httpjson.WithExecutor(executor))
	case "vertex":
		client, err := vertex.New(ctx, cfg.VertexProject, cfg.VertexRegion, cfg.VertexModel, executor)
		if err != nil {
			return nil, nil, err
		}
		gen, closeFn = client, client.Close
	default:
		return nil, nil, fmt.Errorf("unsupported completion provider %q (want none, ollama, openai or vertex)", cfg.CompletionProvider)
	}

	completer, err := completion.New(gen)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, nil, err
	}
	return completer, closeFn, nil
}
