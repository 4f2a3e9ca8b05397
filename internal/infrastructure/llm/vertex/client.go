package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
)

type Client struct {
	base     *genai.Client
	model    *genai.GenerativeModel
	executor *resilience.Executor
}

func New(ctx context.Context, projectID, region, model string, executor *resilience.Executor) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: project and region are required")
	}
	base, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	gm := base.GenerativeModel(model)
	gm.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}
	return &Client{base: base, model: gm, executor: executor}, nil
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	var out string
	call := func(callCtx context.Context) error {
		resp, err := c.model.GenerateContent(callCtx, genai.Text(prompt))
		if err != nil {
			return fmt.Errorf("vertex generate content: %w", err)
		}
		out = responseText(resp)
		return nil
	}

	var err error
	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, "vertex.generate", call, classify)
	}
	if err != nil {
		if classify(err).Retryable {
			return "", domain.WrapError(domain.ErrTemporary, "vertex generate", err)
		}
		return "", err
	}
	if out == "" {
		return "", errors.New("vertex: empty response")
	}
	return out, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func classify(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
