package ollama

import (
	"context"
	"strings"

	"github.com/kirillkom/docflow/internal/infrastructure/llm/httpjson"
)

type Client struct {
	http  *httpjson.Client
	model string
}

func New(baseURL, model string, opts ...httpjson.Option) *Client {
	return &Client{
		http:  httpjson.New("ollama", baseURL, opts...),
		model: model,
	}
}

// GenerateJSON asks the model for a single JSON object.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":   c.model,
		"prompt":  prompt,
		"stream":  false,
		"format":  "json",
		"options": map[string]any{"temperature": 0},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.http.PostJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
