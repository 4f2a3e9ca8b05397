package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/docflow/internal/infrastructure/llm/httpjson"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	http  *httpjson.Client
	model string
}

// New targets an OpenAI-compatible chat/completions endpoint. baseURL includes the
// version prefix, e.g. https://api.openai.com/v1.
func New(baseURL, apiKey, model string, opts ...httpjson.Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]httpjson.Option{httpjson.WithHeader("Authorization", "Bearer "+apiKey)}, opts...)
	return &Client{
		http:  httpjson.New("openai", baseURL, opts...),
		model: model,
	}
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":           c.model,
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.http.PostJSON(ctx, "/chat/completions", body, &response, "chat_completion"); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("no choices in openai response")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
