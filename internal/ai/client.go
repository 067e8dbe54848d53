// Package ai wraps the Gemini API for receipt extraction and monthly
// spending insights. Both features are best-effort: callers always get a
// usable result, falling back to documented defaults when the model is
// unreachable or returns garbage.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"fintrack/internal/retry"
)

const (
	DefaultModelName = "gemini-2.0-flash"

	// Hard ceiling on any single model call.
	requestTimeout = 30 * time.Second
)

type Client struct {
	genai *genai.Client
	model string
	retry retry.Policy
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if model == "" {
		model = DefaultModelName
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		genai: gc,
		model: model,
		retry: retry.DefaultPolicy(),
	}, nil
}

// generate runs one model call under the request timeout and returns the
// response text.
func (c *Client) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var text string
	err := retry.Do(ctx, c.retry, func() error {
		resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		text = resp.Text()
		if text == "" {
			return retry.Permanent(fmt.Errorf("empty response from model"))
		}
		return nil
	})
	return text, err
}

// extractJSONObject pulls the first balanced JSON object out of a model
// response, tolerating Markdown fences and surrounding prose.
func extractJSONObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
