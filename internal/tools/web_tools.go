package tools

import (
	"context"

	"github.com/dallenpyrah/OpenCode/internal/fetch"
)

// WebSearchTool fetches a URL and returns its readable content.
type WebSearchTool struct {
	fetcher *fetch.Fetcher
}

func (t *WebSearchTool) Name() string { return "WebSearchTool" }

func (t *WebSearchTool) Description() string {
	return `Fetches the contents of a URL. Args: {"url": string}`
}

func (t *WebSearchTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
		"required": []string{"url"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	url, _ := args["url"].(string)

	page, err := t.fetcher.Fetch(ctx, url, 0)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	result := map[string]any{
		"status":  page.StatusCode,
		"content": page.Content,
	}
	if page.Title != "" {
		result["title"] = page.Title
	}
	if page.Truncated {
		result["truncated"] = true
	}
	return result, nil
}
