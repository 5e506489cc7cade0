package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"traductor/lang"
)

// LanguageFilter narrows the language list. Empty fields are not sent.
type LanguageFilter struct {
	Code    string
	Script  string
	Dialect string
}

func (c *Client) Languages(ctx context.Context, f LanguageFilter) ([]lang.Language, error) {
	q := url.Values{}
	if f.Code != "" {
		q.Set("code", f.Code)
	}
	if f.Script != "" {
		q.Set("script", f.Script)
	}
	if f.Dialect != "" {
		q.Set("dialect", f.Dialect)
	}
	resp, err := c.send(ctx, "languages", http.MethodGet, "languages/", q, nil, "")
	if err != nil {
		return nil, err
	}
	var out []lang.Language
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("languages: response parse error: %w", err)
	}
	return out, nil
}
