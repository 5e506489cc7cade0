package api

import (
	"context"
	"net/http"

	"traductor/lang"
)

type TranslateRequest struct {
	SrcText string        `json:"src_text"`
	SrcLang lang.Language `json:"src_lang"`
	DstLang lang.Language `json:"dst_lang"`
}

// Model identifies the model that produced a result.
type Model struct {
	Name    string `json:"model_name"`
	Version string `json:"model_version"`
}

type Translation struct {
	DstText string `json:"dst_text"`
	Model
	Metrics *NetworkMetrics `json:"-"`
}

func (c *Client) Translate(ctx context.Context, req TranslateRequest) (*Translation, error) {
	var out Translation
	resp, err := c.doJSON(ctx, "translate", http.MethodPost, "translate/", req, &out)
	if err != nil {
		return nil, err
	}
	out.Metrics = resp.Metrics
	return &out, nil
}
