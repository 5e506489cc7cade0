package api

import (
	"context"
	"net/http"
	"strconv"

	"traductor/lang"
)

// Feedback is a rated translation together with the model that made it.
type Feedback struct {
	SrcText string        `json:"src_text"`
	DstText string        `json:"dst_text"`
	SrcLang lang.Language `json:"src_lang"`
	DstLang lang.Language `json:"dst_lang"`
	Model
}

type rejection struct {
	Feedback
	Suggestion  string `json:"suggestion"`
	IsUncertain bool   `json:"is_uncertain"`
}

// Suggestion is a stored feedback record.
type Suggestion struct {
	ID         int64  `json:"id"`
	SrcText    string `json:"src_text"`
	DstText    string `json:"dst_text"`
	Suggestion string `json:"suggestion"`
	Feedback   *bool  `json:"feedback"`
	Validated  bool   `json:"validated"`
	Correct    *bool  `json:"correct"`
}

// AcceptTranslation records positive feedback.
func (c *Client) AcceptTranslation(ctx context.Context, f Feedback) (*Suggestion, error) {
	var out Suggestion
	if _, err := c.doJSON(ctx, "accept-translation", http.MethodPost, "suggestions/accept_translation/", f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RejectTranslation records negative feedback with the user's correction.
// uncertain marks a correction the user is not sure about.
func (c *Client) RejectTranslation(ctx context.Context, f Feedback, suggestion string, uncertain bool) (*Suggestion, error) {
	var out Suggestion
	body := rejection{Feedback: f, Suggestion: suggestion, IsUncertain: uncertain}
	if _, err := c.doJSON(ctx, "reject-translation", http.MethodPost, "suggestions/reject_translation/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type GeneralSuggestion struct {
	Comment string `json:"comment"`
	SrcLang string `json:"src_lang,omitempty"`
	DstLang string `json:"dst_lang,omitempty"`
}

// AddSuggestion sends a free-form comment about the service.
func (c *Client) AddSuggestion(ctx context.Context, s GeneralSuggestion) error {
	_, err := c.doJSON(ctx, "add-suggestion", http.MethodPost, "suggestions/add_suggestion/", s, nil)
	return err
}

// EditSuggestion updates a validated suggestion's texts.
func (c *Client) EditSuggestion(ctx context.Context, id int64, srcText, dstText string) (*Suggestion, error) {
	var out Suggestion
	body := map[string]string{"src_text": srcText, "dst_text": dstText}
	if _, err := c.doJSON(ctx, "edit-suggestion", http.MethodPatch, suggestionPath(id, ""), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptSuggestion validates a pending suggestion, optionally rewritten.
func (c *Client) AcceptSuggestion(ctx context.Context, id int64, srcText, updated string) (*Suggestion, error) {
	var out Suggestion
	body := map[string]string{"src_text": srcText, "updated_suggestion": updated}
	if _, err := c.doJSON(ctx, "accept-suggestion", http.MethodPatch, suggestionPath(id, "accept_suggestion/"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RejectSuggestion marks a pending suggestion as incorrect.
func (c *Client) RejectSuggestion(ctx context.Context, id int64) (*Suggestion, error) {
	var out Suggestion
	if _, err := c.doJSON(ctx, "reject-suggestion", http.MethodPatch, suggestionPath(id, "reject_suggestion/"), map[string]any{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func suggestionPath(id int64, action string) string {
	return "suggestions/" + strconv.FormatInt(id, 10) + "/" + action
}
