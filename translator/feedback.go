package translator

import (
	"context"
	"strings"

	"traductor/api"
)

func (t *Translator) feedback() (State, error) {
	st := t.State()
	if st.DstText == "" || st.Loading {
		return st, ErrNothingToDo
	}
	return st, nil
}

// Accept rates the current translation as correct.
func (t *Translator) Accept(ctx context.Context) error {
	st, err := t.feedback()
	if err != nil {
		return err
	}
	if _, err := t.client.AcceptTranslation(ctx, feedbackOf(st)); err != nil {
		t.reportError(err, CodeFailed, "Could not send the feedback")
		return err
	}
	t.notice(CodeSent, "Feedback sent, thank you")
	return nil
}

// Reject rates the current translation as wrong and proposes suggestion in
// its place. uncertain flags a correction the user is unsure about.
func (t *Translator) Reject(ctx context.Context, suggestion string, uncertain bool) error {
	st, err := t.feedback()
	if err != nil {
		return err
	}
	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" {
		suggestion = st.DstText
	}
	if _, err := t.client.RejectTranslation(ctx, feedbackOf(st), suggestion, uncertain); err != nil {
		t.reportError(err, CodeFailed, "Could not send the suggestion")
		return err
	}
	t.notice(CodeSent, "Suggestion sent, thank you")
	return nil
}

// Suggest sends a general comment about the service.
func (t *Translator) Suggest(ctx context.Context, comment string) error {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return ErrNothingToDo
	}
	st := t.State()
	err := t.client.AddSuggestion(ctx, generalSuggestion(st, comment))
	if err != nil {
		t.reportError(err, CodeFailed, "Could not send the comment")
		return err
	}
	t.notice(CodeSent, "Comment sent, thank you")
	return nil
}

func feedbackOf(st State) api.Feedback {
	return api.Feedback{
		SrcText: st.SrcText,
		DstText: st.DstText,
		SrcLang: st.SrcLang,
		DstLang: st.DstLang,
		Model:   st.Model,
	}
}

func generalSuggestion(st State, comment string) api.GeneralSuggestion {
	return api.GeneralSuggestion{Comment: comment, SrcLang: st.SrcLang.Code, DstLang: st.DstLang.Code}
}
