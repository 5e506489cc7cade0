package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

const (
	DefaultASRModel        = "mms_meta_asr"
	DefaultASRModelVersion = "v1"
	DefaultTTSModel        = "mms_meta"
	DefaultTTSModelVersion = "v1"

	// TTSSampleRate is the rate of every waveform returned by the service.
	TTSSampleRate = 16000
)

type SpeechRequest struct {
	Audio        []byte
	Filename     string
	MIME         string
	Language     string
	ModelName    string
	ModelVersion string
}

type SpeechResult struct {
	// ID is the transcription record, if the server stored one.
	ID          *int64 `json:"id"`
	Text        string `json:"text"`
	Language    string `json:"language"`
	AudioFormat string `json:"audio_format"`
	Model
	Metrics *NetworkMetrics `json:"-"`
}

// SpeechToText uploads audio as multipart form data and returns the
// transcript.
func (c *Client) SpeechToText(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	if req.ModelName == "" {
		req.ModelName = DefaultASRModel
	}
	if req.ModelVersion == "" {
		req.ModelVersion = DefaultASRModelVersion
	}
	if req.Filename == "" {
		req.Filename = "audio.webm"
	}

	var body bytes.Buffer
	contentType, err := writeSpeechForm(&body, req)
	if err != nil {
		return nil, fmt.Errorf("speech-to-text: building form: %w", err)
	}

	resp, err := c.send(ctx, "speech-to-text", http.MethodPost, "speech-to-text/", nil, &body, contentType)
	if err != nil {
		return nil, err
	}
	var out SpeechResult
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("speech-to-text: response parse error: %w", err)
	}
	out.Text = strings.TrimSpace(out.Text)
	out.Metrics = resp.Metrics
	return &out, nil
}

// writeSpeechForm encodes req as multipart form data into w and returns the
// form's content type.
func writeSpeechForm(w io.Writer, req SpeechRequest) (string, error) {
	writer := multipart.NewWriter(w)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, escapeQuotes(req.Filename)))
	if req.MIME != "" {
		h.Set("Content-Type", req.MIME)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	part, err := writer.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", err
	}
	fields := []struct{ name, value string }{
		{"language", req.Language},
		{"model_name", req.ModelName},
		{"model_version", req.ModelVersion},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return "", fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return writer.FormDataContentType(), nil
}

// ValidateTranscription stores the reviewed text against a transcription
// record.
func (c *Client) ValidateTranscription(ctx context.Context, id int64, text string) error {
	path := "speech-to-text/" + strconv.FormatInt(id, 10) + "/validate_transcription/"
	_, err := c.doJSON(ctx, "validate-transcription", http.MethodPatch, path, map[string]string{"text": text}, nil)
	return err
}

type TTSRequest struct {
	Text         string `json:"text"`
	Language     string `json:"language"`
	ModelName    string `json:"model_name"`
	ModelVersion string `json:"model_version"`
}

type Speech struct {
	ID       *int64    `json:"id"`
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Waveform []float32 `json:"waveform"`
	Model
}

// TextToSpeech returns a mono waveform at TTSSampleRate.
func (c *Client) TextToSpeech(ctx context.Context, req TTSRequest) (*Speech, error) {
	if req.ModelName == "" {
		req.ModelName = DefaultTTSModel
	}
	if req.ModelVersion == "" {
		req.ModelVersion = DefaultTTSModelVersion
	}
	var out Speech
	if _, err := c.doJSON(ctx, "text-to-speech", http.MethodPost, "text-to-speech/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
