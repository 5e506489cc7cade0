package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdir runs the test from an empty directory so no stray config.yml or
// .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Variant != "rap" || cfg.MaxAudioMB != 25 || !cfg.AutofillTranscript {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.APITimeout != time.Minute {
		t.Errorf("APITimeout = %v", cfg.APITimeout)
	}
	caps := cfg.Capabilities()
	if !caps.SupportsTranscription("rap_Latn") || !caps.SupportsSpeech("rap_Latn") {
		t.Errorf("caps = %+v", caps)
	}
}

func TestLoadEnv(t *testing.T) {
	chdir(t)
	t.Setenv("TRADUCTOR_VARIANT", "arn")
	t.Setenv("TRADUCTOR_MAX_AUDIO_MB", "10")
	t.Setenv("TRADUCTOR_TOKEN", "abc")
	t.Setenv("TRADUCTOR_ASR_REQUIRES_AUTH", "true")
	t.Setenv("TRADUCTOR_TRANSCRIPTION_LANGS", "arn, rap")
	t.Setenv("TRADUCTOR_AUTOFILL_TRANSCRIPT", "false")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Variant != "arn" || cfg.MaxAudioMB != 10 || cfg.Token != "abc" || !cfg.ASRRequiresAuth || cfg.AutofillTranscript {
		t.Errorf("cfg = %+v", cfg)
	}
	caps := cfg.Capabilities()
	if !caps.SupportsTranscription("arn_a0_h") || !caps.SupportsTranscription("rap_Latn") {
		t.Errorf("transcription langs = %v", caps.Transcription)
	}
	if caps.SpeechEnabled() {
		t.Errorf("speech should stay off for arn, got %v", caps.Speech)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := chdir(t)
	yml := "api_url: https://example.org/api/\ncontainer: flac\nmax_words: 200\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TRADUCTOR_MAX_WORDS=50\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TRADUCTOR_MAX_WORDS") })

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://example.org/api/" || cfg.Container != "flac" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxWords != 50 {
		t.Errorf("MaxWords = %d, env should override file", cfg.MaxWords)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"bad variant", map[string]string{"TRADUCTOR_VARIANT": "eng"}, "Variant"},
		{"bad container", map[string]string{"TRADUCTOR_CONTAINER": "mp3"}, "Container"},
		{"bad url", map[string]string{"TRADUCTOR_API_URL": "not a url"}, "APIURL"},
		{"zero audio limit", map[string]string{"TRADUCTOR_MAX_AUDIO_MB": "0"}, "MaxAudioMB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}
