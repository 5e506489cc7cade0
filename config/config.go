// Package config loads traductor settings from config.yml, .env and
// TRADUCTOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"traductor/lang"
	"traductor/media"
)

// EnvPrefix is prepended to every environment key, e.g. TRADUCTOR_API_URL.
const EnvPrefix = "TRADUCTOR"

type Config struct {
	APIURL     string        `mapstructure:"api_url" validate:"required,url"`
	Token      string        `mapstructure:"token"`
	APITimeout time.Duration `mapstructure:"api_timeout" validate:"gt=0"`
	Variant    string        `mapstructure:"variant" validate:"oneof=rap arn"`

	MaxWords           int  `mapstructure:"max_words" validate:"gte=0"`
	MaxAudioMB         int  `mapstructure:"max_audio_mb" validate:"gt=0"`
	AutofillTranscript bool `mapstructure:"autofill_transcript"`

	TranslationRequiresAuth bool `mapstructure:"translation_requires_auth"`
	TTSRequiresAuth         bool `mapstructure:"tts_requires_auth"`
	ASRRequiresAuth         bool `mapstructure:"asr_requires_auth"`

	// Language prefixes with speech features. Empty means the variant
	// default.
	SpeechLangs        []string `mapstructure:"speech_langs"`
	TranscriptionLangs []string `mapstructure:"transcription_langs"`

	Container       string `mapstructure:"container" validate:"oneof=wav flac"`
	ASRModel        string `mapstructure:"asr_model" validate:"required"`
	ASRModelVersion string `mapstructure:"asr_model_version" validate:"required"`
	TTSModel        string `mapstructure:"tts_model" validate:"required"`
	TTSModelVersion string `mapstructure:"tts_model_version" validate:"required"`

	FFmpeg  string `mapstructure:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe"`
}

var defaults = map[string]any{
	"api_url":             "http://localhost:8000/api/",
	"api_timeout":         "60s",
	"variant":             string(lang.VariantRapaNui),
	"max_words":           0,
	"max_audio_mb":        media.DefaultMaxUploadMB,
	"autofill_transcript": true,
	"container":           string(media.ContainerWAV),
	"asr_model":           "mms_meta_asr",
	"asr_model_version":   "v1",
	"tts_model":           "mms_meta",
	"tts_model_version":   "v1",
	"ffmpeg":              "ffmpeg",
	"ffprobe":             "ffprobe",
}

var unsetKeys = []string{
	"token",
	"translation_requires_auth",
	"tts_requires_auth",
	"asr_requires_auth",
	"speech_langs",
	"transcription_langs",
}

type Options struct {
	// ConfigFile is read if set; otherwise ./config.yml is used when present.
	ConfigFile string
	// EnvFile is loaded if set; otherwise ./.env is used when present.
	EnvFile string
}

func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" && exists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range unsetKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	configFile := opts.ConfigFile
	if configFile == "" && exists("config.yml") {
		configFile = "config.yml"
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SpeechLangs = normalize(cfg.SpeechLangs)
	cfg.TranscriptionLangs = normalize(cfg.TranscriptionLangs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", e.Field(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func (c *Config) LangVariant() lang.Variant { return lang.Variant(c.Variant) }

// Capabilities resolves which languages get speech features.
func (c *Config) Capabilities() lang.Capabilities {
	caps := lang.DefaultCapabilities(c.LangVariant())
	if len(c.SpeechLangs) > 0 {
		caps.Speech = c.SpeechLangs
	}
	if len(c.TranscriptionLangs) > 0 {
		caps.Transcription = c.TranscriptionLangs
	}
	return caps
}

func (c *Config) MediaContainer() media.Container { return media.Container(c.Container) }

func (c *Config) Tools() media.Tools {
	return media.Tools{FFmpeg: c.FFmpeg, FFprobe: c.FFprobe}
}

func normalize(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
