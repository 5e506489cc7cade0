// Package media turns captured or uploaded audio into artifacts that can be
// sent for transcription: container encoding, duration probing, truncation
// and upload validation.
package media

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Container identifies the audio container of an artifact.
type Container string

const (
	ContainerWAV  Container = "wav"
	ContainerFLAC Container = "flac"
	ContainerWebM Container = "webm"
	ContainerOgg  Container = "ogg"
	ContainerMP3  Container = "mp3"
	ContainerMP4  Container = "mp4"
)

// MaxDuration caps every recorded or uploaded artifact.
const MaxDuration = 30 * time.Second

// Artifact is a finalized recording. Operations that change it return a
// new value.
type Artifact struct {
	Data      []byte
	MIME      string
	Container Container
	Name      string
	Duration  time.Duration
	Truncated bool
}

// Size returns the payload size in bytes.
func (a Artifact) Size() int { return len(a.Data) }

// Ext returns the filename extension used when uploading.
func (c Container) Ext() string {
	switch c {
	case ContainerMP4:
		return "m4a"
	case "":
		return "bin"
	default:
		return string(c)
	}
}

// MIME returns the canonical media type.
func (c Container) MIME() string {
	switch c {
	case ContainerWAV:
		return "audio/wav"
	case ContainerFLAC:
		return "audio/flac"
	case ContainerWebM:
		return "audio/webm"
	case ContainerOgg:
		return "audio/ogg"
	case ContainerMP3:
		return "audio/mpeg"
	case ContainerMP4:
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

var mimeContainers = map[string]Container{
	"audio/wav":       ContainerWAV,
	"audio/x-wav":     ContainerWAV,
	"audio/wave":      ContainerWAV,
	"audio/vnd.wave":  ContainerWAV,
	"audio/flac":      ContainerFLAC,
	"audio/x-flac":    ContainerFLAC,
	"audio/webm":      ContainerWebM,
	"video/webm":      ContainerWebM,
	"audio/ogg":       ContainerOgg,
	"application/ogg": ContainerOgg,
	"audio/mpeg":      ContainerMP3,
	"audio/mp3":       ContainerMP3,
	"audio/mp4":       ContainerMP4,
	"audio/x-m4a":     ContainerMP4,
	"audio/m4a":       ContainerMP4,
	"video/mp4":       ContainerMP4,
}

var extContainers = map[string]Container{
	".wav":  ContainerWAV,
	".flac": ContainerFLAC,
	".webm": ContainerWebM,
	".ogg":  ContainerOgg,
	".oga":  ContainerOgg,
	".opus": ContainerOgg,
	".mp3":  ContainerMP3,
	".mpeg": ContainerMP3,
	".mp4":  ContainerMP4,
	".m4a":  ContainerMP4,
}

// Detect resolves the container from a media type, falling back to the
// filename extension. Parameters such as ";codecs=opus" are ignored. A
// declared type that is neither audio, video nor octet-stream resolves to
// nothing, whatever the extension says.
func Detect(name, mimeType string) Container {
	if mimeType != "" {
		mt, _, err := mime.ParseMediaType(mimeType)
		if err != nil {
			mt = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
		}
		if c, ok := mimeContainers[mt]; ok {
			return c
		}
		if !extensionTrusted(mt) {
			return ""
		}
	}
	if c, ok := extContainers[strings.ToLower(filepath.Ext(name))]; ok {
		return c
	}
	return ""
}

// extensionTrusted reports whether an unrecognised media type is vague
// enough for the filename extension to decide.
func extensionTrusted(mt string) bool {
	major, _, _ := strings.Cut(mt, "/")
	return major == "audio" || major == "video" || mt == "application/octet-stream"
}
