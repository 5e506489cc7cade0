package audio

import "strings"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16

	WAVHeaderSize = 44
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives little-endian PCM16 samples. data is only valid for
// the duration of the call.
type DataCallback func(data []byte, frameCount uint32)

// Constraints are the processing hints requested when the microphone is
// acquired. Backends apply what they can and ignore the rest.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints requests every processing stage.
func DefaultConstraints() Constraints {
	return Constraints{EchoCancellation: true, NoiseSuppression: true, AutoGainControl: true}
}

type CaptureConfig struct {
	SampleRate  uint32
	Channels    uint32
	Constraints Constraints
}

// DefaultCaptureConfig is mono 16 kHz with all constraints enabled.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:  SampleRate,
		Channels:    Channels,
		Constraints: DefaultConstraints(),
	}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	NewPlayer() (Player, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Player renders mono float32 waveforms.
type Player interface {
	Play(samples []float32, sampleRate int) error
	Close()
}
