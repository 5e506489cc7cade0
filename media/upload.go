package media

import "fmt"

// DefaultMaxUploadMB is used when no limit is configured.
const DefaultMaxUploadMB = 25

var uploadAllowed = map[Container]bool{
	ContainerWebM: true,
	ContainerOgg:  true,
	ContainerMP3:  true,
	ContainerWAV:  true,
	ContainerMP4:  true,
}

// CheckUpload validates an uploaded file before any decoding or network
// call and wraps it as an artifact.
func CheckUpload(name, mimeType string, data []byte, maxMB int) (Artifact, error) {
	if maxMB <= 0 {
		maxMB = DefaultMaxUploadMB
	}
	c := Detect(name, mimeType)
	if !uploadAllowed[c] {
		return Artifact{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, mimeType)
	}
	if len(data) == 0 {
		return Artifact{}, ErrEmpty
	}
	if limit := maxMB * 1024 * 1024; len(data) > limit {
		return Artifact{}, fmt.Errorf("%w: %.1f MB exceeds %d MB", ErrTooLarge, float64(len(data))/(1024*1024), maxMB)
	}
	mt := mimeType
	if mt == "" {
		mt = c.MIME()
	}
	return Artifact{Data: data, MIME: mt, Container: c, Name: name}, nil
}
