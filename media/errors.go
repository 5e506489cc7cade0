package media

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported audio type")
	ErrTooLarge        = errors.New("audio file too large")
	ErrEmpty           = errors.New("audio file is empty")
	ErrProbe           = errors.New("could not determine audio duration")
)
