package image

import "errors"

var (
	ErrInvalidImageID = errors.New("invalid image id")
	ErrBodyTooLarge   = errors.New("body too large")
)
