package image

import "errors"

var (
	ErrEmptyBody         = errors.New("empty image body")
	ErrProcessingFailed  = errors.New("image processing failed")
	ErrStorageError      = errors.New("storage error")
	ErrHistoryDisabled   = errors.New("job history is disabled")
	ErrJobNotFound       = errors.New("job not found")
	ErrPartiallyAccepted = errors.New("only part of the preset tasks were accepted")
)
