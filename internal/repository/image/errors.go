package image

import "errors"

var ErrStorageError = errors.New("storage error")
