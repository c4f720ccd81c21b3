package job

import "errors"

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
)
