package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBadParameter      = errors.New("bad action parameter")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTemplateCompile   = errors.New("template compile failed")
	ErrTemplateRender    = errors.New("template render failed")
	ErrIO                = errors.New("io failure")
	ErrEncode            = errors.New("encode failure")
	ErrNetwork           = errors.New("network failure")
	ErrDecode            = errors.New("decode failure")

	ErrQueueClosed  = errors.New("job queue is closed")
	ErrJobCancelled = errors.New("job cancelled before start")
	ErrPanic        = errors.New("panic during job")
	ErrNoCompletion = errors.New("job has no completion")
)

type ActionErrorKind string

const (
	KindBadParameter      ActionErrorKind = "bad_parameter"
	KindUnsupportedFormat ActionErrorKind = "unsupported_format"
	KindTemplateCompile   ActionErrorKind = "template_compile"
	KindTemplateRender    ActionErrorKind = "template_render"
	KindIOFailure         ActionErrorKind = "io_failure"
	KindEncodeFailure     ActionErrorKind = "encode_failure"
	KindNetworkFailure    ActionErrorKind = "network_failure"
)

func (k ActionErrorKind) sentinel() error {
	switch k {
	case KindBadParameter:
		return ErrBadParameter
	case KindUnsupportedFormat:
		return ErrUnsupportedFormat
	case KindTemplateCompile:
		return ErrTemplateCompile
	case KindTemplateRender:
		return ErrTemplateRender
	case KindIOFailure:
		return ErrIO
	case KindEncodeFailure:
		return ErrEncode
	case KindNetworkFailure:
		return ErrNetwork
	default:
		return nil
	}
}

// ActionError is returned by action construction and execution. It matches
// both the sentinel of its Kind and its cause with errors.Is.
type ActionError struct {
	Kind   ActionErrorKind
	Action string
	Err    error
}

func NewActionError(kind ActionErrorKind, action string, err error) *ActionError {
	return &ActionError{Kind: kind, Action: action, Err: err}
}

func (e *ActionError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Action, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ConfigInitError reports the first action of a task that failed to build.
type ConfigInitError struct {
	Preset string
	Task   string
	Index  int
	Err    error
}

func (e *ConfigInitError) Error() string {
	if e.Preset != "" {
		return fmt.Sprintf("preset %q task %q action #%d: %v", e.Preset, e.Task, e.Index, e.Err)
	}
	return fmt.Sprintf("task %q action #%d: %v", e.Task, e.Index, e.Err)
}

func (e *ConfigInitError) Unwrap() error {
	return e.Err
}

type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// JobError carries the diagnostic identity of the job whose pipeline failed.
type JobError struct {
	JobID   string
	ImageID uint64
	Client  string
	Step    int
	Err     error
}

func (e *JobError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("job %s (image %d): %v", e.JobID, e.ImageID, e.Err)
	}
	return fmt.Sprintf("job %s (image %d) step %d: %v", e.JobID, e.ImageID, e.Step, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
