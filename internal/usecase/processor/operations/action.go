package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/avito-tech/gravure/internal/domain"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindResize Kind = "resize"
	KindSave   Kind = "save"
	KindUpload Kind = "upload"
)

var ErrMissingDependency = errors.New("missing action dependency")

// Action is one step of a pipeline. The set of implementations is closed:
// Resize, Save and Upload.
type Action interface {
	Kind() Kind
	Run(ctx context.Context, scope Scope, img domain.ImageData) (domain.ImageData, error)
	String() string
	sealed()
}

// Scope identifies the job an action runs for. It is only used for
// diagnostics.
type Scope struct {
	JobID   string
	ImageID uint64
	Client  string
	Logger  zerolog.Logger
}

type Deps struct {
	Codec    imageCodec
	Uploader uploadQueue
}

// Build constructs an action from its raw configuration form, e.g.
// ["resize", "60", "60"] or ["save", "/out/{{node_id}}/{{image_id}}.{{ext}}"].
func Build(params []string, deps Deps) (Action, error) {
	if len(params) == 0 {
		return nil, domain.NewActionError(domain.KindBadParameter, "", errors.New("empty action"))
	}

	if deps.Codec == nil {
		return nil, fmt.Errorf("%w: codec", ErrMissingDependency)
	}

	switch Kind(params[0]) {
	case KindResize:
		return newResize(params[1:], deps.Codec)
	case KindSave:
		return newSave(params[1:], deps.Codec)
	case KindUpload:
		if deps.Uploader == nil {
			return nil, fmt.Errorf("%w: uploader", ErrMissingDependency)
		}
		return newUpload(params[1:], deps.Codec, deps.Uploader)
	default:
		return nil, domain.NewActionError(domain.KindBadParameter, params[0], fmt.Errorf("unknown action %q", params[0]))
	}
}

func argAt(args []string, i int, name string, kind Kind) (string, error) {
	if i >= len(args) {
		return "", domain.NewActionError(domain.KindBadParameter, string(kind), fmt.Errorf("%s is required", name))
	}
	return args[i], nil
}
