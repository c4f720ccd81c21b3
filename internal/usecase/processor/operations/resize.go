package operations

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/avito-tech/gravure/internal/domain"
)

type Resize struct {
	Width  uint32
	Height uint32
	Filter domain.Filter

	codec imageCodec
}

func newResize(args []string, codec imageCodec) (*Resize, error) {
	width, err := parseDimension(args, 0, "width")
	if err != nil {
		return nil, err
	}

	height, err := parseDimension(args, 1, "height")
	if err != nil {
		return nil, err
	}

	filter := domain.FilterGaussian
	if len(args) > 2 {
		switch f := domain.Filter(args[2]); f {
		case domain.FilterGaussian, domain.FilterLanczos, domain.FilterLinear, domain.FilterNearestNeighbor:
			filter = f
		default:
			return nil, domain.NewActionError(domain.KindBadParameter, string(KindResize), fmt.Errorf("unknown filter %q", args[2]))
		}
	}

	return &Resize{
		Width:  width,
		Height: height,
		Filter: filter,
		codec:  codec,
	}, nil
}

func parseDimension(args []string, i int, name string) (uint32, error) {
	raw, err := argAt(args, i, name, KindResize)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, domain.NewActionError(domain.KindBadParameter, string(KindResize), fmt.Errorf("%s %q: %w", name, raw, err))
	}
	if v == 0 {
		return 0, domain.NewActionError(domain.KindBadParameter, string(KindResize), errors.New(name+" must be positive"))
	}

	return uint32(v), nil
}

func (r *Resize) Kind() Kind { return KindResize }

func (r *Resize) String() string {
	return fmt.Sprintf("resize(%dx%d)", r.Width, r.Height)
}

func (r *Resize) Run(_ context.Context, _ Scope, img domain.ImageData) (domain.ImageData, error) {
	return domain.ImageData{
		Image:  r.codec.Resize(img.Image, int(r.Width), int(r.Height), r.Filter),
		Format: img.Format,
		ID:     img.ID,
	}, nil
}

func (r *Resize) sealed() {}
