package operations

import (
	"context"
	"fmt"
	"os"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/template"
)

// Save writes the image to a local path in its original format. Parent
// directories must already exist.
type Save struct {
	Path *template.PathTemplate

	codec imageCodec
}

func newSave(args []string, codec imageCodec) (*Save, error) {
	raw, err := argAt(args, 0, "path template", KindSave)
	if err != nil {
		return nil, err
	}

	path, err := template.Compile(raw)
	if err != nil {
		return nil, domain.NewActionError(domain.KindTemplateCompile, string(KindSave), err)
	}

	return &Save{Path: path, codec: codec}, nil
}

func (s *Save) Kind() Kind { return KindSave }

func (s *Save) String() string {
	return fmt.Sprintf("save(%s)", s.Path)
}

func (s *Save) Run(_ context.Context, scope Scope, img domain.ImageData) (domain.ImageData, error) {
	ext, err := img.Format.Ext()
	if err != nil {
		return img, domain.NewActionError(domain.KindUnsupportedFormat, string(KindSave), err)
	}

	path, err := s.Path.Render(img.ID, ext)
	if err != nil {
		return img, domain.NewActionError(domain.KindTemplateRender, string(KindSave), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return img, domain.NewActionError(domain.KindIOFailure, string(KindSave), err)
	}

	if err := s.codec.Encode(f, img.Image, img.Format); err != nil {
		f.Close()
		os.Remove(path)
		return img, domain.NewActionError(domain.KindEncodeFailure, string(KindSave), err)
	}

	if err := f.Close(); err != nil {
		return img, domain.NewActionError(domain.KindIOFailure, string(KindSave), err)
	}

	scope.Logger.Debug().Str("path", path).Str("format", string(img.Format)).Msg("Image saved")

	return img, nil
}

func (s *Save) sealed() {}
