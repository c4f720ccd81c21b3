package operations

import (
	"image"
	"io"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/uploader"
)

type imageCodec interface {
	Encode(w io.Writer, img image.Image, format domain.Format) error
	Resize(img image.Image, width, height int, filter domain.Filter) image.Image
}

type uploadQueue interface {
	Enqueue(req uploader.Request) error
}
