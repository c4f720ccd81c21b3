package codec

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/avito-tech/gravure/internal/domain"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const sniffLen = 512

var ErrEmptyImage = errors.New("empty image")

type Codec struct {
	jpegQuality int
}

func New(jpegQuality int) *Codec {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = domain.DefaultJPEGQuality
	}
	return &Codec{jpegQuality: jpegQuality}
}

// Decode reads the file at path, detects its format from the content and
// applies EXIF orientation.
func (c *Codec) Decode(path string) (image.Image, domain.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.FormatUnknown, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	return c.DecodeReader(f)
}

func (c *Codec) DecodeReader(r io.Reader) (image.Image, domain.Format, error) {
	br := bufio.NewReader(r)

	header, _ := br.Peek(sniffLen)
	format := detectFormat(header)

	img, err := imaging.Decode(br, imaging.AutoOrientation(true))
	if err != nil {
		return nil, format, err
	}
	if img.Bounds().Empty() {
		return nil, format, ErrEmptyImage
	}

	return img, format, nil
}

func (c *Codec) Encode(w io.Writer, img image.Image, format domain.Format) error {
	switch format {
	case domain.FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(c.jpegQuality))
	case domain.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
}

// Resize scales img to exactly width x height, ignoring the aspect ratio.
func (c *Codec) Resize(img image.Image, width, height int, filter domain.Filter) image.Image {
	return imaging.Resize(img, width, height, resampleFilter(filter))
}

func resampleFilter(f domain.Filter) imaging.ResampleFilter {
	switch f {
	case domain.FilterLanczos:
		return imaging.Lanczos
	case domain.FilterLinear:
		return imaging.Linear
	case domain.FilterNearestNeighbor:
		return imaging.NearestNeighbor
	default:
		return imaging.Gaussian
	}
}

// detectFormat maps the content type of header to a Format. Anything that is
// not one of the decodable image types is FormatUnknown.
func detectFormat(header []byte) domain.Format {
	if len(header) == 0 {
		return domain.FormatUnknown
	}
	mime := mimetype.Detect(header)
	if !strings.HasPrefix(mime.String(), "image/") {
		return domain.FormatUnknown
	}
	return domain.ParseFormat(mime.Extension())
}
