package domain

import (
	"fmt"
	"image"
	"strings"
)

// ImageData is the value threaded through a pipeline. It is owned by exactly
// one worker at a time.
type ImageData struct {
	Image  image.Image
	Format Format
	ID     uint64
}

func (d ImageData) Width() int {
	if d.Image == nil {
		return 0
	}
	return d.Image.Bounds().Dx()
}

func (d ImageData) Height() int {
	if d.Image == nil {
		return 0
	}
	return d.Image.Bounds().Dy()
}

type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatBMP     Format = "bmp"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// ParseFormat maps a decoder name ("jpeg", "png", ...) or a file extension to
// a Format.
func ParseFormat(name string) Format {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "jpeg", "jpg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "bmp":
		return FormatBMP
	case "webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// Ext returns the file extension a saved image of this format gets.
// Only JPEG and PNG can be written.
func (f Format) Ext() (string, error) {
	switch f {
	case FormatJPEG:
		return ExtJPG, nil
	case FormatPNG:
		return ExtPNG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

const (
	ExtJPG = "jpg"
	ExtPNG = "png"
)

// Filter selects the resampling kernel used by resize.
type Filter string

const (
	FilterGaussian        Filter = "gaussian"
	FilterLanczos         Filter = "lanczos"
	FilterLinear          Filter = "linear"
	FilterNearestNeighbor Filter = "nearest"
)

const (
	DefaultMaxUploadSize = 32 << 20
	DefaultJPEGQuality   = 85
)
