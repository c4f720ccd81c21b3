// Package template renders output locations for processed images.
//
// A pattern may reference {{node_id}}, {{image_id}} and {{ext}}. node_id is
// the first two characters of the decimal image id and is used to shard
// output directories.
package template

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{{"
	endTag   = "}}"

	VarNodeID  = "node_id"
	VarImageID = "image_id"
	VarExt     = "ext"

	nodeIDLen = 2
)

var (
	ErrCompile            = errors.New("compile path template")
	ErrRender             = errors.New("render path template")
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	ErrUnsupportedExt     = errors.New("unsupported extension")
)

type PathTemplate struct {
	pattern string
	tpl     *fasttemplate.Template
}

func Compile(pattern string) (*PathTemplate, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrCompile)
	}

	tpl, err := fasttemplate.NewTemplate(pattern, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}

	_, err = tpl.ExecuteFuncStringWithErr(func(_ io.Writer, tag string) (int, error) {
		switch strings.TrimSpace(tag) {
		case VarNodeID, VarImageID, VarExt:
			return 0, nil
		default:
			return 0, fmt.Errorf("%w %q", ErrUnknownPlaceholder, tag)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	return &PathTemplate{pattern: pattern, tpl: tpl}, nil
}

func MustCompile(pattern string) *PathTemplate {
	t, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Render substitutes the placeholders. ext must be "png" or "jpg".
func (t *PathTemplate) Render(id uint64, ext string) (string, error) {
	if ext != "png" && ext != "jpg" {
		return "", fmt.Errorf("%w: %w %q", ErrRender, ErrUnsupportedExt, ext)
	}

	imageID := strconv.FormatUint(id, 10)
	nodeID := imageID
	if len(nodeID) > nodeIDLen {
		nodeID = nodeID[:nodeIDLen]
	}

	out, err := t.tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		switch strings.TrimSpace(tag) {
		case VarNodeID:
			return io.WriteString(w, nodeID)
		case VarImageID:
			return io.WriteString(w, imageID)
		case VarExt:
			return io.WriteString(w, ext)
		default:
			return 0, fmt.Errorf("%w %q", ErrUnknownPlaceholder, tag)
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}

	return out, nil
}

func (t *PathTemplate) String() string {
	return t.pattern
}
