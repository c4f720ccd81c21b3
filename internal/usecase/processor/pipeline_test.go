package processor

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/avito-tech/gravure/internal/codec"
	"github.com/avito-tech/gravure/internal/config"
	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/uploader"
	"github.com/avito-tech/gravure/internal/usecase/processor/operations"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopQueue struct{}

func (nopQueue) Enqueue(uploader.Request) error { return nil }

func deps() operations.Deps {
	return operations.Deps{Codec: codec.New(0), Uploader: nopQueue{}}
}

func scope() operations.Scope {
	return operations.Scope{JobID: "job", ImageID: 12345, Logger: zerolog.Nop()}
}

func TestCompile(t *testing.T) {
	p, err := Compile("small", [][]string{
		{"resize", "60", "60"},
		{"save", "/out/{{node_id}}/{{image_id}}.{{ext}}"},
		{"upload", "http://cdn/{{image_id}}.{{ext}}"},
	}, deps())
	require.NoError(t, err)

	assert.Equal(t, "small", p.Name())
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []operations.Kind{operations.KindResize, operations.KindSave, operations.KindUpload}, p.Kinds())
	assert.Contains(t, p.String(), "resize(60x60) -> save(")
}

func TestCompileReportsFailingIndex(t *testing.T) {
	tests := []struct {
		name      string
		raw       [][]string
		wantIndex int
		wantErr   error
	}{
		{
			name:      "unknown action",
			raw:       [][]string{{"resize", "1", "1"}, {"rotate", "90"}},
			wantIndex: 1,
			wantErr:   domain.ErrBadParameter,
		},
		{
			name:      "non numeric resize",
			raw:       [][]string{{"resize", "wide", "1"}},
			wantIndex: 0,
			wantErr:   domain.ErrBadParameter,
		},
		{
			name:      "bad template",
			raw:       [][]string{{"resize", "1", "1"}, {"save", "/x"}, {"save", "{{nope}}"}},
			wantIndex: 2,
			wantErr:   domain.ErrTemplateCompile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("task", tt.raw, deps())

			var cie *domain.ConfigInitError
			require.True(t, errors.As(err, &cie))
			assert.Equal(t, tt.wantIndex, cie.Index)
			assert.Equal(t, "task", cie.Task)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunStopsAtFailingStep(t *testing.T) {
	root := t.TempDir()

	p, err := Compile("t", [][]string{
		{"resize", "10", "10"},
		{"save", filepath.Join(root, "missing", "{{image_id}}.{{ext}}")},
		{"save", filepath.Join(root, "{{image_id}}.{{ext}}")},
	}, deps())
	require.NoError(t, err)

	img := domain.ImageData{Image: image.NewNRGBA(image.Rect(0, 0, 40, 40)), Format: domain.FormatPNG, ID: 12345}

	_, step, err := p.Run(context.Background(), scope(), img)
	require.ErrorIs(t, err, domain.ErrIO)
	assert.Equal(t, 1, step)

	_, statErr := os.Stat(filepath.Join(root, "12345.png"))
	assert.True(t, os.IsNotExist(statErr), "step after the failure must not run")
}

func TestRunSuccess(t *testing.T) {
	p, err := Compile("t", [][]string{{"resize", "8", "4"}, {"resize", "2", "3"}}, deps())
	require.NoError(t, err)

	img := domain.ImageData{Image: image.NewNRGBA(image.Rect(0, 0, 40, 40)), Format: domain.FormatJPEG, ID: 1}
	out, step, err := p.Run(context.Background(), scope(), img)
	require.NoError(t, err)
	assert.Equal(t, -1, step)
	assert.Equal(t, 2, out.Width())
	assert.Equal(t, 3, out.Height())
	assert.Equal(t, domain.FormatJPEG, out.Format)
}

func TestCompilePresets(t *testing.T) {
	presets := config.Presets{
		"avatar": {Name: "avatar", Tasks: []config.Task{
			{Name: "small", Actions: [][]string{{"resize", "60", "60"}}, URLTemplate: "http://cdn/{{node_id}}/{{image_id}}.{{ext}}"},
			{Name: "big", Actions: [][]string{{"resize", "600", "600"}}},
		}},
		"cover": {Name: "cover", Tasks: []config.Task{
			{Name: "wide", Actions: [][]string{{"resize", "1200", "400"}}},
		}},
	}

	reg, err := CompilePresets(presets, deps())
	require.NoError(t, err)
	assert.Equal(t, []string{"avatar", "cover"}, reg.Names())

	avatar, err := reg.Preset("avatar")
	require.NoError(t, err)
	require.Len(t, avatar.Tasks, 2)
	require.NotNil(t, avatar.Tasks[0].URL)
	assert.Nil(t, avatar.Tasks[1].URL)

	url, err := avatar.Tasks[0].URL.Render(12345, "jpg")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/12/12345.jpg", url)

	_, err = reg.Preset("missing")
	require.ErrorIs(t, err, ErrUnknownPreset)
}

func TestCompilePresetsFailsFast(t *testing.T) {
	presets := config.Presets{
		"avatar": {Tasks: []config.Task{
			{Name: "small", Actions: [][]string{{"resize", "60", "x"}}},
		}},
	}

	_, err := CompilePresets(presets, deps())

	var cie *domain.ConfigInitError
	require.True(t, errors.As(err, &cie))
	assert.Equal(t, "avatar", cie.Preset)
	assert.Equal(t, "small", cie.Task)
	assert.Equal(t, 0, cie.Index)
}
