package operations

import (
	"bytes"
	"context"
	"fmt"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/template"
	"github.com/avito-tech/gravure/internal/uploader"
)

// Upload encodes the image as JPEG and hands it to the upload queue. The job
// never waits for the network and never fails because of it.
type Upload struct {
	URL *template.PathTemplate

	codec imageCodec
	queue uploadQueue
}

func newUpload(args []string, codec imageCodec, queue uploadQueue) (*Upload, error) {
	raw, err := argAt(args, 0, "url template", KindUpload)
	if err != nil {
		return nil, err
	}

	url, err := template.Compile(raw)
	if err != nil {
		return nil, domain.NewActionError(domain.KindTemplateCompile, string(KindUpload), err)
	}

	return &Upload{URL: url, codec: codec, queue: queue}, nil
}

func (u *Upload) Kind() Kind { return KindUpload }

func (u *Upload) String() string {
	return fmt.Sprintf("upload(%s)", u.URL)
}

func (u *Upload) Run(_ context.Context, scope Scope, img domain.ImageData) (domain.ImageData, error) {
	url, err := u.URL.Render(img.ID, domain.ExtJPG)
	if err != nil {
		return img, domain.NewActionError(domain.KindTemplateRender, string(KindUpload), err)
	}

	var buf bytes.Buffer
	if err := u.codec.Encode(&buf, img.Image, domain.FormatJPEG); err != nil {
		return img, domain.NewActionError(domain.KindEncodeFailure, string(KindUpload), err)
	}

	req := uploader.Request{
		URL:         url,
		Body:        buf.Bytes(),
		ContentType: domain.FormatJPEG.ContentType(),
		JobID:       scope.JobID,
		ImageID:     img.ID,
		Client:      scope.Client,
	}

	if err := u.queue.Enqueue(req); err != nil {
		scope.Logger.Warn().Err(err).Str("url", url).Msg("Upload hand-off rejected")
		return img, nil
	}

	scope.Logger.Debug().Str("url", url).Int("size", buf.Len()).Msg("Upload queued")

	return img, nil
}

func (u *Upload) sealed() {}
