package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/http-server/handler/image/dto"
	image_uc "github.com/avito-tech/gravure/internal/usecase/image"
	"github.com/avito-tech/gravure/internal/usecase/processor"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"
)

const (
	clientHeader  = "X-Client-ID"
	unknownClient = "unknown"
)

type ImageHandler struct {
	usecase       imageUsecase
	validate      *validator.Validate
	maxUploadSize int64
	logger        *zlog.Zerolog
}

func NewImageHandler(usecase imageUsecase, maxUploadSize int64, logger *zlog.Zerolog) *ImageHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = domain.DefaultMaxUploadSize
	}
	return &ImageHandler{
		usecase:       usecase,
		validate:      validator.New(),
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Upload accepts a raw image body for POST /v1/upload/{preset}/{id}. With
// ?wait=true the response is sent once every task of the preset finished.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseImageID(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid image id", err)
		return
	}

	req := dto.UploadRequest{
		Preset:  chi.URLParam(r, "preset"),
		ImageID: id,
		Client:  clientID(r),
		Wait:    r.URL.Query().Get("wait") == "true",
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warn().Uint64("image_id", id).Int64("limit", maxErr.Limit).Msg("Upload too large")
			h.respondError(w, http.StatusRequestEntityTooLarge, "Image too large", fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, maxErr.Limit))
			return
		}
		h.logger.Warn().Err(err).Uint64("image_id", id).Msg("Failed to read body")
		h.respondError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	upload, err := h.usecase.Upload(ctx, image_uc.UploadRequest{
		Preset:  req.Preset,
		ImageID: req.ImageID,
		Body:    body,
		Client:  req.Client,
		Wait:    req.Wait,
	})
	if err != nil {
		h.handleUploadError(w, err, req, upload)
		return
	}

	status := http.StatusAccepted
	if req.Wait {
		status = http.StatusOK
	}

	h.respondJSON(w, status, toUploadResponse(upload))
}

// Jobs lists the job history of one image.
func (h *ImageHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	id, err := parseImageID(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid image id", err)
		return
	}

	records, err := h.usecase.History(r.Context(), id)
	if err != nil {
		if errors.Is(err, image_uc.ErrHistoryDisabled) {
			h.respondError(w, http.StatusNotFound, "Job history is disabled", nil)
			return
		}
		h.logger.Error().Err(err).Uint64("image_id", id).Msg("Failed to list jobs")
		h.respondError(w, http.StatusInternalServerError, "Failed to list jobs", err)
		return
	}

	resp := dto.JobsResponse{ImageID: id, Jobs: make([]dto.JobRecordView, 0, len(records))}
	for _, rec := range records {
		resp.Jobs = append(resp.Jobs, toRecordView(rec))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Job returns the stored result of one job.
func (h *ImageHandler) Job(w http.ResponseWriter, r *http.Request) {
	req := dto.JobRequest{ID: chi.URLParam(r, "id")}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid job id", err)
		return
	}

	rec, err := h.usecase.Job(r.Context(), req.ID)
	if err != nil {
		switch {
		case errors.Is(err, image_uc.ErrHistoryDisabled):
			h.respondError(w, http.StatusNotFound, "Job history is disabled", nil)
		case errors.Is(err, image_uc.ErrJobNotFound):
			h.respondError(w, http.StatusNotFound, "Job not found", nil)
		default:
			h.logger.Error().Err(err).Str("job_id", req.ID).Msg("Failed to get job")
			h.respondError(w, http.StatusInternalServerError, "Failed to get job", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, toRecordView(*rec))
}

func (h *ImageHandler) handleUploadError(w http.ResponseWriter, err error, req dto.UploadRequest, upload *image_uc.Upload) {
	switch {
	case errors.Is(err, image_uc.ErrPartiallyAccepted) && upload != nil:
		h.logger.Warn().Err(err).Uint64("image_id", req.ImageID).Int("accepted", len(upload.Jobs)).Msg("Upload partially accepted")
		accepted := toUploadResponse(upload)
		h.respondJSON(w, http.StatusServiceUnavailable, dto.PartialUploadResponse{
			ErrorResponse: dto.ErrorResponse{
				Error:   http.StatusText(http.StatusServiceUnavailable),
				Message: "Only part of the preset tasks were accepted",
				Details: err.Error(),
			},
			Accepted: accepted.Jobs,
		})
	case errors.Is(err, processor.ErrUnknownPreset):
		h.logger.Info().Str("preset", req.Preset).Msg("Unknown preset")
		h.respondError(w, http.StatusNotFound, "Unknown preset", err)
	case errors.Is(err, image_uc.ErrEmptyBody):
		h.respondError(w, http.StatusBadRequest, "Image body is required", nil)
	case errors.Is(err, domain.ErrQueueClosed):
		h.logger.Warn().Uint64("image_id", req.ImageID).Msg("Upload rejected, dispatcher is draining")
		h.respondError(w, http.StatusServiceUnavailable, "Service is shutting down", nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.logger.Warn().Err(err).Uint64("image_id", req.ImageID).Msg("Upload wait interrupted")
		h.respondError(w, http.StatusGatewayTimeout, "Processing did not finish in time", nil)
	case errors.Is(err, image_uc.ErrProcessingFailed):
		h.logger.Warn().Err(err).Uint64("image_id", req.ImageID).Str("preset", req.Preset).Msg("Processing failed")
		h.respondError(w, http.StatusInternalServerError, "Processing failed", err)
	default:
		h.logger.Error().Err(err).Uint64("image_id", req.ImageID).Str("preset", req.Preset).Msg("Upload failed")
		h.respondError(w, http.StatusInternalServerError, "Failed to upload image", err)
	}
}

func parseImageID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidImageID, raw)
	}
	return id, nil
}

// clientID names the caller for job records: the X-Client-ID header, else the
// remote host, else "unknown".
func clientID(r *http.Request) string {
	if id := r.Header.Get(clientHeader); id != "" {
		return id
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return unknownClient
	}
	return host
}

func toRecordView(rec domain.JobRecord) dto.JobRecordView {
	return dto.JobRecordView{
		ID:         rec.JobID,
		ImageID:    rec.ImageID,
		Preset:     rec.Preset,
		Task:       rec.Task,
		Client:     rec.Client,
		State:      string(rec.State),
		Step:       rec.Step,
		Error:      rec.Error,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
}

func toUploadResponse(u *image_uc.Upload) dto.UploadResponse {
	resp := dto.UploadResponse{
		ImageID: u.ImageID,
		Preset:  u.Preset,
		Done:    u.Done(),
		Jobs:    make([]dto.JobResponse, 0, len(u.Jobs)),
	}
	for _, j := range u.Jobs {
		resp.Jobs = append(resp.Jobs, dto.JobResponse{
			ID:         j.ID,
			Task:       j.Task,
			State:      string(j.State),
			URL:        j.URL,
			Error:      j.Error,
			DurationMS: j.Duration.Milliseconds(),
		})
	}
	return resp
}

func (h *ImageHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ImageHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}

	if err != nil {
		response.Details = err.Error()
	}

	h.respondJSON(w, status, response)
}
