package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/birkanfirat/ffmpeg-video-api/internal/job"
	"github.com/birkanfirat/ffmpeg-video-api/internal/plan"
	"github.com/birkanfirat/ffmpeg-video-api/internal/video"
)

// maxUploadBytes bounds multipart submissions.
const maxUploadBytes = 256 << 20

// JobService is the slice of the render service the handlers need.
type JobService interface {
	CreateJob(ctx context.Context, input job.CreateInput) (*job.Job, error)
	Run(ctx context.Context, jobID string) error
	GetJob(ctx context.Context, jobID string) (*job.Job, error)
}

// SingleRenderer renders the legacy synchronous single-shot request.
type SingleRenderer interface {
	RenderSingle(ctx context.Context, imagePath, audioPath string, p video.Params, outputPath string) error
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        JobService
	renderer       SingleRenderer
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service JobService, renderer SingleRenderer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:        service,
		renderer:       renderer,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// parseForm bounds the request body and parses the multipart form. It writes
// the error response itself and reports whether the caller may proceed.
func (h *Handlers) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "REQUEST_TOO_LARGE")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_MULTIPART")
		return false
	}
	return true
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /api/videos: one or more background image parts,
// an optional cta part and a JSON plan part. The job is created
// synchronously; pipeline execution is handed to a goroutine the response
// does not await.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	planText := r.FormValue("plan")
	if planText == "" {
		writeError(w, http.StatusBadRequest, "plan field is required", "MISSING_PLAN")
		return
	}

	p, err := plan.Parse([]byte(planText), h.validator)
	if err != nil {
		h.logger.Warn("plan rejected", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_PLAN")
		return
	}

	backgrounds, err := collectBackgrounds(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_BACKGROUND")
		return
	}
	if len(backgrounds) == 0 {
		writeError(w, http.StatusBadRequest, "at least one background image is required", "MISSING_BACKGROUND")
		return
	}

	var cta *job.Upload
	if headers := r.MultipartForm.File["cta"]; len(headers) > 0 {
		upload, err := readUpload(headers[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_CTA")
			return
		}
		cta = &upload
	}

	created, err := h.service.CreateJob(r.Context(), job.CreateInput{
		Plan:        p,
		Backgrounds: backgrounds,
		CTA:         cta,
	})
	if err != nil {
		h.logger.Error("failed to create job", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Run the pipeline detached from the request; clients discover the
	// outcome by polling.
	go func(ctx context.Context, jobID string) {
		if runErr := h.service.Run(ctx, jobID); runErr != nil {
			h.logger.Error("background render failed",
				slog.String("job_id", jobID),
				slog.String("error", runErr.Error()),
			)
		}
	}(context.WithoutCancel(r.Context()), created.ID)

	writeJSON(w, http.StatusAccepted, CreateVideoResponse{
		JobID:           created.ID,
		BackgroundCount: len(backgrounds),
		CTADetected:     cta != nil,
	})
}

// GetStatus handles GET /api/videos/{id}/status.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      string(found.Status),
		Stage:       found.Stage,
		Error:       found.Error,
		ArtifactURL: found.ArtifactURL,
	})
}

// GetResult handles GET /api/videos/{id}/result. A done job streams its MP4;
// a processing job yields a not-ready response distinct from both success
// and failure; a failed job surfaces its recorded error.
func (h *Handlers) GetResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	switch found.Status {
	case job.StatusDone:
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.mp4", found.ID))
		http.ServeFile(w, r, found.OutputPath)
	case job.StatusError:
		writeError(w, http.StatusInternalServerError, found.Error, "JOB_FAILED")
	default:
		writeError(w, http.StatusConflict, "job is still processing", "NOT_READY")
	}
}

// RenderSync handles POST /api/render, the legacy single-shot form: one
// image part plus one pre-recorded audio part rendered synchronously with
// the zoom/pan effect only. No TTS, no plan, no CTA.
func (h *Handlers) RenderSync(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	tmpDir, err := os.MkdirTemp("", "render-sync-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to allocate temp dir", "TEMP_DIR_FAILED")
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	imagePath, err := saveFormFile(r.MultipartForm, "image", tmpDir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "MISSING_IMAGE")
		return
	}
	audioPath, err := saveFormFile(r.MultipartForm, "audio", tmpDir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "MISSING_AUDIO")
		return
	}

	outputPath := filepath.Join(tmpDir, "output.mp4")
	params := job.ParamsFromEffects(plan.DefaultEffects())
	if err := h.renderer.RenderSingle(r.Context(), imagePath, audioPath, params, outputPath); err != nil {
		h.logger.Error("synchronous render failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error(), "RENDER_FAILED")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", "attachment; filename=output.mp4")
	http.ServeFile(w, r, outputPath)
}

// collectBackgrounds gathers background image parts. Both a repeated
// "background" field and numbered "background1".."background9" slots are
// accepted; slot numbering fixes the display order.
func collectBackgrounds(form *multipart.Form) ([]job.Upload, error) {
	var uploads []job.Upload

	for _, header := range form.File["background"] {
		upload, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}

	for i := 1; i <= 9; i++ {
		headers := form.File[fmt.Sprintf("background%d", i)]
		if len(headers) == 0 {
			continue
		}
		upload, err := readUpload(headers[0])
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}

	return uploads, nil
}

// readUpload buffers one multipart file part.
func readUpload(header *multipart.FileHeader) (job.Upload, error) {
	f, err := header.Open()
	if err != nil {
		return job.Upload{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return job.Upload{}, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	if len(data) == 0 {
		return job.Upload{}, fmt.Errorf("upload %s is empty", header.Filename)
	}

	return job.Upload{Name: header.Filename, Data: data}, nil
}

// saveFormFile writes a required multipart part to dir and returns its path.
func saveFormFile(form *multipart.Form, field, dir string) (string, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return "", fmt.Errorf("%s part is required", field)
	}

	upload, err := readUpload(headers[0])
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, field+filepath.Ext(upload.Name))
	if err := os.WriteFile(path, upload.Data, 0600); err != nil {
		return "", fmt.Errorf("write %s: %w", field, err)
	}
	return path, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
