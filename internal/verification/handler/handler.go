package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
	"github.com/tise-genene/verifyreceipt/pkg/platform/httputil"
	"github.com/tise-genene/verifyreceipt/pkg/requestcontext"
)

// maxUploadBytes bounds a receipt image upload, form fields included.
const maxUploadBytes = 10 << 20

// Service defines the verification operations exposed over HTTP.
type Service interface {
	VerifyReference(ctx context.Context, req models.ReferenceRequest) (*models.Verification, error)
	VerifyImage(ctx context.Context, req models.ImageRequest) (*models.Verification, error)
}

// Handler wires verification endpoints to the orchestrator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the verification endpoints. Each is served with and
// without the /api prefix.
func (h *Handler) Register(r chi.Router) {
	for _, prefix := range []string{"", "/api"} {
		r.Post(prefix+"/verify/reference", h.HandleVerifyReference)
		r.Post(prefix+"/verify/receipt", h.HandleVerifyReceipt)
	}
}

// HandleVerifyReference handles POST /verify/reference.
func (h *Handler) HandleVerifyReference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := requestcontext.Now(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyReferenceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.VerifyReference(ctx, req.Parsed())
	if err != nil {
		h.logFailure(ctx, "reference verification failed", requestID, string(req.Parsed().Provider), err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "reference verification completed",
		"request_id", requestID,
		"provider", result.Provider,
		"status", result.Status,
		"source", result.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleVerifyReceipt handles POST /verify/receipt (multipart image upload).
func (h *Handler) HandleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := requestcontext.Now(ctx)

	req, err := parseImageUpload(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid receipt upload",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.VerifyImage(ctx, req)
	if err != nil {
		h.logFailure(ctx, "receipt verification failed", requestID, string(req.Provider), err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "receipt verification completed",
		"request_id", requestID,
		"provider", result.Provider,
		"status", result.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// parseImageUpload reads the "image" file and optional provider/suffix fields.
func parseImageUpload(w http.ResponseWriter, r *http.Request) (models.ImageRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.ImageRequest{}, dErrors.New(dErrors.CodeValidation, "image exceeds the 10MB upload limit")
		}
		return models.ImageRequest{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "multipart form body is required")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		return models.ImageRequest{}, dErrors.New(dErrors.CodeValidation, "image file is required")
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return models.ImageRequest{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read image")
	}
	return models.NewImageRequest(image, header.Filename, r.FormValue("provider"), r.FormValue("suffix"))
}

// logFailure logs caller mistakes at WARN and everything else at ERROR.
func (h *Handler) logFailure(ctx context.Context, msg, requestID, provider string, err error) {
	level := slog.LevelError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeNotFound, dErrors.CodeRateLimited:
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestID,
		"provider", provider,
		"code", dErrors.CodeOf(err),
		"error", err,
	)
}
