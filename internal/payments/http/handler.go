// Package paymentshttp exposes the payment record API over HTTP.
package paymentshttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-payments/internal/payments"
	"github.com/odyssey-erp/odyssey-payments/internal/payments/importer"
	"github.com/odyssey-erp/odyssey-payments/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-payments/internal/shared"
	"github.com/odyssey-erp/odyssey-payments/jobs"
)

const (
	defaultMaxUploadBytes = 10 << 20
	idempotencyHeader     = "Idempotency-Key"
	idempotencyModule     = "payments.import"
)

type paymentService interface {
	Create(ctx context.Context, raw map[string]any) (string, error)
	List(ctx context.Context, params payments.ListParams) (payments.ListResult, error)
	Get(ctx context.Context, id string) (payments.Payment, error)
	Update(ctx context.Context, id string, raw map[string]any) error
	UploadEvidence(ctx context.Context, id, filename string, data []byte) (string, error)
	DownloadEvidence(ctx context.Context, id string) (payments.Evidence, error)
	Delete(ctx context.Context, id string) error
}

type paymentImporter interface {
	Import(ctx context.Context, name string, r io.Reader) importer.Report
}

type importQueue interface {
	EnqueueImport(ctx context.Context, payload jobs.ImportPayload) (string, error)
}

type idempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// Options collects the handler dependencies. Importer, Queue and Idempotency
// are optional; the import endpoint degrades accordingly.
type Options struct {
	Logger         *slog.Logger
	Service        paymentService
	Importer       paymentImporter
	Queue          importQueue
	Idempotency    idempotencyGuard
	ImportDir      string
	MaxUploadBytes int64
}

// Handler wires HTTP endpoints for payment records.
type Handler struct {
	logger         *slog.Logger
	service        paymentService
	importer       paymentImporter
	queue          importQueue
	idempotency    idempotencyGuard
	importDir      string
	maxUploadBytes int64
}

// NewHandler constructs a payments HTTP handler.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		logger:         opts.Logger,
		service:        opts.Service,
		importer:       opts.Importer,
		queue:          opts.Queue,
		idempotency:    opts.Idempotency,
		importDir:      opts.ImportDir,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

// MountRoutes registers HTTP routes. Evidence routes accept an optional
// trailing slash.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/import", h.importFile)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/upload_evidence", h.uploadEvidence)
		r.Post("/upload_evidence/", h.uploadEvidence)
		r.Get("/download_evidence", h.downloadEvidence)
		r.Get("/download_evidence/", h.downloadEvidence)
	})
}

type messageResponse struct {
	Message  string `json:"message"`
	FilePath string `json:"file_path,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	id, err := h.service.Create(r.Context(), raw)
	if err != nil {
		h.fail(w, r, "create payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := intParam(query.Get("page"), 1)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("page: %w", payments.ErrInvalidPage))
		return
	}
	size, err := intParam(query.Get("size"), shared.DefaultPageSize)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("size: %w", payments.ErrInvalidPage))
		return
	}
	result, err := h.service.List(r.Context(), payments.ListParams{
		Status: strings.TrimSpace(query.Get("status")),
		Search: strings.TrimSpace(query.Get("search")),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		h.fail(w, r, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	if err := h.service.Update(r.Context(), chi.URLParam(r, "id"), raw); err != nil {
		h.fail(w, r, "update payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "Payment updated successfully."})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "Payment deleted successfully."})
}

func (h *Handler) uploadEvidence(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, "read evidence", err)
		return
	}
	path, err := h.service.UploadEvidence(r.Context(), chi.URLParam(r, "id"), header.Filename, data)
	if err != nil {
		h.fail(w, r, "upload evidence", err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "Evidence uploaded successfully.", FilePath: path})
}

func (h *Handler) downloadEvidence(w http.ResponseWriter, r *http.Request) {
	ev, err := h.service.DownloadEvidence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "download evidence", err)
		return
	}
	w.Header().Set("Content-Type", ev.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": ev.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(ev.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ev.Data)
}

type enqueuedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// importFile ingests a CSV or XLSX upload. With ?async=true the file is
// staged and handed to the worker; otherwise the report is returned inline.
func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	async := r.URL.Query().Get("async") == "true"
	if async && h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "background import is not configured")
		return
	}
	if !async && h.importer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "import is not configured")
		return
	}

	file, header, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()
	name := importName(header)
	if !importer.Supported(name) {
		httpx.RespondError(w, importer.ErrUnsupportedFormat)
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, fmt.Errorf("import %q: %w", key, httpx.ErrConflict))
				return
			}
			h.fail(w, r, "claim idempotency key", err)
			return
		}
	}
	release := func() {
		if key == "" || h.idempotency == nil {
			return
		}
		if err := h.idempotency.Release(context.WithoutCancel(r.Context()), key, idempotencyModule); err != nil {
			h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}

	if async {
		payload := jobs.ImportPayload{Remove: true}
		if key != "" && h.idempotency != nil {
			payload.IdempotencyKey = key
			payload.IdempotencyModule = idempotencyModule
		}
		taskID, err := h.enqueue(r.Context(), name, file, payload)
		if err != nil {
			release()
			h.fail(w, r, "enqueue import", err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, enqueuedResponse{TaskID: taskID, Status: "queued"})
		return
	}

	report := h.importer.Import(r.Context(), name, file)
	if report.Failed() {
		release()
		httpx.JSON(w, http.StatusUnprocessableEntity, report)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// enqueue stages the upload under importDir and queues it for the worker.
func (h *Handler) enqueue(ctx context.Context, name string, src io.Reader, payload jobs.ImportPayload) (string, error) {
	dir := h.importDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare import dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("stage import file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("stage import file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("stage import file: %w", err)
	}
	payload.Path = path
	taskID, err := h.queue.EnqueueImport(ctx, payload)
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	h.logger.Info("payments import queued", slog.String("task_id", taskID), slog.String("source", name))
	return taskID, nil
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	var raw map[string]any
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, fmt.Errorf("request body: %w", httpx.ErrTooLarge))
			return nil, false
		}
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request body must be a JSON object")
		return nil, false
	}
	if raw == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request body must be a JSON object")
		return nil, false
	}
	return raw, true
}

// formFile reads the "file" part of a multipart upload.
func (h *Handler) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, fmt.Errorf("upload: %w", httpx.ErrTooLarge))
			return nil, nil, false
		}
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "multipart form with a file field is required")
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "file field is required")
		return nil, nil, false
	}
	return file, header, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	attrs := []any{slog.String("op", op), slog.String("path", r.URL.Path), slog.Any("error", err)}
	switch {
	case errors.Is(err, httpx.ErrNotFound),
		errors.Is(err, httpx.ErrValidation),
		errors.Is(err, httpx.ErrPrecondition),
		errors.Is(err, httpx.ErrUnsupportedMedia),
		errors.Is(err, httpx.ErrTooLarge):
		h.logger.Warn(op, attrs...)
	default:
		h.logger.Error(op, attrs...)
	}
	httpx.RespondError(w, err)
}

// importName returns the upload name, deriving an extension from the part's
// content type when the client sent none.
func importName(header *multipart.FileHeader) string {
	name := filepath.Base(header.Filename)
	if filepath.Ext(name) != "" {
		return name
	}
	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		return name
	}
	if ext, ok := importMediaTypes[mediaType]; ok {
		return name + ext
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil {
		return name
	}
	for _, ext := range exts {
		if importer.Supported(ext) {
			return name + ext
		}
	}
	return name
}

var importMediaTypes = map[string]string{
	"text/csv": ".csv",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
