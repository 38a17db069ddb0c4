package payments

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/odyssey-erp/odyssey-payments/internal/shared"
)

// EvidenceStore persists proof-of-payment files.
type EvidenceStore interface {
	Store(ctx context.Context, ownerID, filename string, data []byte) (string, error)
	Retrieve(ctx context.Context, path string) ([]byte, string, error)
}

// Service orchestrates payment record operations.
type Service struct {
	repo      Repository
	evidence  EvidenceStore
	validator *Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, evidence EvidenceStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		evidence:  evidence,
		validator: NewValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// Validator exposes the record validator used by the service.
func (s *Service) Validator() *Validator {
	return s.validator
}

// Create validates raw input and stores a new record, returning its id.
func (s *Service) Create(ctx context.Context, raw map[string]any) (string, error) {
	p, err := s.validator.Record(raw)
	if err != nil {
		return "", err
	}
	p = DeriveWriteFields(p, s.now())
	id, err := s.repo.InsertOne(ctx, p)
	if err != nil {
		return "", err
	}
	s.logger.Info("payment created", slog.String("id", id), slog.String("status", string(p.Status)))
	return id, nil
}

// InsertBatch stores already validated records in one bulk insert. Records
// carrying an added date keep it; the rest are stamped with the current time.
func (s *Service) InsertBatch(ctx context.Context, records []Payment) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	now := s.now()
	prepared := make([]Payment, len(records))
	for i, p := range records {
		added := p.AddedDateUTC
		p = DeriveWriteFields(p, now)
		if !added.IsZero() {
			p.AddedDateUTC = added.UTC()
		}
		prepared[i] = p
	}
	return s.repo.InsertMany(ctx, prepared)
}

// List returns one page of records with read-time derivations applied.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Page < 1 || params.Size < 1 {
		return ListResult{}, ErrInvalidPage
	}
	filter := Filter{Status: params.Status, Search: params.Search}
	records, total, err := s.repo.FindMany(ctx, filter, (params.Page-1)*params.Size, params.Size)
	if err != nil {
		return ListResult{}, err
	}
	page := shared.NewPagination(params.Page, params.Size, total)
	return ListResult{
		Total:      page.Total,
		Page:       page.Page,
		Size:       page.PerPage,
		TotalPages: page.TotalPages,
		Data:       ProjectAll(records, s.now()),
	}, nil
}

// Get returns a single projected record.
func (s *Service) Get(ctx context.Context, id string) (Payment, error) {
	p, err := s.repo.FindOne(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	return DeriveReadFields(p, s.now()), nil
}

// Update applies a partial update. Marking a record completed requires an
// evidence file already attached to it.
func (s *Service) Update(ctx context.Context, id string, raw map[string]any) error {
	existing, err := s.repo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	patch, err := s.validator.Patch(raw)
	if err != nil {
		return err
	}
	merged, err := DeriveUpdateFields(existing, patch)
	if err != nil {
		return err
	}
	fields := make(map[string]any, len(patch)+1)
	for name, value := range patch {
		fields[name] = value
	}
	fields[FieldTotalDue] = merged.TotalDue
	matched, err := s.repo.UpdateOne(ctx, id, fields)
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	s.logger.Info("payment updated", slog.String("id", id), slog.Int("fields", len(patch)))
	return nil
}

// UploadEvidence stores the file and records its path on the payment.
func (s *Service) UploadEvidence(ctx context.Context, id, filename string, data []byte) (string, error) {
	if _, err := s.repo.FindOne(ctx, id); err != nil {
		return "", err
	}
	path, err := s.evidence.Store(ctx, id, filename, data)
	if err != nil {
		return "", err
	}
	matched, err := s.repo.UpdateOne(ctx, id, map[string]any{FieldEvidenceFile: path})
	if err != nil {
		return "", err
	}
	if matched == 0 {
		return "", ErrNotFound
	}
	s.logger.Info("evidence uploaded", slog.String("id", id), slog.String("path", path))
	return path, nil
}

// DownloadEvidence returns the evidence file attached to the payment.
func (s *Service) DownloadEvidence(ctx context.Context, id string) (Evidence, error) {
	p, err := s.repo.FindOne(ctx, id)
	if err != nil {
		return Evidence{}, err
	}
	if p.EvidenceFile == "" {
		return Evidence{}, ErrEvidenceNotFound
	}
	data, mimeType, err := s.evidence.Retrieve(ctx, p.EvidenceFile)
	if err != nil {
		return Evidence{}, fmt.Errorf("payment %s: %w", id, err)
	}
	return Evidence{Name: filepath.Base(p.EvidenceFile), MimeType: mimeType, Data: data}, nil
}

// Delete permanently removes a record.
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteOne(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	s.logger.Info("payment deleted", slog.String("id", id))
	return nil
}
