package label

import (
	"context"
	"fmt"
	"time"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
	"vintrack/pkg/logger"
	"vintrack/pkg/sequence"
)

// Service provides case label operations. Issuance for one product
// identifier is serialized by the sequence service's scope lock, so
// concurrent receipts of the same product never mint duplicate barcodes
// while different products issue in parallel.
type Service struct {
	repo     Repository
	sequence *sequence.Service
}

// NewService creates a label registry service.
func NewService(repo Repository, seq *sequence.Service) *Service {
	return &Service{repo: repo, sequence: seq}
}

// Issue mints count new barcodes for the product and inserts one active
// label per physical case. Must run inside the caller's transaction so the
// issuance lock covers both the sequence bump and the inserts.
func (s *Service) Issue(ctx context.Context, lwin18 types.LWIN18, lotNumber string, locationID id.ID, count int) ([]CaseLabel, error) {
	if count <= 0 {
		return nil, apperror.NewValidation("label count must be positive")
	}

	barcodes, err := s.sequence.NextBlock(ctx, sequence.CaseLabelConfig(lwin18.String()), time.Now(), count)
	if err != nil {
		return nil, fmt.Errorf("issue barcodes: %w", err)
	}

	labels := make([]CaseLabel, 0, count)
	for _, barcode := range barcodes {
		labels = append(labels, newLabel(barcode, lwin18, lotNumber, locationID))
	}

	if err := s.repo.CreateBatch(ctx, labels); err != nil {
		return nil, fmt.Errorf("create labels: %w", err)
	}

	logger.Info(ctx, "case labels issued",
		"lwin18", lwin18,
		"count", count,
		"first", barcodes[0],
		"last", barcodes[len(barcodes)-1],
	)
	return labels, nil
}

// Relocate moves an active label to a new location.
func (s *Service) Relocate(ctx context.Context, barcode string, toLocationID id.ID) (*CaseLabel, error) {
	l, err := s.repo.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if !l.IsActive {
		return nil, apperror.NewInvalidState("case label", "inactive", "active").
			WithDetail("barcode", barcode)
	}

	if err := s.repo.UpdateLocation(ctx, l.ID, toLocationID); err != nil {
		return nil, fmt.Errorf("relocate label: %w", err)
	}
	l.CurrentLocationID = toLocationID
	return l, nil
}

// Deactivate permanently retires barcodes when cases leave the tracked
// flow (dispatch, repack-out). A barcode is never reactivated or reused.
func (s *Service) Deactivate(ctx context.Context, barcodes []string) error {
	if len(barcodes) == 0 {
		return nil
	}
	if err := s.repo.Deactivate(ctx, barcodes); err != nil {
		return fmt.Errorf("deactivate labels: %w", err)
	}
	logger.Info(ctx, "case labels deactivated", "count", len(barcodes))
	return nil
}

// GetByBarcode returns a label by barcode.
func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*CaseLabel, error) {
	return s.repo.GetByBarcode(ctx, barcode)
}

// PickActive selects count active labels for a product at a location,
// oldest first, for deactivation during repack.
func (s *Service) PickActive(ctx context.Context, lwin18 types.LWIN18, locationID id.ID, count int) ([]CaseLabel, error) {
	labels, err := s.repo.ListActive(ctx, lwin18, locationID, count)
	if err != nil {
		return nil, err
	}
	if len(labels) < count {
		return nil, apperror.NewInsufficientQuantity("Active labels", len(labels), count).
			WithDetail("lwin18", lwin18.String())
	}
	return labels, nil
}
