package duplicates

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/repository"
)

const (
	ExactMatchScore   = 3
	SimilarMatchScore = 2

	ReasonExactMatch = "Exact item name match"
	ReasonSimilar    = "Similar item name"
)

// Score compares a candidate item name with an existing one, case-insensitively.
func Score(candidate, existing string) (int, []string) {
	c := strings.ToLower(strings.TrimSpace(candidate))
	e := strings.ToLower(strings.TrimSpace(existing))
	if c == "" || e == "" {
		return 0, nil
	}
	if c == e {
		return ExactMatchScore, []string{ReasonExactMatch}
	}
	if strings.Contains(c, e) || strings.Contains(e, c) {
		return SimilarMatchScore, []string{ReasonSimilar}
	}
	return 0, nil
}

type Detector struct {
	orders    repository.OrderRepository
	lookback  time.Duration
	threshold int
	now       func() time.Time
	logger    *slog.Logger
}

// NewDetector builds a detector. A lookback of zero or less scans the full
// history of the (patient, prescriber) pair.
func NewDetector(orders repository.OrderRepository, lookback time.Duration, threshold int, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		orders:    orders,
		lookback:  lookback,
		threshold: threshold,
		now:       time.Now,
		logger:    logger,
	}
}

// Detect returns advisory warnings for existing orders of the same pair
// whose item name scores at or above the threshold, newest first.
func (d *Detector) Detect(ctx context.Context, q repository.Querier, patientID, prescriberID int, itemName *string) ([]entity.DuplicateWarning, error) {
	if itemName == nil || strings.TrimSpace(*itemName) == "" {
		return []entity.DuplicateWarning{}, nil
	}
	var since time.Time
	if d.lookback > 0 {
		since = d.now().Add(-d.lookback)
	}
	existing, err := d.orders.ListForPair(ctx, q, patientID, prescriberID, since)
	if err != nil {
		return nil, err
	}

	warnings := []entity.DuplicateWarning{}
	for _, o := range existing {
		if o.ItemName == nil {
			continue
		}
		score, reasons := Score(*itemName, *o.ItemName)
		if score < d.threshold || score == 0 {
			continue
		}
		warnings = append(warnings, entity.DuplicateWarning{
			OrderID:          o.ID,
			ItemName:         o.ItemName,
			ItemQuantity:     o.ItemQuantity,
			ReasonPrescribed: o.ReasonPrescribed,
			SimilarityScore:  score,
			Reasons:          reasons,
		})
	}
	if len(warnings) > 0 {
		d.logger.Warn("possible duplicate order",
			"patient_id", patientID,
			"prescriber_id", prescriberID,
			"matches", len(warnings),
		)
	}
	return warnings, nil
}
