// Package repack subdivides cased stock into a smaller case configuration
// while conserving the total bottle count.
package repack

import (
	"time"

	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// Repack is the immutable record linking a source product identity to the
// target identity it was repacked into. Never updated after creation; it is
// the traceability bridge between the two identifier lineages.
type Repack struct {
	ID id.ID `db:"id" json:"id"`

	SourceLWIN18     types.LWIN18 `db:"source_lwin18" json:"sourceLwin18"`
	SourceCaseConfig int          `db:"source_case_config" json:"sourceCaseConfig"`
	SourceQuantity   int          `db:"source_quantity" json:"sourceQuantity"`

	TargetLWIN18     types.LWIN18 `db:"target_lwin18" json:"targetLwin18"`
	TargetCaseConfig int          `db:"target_case_config" json:"targetCaseConfig"`
	TargetQuantity   int          `db:"target_quantity" json:"targetQuantity"`

	TotalBottles int `db:"total_bottles" json:"totalBottles"`

	LocationID  id.ID     `db:"location_id" json:"locationId"`
	LotNumber   string    `db:"lot_number" json:"lotNumber"`
	PerformedBy string    `db:"performed_by" json:"performedBy"`
	PerformedAt time.Time `db:"performed_at" json:"performedAt"`
}
