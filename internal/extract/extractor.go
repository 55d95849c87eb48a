// Package extract implements the EXTRACT stage: one extractor per
// configured source, run concurrently, merged into the day context.
package extract

import (
	"context"

	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/models"
)

// Extractor is the pluggable source capability. Lifecycle is
// Setup -> ValidateSource -> Extract -> Cleanup, with Cleanup guaranteed
// on every exit path.
type Extractor interface {
	Name() string
	Category() string
	Setup(ctx context.Context, ec *etl.Context) error
	ValidateSource(ec *etl.Context) error
	Extract(ctx context.Context, ec *etl.Context) ([]models.SourceRecord, error)
	Cleanup()
}
