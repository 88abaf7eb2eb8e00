package record

import "context"

// Repository persists the whole dataset as one unit.
type Repository interface {
	// Load returns the stored dataset, or an empty one when nothing is stored yet.
	Load(ctx context.Context) (*Dataset, error)
	// Save overwrites the stored dataset.
	Save(ctx context.Context, d *Dataset) error
}
