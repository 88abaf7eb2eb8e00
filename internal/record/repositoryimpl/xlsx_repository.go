package repositoryimpl

import (
	"context"
	"errors"
	"fmt"

	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/storage"
)

// XLSXRepository keeps the maintenance log as a single workbook at path.
type XLSXRepository struct {
	storage storage.Storage
	path    string
}

var _ record.Repository = (*XLSXRepository)(nil)

func NewXLSXRepository(s storage.Storage, path string) *XLSXRepository {
	return &XLSXRepository{storage: s, path: path}
}

func (r *XLSXRepository) Path() string {
	return r.path
}

func (r *XLSXRepository) Load(ctx context.Context) (*record.Dataset, error) {
	data, err := r.storage.Read(ctx, r.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return record.NewDataset(), nil
		}
		return nil, cerr.WrapStorageReadError("maintenance log", err)
	}
	d, err := record.DecodeXLSX(data)
	if err != nil {
		return nil, cerr.NewError(cerr.DataLoss, "maintenance log is unreadable", fmt.Errorf("%s: %w", r.path, err))
	}
	return d, nil
}

func (r *XLSXRepository) Save(ctx context.Context, d *record.Dataset) error {
	data, err := record.EncodeXLSX(d)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", err)
	}
	if err := r.storage.Write(ctx, r.path, data); err != nil {
		return cerr.WrapStorageWriteError("maintenance log", err)
	}
	return nil
}
