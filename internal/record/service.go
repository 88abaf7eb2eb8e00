package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ultrona/mantlog/internal/catalog"
	"github.com/ultrona/mantlog/internal/observability"
	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/sheet"
)

const (
	// FullExportFilename is the download name of the whole log.
	FullExportFilename = "registro_mant_ultrona.xlsx"
	monthExportPattern = "mantenciones_ultrona_%s.xlsx"
)

// Catalog supplies the allowed tasks and operators.
type Catalog interface {
	Validate(task, operator string) error
	Options() *catalog.Options
}

// Snapshotter writes a full copy of the dataset after each append.
type Snapshotter interface {
	Snapshot(ctx context.Context, d *Dataset) (string, error)
}

// Entry is a submitted form. An empty Timestamp means "now".
type Entry struct {
	Timestamp string `json:"timestamp"`
	Task      string `json:"task"`
	Operator  string `json:"operator"`
}

type AppendResult struct {
	Record Record `json:"record"`
	Count  int    `json:"count"`
	Backup string `json:"backup"`
	// Month is the bucket of the new record, empty when its timestamp does not parse.
	Month string `json:"month,omitempty"`
}

type Download struct {
	Filename    string
	ContentType string
	Data        []byte
	Count       int
}

// Service runs every interaction as load, optional append with backup, then
// filter or export. No dataset is kept between calls.
type Service struct {
	repo     Repository
	backups  Snapshotter
	catalog  Catalog
	now      func() time.Time
	location *time.Location

	// appendMu serializes load-append-save within this process.
	appendMu sync.Mutex
}

type ServiceOption func(*Service)

// WithClock overrides the wall clock used for default timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the zone default timestamps are written in.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *Service) {
		s.location = loc
	}
}

func NewService(repo Repository, backups Snapshotter, cat Catalog, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		backups:  backups,
		catalog:  cat,
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in the service's zone.
func (s *Service) Now() time.Time {
	return s.now().In(s.location)
}

// DefaultTimestamp is the value the entry form is prefilled with.
func (s *Service) DefaultTimestamp() string {
	return s.Now().Format(TimestampLayout)
}

func (s *Service) Options() *catalog.Options {
	return s.catalog.Options()
}

// Append validates e, appends it to the stored dataset, rewrites the primary
// sheet and writes a backup of the result.
func (s *Service) Append(ctx context.Context, e Entry) (*AppendResult, error) {
	e.Task = strings.TrimSpace(e.Task)
	e.Operator = strings.TrimSpace(e.Operator)
	rec := Record{
		Timestamp: strings.TrimSpace(e.Timestamp),
		Task:      e.Task,
		Operator:  e.Operator,
	}
	if err := mergeViolations(s.catalog.Validate(e.Task, e.Operator), validateTimestamp(rec.Timestamp)); err != nil {
		return nil, err
	}
	if rec.Timestamp == "" {
		rec.Timestamp = s.DefaultTimestamp()
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	d, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	d.Append(rec)
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	observability.RecordAppended(d.Len(), s.now())

	backupPath, err := s.backups.Snapshot(ctx, d)
	observability.RecordBackup(err)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "maintenance recorded",
		"task", rec.Task, "operator", rec.Operator, "count", d.Len(), "backup", backupPath)

	month, _ := rec.Month()
	return &AppendResult{
		Record: rec,
		Count:  d.Len(),
		Backup: backupPath,
		Month:  month,
	}, nil
}

// validateTimestamp rejects text the sheet could not store verbatim.
func validateTimestamp(ts string) *cerr.Error {
	err := sheet.CheckCell(ts)
	if err == nil {
		return nil
	}
	rule := "timestamp.chars"
	if errors.Is(err, sheet.ErrCellTooLong) {
		rule = "timestamp.max_len"
	}
	return cerr.NewError(cerr.InvalidArgument, "invalid maintenance entry", nil).
		AddDetailMessageWithCode("timestamp: "+err.Error(), rule)
}

// mergeViolations folds the timestamp violations into the catalog error so
// one response lists every bad field.
func mergeViolations(err error, ts *cerr.Error) error {
	if ts == nil {
		return err
	}
	if err == nil {
		return ts
	}
	var ce *cerr.Error
	if !errors.As(err, &ce) {
		return err
	}
	ce.Details = append(ce.Details, ts.Details...)
	return ce
}

// Dataset loads the full stored dataset.
func (s *Service) Dataset(ctx context.Context) (*Dataset, error) {
	return s.repo.Load(ctx)
}

// Months lists the month buckets present, newest first.
func (s *Service) Months(ctx context.Context) ([]string, error) {
	d, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return d.Months(), nil
}

// Filter returns the records of month, or every record when month is empty.
func (s *Service) Filter(ctx context.Context, month string) (*Dataset, error) {
	if month != "" {
		m, err := ParseMonth(month)
		if err != nil {
			return nil, cerr.NewError(cerr.InvalidArgument, err.Error(), err)
		}
		month = m
	}
	d, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if month == "" {
		return d, nil
	}
	return d.FilterMonth(month), nil
}

// Export builds an in-memory workbook of the month's records, or of the
// whole log when month is empty. Storage is only read.
func (s *Service) Export(ctx context.Context, month string) (*Download, error) {
	d, err := s.Filter(ctx, month)
	if err != nil {
		return nil, err
	}
	data, err := EncodeXLSX(d)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	observability.RecordExport(month)
	return &Download{
		Filename:    ExportFilename(month),
		ContentType: sheet.ContentType,
		Data:        data,
		Count:       d.Len(),
	}, nil
}

// ExportFilename names the download for month, or the full log when empty.
func ExportFilename(month string) string {
	if month == "" {
		return FullExportFilename
	}
	return fmt.Sprintf(monthExportPattern, strings.TrimSpace(month))
}
