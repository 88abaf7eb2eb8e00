// Package backup writes a full, timestamped copy of the maintenance log after
// every save. Backups are never rotated.
package backup

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/storage"
)

const (
	FilePrefix = "respaldo_ultrona_"
	FileExt    = ".xlsx"
	// TimeLayout has second precision: two snapshots in the same second share
	// a name and the later one wins.
	TimeLayout = "2006-01-02_15-04-05"
)

type Writer struct {
	storage  storage.Storage
	dir      string
	now      func() time.Time
	location *time.Location
}

type Option func(*Writer)

func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

func WithLocation(loc *time.Location) Option {
	return func(w *Writer) {
		w.location = loc
	}
}

func NewWriter(s storage.Storage, dir string, opts ...Option) *Writer {
	w := &Writer{
		storage:  s,
		dir:      strings.Trim(dir, "/"),
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) Dir() string {
	return w.dir
}

// Init creates the backup directory if it does not exist.
func (w *Writer) Init(ctx context.Context) error {
	if err := w.storage.MkdirAll(ctx, w.dir); err != nil {
		return cerr.WrapStorageWriteError("backup directory", err)
	}
	return nil
}

// PathFor returns the backup path for a snapshot taken at t.
func (w *Writer) PathFor(t time.Time) string {
	return path.Join(w.dir, FilePrefix+t.In(w.location).Format(TimeLayout)+FileExt)
}

// Snapshot writes the whole dataset to a new backup and returns its path.
func (w *Writer) Snapshot(ctx context.Context, d *record.Dataset) (string, error) {
	data, err := record.EncodeXLSX(d)
	if err != nil {
		return "", cerr.NewError(cerr.Internal, "server error", err)
	}
	p := w.PathFor(w.now())
	if err := w.storage.Write(ctx, p, data); err != nil {
		return "", cerr.WrapStorageWriteError("backup", err)
	}
	return p, nil
}

// List returns the backup paths, oldest first.
func (w *Writer) List(ctx context.Context) ([]string, error) {
	paths, err := w.storage.List(ctx, w.dir)
	if err != nil {
		return nil, cerr.WrapStorageListError("backups", err)
	}
	// Names embed a sortable timestamp, so lexical order is chronological.
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		name := path.Base(p)
		if strings.HasPrefix(name, FilePrefix) && strings.HasSuffix(name, FileExt) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Latest returns the newest backup path.
func (w *Writer) Latest(ctx context.Context) (string, error) {
	paths, err := w.List(ctx)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", cerr.NewError(cerr.NotFound, "no backups yet", nil)
	}
	return paths[len(paths)-1], nil
}

// Read loads the dataset stored in the backup at p.
func (w *Writer) Read(ctx context.Context, p string) (*record.Dataset, error) {
	data, err := w.storage.Read(ctx, p)
	if err != nil {
		return nil, cerr.WrapStorageReadError("backup", err)
	}
	d, err := record.DecodeXLSX(data)
	if err != nil {
		return nil, cerr.NewError(cerr.DataLoss, "backup is unreadable", err)
	}
	return d, nil
}
