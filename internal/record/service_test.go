package record_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"buf.build/gen/go/bufbuild/protovalidate/protocolbuffers/go/buf/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrona/mantlog/internal/backup"
	"github.com/ultrona/mantlog/internal/catalog"
	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/internal/record/repositoryimpl"
	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/sheet"
	"github.com/ultrona/mantlog/pkg/storage"
)

type fixture struct {
	dir     string
	clock   time.Time
	repo    *repositoryimpl.XLSXRepository
	backups *backup.Writer
	svc     *record.Service
}

func (f *fixture) now() time.Time { return f.clock }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:   t.TempDir(),
		clock: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	s, err := storage.NewLocalStorage(f.dir)
	require.NoError(t, err)
	f.repo = repositoryimpl.NewXLSXRepository(s, "registro_mant_ultrona.xlsx")
	f.backups = backup.NewWriter(s, "backups_ultrona", backup.WithClock(f.now), backup.WithLocation(time.UTC))
	f.svc = record.NewService(f.repo, f.backups, catalog.NewStatic(catalog.DefaultOptions()),
		record.WithClock(f.now), record.WithLocation(time.UTC))
	return f
}

func TestAppendScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Append(ctx, record.Entry{
		Timestamp: "2024-03-01 09:00:00",
		Task:      "Calibración",
		Operator:  "Juan Ramos",
	})
	require.NoError(t, err)
	want := record.Record{Timestamp: "2024-03-01 09:00:00", Task: "Calibración", Operator: "Juan Ramos"}
	assert.Equal(t, want, res.Record)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "2024-03", res.Month)
	assert.Equal(t, "backups_ultrona/respaldo_ultrona_2024-03-01_09-00-00.xlsx", res.Backup)

	d, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []record.Record{want}, d.Records)

	snap, err := f.backups.Read(ctx, res.Backup)
	require.NoError(t, err)
	assert.Equal(t, []record.Record{want}, snap.Records)

	march, err := f.svc.Filter(ctx, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, []record.Record{want}, march.Records)

	april, err := f.svc.Filter(ctx, "2024-04")
	require.NoError(t, err)
	assert.Equal(t, 0, april.Len())
}

func TestAppendKeepsSubmissionOrderAndBackupMirrorsPrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	opts := catalog.DefaultOptions()

	var want []record.Record
	for i := 0; i < 12; i++ {
		e := record.Entry{
			Timestamp: fmt.Sprintf("2024-%02d-%02d 08:00:00", i%3+1, i+1),
			Task:      opts.Tasks[i%len(opts.Tasks)],
			Operator:  opts.Operators[i%len(opts.Operators)],
		}
		_, err := f.svc.Append(ctx, e)
		require.NoError(t, err)
		want = append(want, record.Record(e))
		f.clock = f.clock.Add(time.Second)

		primary, err := f.repo.Load(ctx)
		require.NoError(t, err)
		latest, err := f.backups.Latest(ctx)
		require.NoError(t, err)
		snap, err := f.backups.Read(ctx, latest)
		require.NoError(t, err)
		assert.Equal(t, primary.Records, snap.Records)
	}

	d, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, d.Records)

	paths, err := f.backups.List(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 12)
}

func TestAppendDefaultsTimestampToNow(t *testing.T) {
	f := newFixture(t)
	f.clock = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	res, err := f.svc.Append(context.Background(), record.Entry{Task: "Cambio de papel", Operator: "Paola Araya"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06 07:08:09", res.Record.Timestamp)
	assert.Equal(t, "2024-05-06 07:08:09", f.svc.DefaultTimestamp())
}

func TestAppendUnparseableTimestampIsKeptButNotFiltered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Append(ctx, record.Entry{Timestamp: "el lunes", Task: "Calibración", Operator: "Juan Ramos"})
	require.NoError(t, err)
	assert.Empty(t, res.Month)

	months, err := f.svc.Months(ctx)
	require.NoError(t, err)
	assert.Empty(t, months)

	all, err := f.svc.Filter(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, all.Len())
}

func TestAppendRejectsUnknownValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Append(ctx, record.Entry{Task: "Pintar", Operator: "Juan Ramos"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, statErr := os.Stat(filepath.Join(f.dir, "registro_mant_ultrona.xlsx"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	paths, err := f.backups.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestAppendRejectsTimestampsTheSheetWouldAlter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		timestamp string
		rule      string
	}{
		"too long":     {timestamp: "2024-03-01 09:00:00" + strings.Repeat(" x", 20000), rule: "timestamp.max_len"},
		"control char": {timestamp: "2024-03-01\x0109:00", rule: "timestamp.chars"},
		"invalid utf8": {timestamp: "2024-03-01 \xff", rule: "timestamp.chars"},
		"non-xml char": {timestamp: "2024-03-01 \uFFFE", rule: "timestamp.chars"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Append(ctx, record.Entry{Timestamp: tc.timestamp, Task: "Calibración", Operator: "Juan Ramos"})
			require.Error(t, err)
			var ce *cerr.Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, cerr.InvalidArgument, ce.Code)
			require.Len(t, ce.Details, 1)
			v, ok := ce.Details[0].(*validate.Violation)
			require.True(t, ok)
			assert.Equal(t, tc.rule, v.GetRuleId())
		})
	}

	d, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
	paths, err := f.backups.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestAppendReportsEveryInvalidField(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Append(context.Background(), record.Entry{Timestamp: "hoy\x07", Task: "Pintar", Operator: "Nadie"})
	var ce *cerr.Error
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.DetailMessages(), 3)
}

func TestAppendKeepsLongestStorableTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := strings.Repeat("9", sheet.MaxCellChars)

	_, err := f.svc.Append(ctx, record.Entry{Timestamp: ts, Task: "Calibración", Operator: "Juan Ramos"})
	require.NoError(t, err)
	d, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, ts, d.Records[0].Timestamp)
}

func TestFilterRejectsMalformedMonth(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Filter(context.Background(), "marzo")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestExportRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, ts := range []string{"2024-03-01 09:00:00", "2024-04-02 10:00:00", "???"} {
		_, err := f.svc.Append(ctx, record.Entry{Timestamp: ts, Task: "Calibración", Operator: "Juan Ramos"})
		require.NoError(t, err)
		f.clock = f.clock.Add(time.Second)
	}

	full, err := f.svc.Export(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "registro_mant_ultrona.xlsx", full.Filename)
	assert.Equal(t, sheet.ContentType, full.ContentType)
	assert.Equal(t, 3, full.Count)

	parsed, err := record.DecodeXLSX(full.Data)
	require.NoError(t, err)
	d, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.Records, parsed.Records)

	march, err := f.svc.Export(ctx, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, "mantenciones_ultrona_2024-03.xlsx", march.Filename)
	parsed, err = record.DecodeXLSX(march.Data)
	require.NoError(t, err)
	require.Equal(t, 1, parsed.Len())
	assert.Equal(t, "2024-03-01 09:00:00", parsed.Records[0].Timestamp)
}

func TestExportDoesNotWriteStorage(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Export(context.Background(), "")
	require.NoError(t, err)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingSnapshotter struct{}

func (failingSnapshotter) Snapshot(context.Context, *record.Dataset) (string, error) {
	return "", cerr.NewError(cerr.Internal, "server error", errors.New("disk full"))
}

func TestAppendSurfacesBackupFailure(t *testing.T) {
	f := newFixture(t)
	svc := record.NewService(f.repo, failingSnapshotter{}, catalog.NewStatic(catalog.DefaultOptions()))

	_, err := svc.Append(context.Background(), record.Entry{Timestamp: "2024-03-01", Task: "Calibración", Operator: "Juan Ramos"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Internal))

	// The primary write already happened.
	d, err := f.repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
}
