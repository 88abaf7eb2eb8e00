package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAppended(t *testing.T) {
	before := testutil.ToFloat64(recordsAppended)
	RecordAppended(3, time.Unix(1709283600, 0))

	assert.Equal(t, before+1, testutil.ToFloat64(recordsAppended))
	assert.Equal(t, float64(3), testutil.ToFloat64(recordsStored))
	assert.Equal(t, float64(1709283600), testutil.ToFloat64(lastAppend))
}

func TestRecordBackupOutcomes(t *testing.T) {
	ok := testutil.ToFloat64(backupsWritten.WithLabelValues("ok"))
	failed := testutil.ToFloat64(backupsWritten.WithLabelValues("error"))

	RecordBackup(nil)
	RecordBackup(errors.New("disk full"))

	assert.Equal(t, ok+1, testutil.ToFloat64(backupsWritten.WithLabelValues("ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(backupsWritten.WithLabelValues("error")))
}

func TestRecordExportScope(t *testing.T) {
	all := testutil.ToFloat64(exportsServed.WithLabelValues("all"))
	RecordExport("")
	assert.Equal(t, all+1, testutil.ToFloat64(exportsServed.WithLabelValues("all")))
}
