package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mantlog",
		Subsystem: "records",
		Name:      "appended_total",
		Help:      "Maintenance records appended to the primary sheet.",
	})
	recordsStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mantlog",
		Subsystem: "records",
		Name:      "stored",
		Help:      "Rows in the primary sheet after the last save.",
	})
	lastAppend = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mantlog",
		Subsystem: "records",
		Name:      "last_append_timestamp_seconds",
		Help:      "Unix timestamp of the most recent append.",
	})
	backupsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mantlog",
		Subsystem: "backups",
		Name:      "written_total",
		Help:      "Backup snapshots by outcome.",
	}, []string{"outcome"})
	exportsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mantlog",
		Subsystem: "exports",
		Name:      "served_total",
		Help:      "Spreadsheet downloads by scope (month|all).",
	}, []string{"scope"})
)

func init() {
	prometheus.MustRegister(recordsAppended, recordsStored, lastAppend, backupsWritten, exportsServed)
}

// RecordAppended updates the append counters after a successful save.
func RecordAppended(total int, at time.Time) {
	recordsAppended.Inc()
	recordsStored.Set(float64(total))
	if !at.IsZero() {
		lastAppend.Set(float64(at.Unix()))
	}
}

// RecordBackup counts a snapshot attempt.
func RecordBackup(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	backupsWritten.WithLabelValues(outcome).Inc()
}

// RecordExport counts a served download.
func RecordExport(month string) {
	scope := "all"
	if month != "" {
		scope = "month"
	}
	exportsServed.WithLabelValues(scope).Inc()
}
