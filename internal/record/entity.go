package record

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Column headers of the maintenance sheet, in file order.
const (
	ColumnTimestamp = "Fecha y Hora"
	ColumnTask      = "Mantenimiento Realizado"
	ColumnOperator  = "Operador"
)

// TimestampLayout is how default timestamps are written.
const TimestampLayout = "2006-01-02 15:04:05"

// MonthLayout is the format of a month bucket.
const MonthLayout = "2006-01"

func Columns() []string {
	return []string{ColumnTimestamp, ColumnTask, ColumnOperator}
}

// Record is one maintenance log row. Timestamp is kept exactly as entered.
type Record struct {
	Timestamp string `json:"timestamp"`
	Task      string `json:"task"`
	Operator  string `json:"operator"`
}

// timestampLayouts accept unpadded months, days and hours. Numeric dates
// that do not start with the year read month first.
var timestampLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	time.RFC3339,
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-1-2",
	"2006/1/2",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1-2-2006 15:04:05",
	"1-2-2006 15:04",
	"1/2/2006",
	"1-2-2006",
}

// ParseTimestamp parses s leniently. ok is false when no layout matches.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time returns the parsed timestamp.
func (r Record) Time() (time.Time, bool) {
	return ParseTimestamp(r.Timestamp)
}

// Month returns the YYYY-MM bucket of the record; ok is false when the
// timestamp does not parse.
func (r Record) Month() (string, bool) {
	t, ok := r.Time()
	if !ok {
		return "", false
	}
	return t.Format(MonthLayout), true
}

// ParseMonth validates a YYYY-MM month bucket.
func ParseMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(MonthLayout, s)
	if err != nil || t.Format(MonthLayout) != s {
		return "", fmt.Errorf("month %q must look like YYYY-MM", s)
	}
	return s, nil
}

// Dataset is the ordered, append-only list of records stored in the sheet.
type Dataset struct {
	Records []Record `json:"records"`
}

func NewDataset() *Dataset {
	return &Dataset{Records: []Record{}}
}

func (d *Dataset) Len() int {
	return len(d.Records)
}

// Append adds r as the last record.
func (d *Dataset) Append(r Record) {
	d.Records = append(d.Records, r)
}

// FilterMonth returns the records whose month bucket equals month, in
// original order. Records with unparseable timestamps never match.
func (d *Dataset) FilterMonth(month string) *Dataset {
	out := NewDataset()
	for _, r := range d.Records {
		if m, ok := r.Month(); ok && m == month {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Months returns the distinct month buckets present, newest first.
func (d *Dataset) Months() []string {
	var months []string
	for _, r := range d.Records {
		if m, ok := r.Month(); ok && !slices.Contains(months, m) {
			months = append(months, m)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}
