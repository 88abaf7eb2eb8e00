package record

import (
	"fmt"

	"github.com/ultrona/mantlog/pkg/sheet"
)

// EncodeXLSX serializes d as a workbook with the three fixed columns.
func EncodeXLSX(d *Dataset) ([]byte, error) {
	t := &sheet.Table{
		Header: Columns(),
		Rows:   make([][]string, 0, d.Len()),
	}
	for _, r := range d.Records {
		t.Rows = append(t.Rows, []string{r.Timestamp, r.Task, r.Operator})
	}
	data, err := sheet.Encode(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	return data, nil
}

// DecodeXLSX parses a workbook written by EncodeXLSX or edited by hand.
// Cells are matched to fields by header name; missing columns read as empty.
func DecodeXLSX(data []byte) (*Dataset, error) {
	t, err := sheet.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	d := NewDataset()
	if t.Header == nil {
		return d, nil
	}

	idx := map[string]int{}
	for i, h := range t.Header {
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}
	cell := func(row []string, column string) string {
		i, ok := idx[column]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	for _, row := range t.Rows {
		d.Append(Record{
			Timestamp: cell(row, ColumnTimestamp),
			Task:      cell(row, ColumnTask),
			Operator:  cell(row, ColumnOperator),
		})
	}
	return d, nil
}
