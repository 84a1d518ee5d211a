package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("csv has no header row")

// ReadRows reads a CSV export and returns one map per data row keyed by the
// header names. Values are kept as strings; typing is the caller's job.
// Short rows are padded with empty values and blank lines are skipped.
func ReadRows(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoHeader
	}

	headers := records[0]
	res := make([]map[string]string, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		row := records[i]
		if blank(row) {
			continue
		}
		obj := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(row) {
				obj[h] = row[j]
			} else {
				obj[h] = ""
			}
		}
		res = append(res, obj)
	}
	return res, nil
}

// ReadFile loads a CSV file with ReadRows.
func ReadFile(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
