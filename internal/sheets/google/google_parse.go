package google

import (
	"fmt"
	"strings"
)

// toRows converts a values matrix (as returned by Sheets API) into trimmed
// text. The API drops trailing empty cells, so rows keep whatever length the
// sheet reports.
func toRows(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		out = append(out, toStrings(row))
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// indexOfRecord returns the 1-based row holding id in the first column,
// skipping the header, or 0.
func indexOfRecord(values [][]interface{}, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0
	}
	for i := 1; i < len(values); i++ {
		if len(values[i]) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(values[i][0])) == id {
			return i + 1
		}
	}
	return 0
}
