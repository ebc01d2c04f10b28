package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"kuberx/internal/core"
	ports "kuberx/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheet serves the subset of the Sheets values API the client uses.
type fakeSheet struct {
	mu          sync.Mutex
	rows        [][]string
	appendQuery []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, cells, _ := strings.Cut(rng, "!")

	var body struct {
		Values [][]any `json:"values"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.Method == http.MethodGet:
		var values [][]string
		switch cells {
		case "A1:O1":
			if len(f.rows) > 0 {
				values = f.rows[:1]
			}
		case "A:A":
			for _, row := range f.rows {
				values = append(values, row[:1])
			}
		default:
			values = f.rows
		}
		writeJSON(w, map[string]any{"range": rng, "values": values})

	case r.Method == http.MethodPost && strings.HasSuffix(cells, ":append"):
		f.appendQuery = append(f.appendQuery, r.URL.Query().Get("insertDataOption"))
		for _, v := range body.Values {
			f.rows = append(f.rows, cellsToStrings(v))
		}
		n := len(f.rows)
		writeJSON(w, map[string]any{"updates": map[string]any{
			"updatedRange": fmt.Sprintf("Loans!A%d:O%d", n, n),
			"updatedCells": len(body.Values[0]),
		}})

	case r.Method == http.MethodPut:
		if cells == "A1:O1" {
			f.rows = append([][]string{cellsToStrings(body.Values[0])}, f.rows...)
			writeJSON(w, map[string]any{"updatedCells": len(body.Values[0])})
			return
		}
		row, err := strconv.Atoi(strings.TrimPrefix(cells, "O"))
		if err != nil || row > len(f.rows) {
			writeJSON(w, map[string]any{"updatedCells": 0})
			return
		}
		for len(f.rows[row-1]) < core.NumColumns {
			f.rows[row-1] = append(f.rows[row-1], "")
		}
		f.rows[row-1][core.ColStatus] = fmt.Sprint(body.Values[0][0])
		writeJSON(w, map[string]any{"updatedCells": 1, "updatedRange": rng})

	default:
		http.Error(w, "unsupported", http.StatusBadRequest)
	}
}

func cellsToStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeSheet) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "Loans")
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: t.TempDir() + "/nope.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAppendWritesHeaderOnEmptySheet(t *testing.T) {
	f := &fakeSheet{}
	c := newTestClient(t, f)
	ctx := context.Background()

	loan := core.Loan{RecordID: "a", Date: "05/03/2024", NameEnglish: "Ramesh", Amount: "1000", Status: core.StatusClosed}
	ref, err := c.Append(ctx, loan)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Loans!A2:O2" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if _, err := c.Append(ctx, core.Loan{RecordID: "b", Date: "06/03/2024", NameEnglish: "Sita", Amount: "500"}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	rows, err := c.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "recordId" || rows[0][core.ColStatus] != "loanStatus" {
		t.Fatalf("header not written: %v", rows[0])
	}
	if rows[1][core.ColStatus] != "Active" {
		t.Fatalf("appended loans are always Active, got %q", rows[1][core.ColStatus])
	}
	for _, opt := range f.appendQuery {
		if opt != "INSERT_ROWS" {
			t.Fatalf("expected INSERT_ROWS, got %q", opt)
		}
	}
}

func TestAppendValidates(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	_, err := c.Append(context.Background(), core.Loan{RecordID: "a"})
	if !errors.Is(err, core.ErrMissingDate) {
		t.Fatalf("expected ErrMissingDate, got %v", err)
	}
}

func TestUpdateStatusAndFindRow(t *testing.T) {
	f := &fakeSheet{rows: [][]string{
		core.Header,
		{"a", "2024-01-01", "", "Ramesh"},
		{"b", "2024-01-02", "", "Sita", "", "", "", "", "", "", "10", "", "", "", "Active"},
	}}
	c := newTestClient(t, f)
	ctx := context.Background()

	row, err := c.FindRow(ctx, "b")
	if err != nil || row != 3 {
		t.Fatalf("FindRow: row=%d err=%v", row, err)
	}
	if _, err := c.FindRow(ctx, "zzz"); !errors.Is(err, ports.ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}

	if err := c.UpdateStatus(ctx, row, core.StatusClosed); err != nil {
		t.Fatalf("update: %v", err)
	}
	if f.rows[2][core.ColStatus] != "Closed" {
		t.Fatalf("status not written: %v", f.rows[2])
	}
	if err := c.UpdateStatus(ctx, 2, core.StatusClosed); err != nil {
		t.Fatalf("update short row: %v", err)
	}
	if err := c.UpdateStatus(ctx, 40, core.StatusClosed); err == nil {
		t.Fatalf("expected error when no cells are updated")
	}
	if err := c.UpdateStatus(ctx, 1, core.StatusClosed); !errors.Is(err, ports.ErrRowNotFound) {
		t.Fatalf("header must not be updatable, got %v", err)
	}
	if err := c.UpdateStatus(ctx, 2, "Lost"); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
