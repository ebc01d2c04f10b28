package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"kuberx/internal/core"
	ports "kuberx/internal/sheets"
)

var _ ports.LoanStore = (*Store)(nil)

// Store keeps the ledger in memory. Row numbers match a sheet: the header is
// row 1 and the first loan row 2.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

func New(loans ...core.Loan) *Store {
	s := &Store{}
	for _, l := range loans {
		s.rows = append(s.rows, l.Row())
	}
	return s
}

// NewFromFiles seeds the store from <base>/seed_loans.csv when it exists.
// The CSV may start with the canonical header; rows shorter than a full loan
// are kept as they are.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	f, err := os.Open(filepath.Join(base, "seed_loans.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), core.Header[0]) {
				continue
			}
		}
		s.rows = append(s.rows, rec)
	}
	return s, nil
}

// ReadAll returns a copy of the ledger with the header. An empty store
// returns nothing, like an empty sheet.
func (s *Store) ReadAll(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return [][]string{}, nil
	}
	out := make([][]string, 0, len(s.rows)+1)
	out = append(out, append([]string(nil), core.Header...))
	for _, r := range s.rows {
		out = append(out, append([]string(nil), r...))
	}
	return out, nil
}

// Append stores the loan and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, l core.Loan) (string, error) {
	if err := l.Validate(); err != nil {
		return "", err
	}
	l.Status = core.StatusActive
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, l.Row())
	return fmt.Sprintf("mem:%d", len(s.rows)+1), nil
}

func (s *Store) UpdateStatus(_ context.Context, row int, status core.LoanStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := row - 2
	if i < 0 || i >= len(s.rows) {
		return fmt.Errorf("row %d: %w", row, ports.ErrRowNotFound)
	}
	for len(s.rows[i]) < core.NumColumns {
		s.rows[i] = append(s.rows[i], "")
	}
	s.rows[i][core.ColStatus] = string(status)
	return nil
}

func (s *Store) FindRow(_ context.Context, recordID string) (int, error) {
	recordID = strings.TrimSpace(recordID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if len(r) > 0 && strings.TrimSpace(r[core.ColRecordID]) == recordID {
			return i + 2, nil
		}
	}
	return 0, fmt.Errorf("record %q: %w", recordID, ports.ErrRowNotFound)
}
