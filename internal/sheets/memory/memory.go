// Package memory keeps the ledger journal in process, for tests and for
// running without a spreadsheet.
package memory

import (
	"context"
	"fmt"
	"sync"

	"carteira/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	rows  []sheets.Row
	fails []error
}

var _ sheets.RowAppender = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// FailNext makes the next AppendRows call return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = append(s.fails, err)
}

// AppendRows stores the rows and returns a synthetic range reference.
func (s *Store) AppendRows(ctx context.Context, rows []sheets.Row) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fails) > 0 {
		err := s.fails[0]
		s.fails = s.fails[1:]
		return "", err
	}
	first := len(s.rows) + 1
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of every appended row.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Row(nil), s.rows...)
}
