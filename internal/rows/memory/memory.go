// Package memory provides an in-memory row store. It is the default
// local backend and the test double for everything above it.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/lherwood/expense-tracker/internal/rows"
)

var _ rows.Store = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	sheets map[string][][]string
}

func New() *Store {
	return &Store{sheets: make(map[string][][]string)}
}

// Seed replaces the named collection's rows wholesale. Test helper.
func (s *Store) Seed(sheet string, values [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([][]string, len(values))
	for i, r := range values {
		cp[i] = append([]string(nil), r...)
	}
	s.sheets[sheet] = cp
}

func (s *Store) EnsureSheet(_ context.Context, sheet string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sheets[sheet]; ok {
		return nil
	}
	s.sheets[sheet] = [][]string{append([]string(nil), header...)}
	return nil
}

func (s *Store) List(_ context.Context, sheet string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.sheets[sheet]
	if !ok {
		return nil, rows.ErrNoSheet
	}
	out := make([][]string, len(values))
	for i, r := range values {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (s *Store) Append(_ context.Context, sheet string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[sheet] = append(s.sheets[sheet], append([]string(nil), row...))
	return nil
}

func (s *Store) DeleteByID(_ context.Context, sheet string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.sheets[sheet]
	if !ok {
		return rows.ErrNoSheet
	}
	for i, row := range values {
		if len(row) > 0 && looseEqual(row[0], id) {
			s.sheets[sheet] = append(values[:i], values[i+1:]...)
			return nil
		}
	}
	return rows.ErrNotFound
}

func (s *Store) UpdateCell(_ context.Context, sheet string, rowIndex, colIndex int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.sheets[sheet]
	if !ok {
		return rows.ErrNoSheet
	}
	for len(values) < rowIndex {
		values = append(values, nil)
	}
	row := values[rowIndex-1]
	for len(row) < colIndex {
		row = append(row, "")
	}
	row[colIndex-1] = value
	values[rowIndex-1] = row
	s.sheets[sheet] = values
	return nil
}

func (s *Store) UpsertByField(_ context.Context, sheet string, fieldIndex int, matchValue string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.sheets[sheet]
	if !ok {
		return rows.ErrNoSheet
	}
	for i, existing := range values {
		if fieldIndex < len(existing) && looseEqual(existing[fieldIndex], matchValue) {
			values[i] = append([]string(nil), row...)
			return nil
		}
	}
	s.sheets[sheet] = append(values, append([]string(nil), row...))
	return nil
}

// looseEqual mirrors the store's string-coerced id comparison.
func looseEqual(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
