package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lherwood/expense-tracker/internal/rows"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureSheetAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	header := []string{"id", "paidBy", "amount", "category", "description", "date"}
	if err := s.EnsureSheet(ctx, "Expenses", header); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.EnsureSheet(ctx, "Expenses", header); err != nil {
		t.Fatalf("ensure again: %v", err)
	}

	values, err := s.List(ctx, "Expenses")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(values) != 1 || values[0][1] != "paidBy" {
		t.Fatalf("expected only the header row, got %v", values)
	}

	if _, err := s.List(ctx, "ShoppingList"); !errors.Is(err, rows.ErrNoSheet) {
		t.Fatalf("expected ErrNoSheet for missing sheet, got %v", err)
	}
}

func TestAppendKeepsStorageOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.EnsureSheet(ctx, "Expenses", []string{"id", "paidBy", "amount"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, id := range []string{"1", "2", "3"} {
		if err := s.Append(ctx, "Expenses", []string{id, "Amy", "5"}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	values, err := s.List(ctx, "Expenses")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(values))
	}
	for i, want := range []string{"1", "2", "3"} {
		if values[i+1][0] != want {
			t.Fatalf("rows out of order: %v", values)
		}
	}
}

func TestDeleteByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.EnsureSheet(ctx, "ShoppingList", []string{"id", "item"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.Append(ctx, "ShoppingList", []string{"100", "Milk"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.DeleteByID(ctx, "ShoppingList", "999"); !errors.Is(err, rows.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteByID(ctx, "ShoppingList", "100"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	values, _ := s.List(ctx, "ShoppingList")
	if len(values) != 1 {
		t.Fatalf("expected only header after delete, got %v", values)
	}
}

func TestUpdateCellAndUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.EnsureSheet(ctx, "SharedSavings", []string{"amount"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.UpdateCell(ctx, "SharedSavings", 2, 1, "15000"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateCell(ctx, "SharedSavings", 2, 1, "17500"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	values, _ := s.List(ctx, "SharedSavings")
	if len(values) != 2 || values[1][0] != "17500" {
		t.Fatalf("unexpected savings rows: %v", values)
	}

	if err := s.EnsureSheet(ctx, "PushSubscriptions", []string{"user", "endpoint", "p256dh", "auth", "timestamp"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.UpsertByField(ctx, "PushSubscriptions", 0, "Amy", []string{"Amy", "ep1", "k", "a", "t"}); err != nil {
		t.Fatalf("upsert insert: %v", err)
	}
	if err := s.UpsertByField(ctx, "PushSubscriptions", 0, "Amy", []string{"Amy", "ep2", "k", "a", "t"}); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	values, _ = s.List(ctx, "PushSubscriptions")
	if len(values) != 2 || values[1][1] != "ep2" {
		t.Fatalf("upsert must replace in place: %v", values)
	}
}
