package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lherwood/expense-tracker/internal/dispatch"
	"github.com/lherwood/expense-tracker/internal/notify"
	"github.com/lherwood/expense-tracker/internal/records"
	"github.com/lherwood/expense-tracker/internal/rows/memory"
)

type actorSink struct {
	actors []string
}

func (s *actorSink) Publish(_ context.Context, actor string, _ notify.Payload) error {
	s.actors = append(s.actors, actor)
	return nil
}

func newTestClient(t *testing.T, user string) (*Client, *memory.Store) {
	t.Helper()
	store := memory.New()
	backend := httptest.NewServer(dispatch.NewServer("", store).Handler)
	t.Cleanup(backend.Close)
	return New(backend.URL, Session{User: user}), store
}

func TestFetchExpensesStripsHeaderAndBlanks(t *testing.T) {
	c, store := newTestClient(t, "Amy")
	store.Seed(records.Expenses.Sheet, [][]string{
		records.Expenses.Header,
		{"1", "Amy", "50", "Groceries", "", "2024-01-01"},
		{},
		{"2", "Ben", "12,5", "", "snacks", ""},
	})

	got, err := c.FetchExpenses(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 expenses, got %d: %+v", len(got), got)
	}
	if got[0].ID != "1" || got[0].Amount != 50 {
		t.Errorf("first expense: %+v", got[0])
	}
	if got[1].Amount != 12.5 {
		t.Errorf("decimal comma amount: %+v", got[1])
	}
	if got[1].Category != records.DefaultCategory {
		t.Errorf("missing category must default: %+v", got[1])
	}
	if got[1].Date == "" {
		t.Errorf("missing date must default to today: %+v", got[1])
	}
}

func TestAddExpenseGeneratesIDAndRefetches(t *testing.T) {
	c, _ := newTestClient(t, "Amy")
	c.WithClock(func() time.Time { return time.UnixMilli(1700000000000) })

	got, err := c.AddExpense(context.Background(), records.Expense{
		Amount:   50,
		Category: "Groceries",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected refreshed collection with 1 expense, got %+v", got)
	}
	if got[0].ID != "1700000000000" {
		t.Errorf("client-generated id: %q", got[0].ID)
	}
	if got[0].PaidBy != "Amy" {
		t.Errorf("paidBy must default to session user: %q", got[0].PaidBy)
	}
}

func TestDeleteExpenseErrorCarriesBackendMessage(t *testing.T) {
	c, _ := newTestClient(t, "Amy")
	if _, err := c.AddExpense(context.Background(), records.Expense{ID: "1", Amount: 5}); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := c.DeleteExpense(context.Background(), "999")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "Expense not found" {
		t.Fatalf("APIError = %+v", apiErr)
	}
}

func TestShoppingListRoundTrip(t *testing.T) {
	c, _ := newTestClient(t, "Ben")

	items, err := c.AddShoppingItem(context.Background(), "Milk")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %+v", items)
	}
	if items[0].AddedBy != "Ben" {
		t.Errorf("addedBy = %q", items[0].AddedBy)
	}
	if items[0].Completed {
		t.Error("new item must not be completed")
	}

	items, err = c.DeleteShoppingItem(context.Background(), items[0].ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", items)
	}
}

func TestSharedSavingsDefaultsAndUpdates(t *testing.T) {
	c, _ := newTestClient(t, "Amy")

	amount, err := c.FetchSharedSavings(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if amount != records.DefaultSavings {
		t.Fatalf("first read = %v, want default %v", amount, records.DefaultSavings)
	}

	amount, err = c.UpdateSharedSavings(context.Background(), 20000)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if amount != 20000 {
		t.Fatalf("after update = %v", amount)
	}
}

func TestMutationsCarrySessionUserAsActor(t *testing.T) {
	store := memory.New()
	srv := dispatch.NewServer("", store)
	sink := &actorSink{}
	srv.Dispatcher().WithNotifier(sink)
	backend := httptest.NewServer(srv.Handler)
	t.Cleanup(backend.Close)
	c := New(backend.URL, Session{User: "Amy"})

	if _, err := c.UpdateSharedSavings(context.Background(), 20000); err != nil {
		t.Fatalf("update savings: %v", err)
	}
	items, err := c.AddShoppingItem(context.Background(), "Milk")
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := c.DeleteShoppingItem(context.Background(), items[0].ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}

	want := []string{"Amy", "Amy", "Amy"}
	if len(sink.actors) != len(want) {
		t.Fatalf("published %d notifications, want %d", len(sink.actors), len(want))
	}
	for i, actor := range sink.actors {
		if actor != want[i] {
			t.Errorf("notification %d actor = %q, want %q", i, actor, want[i])
		}
	}
}

func TestSaveSubscriptionThenFetch(t *testing.T) {
	c, _ := newTestClient(t, "Amy")

	err := c.SaveSubscription(context.Background(), records.Subscription{
		Endpoint: "https://push/ep1",
		P256dh:   "k",
		Auth:     "a",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	subs, err := c.FetchSubscriptions(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(subs) != 1 || subs[0].User != "Amy" || subs[0].Endpoint != "https://push/ep1" {
		t.Fatalf("subscriptions = %+v", subs)
	}
}
