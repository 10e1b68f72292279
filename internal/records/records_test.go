package records

import "testing"

func TestHeaderDetection(t *testing.T) {
	cases := []struct {
		name string
		s    Schema
		row  []string
		want bool
	}{
		{"expenses header", Expenses, []string{"id", "paidBy", "amount", "category", "description", "date"}, true},
		{"expenses header padded", Expenses, []string{" id ", "paidBy", "amount"}, true},
		{"expenses data", Expenses, []string{"1", "Amy", "50", "Groceries", "", "2024-01-01"}, false},
		{"shopping header", ShoppingList, []string{"id", "item", "addedBy", "addedDate", "completed"}, true},
		{"savings header", SharedSavings, []string{"amount"}, true},
		{"savings data", SharedSavings, []string{"15000"}, false},
	}
	for _, tc := range cases {
		if got := tc.s.IsHeader(tc.row); got != tc.want {
			t.Errorf("%s: IsHeader=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestDataRowsStripsHeaderAndBlanks(t *testing.T) {
	values := [][]string{
		{"id", "paidBy", "amount", "category", "description", "date"},
		{"1", "Amy", "50", "Groceries", "", "2024-01-01"},
		{"", "  ", ""},
		{"2", "Ben", "12.50", "Transport", "bus", "2024-01-02"},
	}
	rows := DataRows(Expenses, values)
	if len(rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "1" || rows[1][0] != "2" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	// A first row that is not the canonical header is presumed data.
	all := DataRows(Expenses, [][]string{{"9", "Amy", "1", "Other", "", "2024-01-01"}})
	if len(all) != 1 {
		t.Fatalf("non-header first row must be kept, got %v", all)
	}
}

func TestExpenseFromRowDefaults(t *testing.T) {
	e := ExpenseFromRow([]string{"1", "Amy", "50", "Groceries", "", "2024-01-01"})
	want := Expense{ID: "1", PaidBy: "Amy", Amount: 50, Category: "Groceries", Description: "", Date: "2024-01-01"}
	if e != want {
		t.Fatalf("got %+v want %+v", e, want)
	}

	// Partially populated row falls back to defaults.
	e = ExpenseFromRow([]string{"2"})
	if e.PaidBy != DefaultPaidBy {
		t.Errorf("missing paidBy: got %q want %q", e.PaidBy, DefaultPaidBy)
	}
	if e.Category != DefaultCategory {
		t.Errorf("missing category: got %q want %q", e.Category, DefaultCategory)
	}
	if e.Date == "" {
		t.Error("missing date must default to today")
	}
	if e.Amount != 0 {
		t.Errorf("missing amount: got %v want 0", e.Amount)
	}
}

func TestShoppingItemFromRowDefaults(t *testing.T) {
	it := ShoppingItemFromRow([]string{"1700000000000", "Milk", "Amy", "2024-01-01", "true"})
	if !it.Completed || it.Item != "Milk" {
		t.Fatalf("unexpected item: %+v", it)
	}

	// Variants without the completed column default to false.
	it = ShoppingItemFromRow([]string{"1700000000001", "Bread", "Ben", "2024-01-02"})
	if it.Completed {
		t.Fatalf("completed must default to false: %+v", it)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"50", 50, true},
		{"12.50", 12.5, true},
		{"12,50", 12.5, true},
		{" 7 ", 7, true},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseAmount(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRowRoundTrip(t *testing.T) {
	e := Expense{ID: "1", PaidBy: "Amy", Amount: 12.5, Category: "Groceries", Description: "milk", Date: "2024-01-01"}
	got := ExpenseFromRow(e.Row())
	if got != e {
		t.Fatalf("round trip: got %+v want %+v", got, e)
	}

	sub := Subscription{User: "Amy", Endpoint: "https://push/ep", P256dh: "k1", Auth: "k2", Timestamp: "2024-01-01"}
	if SubscriptionFromRow(sub.Row()) != sub {
		t.Fatalf("subscription round trip failed")
	}
}
