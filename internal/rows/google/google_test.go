package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestEnsureSheetLeavesExistingSheetAlone(t *testing.T) {
	var writes []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodGet {
			writes = append(writes, r.Method+" "+r.URL.Path)
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"sheetId":7,"title":"Expenses"}}]}`))
	}))
	defer ts.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(ts.URL),
		goption.WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	c := &Client{svc: svc, spreadsheetID: "sheet-id"}

	// A sheet whose first row holds data instead of a header must keep
	// that row; only addHeaders may rewrite row 1.
	if err := c.EnsureSheet(context.Background(), "Expenses", []string{"id", "paidBy", "amount"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(writes) != 0 {
		t.Fatalf("existing sheet must not be written to, got %v", writes)
	}
}

func TestColumnLetter(t *testing.T) {
	cases := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{6, "F"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{0, "A"}, // clamped
	}
	for _, tc := range cases {
		if got := columnLetter(tc.col); got != tc.want {
			t.Errorf("columnLetter(%d) = %q want %q", tc.col, got, tc.want)
		}
	}
}

func TestToStringsTrims(t *testing.T) {
	got := toStrings([]any{" a ", 42, 1.5, true})
	want := []string{"a", "42", "1.5", "true"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("toStrings = %v want %v", got, want)
		}
	}
}

func TestIsMissingSheet(t *testing.T) {
	missing := &googleapi.Error{Code: 400, Message: "Unable to parse range: ShoppingList!A:Z"}
	if !isMissingSheet(missing) {
		t.Error("range-parse failure must map to a missing sheet")
	}
	if isMissingSheet(&googleapi.Error{Code: 403, Message: "forbidden"}) {
		t.Error("permission failure is not a missing sheet")
	}
	if isMissingSheet(errors.New("dial tcp: timeout")) {
		t.Error("transport failure is not a missing sheet")
	}
}
