// Package records maps typed records to and from positional rows.
//
// Each collection has one Schema: the sheet name, the canonical header
// row, and named field indexes. All row access goes through this package
// so that no caller hard-codes a column position.
package records

import (
	"strconv"
	"strings"
	"time"
)

// Schema describes one collection's fixed column layout.
type Schema struct {
	Sheet  string
	Header []string
}

// Field returns the 0-based column index of a named field, or -1.
func (s Schema) Field(name string) int {
	for i, h := range s.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// IsHeader reports whether row is the collection's header row. Detection
// compares the first three cells against the canonical header strings
// (one cell for single-column collections). A non-matching first row is
// presumed to be data.
func (s Schema) IsHeader(row []string) bool {
	n := 3
	if len(s.Header) < n {
		n = len(s.Header)
	}
	for i := 0; i < n; i++ {
		if i >= len(row) || strings.TrimSpace(row[i]) != s.Header[i] {
			return false
		}
	}
	return true
}

var (
	Expenses = Schema{
		Sheet:  "Expenses",
		Header: []string{"id", "paidBy", "amount", "category", "description", "date"},
	}
	ShoppingList = Schema{
		Sheet:  "ShoppingList",
		Header: []string{"id", "item", "addedBy", "addedDate", "completed"},
	}
	SharedSavings = Schema{
		Sheet:  "SharedSavings",
		Header: []string{"amount"},
	}
	PushSubscriptions = Schema{
		Sheet:  "PushSubscriptions",
		Header: []string{"user", "endpoint", "p256dh", "auth", "timestamp"},
	}
)

// DefaultSavings is written when the SharedSavings collection is first
// created.
const DefaultSavings = 15000

// Fallbacks for partially populated rows.
const (
	DefaultCategory = "Other"
	DefaultPaidBy   = "Unknown"
)

type Expense struct {
	ID          string  `json:"id"`
	PaidBy      string  `json:"paidBy"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

type ShoppingItem struct {
	ID        string `json:"id"`
	Item      string `json:"item"`
	AddedBy   string `json:"addedBy"`
	AddedDate string `json:"addedDate"`
	Completed bool   `json:"completed"`
}

type Subscription struct {
	User      string `json:"user"`
	Endpoint  string `json:"endpoint"`
	P256dh    string `json:"p256dh"`
	Auth      string `json:"auth"`
	Timestamp string `json:"timestamp"`
}

// Today returns the default date string for missing date fields.
func Today() string {
	return time.Now().Format("2006-01-02")
}

// DataRows strips the header row (when present) and drops rows with no
// non-whitespace content. The backing store permits both.
func DataRows(s Schema, values [][]string) [][]string {
	out := make([][]string, 0, len(values))
	for i, row := range values {
		if i == 0 && s.IsHeader(row) {
			continue
		}
		if isBlank(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ExpenseFromRow maps one data row to an Expense, substituting fallback
// defaults for missing fields.
func ExpenseFromRow(row []string) Expense {
	e := Expense{
		ID:          cell(row, 0),
		PaidBy:      cell(row, 1),
		Category:    cell(row, 3),
		Description: cell(row, 4),
		Date:        cell(row, 5),
	}
	e.Amount = parseAmount(cell(row, 2))
	if e.PaidBy == "" {
		e.PaidBy = DefaultPaidBy
	}
	if e.Category == "" {
		e.Category = DefaultCategory
	}
	if e.Date == "" {
		e.Date = Today()
	}
	return e
}

// Row returns the positional row for an Expense.
func (e Expense) Row() []string {
	return []string{
		e.ID,
		e.PaidBy,
		FormatAmount(e.Amount),
		e.Category,
		e.Description,
		e.Date,
	}
}

// ShoppingItemFromRow maps one data row to a ShoppingItem. Older rows
// omit the completed column; it defaults to false.
func ShoppingItemFromRow(row []string) ShoppingItem {
	it := ShoppingItem{
		ID:        cell(row, 0),
		Item:      cell(row, 1),
		AddedBy:   cell(row, 2),
		AddedDate: cell(row, 3),
	}
	it.Completed = parseBool(cell(row, 4))
	if it.AddedBy == "" {
		it.AddedBy = DefaultPaidBy
	}
	if it.AddedDate == "" {
		it.AddedDate = Today()
	}
	return it
}

func (it ShoppingItem) Row() []string {
	return []string{
		it.ID,
		it.Item,
		it.AddedBy,
		it.AddedDate,
		strconv.FormatBool(it.Completed),
	}
}

// SubscriptionFromRow maps one data row to a Subscription.
func SubscriptionFromRow(row []string) Subscription {
	return Subscription{
		User:      cell(row, 0),
		Endpoint:  cell(row, 1),
		P256dh:    cell(row, 2),
		Auth:      cell(row, 3),
		Timestamp: cell(row, 4),
	}
}

func (s Subscription) Row() []string {
	return []string{s.User, s.Endpoint, s.P256dh, s.Auth, s.Timestamp}
}

// ParseAmount parses a decimal amount, returning ok=false for anything
// non-numeric. Decimal commas are accepted.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseAmount(s string) float64 {
	f, _ := ParseAmount(s)
	return f
}

// FormatAmount renders a decimal amount the way the store expects:
// shortest representation that round-trips.
func FormatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}
