// Package client is the typed sync layer over the backend's row
// transport. Every mutation re-fetches the full collection afterwards,
// so callers always hold the backend's view rather than a local guess.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lherwood/expense-tracker/internal/records"
)

// APIError carries the backend's error string alongside the status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
}

// Session identifies the acting user for mutations and notifications.
type Session struct {
	User string
}

type Client struct {
	baseURL string
	http    *http.Client
	session Session
	now     func() time.Time
}

func New(baseURL string, session Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: session,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Test helper.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

type apiResponse struct {
	Values  [][]string `json:"values"`
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Error   string     `json:"error"`
}

// do issues one backend request. All parameters travel in the query
// string regardless of verb.
func (c *Client) do(ctx context.Context, method, action string, params url.Values) (*apiResponse, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("method", method)
	if action != "" {
		params.Set("action", action)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, action, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", method, action, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return &parsed, nil
}

// FetchExpenses returns all expenses, header stripped, blank rows
// filtered, defaults applied.
func (c *Client) FetchExpenses(ctx context.Context) ([]records.Expense, error) {
	resp, err := c.do(ctx, http.MethodGet, "", nil)
	if err != nil {
		return nil, err
	}
	rows := records.DataRows(records.Expenses, resp.Values)
	expenses := make([]records.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, records.ExpenseFromRow(row))
	}
	return expenses, nil
}

// AddExpense records an expense and returns the refreshed collection.
// A missing id is filled with the current time in milliseconds.
func (c *Client) AddExpense(ctx context.Context, exp records.Expense) ([]records.Expense, error) {
	if exp.ID == "" {
		exp.ID = strconv.FormatInt(c.now().UnixMilli(), 10)
	}
	if exp.PaidBy == "" {
		exp.PaidBy = c.session.User
	}
	if exp.Date == "" {
		exp.Date = records.Today()
	}

	params := url.Values{}
	params.Set("id", exp.ID)
	params.Set("paidBy", exp.PaidBy)
	params.Set("amount", records.FormatAmount(exp.Amount))
	params.Set("category", exp.Category)
	params.Set("description", exp.Description)
	params.Set("date", exp.Date)

	if _, err := c.do(ctx, http.MethodPost, "addExpense", params); err != nil {
		return nil, err
	}
	return c.FetchExpenses(ctx)
}

// DeleteExpense removes an expense and returns the refreshed collection.
func (c *Client) DeleteExpense(ctx context.Context, id string) ([]records.Expense, error) {
	params := url.Values{}
	params.Set("id", id)
	if _, err := c.do(ctx, http.MethodPost, "deleteExpense", params); err != nil {
		return nil, err
	}
	return c.FetchExpenses(ctx)
}

func (c *Client) FetchShoppingList(ctx context.Context) ([]records.ShoppingItem, error) {
	resp, err := c.do(ctx, http.MethodGet, "getShoppingList", nil)
	if err != nil {
		return nil, err
	}
	rows := records.DataRows(records.ShoppingList, resp.Values)
	items := make([]records.ShoppingItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, records.ShoppingItemFromRow(row))
	}
	return items, nil
}

// AddShoppingItem adds an item attributed to the session user and
// returns the refreshed list.
func (c *Client) AddShoppingItem(ctx context.Context, item string) ([]records.ShoppingItem, error) {
	params := url.Values{}
	params.Set("item", item)
	params.Set("addedBy", c.session.User)
	if _, err := c.do(ctx, http.MethodPost, "addShoppingItem", params); err != nil {
		return nil, err
	}
	return c.FetchShoppingList(ctx)
}

func (c *Client) DeleteShoppingItem(ctx context.Context, id string) ([]records.ShoppingItem, error) {
	params := url.Values{}
	params.Set("id", id)
	params.Set("user", c.session.User)
	if _, err := c.do(ctx, http.MethodPost, "deleteShoppingItem", params); err != nil {
		return nil, err
	}
	return c.FetchShoppingList(ctx)
}

// FetchSharedSavings returns the current savings amount. The backend
// creates the value on first read, so this never reports absence.
func (c *Client) FetchSharedSavings(ctx context.Context) (float64, error) {
	resp, err := c.do(ctx, http.MethodGet, "getSharedSavings", nil)
	if err != nil {
		return 0, err
	}
	// Last non-header row, first cell.
	rows := records.DataRows(records.SharedSavings, resp.Values)
	if len(rows) == 0 || len(rows[0]) == 0 {
		return records.DefaultSavings, nil
	}
	amount, valid := records.ParseAmount(rows[len(rows)-1][0])
	if !valid {
		return records.DefaultSavings, nil
	}
	return amount, nil
}

func (c *Client) UpdateSharedSavings(ctx context.Context, amount float64) (float64, error) {
	params := url.Values{}
	params.Set("amount", records.FormatAmount(amount))
	params.Set("user", c.session.User)
	if _, err := c.do(ctx, http.MethodPost, "updateSharedSavings", params); err != nil {
		return 0, err
	}
	return c.FetchSharedSavings(ctx)
}

// SaveSubscription registers the session user's push subscription.
func (c *Client) SaveSubscription(ctx context.Context, sub records.Subscription) error {
	params := url.Values{}
	params.Set("user", c.session.User)
	params.Set("endpoint", sub.Endpoint)
	params.Set("p256dh", sub.P256dh)
	params.Set("auth", sub.Auth)
	_, err := c.do(ctx, http.MethodPost, "saveSubscription", params)
	return err
}

// FetchSubscriptions returns every saved push subscription.
func (c *Client) FetchSubscriptions(ctx context.Context) ([]records.Subscription, error) {
	resp, err := c.do(ctx, http.MethodGet, "getPushSubscriptions", nil)
	if err != nil {
		return nil, err
	}
	rows := records.DataRows(records.PushSubscriptions, resp.Values)
	subs := make([]records.Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, records.SubscriptionFromRow(row))
	}
	return subs, nil
}
