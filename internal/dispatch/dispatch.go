// Package dispatch implements the backend request dispatcher: a flat
// (method, action) table where every action maps to one row-store
// operation. Responses always carry a JSON body.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lherwood/expense-tracker/internal/notify"
	"github.com/lherwood/expense-tracker/internal/records"
	"github.com/lherwood/expense-tracker/internal/rows"
)

// Notifier receives a notification event for fanout to subscribers.
// The actor is excluded from delivery downstream.
type Notifier interface {
	Publish(ctx context.Context, actor string, payload notify.Payload) error
}

// Params are the flattened request parameters (query string or form).
type Params map[string]string

// Result is a dispatch outcome: an HTTP status and a JSON-encodable body.
type Result struct {
	Status int
	Body   any
}

type listBody struct {
	Values [][]string `json:"values"`
}

type successBody struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func ok() Result                       { return Result{http.StatusOK, successBody{Success: true}} }
func okMsg(msg string) Result          { return Result{http.StatusOK, successBody{Success: true, Message: msg}} }
func values(v [][]string) Result       { return Result{http.StatusOK, listBody{Values: v}} }
func fail(status int, msg string) Result { return Result{status, errorBody{Error: msg}} }

type Dispatcher struct {
	store  rows.Store
	events Notifier
	now    func() time.Time
}

func New(store rows.Store) *Dispatcher {
	return &Dispatcher{store: store, now: time.Now}
}

// WithClock overrides the time source. Test helper.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// WithNotifier enables notification fanout for mutations.
func (d *Dispatcher) WithNotifier(n Notifier) *Dispatcher {
	d.events = n
	return d
}

// publish hands a notification to the fanout channel. Best effort: a
// broker outage must not fail the mutation that triggered it.
func (d *Dispatcher) publish(ctx context.Context, actor string, payload notify.Payload) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, actor, payload); err != nil {
		slog.WarnContext(ctx, "Notification publish failed", "actor", actor, "title", payload.Title, "error", err)
	}
}

// Dispatch routes one request. The method key is the request's declared
// method parameter, not the transport verb; GET with no action lists
// expenses, matching the historical contract.
func (d *Dispatcher) Dispatch(ctx context.Context, method, action string, params Params) Result {
	var res Result
	switch {
	case method == http.MethodGet && action == "":
		res = d.listCollection(ctx, records.Expenses)
	case method == http.MethodGet && action == "getShoppingList":
		res = d.listCollection(ctx, records.ShoppingList)
	case method == http.MethodGet && action == "getSharedSavings":
		res = d.getSharedSavings(ctx)
	case method == http.MethodGet && action == "getPushSubscriptions":
		res = d.listCollection(ctx, records.PushSubscriptions)
	case method == http.MethodPost && action == "addExpense":
		res = d.addExpense(ctx, params)
	case method == http.MethodPost && action == "deleteExpense":
		res = d.deleteExpense(ctx, params)
	case method == http.MethodPost && action == "addHeaders":
		res = d.addHeaders(ctx)
	case method == http.MethodPost && action == "addShoppingItem":
		res = d.addShoppingItem(ctx, params)
	case method == http.MethodPost && action == "deleteShoppingItem":
		res = d.deleteShoppingItem(ctx, params)
	case method == http.MethodPost && action == "updateSharedSavings":
		res = d.updateSharedSavings(ctx, params)
	case method == http.MethodPost && action == "saveSubscription":
		res = d.saveSubscription(ctx, params)
	default:
		res = fail(http.StatusBadRequest, "Invalid method or action")
	}

	if res.Status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Dispatch failed", "method", method, "action", action, "status", res.Status)
	}
	return res
}

// listCollection returns the raw rows of a collection, header included.
// A missing collection is an empty list, not an error.
func (d *Dispatcher) listCollection(ctx context.Context, schema records.Schema) Result {
	vals, err := d.store.List(ctx, schema.Sheet)
	if err != nil {
		if errors.Is(err, rows.ErrNoSheet) {
			return values([][]string{})
		}
		return fail(http.StatusInternalServerError, err.Error())
	}
	if vals == nil {
		vals = [][]string{}
	}
	return values(vals)
}

// getSharedSavings lazily creates the collection with the default value
// on first read.
func (d *Dispatcher) getSharedSavings(ctx context.Context) Result {
	vals, err := d.store.List(ctx, records.SharedSavings.Sheet)
	if errors.Is(err, rows.ErrNoSheet) {
		if err := d.store.EnsureSheet(ctx, records.SharedSavings.Sheet, records.SharedSavings.Header); err != nil {
			return fail(http.StatusInternalServerError, err.Error())
		}
		amount := strconv.Itoa(records.DefaultSavings)
		if err := d.store.UpdateCell(ctx, records.SharedSavings.Sheet, 2, 1, amount); err != nil {
			return fail(http.StatusInternalServerError, err.Error())
		}
		slog.InfoContext(ctx, "Created shared savings with default value", "amount", amount)
		return values([][]string{{amount}})
	}
	if err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}
	return values(vals)
}

func (d *Dispatcher) addExpense(ctx context.Context, params Params) Result {
	id := params["id"]
	paidBy := params["paidBy"]
	if id == "" || paidBy == "" {
		return fail(http.StatusBadRequest, "Missing required expense fields")
	}
	amount, okAmt := records.ParseAmount(params["amount"])
	if !okAmt {
		return fail(http.StatusBadRequest, "Invalid amount")
	}
	category := params["category"]
	if category == "" {
		category = records.DefaultCategory
	}
	date := params["date"]
	if date == "" {
		date = records.Today()
	}

	if err := d.store.EnsureSheet(ctx, records.Expenses.Sheet, records.Expenses.Header); err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}

	exp := records.Expense{
		ID:          id,
		PaidBy:      paidBy,
		Amount:      amount,
		Category:    category,
		Description: params["description"],
		Date:        date,
	}
	if err := d.store.Append(ctx, records.Expenses.Sheet, exp.Row()); err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}
	slog.InfoContext(ctx, "Added expense", "id", id, "paid_by", paidBy, "amount", amount, "category", category)
	d.publish(ctx, paidBy, notify.ExpenseAdded(paidBy, amount, category))
	return ok()
}

func (d *Dispatcher) deleteExpense(ctx context.Context, params Params) Result {
	id := params["id"]
	if id == "" {
		return fail(http.StatusBadRequest, "Missing id")
	}
	err := d.store.DeleteByID(ctx, records.Expenses.Sheet, id)
	switch {
	case errors.Is(err, rows.ErrNoSheet):
		return fail(http.StatusNotFound, "Expenses sheet not found")
	case errors.Is(err, rows.ErrNotFound):
		return fail(http.StatusNotFound, "Expense not found")
	case err != nil:
		return fail(http.StatusInternalServerError, err.Error())
	}
	slog.InfoContext(ctx, "Deleted expense", "id", id)
	return ok()
}

// addHeaders writes the canonical expense header row. Idempotent: when
// the first cells already match, nothing is rewritten.
func (d *Dispatcher) addHeaders(ctx context.Context) Result {
	vals, err := d.store.List(ctx, records.Expenses.Sheet)
	if errors.Is(err, rows.ErrNoSheet) {
		return fail(http.StatusNotFound, "Expenses sheet not found")
	}
	if err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}
	if len(vals) > 0 && records.Expenses.IsHeader(vals[0]) {
		return okMsg("Headers already exist")
	}
	for i, h := range records.Expenses.Header {
		if err := d.store.UpdateCell(ctx, records.Expenses.Sheet, 1, i+1, h); err != nil {
			return fail(http.StatusInternalServerError, err.Error())
		}
	}
	slog.InfoContext(ctx, "Added expense headers")
	return ok()
}

func (d *Dispatcher) addShoppingItem(ctx context.Context, params Params) Result {
	item := params["item"]
	addedBy := params["addedBy"]
	if item == "" || addedBy == "" {
		return fail(http.StatusBadRequest, "Missing item or addedBy")
	}
	addedDate := params["addedDate"]
	if addedDate == "" {
		addedDate = records.Today()
	}

	if err := d.store.EnsureSheet(ctx, records.ShoppingList.Sheet, records.ShoppingList.Header); err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}

	it := records.ShoppingItem{
		ID:        strconv.FormatInt(d.now().UnixMilli(), 10),
		Item:      item,
		AddedBy:   addedBy,
		AddedDate: addedDate,
		Completed: false,
	}
	if err := d.store.Append(ctx, records.ShoppingList.Sheet, it.Row()); err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}
	slog.InfoContext(ctx, "Added shopping item", "id", it.ID, "item", item, "added_by", addedBy)
	d.publish(ctx, addedBy, notify.ShoppingItemAdded(addedBy, item))
	return ok()
}

func (d *Dispatcher) deleteShoppingItem(ctx context.Context, params Params) Result {
	id := params["id"]
	if id == "" {
		return fail(http.StatusBadRequest, "Missing id")
	}
	// Resolve the item name before the row disappears.
	itemName := d.lookupShoppingItem(ctx, id)
	err := d.store.DeleteByID(ctx, records.ShoppingList.Sheet, id)
	switch {
	case errors.Is(err, rows.ErrNoSheet):
		return fail(http.StatusNotFound, "Shopping list sheet not found")
	case errors.Is(err, rows.ErrNotFound):
		return fail(http.StatusNotFound, "Shopping item not found")
	case err != nil:
		return fail(http.StatusInternalServerError, err.Error())
	}
	slog.InfoContext(ctx, "Deleted shopping item", "id", id)
	if itemName != "" {
		d.publish(ctx, params["user"], notify.ShoppingItemRemoved(params["user"], itemName))
	}
	return ok()
}

func (d *Dispatcher) lookupShoppingItem(ctx context.Context, id string) string {
	vals, err := d.store.List(ctx, records.ShoppingList.Sheet)
	if err != nil {
		return ""
	}
	for _, row := range records.DataRows(records.ShoppingList, vals) {
		it := records.ShoppingItemFromRow(row)
		if it.ID == id {
			return it.Item
		}
	}
	return ""
}

func (d *Dispatcher) updateSharedSavings(ctx context.Context, params Params) Result {
	amount, okAmt := records.ParseAmount(params["amount"])
	if !okAmt {
		return fail(http.StatusBadRequest, "Invalid amount")
	}
	if err := d.store.EnsureSheet(ctx, records.SharedSavings.Sheet, records.SharedSavings.Header); err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}
	// Blind overwrite of the single value cell; last write wins.
	if err := d.store.UpdateCell(ctx, records.SharedSavings.Sheet, 2, 1, records.FormatAmount(amount)); err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}
	slog.InfoContext(ctx, "Updated shared savings", "amount", amount)
	d.publish(ctx, params["user"], notify.SavingsUpdated(params["user"], amount))
	return ok()
}

func (d *Dispatcher) saveSubscription(ctx context.Context, params Params) Result {
	sub := records.Subscription{
		User:      params["user"],
		Endpoint:  params["endpoint"],
		P256dh:    params["p256dh"],
		Auth:      params["auth"],
		Timestamp: d.now().Format(time.RFC3339),
	}
	if sub.User == "" || sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return fail(http.StatusBadRequest, "Missing subscription fields")
	}

	if err := d.store.EnsureSheet(ctx, records.PushSubscriptions.Sheet, records.PushSubscriptions.Header); err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}
	// One subscription per user: overwrite in place when the user
	// already has one.
	userField := records.PushSubscriptions.Field("user")
	if err := d.store.UpsertByField(ctx, records.PushSubscriptions.Sheet, userField, sub.User, sub.Row()); err != nil {
		return fail(http.StatusInternalServerError, err.Error())
	}
	slog.InfoContext(ctx, "Saved push subscription", "user", sub.User)
	return ok()
}
