// Package rows defines the port for positional row storage.
//
// A collection ("sheet") is an ordered list of rows; a row is an ordered
// list of string cells. Column meaning is positional and fixed per
// collection; see internal/records for the schema tables.
package rows

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoSheet reports that the named collection does not exist yet.
	ErrNoSheet = errors.New("sheet not found")

	// ErrNotFound reports that no row matched a delete-by-id scan.
	ErrNotFound = errors.New("row not found")
)

// ValidationError reports an invalid parameter before any store access.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// BackendError wraps a failure inside the backing store.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *BackendError) Unwrap() error { return e.Err }

// Store is the port for outbound row-store adapters.
//
// List returns rows in storage order, oldest first, header row included
// when present. Row and column indexes are 1-based, matching spreadsheet
// addressing. DeleteByID compares the id column (column 1) with loose
// string equality and removes the first match.
type Store interface {
	// EnsureSheet creates the collection with the given header row if it
	// does not exist. Calling it again is a no-op; it never duplicates
	// the header.
	EnsureSheet(ctx context.Context, sheet string, header []string) error

	// List returns all rows of the collection, or ErrNoSheet.
	List(ctx context.Context, sheet string) ([][]string, error)

	// Append adds one row at the end of the collection.
	Append(ctx context.Context, sheet string, row []string) error

	// DeleteByID removes the first row whose first cell equals id.
	// Returns ErrNotFound when no row matches, ErrNoSheet when the
	// collection is absent.
	DeleteByID(ctx context.Context, sheet string, id string) error

	// UpdateCell overwrites a single cell (1-based row and column).
	UpdateCell(ctx context.Context, sheet string, rowIndex, colIndex int, value string) error

	// UpsertByField overwrites the first row whose cell at fieldIndex
	// (0-based) equals matchValue, or appends the row when none matches.
	UpsertByField(ctx context.Context, sheet string, fieldIndex int, matchValue string, row []string) error
}
