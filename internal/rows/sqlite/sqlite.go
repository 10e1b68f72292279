// Package sqlite provides a sqlite-backed row store. Rows keep their
// positional semantics: cells are stored as a JSON array of strings and
// storage order is the append order.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lherwood/expense-tracker/internal/rows"
)

var _ rows.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs
// migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) sheetExists(ctx context.Context, sheet string) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM sheets WHERE name = ?`, sheet).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &rows.BackendError{Op: "lookup sheet", Err: err}
	}
	return true, nil
}

func (s *Store) EnsureSheet(ctx context.Context, sheet string, header []string) error {
	exists, err := s.sheetExists(ctx, sheet)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &rows.BackendError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO sheets (name) VALUES (?)`, sheet); err != nil {
		return &rows.BackendError{Op: "create sheet", Err: err}
	}
	cells, err := json.Marshal(header)
	if err != nil {
		return &rows.BackendError{Op: "encode header", Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sheet_rows (sheet, position, cells) VALUES (?, 1, ?)`,
		sheet, string(cells)); err != nil {
		return &rows.BackendError{Op: "write header", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &rows.BackendError{Op: "commit", Err: err}
	}
	return nil
}

func (s *Store) List(ctx context.Context, sheet string) ([][]string, error) {
	exists, err := s.sheetExists(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, rows.ErrNoSheet
	}

	rs, err := s.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY position`, sheet)
	if err != nil {
		return nil, &rows.BackendError{Op: "list rows", Err: err}
	}
	defer rs.Close()

	var out [][]string
	for rs.Next() {
		var raw string
		if err := rs.Scan(&raw); err != nil {
			return nil, &rows.BackendError{Op: "scan row", Err: err}
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, &rows.BackendError{Op: "decode row", Err: err}
		}
		out = append(out, cells)
	}
	if err := rs.Err(); err != nil {
		return nil, &rows.BackendError{Op: "iterate rows", Err: err}
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, sheet string, row []string) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return &rows.BackendError{Op: "encode row", Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sheet_rows (sheet, position, cells)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM sheet_rows WHERE sheet = ?), ?)`,
		sheet, sheet, string(cells))
	if err != nil {
		return &rows.BackendError{Op: "append row", Err: err}
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, sheet string, id string) error {
	exists, err := s.sheetExists(ctx, sheet)
	if err != nil {
		return err
	}
	if !exists {
		return rows.ErrNoSheet
	}

	rs, err := s.db.QueryContext(ctx,
		`SELECT position, cells FROM sheet_rows WHERE sheet = ? ORDER BY position`, sheet)
	if err != nil {
		return &rows.BackendError{Op: "scan for id", Err: err}
	}
	defer rs.Close()

	target := int64(-1)
	for rs.Next() {
		var pos int64
		var raw string
		if err := rs.Scan(&pos, &raw); err != nil {
			return &rows.BackendError{Op: "scan row", Err: err}
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return &rows.BackendError{Op: "decode row", Err: err}
		}
		if len(cells) > 0 && strings.TrimSpace(cells[0]) == strings.TrimSpace(id) {
			target = pos
			break
		}
	}
	if err := rs.Err(); err != nil {
		return &rows.BackendError{Op: "iterate rows", Err: err}
	}
	// Release the read cursor before writing; a break above leaves it
	// open, and its connection would block the delete with SQLITE_BUSY.
	rs.Close()
	if target < 0 {
		return rows.ErrNotFound
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sheet_rows WHERE sheet = ? AND position = ?`, sheet, target); err != nil {
		return &rows.BackendError{Op: "delete row", Err: err}
	}
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, sheet string, rowIndex, colIndex int, value string) error {
	exists, err := s.sheetExists(ctx, sheet)
	if err != nil {
		return err
	}
	if !exists {
		return rows.ErrNoSheet
	}

	// Positions are dense append order, so the Nth stored row is row N.
	rs, err := s.db.QueryContext(ctx,
		`SELECT position, cells FROM sheet_rows WHERE sheet = ? ORDER BY position`, sheet)
	if err != nil {
		return &rows.BackendError{Op: "read rows", Err: err}
	}
	defer rs.Close()

	var positions []int64
	var rowsCells [][]string
	for rs.Next() {
		var pos int64
		var raw string
		if err := rs.Scan(&pos, &raw); err != nil {
			return &rows.BackendError{Op: "scan row", Err: err}
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return &rows.BackendError{Op: "decode row", Err: err}
		}
		positions = append(positions, pos)
		rowsCells = append(rowsCells, cells)
	}
	if err := rs.Err(); err != nil {
		return &rows.BackendError{Op: "iterate rows", Err: err}
	}

	// Extend with blank rows when the target is past the end.
	for len(rowsCells) < rowIndex {
		nextPos := int64(1)
		if n := len(positions); n > 0 {
			nextPos = positions[n-1] + 1
		}
		positions = append(positions, nextPos)
		rowsCells = append(rowsCells, nil)
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO sheet_rows (sheet, position, cells) VALUES (?, ?, ?)`,
			sheet, nextPos, "[]"); err != nil {
			return &rows.BackendError{Op: "extend rows", Err: err}
		}
	}

	cells := rowsCells[rowIndex-1]
	for len(cells) < colIndex {
		cells = append(cells, "")
	}
	cells[colIndex-1] = value

	raw, err := json.Marshal(cells)
	if err != nil {
		return &rows.BackendError{Op: "encode row", Err: err}
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sheet_rows SET cells = ? WHERE sheet = ? AND position = ?`,
		string(raw), sheet, positions[rowIndex-1]); err != nil {
		return &rows.BackendError{Op: "update cell", Err: err}
	}
	return nil
}

func (s *Store) UpsertByField(ctx context.Context, sheet string, fieldIndex int, matchValue string, row []string) error {
	exists, err := s.sheetExists(ctx, sheet)
	if err != nil {
		return err
	}
	if !exists {
		return rows.ErrNoSheet
	}

	rs, err := s.db.QueryContext(ctx,
		`SELECT position, cells FROM sheet_rows WHERE sheet = ? ORDER BY position`, sheet)
	if err != nil {
		return &rows.BackendError{Op: "scan for match", Err: err}
	}
	defer rs.Close()

	target := int64(-1)
	for rs.Next() {
		var pos int64
		var raw string
		if err := rs.Scan(&pos, &raw); err != nil {
			return &rows.BackendError{Op: "scan row", Err: err}
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return &rows.BackendError{Op: "decode row", Err: err}
		}
		if fieldIndex < len(cells) && strings.TrimSpace(cells[fieldIndex]) == strings.TrimSpace(matchValue) {
			target = pos
			break
		}
	}
	if err := rs.Err(); err != nil {
		return &rows.BackendError{Op: "iterate rows", Err: err}
	}
	// Release the read cursor before writing; a break above leaves it
	// open, and its connection would block the update with SQLITE_BUSY.
	rs.Close()

	raw, err := json.Marshal(row)
	if err != nil {
		return &rows.BackendError{Op: "encode row", Err: err}
	}
	if target >= 0 {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE sheet_rows SET cells = ? WHERE sheet = ? AND position = ?`,
			string(raw), sheet, target); err != nil {
			return &rows.BackendError{Op: "overwrite row", Err: err}
		}
		return nil
	}
	return s.Append(ctx, sheet, row)
}
