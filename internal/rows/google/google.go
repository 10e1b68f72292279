// Package google implements the row store on a Google Sheets
// spreadsheet. Each collection is one sheet (tab) of the spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/lherwood/expense-tracker/internal/rows"
)

var _ rows.Store = (*Client)(nil)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// NewFromEnv creates a Sheets-backed store using environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// sheetID returns the numeric id of the named sheet, or rows.ErrNoSheet.
func (c *Client) sheetID(ctx context.Context, sheet string) (int64, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, &rows.BackendError{Op: "get spreadsheet metadata", Err: err}
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			return s.Properties.SheetId, nil
		}
	}
	return 0, rows.ErrNoSheet
}

func (c *Client) EnsureSheet(ctx context.Context, sheet string, header []string) error {
	// An existing sheet is left alone, whatever its first row holds;
	// header repair is the addHeaders action's job.
	_, err := c.sheetID(ctx, sheet)
	if err == nil {
		return nil
	}
	if !errors.Is(err, rows.ErrNoSheet) {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: sheet},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return &rows.BackendError{Op: fmt.Sprintf("create sheet %s", sheet), Err: err}
	}
	slog.InfoContext(ctx, "Created sheet", "sheet", sheet)

	// Not atomic with the creation above: a failure here leaves a
	// headerless sheet, which readers must tolerate.
	return c.writeHeader(ctx, sheet, header)
}

func (c *Client) writeHeader(ctx context.Context, sheet string, header []string) error {
	rng := fmt.Sprintf("%s!A1:%s1", sheet, columnLetter(len(header)))
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(header)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return &rows.BackendError{Op: fmt.Sprintf("write header for %s", sheet), Err: err}
	}
	return nil
}

func (c *Client) List(ctx context.Context, sheet string) ([][]string, error) {
	rng := fmt.Sprintf("%s!A:Z", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		if isMissingSheet(err) {
			return nil, rows.ErrNoSheet
		}
		return nil, &rows.BackendError{Op: fmt.Sprintf("read %s", rng), Err: err}
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = toStrings(row)
	}
	return out, nil
}

func (c *Client) Append(ctx context.Context, sheet string, row []string) error {
	rng := fmt.Sprintf("%s!A:%s", sheet, columnLetter(len(row)))
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(row)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return &rows.BackendError{Op: fmt.Sprintf("append to %s", sheet), Err: err}
	}
	return nil
}

func (c *Client) DeleteByID(ctx context.Context, sheet string, id string) error {
	values, err := c.List(ctx, sheet)
	if err != nil {
		return err
	}
	target := -1
	for i, row := range values {
		if len(row) > 0 && strings.TrimSpace(row[0]) == strings.TrimSpace(id) {
			target = i
			break
		}
	}
	if target < 0 {
		return rows.ErrNotFound
	}

	sid, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sid,
					Dimension:  "ROWS",
					StartIndex: int64(target),
					EndIndex:   int64(target + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return &rows.BackendError{Op: fmt.Sprintf("delete row %d from %s", target+1, sheet), Err: err}
	}
	return nil
}

func (c *Client) UpdateCell(ctx context.Context, sheet string, rowIndex, colIndex int, value string) error {
	rng := fmt.Sprintf("%s!%s%d", sheet, columnLetter(colIndex), rowIndex)
	vr := &gsheet.ValueRange{Values: [][]any{{value}}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		if isMissingSheet(err) {
			return rows.ErrNoSheet
		}
		return &rows.BackendError{Op: fmt.Sprintf("update %s", rng), Err: err}
	}
	return nil
}

func (c *Client) UpsertByField(ctx context.Context, sheet string, fieldIndex int, matchValue string, row []string) error {
	values, err := c.List(ctx, sheet)
	if err != nil {
		return err
	}
	target := -1
	for i, existing := range values {
		if fieldIndex < len(existing) && strings.TrimSpace(existing[fieldIndex]) == strings.TrimSpace(matchValue) {
			target = i
			break
		}
	}
	if target < 0 {
		return c.Append(ctx, sheet, row)
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, target+1, columnLetter(len(row)), target+1)
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(row)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return &rows.BackendError{Op: fmt.Sprintf("overwrite %s", rng), Err: err}
	}
	return nil
}

// isMissingSheet reports whether the API rejected a range because the
// sheet (tab) does not exist.
func isMissingSheet(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 400 && strings.Contains(gerr.Message, "Unable to parse range")
	}
	return false
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toAnys(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// columnLetter converts a 1-based column index to A1 notation.
func columnLetter(col int) string {
	if col < 1 {
		col = 1
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
