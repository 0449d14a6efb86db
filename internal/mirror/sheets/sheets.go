// Package sheets mirrors saved snapshots to a Google spreadsheet. Each
// user gets one tab, rewritten on every push with the transactions of all
// partitions. The mirror is a read-only audit trail; nothing is ever read
// back from the spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"budget/internal/snapshot"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ snapshot.Mirror = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
	}, nil
}

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

// Push implements snapshot.Mirror. The user's tab is cleared and rewritten
// with a header and one row per transaction across all partitions.
func (c *Client) Push(ctx context.Context, userID string, snap snapshot.Snapshot) error {
	tab := sheetTitle(userID)
	if err := c.ensureSheet(ctx, tab); err != nil {
		return fmt.Errorf("ensure sheet %q: %w", tab, err)
	}

	clearRange := fmt.Sprintf("%s!A:G", tab)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	values := snapshotRows(snap)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1", tab), &gsheet.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot mirrored to Google Sheets",
		"user_id", userID,
		"sheet", tab,
		"rows", len(values)-1)

	return nil
}

// ensureSheet adds the user's tab when it does not exist yet.
func (c *Client) ensureSheet(ctx context.Context, title string) error {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	return nil
}

func snapshotRows(snap snapshot.Snapshot) [][]interface{} {
	rows := [][]interface{}{
		{"Account", "Date", "Description", "Category", "Amount", "Type", "State"},
	}
	for _, acc := range snap.Accounts {
		data := snap.AccountsData[acc.ID]
		for _, t := range data.Transactions {
			rows = append(rows, []interface{}{
				acc.Name,
				t.Date,
				t.Description,
				t.Category,
				t.Amount.String(),
				t.Type,
				t.State,
			})
		}
	}
	return rows
}

// sheetTitle sanitizes a user id into a valid sheet name. Sheets forbids a
// handful of characters and caps titles at 100 runes.
func sheetTitle(userID string) string {
	replacer := strings.NewReplacer(
		"[", "_", "]", "_", "*", "_", "?", "_", "/", "_", "\\", "_", ":", "_", "'", "_",
	)
	title := replacer.Replace(userID)
	if len(title) > 100 {
		title = title[:100]
	}
	if title == "" {
		title = "default"
	}
	return title
}
