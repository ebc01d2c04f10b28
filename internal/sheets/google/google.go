package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"kuberx/internal/core"
	ports "kuberx/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	lastColumn       = "O"
	defaultSheetName = "Sheet1"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// Ensure interface conformance
var _ ports.LoanStore = (*Client)(nil)

// Config selects the spreadsheet and how to authenticate against it.
// CredentialsJSON wins over CredentialsFile; with neither set the client
// falls back to GOOGLE_APPLICATION_CREDENTIALS.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string) *Client {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = defaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: strings.TrimSpace(spreadsheetID), sheet: sheet}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
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

func (c *Client) rng(cells string) string {
	return fmt.Sprintf("%s!%s", c.sheet, cells)
}

// ReadAll returns every populated row of columns A..O, header included.
func (c *Client) ReadAll(ctx context.Context) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.rng("A:" + lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return toRows(resp.Values), nil
}

// Append writes the header first when the sheet is empty, then inserts the
// loan as a new Active row.
func (c *Client) Append(ctx context.Context, l core.Loan) (string, error) {
	if err := l.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	if err := c.ensureHeader(ctx); err != nil {
		return "", err
	}

	l.Status = core.StatusActive
	vr := &gsheet.ValueRange{Values: [][]any{toCells(l.Row())}}
	rng := c.rng("A:" + lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

func (c *Client) ensureHeader(ctx context.Context) error {
	first := c.rng("A1:" + lastColumn + "1")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, first).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", first, err)
	}
	if len(resp.Values) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{toCells(core.Header)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, first, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	slog.InfoContext(ctx, "Wrote header to empty loan sheet", "sheet", c.sheet)
	return nil
}

// UpdateStatus rewrites column O of the given row.
func (c *Client) UpdateStatus(ctx context.Context, row int, status core.LoanStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	if row < 2 {
		return fmt.Errorf("row %d: %w", row, ports.ErrRowNotFound)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	cell := c.rng(fmt.Sprintf("%s%d", lastColumn, row))
	vr := &gsheet.ValueRange{Values: [][]any{{string(status)}}}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, cell, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", cell, err)
	}
	if resp.UpdatedCells == 0 {
		return fmt.Errorf("update %s: no cells updated", cell)
	}
	return nil
}

// FindRow scans column A for the record id.
func (c *Client) FindRow(ctx context.Context, recordID string) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	rng := c.rng("A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	if row := indexOfRecord(resp.Values, recordID); row > 0 {
		return row, nil
	}
	return 0, fmt.Errorf("record %q: %w", recordID, ports.ErrRowNotFound)
}
