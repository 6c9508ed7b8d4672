package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"profitcalc/internal/core"
	ports "profitcalc/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string
	logger        *slog.Logger
}

var _ ports.ReportSink = (*Client)(nil)

// Credentials names the service-account sources in priority order.
type Credentials struct {
	JSON            string
	File            string
	ApplicationFile string
}

// Config configures New.
type Config struct {
	SpreadsheetID string
	SheetPrefix   string
	Credentials   Credentials
	// Options replace credential loading when set; used to point the
	// client at a test endpoint.
	Options []goption.ClientOption
	Logger  *slog.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := cfg.Options
	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, logger, cfg.Credentials)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
			goption.WithHTTPClient(newHTTPClientWithPooling()),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, prefix: cfg.SheetPrefix, logger: logger}, nil
}

// loadCredentials prefers inline JSON, then the service-account file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, logger *slog.Logger, c Credentials) ([]byte, error) {
	inline := strings.TrimSpace(c.JSON)
	file := strings.TrimSpace(c.File)
	if inline == "" && file == "" {
		file = strings.TrimSpace(c.ApplicationFile)
	}

	switch {
	case inline != "":
		logger.InfoContext(ctx, "Using inline JSON credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		logger.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// WriteReport replaces the content of the month's tab with a header row
// and one row per period, creating the tab when it does not exist.
func (c *Client) WriteReport(ctx context.Context, month string, rows []core.ReportRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	title := sheetTitle(c.prefix, month)
	if _, err := c.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	clearRange := quoteSheet(title) + "!A:ZZ"
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	header, values := core.ReportTable(rows)
	cells := toCells(header, values)
	rng := gridRange(title, len(cells), len(header))

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: cells}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	c.logger.InfoContext(ctx, "Report written to sheet", "month", month, "sheet", title, "rows", len(rows))
	return rng, nil
}

// DeleteReport removes the month's tab if present.
func (c *Client) DeleteReport(ctx context.Context, month string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	title := sheetTitle(c.prefix, month)
	id, found, err := c.findSheet(ctx, title)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{
		{DeleteSheet: &gsheet.DeleteSheetRequest{SheetId: id}},
	}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete sheet %s: %w", title, err)
	}
	c.logger.InfoContext(ctx, "Report sheet deleted", "month", month, "sheet", title)
	return nil
}

func (c *Client) findSheet(ctx context.Context, title string) (int64, bool, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) (int64, error) {
	id, found, err := c.findSheet(ctx, title)
	if err != nil || found {
		return id, err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{
		{AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}}},
	}}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", title, err)
	}
	c.logger.InfoContext(ctx, "Created report sheet", "sheet", title)
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		return resp.Replies[0].AddSheet.Properties.SheetId, nil
	}
	return 0, nil
}
