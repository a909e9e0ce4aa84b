package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"wallet/internal/core"
	"wallet/internal/log"
	ports "wallet/internal/sheets"
)

// Ensure interface conformance
var (
	_ ports.ExpenseMirror = (*Client)(nil)
	_ ports.ExpenseLister = (*Client)(nil)
)

var header = []any{"ID", "Date", "Title", "Category", "Price"}

// Config selects the spreadsheet and credentials. Service account
// credentials win over OAuth when both are set.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

// Client mirrors the expense list into one sheet: a header row followed by
// one row per expense in columns A:E, and the balance in G1:H1.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Expenses"
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger,
	}, nil
}

func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	saJSON, err := readInlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	if len(saJSON) > 0 {
		logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(saJSON))
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	clientJSON, err := readInlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	tokenJSON, err := readInlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	if len(clientJSON) == 0 || len(tokenJSON) == 0 {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE or GOOGLE_OAUTH_CLIENT_* and GOOGLE_OAUTH_TOKEN_*)")
	}

	oauthCfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tok, err := parseToken(tokenJSON)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Creating Google Sheets service with OAuth token")
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, tok)))
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if path = strings.TrimSpace(path); path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

func parseToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token: neither access_token nor refresh_token is set")
	}
	return &tok, nil
}

// newHTTPClientWithPooling is the base transport for OAuth-authorised calls.
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

// Replace clears the sheet and writes the full list and balance.
func (c *Client) Replace(ctx context.Context, expenses []core.Expense, balance core.Money) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:H", c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := toRows(expenses)
	req := &gsheet.BatchUpdateValuesRequest{
		// RAW keeps titles such as "=SUM(...)" from being evaluated.
		ValueInputOption: "RAW",
		Data: []*gsheet.ValueRange{
			{Range: fmt.Sprintf("%s!A1:E%d", c.sheetName, len(rows)), Values: rows},
			{Range: fmt.Sprintf("%s!G1:H1", c.sheetName), Values: [][]any{{"Balance", balance.Decimal().InexactFloat64()}}},
		},
	}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", c.sheetName, err)
	}

	c.logger.InfoContext(ctx, "Mirrored expense list",
		log.FieldOperation, log.OpMirror,
		log.FieldExpenses, len(expenses),
		log.FieldBalance, balance.Cents,
		"sheet", c.sheetName)
	return nil
}

// ListExpenses reads back what Replace wrote.
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:E", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseRows(resp.Values), nil
}

func toRows(expenses []core.Expense) [][]any {
	rows := make([][]any, 0, len(expenses)+1)
	rows = append(rows, header)
	for _, e := range expenses {
		rows = append(rows, []any{
			e.ID,
			e.Date.String(),
			e.Title,
			e.Category,
			e.Price.Decimal().InexactFloat64(),
		})
	}
	return rows
}

// parseRows is best-effort: the header and rows that do not hold a valid
// price are skipped.
func parseRows(values [][]any) []core.Expense {
	out := make([]core.Expense, 0, len(values))
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 5 {
			continue
		}
		if i == 0 && strings.EqualFold(cols[0], "ID") {
			continue
		}
		cents, err := core.ParseDecimalToCents(cols[4])
		if err != nil {
			continue
		}
		e := core.Expense{
			ID:       cols[0],
			Title:    cols[2],
			Category: cols[3],
			Price:    core.Money{Cents: cents},
		}
		if d, err := core.ParseDate(cols[1]); err == nil {
			e.Date = d
		}
		out = append(out, e)
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
