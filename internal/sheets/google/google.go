// Package google writes period reports into Google Sheets tabs.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"household/internal/core"
	"household/internal/report"

	"github.com/avast/retry-go"
	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Scheme is the destination prefix routed to this sink.
const Scheme = "gsheets"

// Credentials selects how the Sheets client authenticates. A service account
// wins over an OAuth client + token pair.
type Credentials struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenFile     string
}

// Configured reports whether any credential source is set.
func (c Credentials) Configured() bool {
	return c.ServiceAccountJSON != "" || c.ServiceAccountFile != "" ||
		((c.OAuthClientJSON != "" || c.OAuthClientFile != "") && c.OAuthTokenFile != "")
}

// writeAttempts bounds retries of a rate-limited or unavailable API call.
const writeAttempts = 3

type Client struct {
	svc            *gsheet.Service
	currencyFormat string
	retryDelay     time.Duration
}

var _ report.Sink = (*Client)(nil)

// New creates a Sheets-backed report sink.
func New(ctx context.Context, creds Credentials, currencyFormat string) (*Client, error) {
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	if strings.TrimSpace(currencyFormat) == "" {
		currencyFormat = report.DefaultCurrencyFormat
	}
	return &Client{svc: svc, currencyFormat: currencyFormat, retryDelay: 5 * time.Second}, nil
}

// newSheetsService initializes a Sheets Service from a service account or a
// previously authorized OAuth token (see cmd/oauth-init).
func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	switch {
	case creds.ServiceAccountJSON != "" || creds.ServiceAccountFile != "":
		credentialsJSON, err := readInlineOrFile(creds.ServiceAccountJSON, creds.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account: %w", err)
		}
		slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(credentialsJSON),
			"scope", gsheet.SpreadsheetsScope)
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))

	case creds.OAuthTokenFile != "":
		clientJSON, err := readInlineOrFile(creds.OAuthClientJSON, creds.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client: %w", err)
		}
		cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		tok, err := readToken(creds.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Creating Google Sheets service with OAuth token", "token_file", creds.OAuthTokenFile)
		base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
		return gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(base, tok)))
	}
	return nil, errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or an OAuth client and token)")
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if inline = strings.TrimSpace(inline); inline != "" {
		return []byte(inline), nil
	}
	if path = strings.TrimSpace(path); path == "" {
		return nil, errors.New("no inline value or file path")
	}
	return os.ReadFile(path)
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

// newHTTPClientWithPooling is the base transport under the OAuth client.
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

// Write creates (or clears) the tab named after the document's period in
// the spreadsheet given by destination and fills it.
func (c *Client) Write(ctx context.Context, doc report.Document, destination string) error {
	if c.svc == nil {
		return fmt.Errorf("%w: sheets service not initialized", core.ErrIO)
	}
	spreadsheetID, err := parseDestination(destination)
	if err != nil {
		return err
	}

	sheetID, err := c.ensureSheet(ctx, spreadsheetID, doc.SheetName)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	vr := &gsheet.ValueRange{Values: doc.Grid()}
	err = c.withRetry(ctx, func() error {
		_, err := c.svc.Spreadsheets.Values.Update(spreadsheetID, a1Range(doc.SheetName, "A1"), vr).
			ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", core.ErrIO, doc.SheetName, err)
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: formatRequests(sheetID, doc, c.currencyFormat)}
	if _, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		// Values are already in place; formatting is best-effort.
		slog.WarnContext(ctx, "Failed to format report sheet", "sheet", doc.SheetName, "error", err)
	}

	slog.InfoContext(ctx, "Report written to Google Sheets",
		"spreadsheet_id", spreadsheetID,
		"sheet", doc.SheetName,
		"rows", len(doc.Rows))
	return nil
}

// withRetry retries fn while the API answers 429 or 5xx.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			if isRetryable(err) {
				slog.WarnContext(ctx, "Sheets API unavailable, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(writeAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
	)
}

// ensureSheet returns the id of the tab titled title, clearing it if it
// exists and creating it otherwise.
func (c *Client) ensureSheet(ctx context.Context, spreadsheetID, title string) (int64, error) {
	var ss *gsheet.Spreadsheet
	err := c.withRetry(ctx, func() error {
		var err error
		ss, err = c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}

	if id, ok := findSheet(ss.Sheets, title); ok {
		if _, err := c.svc.Spreadsheets.Values.Clear(spreadsheetID, quoteSheet(title), &gsheet.ClearValuesRequest{}).
			Context(ctx).Do(); err != nil {
			return 0, fmt.Errorf("clear sheet %s: %w", title, err)
		}
		return id, nil
	}

	resp, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %s: empty reply", title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}
