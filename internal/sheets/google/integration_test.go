//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"household/internal/core"
	"household/internal/report"

	"github.com/shopspring/decimal"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_WriteReport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	creds := Credentials{
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		OAuthClientJSON:    os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"),
		OAuthClientFile:    os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"),
		OAuthTokenFile:     os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"),
	}
	if !creds.Configured() {
		t.Skip("Google credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := New(ctx, creds, "")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	doc := report.Build(core.PeriodSummary{
		Month: 1,
		Year:  1999,
		Totals: core.Totals{
			Income:  decimal.NewFromInt(100),
			Expense: decimal.NewFromInt(40),
			Balance: decimal.NewFromInt(60),
		},
		Rows: []core.Expense{{
			ID: 1, Date: core.NewDate(1999, 1, 5), Kind: core.Variable,
			Category: "Food", Description: "integration test", Amount: decimal.NewFromInt(40),
		}},
	})

	// Twice: the second run must clear and reuse the existing tab.
	for i := 0; i < 2; i++ {
		if err := client.Write(ctx, doc, Scheme+"://"+spreadsheetID); err != nil {
			t.Fatalf("Write #%d: %v", i+1, err)
		}
	}
}
