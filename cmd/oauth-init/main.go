// Command oauth-init performs the one-time OAuth consent needed to export
// reports to a user-owned spreadsheet and stores the token at
// GOOGLE_OAUTH_TOKEN_FILE.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"household/internal/cli"
	applog "household/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).WithComponent(applog.ComponentCLI)

	b, err := clientSecret()
	if err != nil {
		logger.Error("OAuth client credentials unavailable", applog.FieldError, err.Error())
		os.Exit(1)
	}

	cfg, err := google.ConfigFromJSON(b, sheets.SpreadsheetsScope)
	if err != nil {
		logger.Error("Invalid OAuth client configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}

	// The OAuth client must list http://localhost:<port>/callback as an
	// authorized redirect URI.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	state := newState()
	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: "localhost:" + redirectPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization received. You may close this window and return to the terminal.")
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Callback server failed", applog.FieldError, err.Error())
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize report exports:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		logger.Error("Authorization not completed", applog.FieldError, ctx.Err().Error())
		os.Exit(1)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", applog.FieldError, err.Error())
		os.Exit(1)
	}

	outFile := os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")
	if outFile == "" {
		outFile = "token.json"
	}
	if err := saveToken(outFile, tok); err != nil {
		logger.Error("Failed to save token", applog.FieldError, err.Error(), "path", outFile)
		os.Exit(1)
	}
	logger.Info("OAuth token saved", "path", outFile)
}

func clientSecret() ([]byte, error) {
	if v := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"); v != "" {
		return []byte(v), nil
	}
	if path := os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"); path != "" {
		return os.ReadFile(path)
	}
	return nil, fmt.Errorf("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
}

func newState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("state-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
