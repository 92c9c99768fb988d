package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

type Client struct {
	srv    *sheetsv4.Service
	logger *slog.Logger
}

// New authorizes with a service account. credentials is either a path to the
// key file or the key JSON itself.
func New(ctx context.Context, credentials string, logger *slog.Logger) (*Client, error) {
	data, err := loadCredentials(credentials)
	if err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheetsv4.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	return NewWithOptions(ctx, logger, option.WithCredentials(creds))
}

// NewWithOptions builds a client from raw API options (endpoint overrides in
// tests, alternative auth).
func NewWithOptions(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{srv: srv, logger: logger}, nil
}

func loadCredentials(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		return []byte(s), nil
	}
	if _, err := os.Stat(s); err != nil {
		return nil, err
	}
	return os.ReadFile(s)
}
