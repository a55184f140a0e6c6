// Package sheets publishes the review queue to a Google Sheets spreadsheet.
package sheets

import (
	"errors"
	"time"
)

// DefaultSpreadsheetName is used when a new spreadsheet has to be created.
const DefaultSpreadsheetName = "Tally Review Queue"

// AuthMethod is how the writer obtains credentials.
type AuthMethod int

const (
	// AuthNone means no usable credentials are configured.
	AuthNone AuthMethod = iota
	// AuthOAuth uses a client ID, secret and refresh token.
	AuthOAuth
	// AuthServiceAccount uses a service account key file.
	AuthServiceAccount
)

// Config holds the Google Sheets writer settings.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns the settings used when the config file is silent.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  DefaultSpreadsheetName,
		EnableFormatting: true,
		TimeZone:         "America/Chicago",
		BatchSize:        500,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// Auth reports which credentials are configured. Partial OAuth credentials
// count as none.
func (c *Config) Auth() AuthMethod {
	oauth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	switch {
	case oauth && c.ServiceAccountPath != "":
		return AuthNone
	case oauth:
		return AuthOAuth
	case c.ServiceAccountPath != "":
		return AuthServiceAccount
	default:
		return AuthNone
	}
}

// Validate checks that exactly one authentication method is configured and
// that batching and retry settings are usable.
func (c *Config) Validate() error {
	if c.Auth() == AuthNone {
		if c.ServiceAccountPath != "" {
			return errors.New("multiple authentication methods configured; use either OAuth2 or service account")
		}
		return errors.New("no authentication method configured")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}
	if c.RetryDelay < 0 {
		return errors.New("retry delay cannot be negative")
	}
	return nil
}
