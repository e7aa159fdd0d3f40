package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrMissingDatabaseURL indicates the database URL is not set.
	ErrMissingDatabaseURL = errors.New("missing database URL")

	// ErrInvalidDatabaseURL indicates the database URL is malformed.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrMissingGeminiAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingGeminiAPIKey = errors.New("missing GEMINI_API_KEY")

	// ErrMissingCRMCredentials indicates an incomplete CRM OAuth configuration.
	ErrMissingCRMCredentials = errors.New("missing CRM OAuth credentials")

	// ErrInvalidCRMAPIBase indicates the CRM API base URL is malformed.
	ErrInvalidCRMAPIBase = errors.New("invalid CRM API base URL")

	// ErrInvalidRateLimit indicates a non-positive rate limit configuration.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// Validate checks the configuration and fails fast on anything that
// would otherwise surface as a confusing per-request error later.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabaseURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
	default:
		return fmt.Errorf("%w: scheme %q (expected postgres or postgresql)", ErrInvalidDatabaseURL, u.Scheme)
	}

	if c.GeminiAPIKey == "" {
		return ErrMissingGeminiAPIKey
	}

	var missing []string
	if c.CRMClientID == "" {
		missing = append(missing, "GHL_CLIENT_ID")
	}
	if c.CRMClientSecret == "" {
		missing = append(missing, "GHL_CLIENT_SECRET")
	}
	if c.CRMCompanyID == "" {
		missing = append(missing, "GHL_COMPANY_ID")
	}
	if c.CRMRedirectURI == "" {
		missing = append(missing, "GHL_AUTH_REDIRECT_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCRMCredentials, strings.Join(missing, ", "))
	}

	base, err := url.Parse(c.CRMAPIBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCRMAPIBase, c.CRMAPIBase)
	}

	if c.WebhookRateLimit <= 0 || c.WebhookRateBurst <= 0 {
		return fmt.Errorf("%w: limit=%v burst=%d", ErrInvalidRateLimit, c.WebhookRateLimit, c.WebhookRateBurst)
	}

	return nil
}
