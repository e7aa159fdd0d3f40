package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/atendai/atendai/internal/store"
)

// AgencyTokenSafetyMargin is how long before its recorded expiry an agency
// token is treated as already expired. Covers clock skew and in-flight
// request latency.
const AgencyTokenSafetyMargin = 120 * time.Second

// DefaultTokenTTL is assumed when the CRM omits expires_in from a token
// response.
const DefaultTokenTTL = 86400 * time.Second

var bearerPrefix = regexp.MustCompile(`(?i)^Bearer\s+`)

// TokenStore is the persistence the broker needs, satisfied by *store.Store.
type TokenStore interface {
	LocationToken(ctx context.Context, locationID string) (*store.LocationToken, error)
	UpsertLocationToken(ctx context.Context, t store.LocationToken) error
	AgencyToken(ctx context.Context) (*store.AgencyToken, error)
	UpsertAgencyToken(ctx context.Context, t store.AgencyToken) error
}

// Credentials identifies this agency against the CRM OAuth endpoints.
type Credentials struct {
	ClientID     string
	ClientSecret string
	CompanyID    string
	RedirectURI  string
}

// TokenBroker resolves per-location access tokens through a two-level
// chain: a cached location token when still valid, otherwise a fresh one
// minted from the agency credential, refreshing the agency credential
// itself when it is near expiry.
type TokenBroker struct {
	store  TokenStore
	client *Client
	creds  Credentials
	now    func() time.Time
}

// NewTokenBroker creates a TokenBroker.
func NewTokenBroker(ts TokenStore, client *Client, creds Credentials) (*TokenBroker, error) {
	if ts == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	return &TokenBroker{store: ts, client: client, creds: creds, now: time.Now}, nil
}

// LocationAccessToken returns a valid access token for the given CRM
// location, minting and caching a new one when needed.
func (b *TokenBroker) LocationAccessToken(ctx context.Context, locationID string) (string, error) {
	cached, err := b.store.LocationToken(ctx, locationID)
	if err != nil {
		return "", err
	}
	now := b.now()
	if cached != nil && cached.AccessToken != "" && cached.ExpiresAt.After(now) {
		return cached.AccessToken, nil
	}

	agencyToken, err := b.agencyAccessToken(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		AccessToken  string `json:"access_token"`
		AccessTokenA string `json:"accessToken"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	err = b.client.doJSON(ctx, http.MethodPost, "/oauth/locationToken", agencyToken, VersionContacts,
		map[string]string{"locationId": locationID, "companyId": b.creds.CompanyID}, &resp)
	if err != nil {
		return "", fmt.Errorf("minting location token: %w", err)
	}

	token := resp.AccessToken
	if token == "" {
		token = resp.AccessTokenA
	}
	token = strings.TrimSpace(bearerPrefix.ReplaceAllString(token, ""))
	if token == "" {
		return "", fmt.Errorf("location token response carried no token")
	}

	ttl := DefaultTokenTTL
	if resp.ExpiresIn > 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}
	err = b.store.UpsertLocationToken(ctx, store.LocationToken{
		LocationID:  locationID,
		AccessToken: token,
		ExpiresAt:   b.now().Add(ttl),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// agencyAccessToken returns the agency credential, refreshing it first when
// it is within the safety margin of expiring.
func (b *TokenBroker) agencyAccessToken(ctx context.Context) (string, error) {
	ag, err := b.store.AgencyToken(ctx)
	if err != nil {
		return "", err
	}
	if ag == nil {
		return "", fmt.Errorf("agency is not authorized: no stored token")
	}
	if ag.ExpiresAt.Add(-AgencyTokenSafetyMargin).After(b.now()) {
		return ag.AccessToken, nil
	}

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {b.creds.ClientID},
		"client_secret": {b.creds.ClientSecret},
		"refresh_token": {ag.RefreshToken},
		"user_type":     {"Company"},
		"redirect_uri":  {b.creds.RedirectURI},
	}
	if err := b.client.postForm(ctx, "/oauth/token", form, &resp); err != nil {
		return "", fmt.Errorf("refreshing agency token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("agency refresh response carried no token")
	}

	ttl := DefaultTokenTTL
	if resp.ExpiresIn > 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}
	err = b.store.UpsertAgencyToken(ctx, store.AgencyToken{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    b.now().Add(ttl),
	})
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}
