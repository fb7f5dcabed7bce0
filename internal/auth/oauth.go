// Package auth implements the OAuth2 client-credentials flow used by the
// GDS provider, with a process-local cached token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// expiryBuffer treats a token as dead this long before its stated expiry,
// so an in-flight request never carries a token that dies mid-round-trip.
const expiryBuffer = 60 * time.Second

type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Expired reports whether the token is unusable right now.
func (t Token) Expired() bool {
	return t.ExpiredAt(time.Now())
}

// ExpiredAt is true from expiry minus the 60s buffer onward, inclusive.
func (t Token) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt.Add(-expiryBuffer))
}

// Error is a failed token exchange. It is fatal for the current call: the
// manager never retries, the owning adapter decides what to do next.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange failed: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return "token exchange failed: " + e.Message
}

// ClientCredentials acquires and caches a bearer token from an OAuth2
// identity endpoint. It is owned by a single adapter instance and follows
// its single-threaded call discipline; there is no internal locking.
type ClientCredentials struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *http.Client
	token        *Token
}

func NewClientCredentials(clientID, clientSecret, tokenURL string, client *http.Client) *ClientCredentials {
	if client == nil {
		client = http.DefaultClient
	}
	return &ClientCredentials{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		client:       client,
	}
}

// Token returns a valid bearer string, exchanging credentials first when no
// usable token is cached.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	if c.token == nil || c.token.Expired() {
		if err := c.refresh(ctx); err != nil {
			return "", err
		}
	}
	return c.token.AccessToken, nil
}

// Invalidate drops the cached token so the next Token call re-fetches.
func (c *ClientCredentials) Invalidate() {
	c.token = nil
}

func (c *ClientCredentials) refresh(ctx context.Context) error {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return &Error{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return &Error{Message: "malformed token response: " + err.Error()}
	}
	if tr.AccessToken == "" {
		return &Error{Message: "token response missing access_token"}
	}
	if tr.ExpiresIn == 0 {
		tr.ExpiresIn = 1799 // Amadeus default, ~30 min
	}

	c.token = &Token{
		AccessToken: tr.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	return nil
}
