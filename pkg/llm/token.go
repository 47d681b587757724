package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	fgerrors "github.com/randalmurphal/brdflow/pkg/flowgraph/errors"
)

// ErrMissingCredentials indicates the token endpoint was configured without
// a client ID or secret.
var ErrMissingCredentials = errors.New("client id and client secret are required to fetch an access token")

// expirySkew refreshes tokens slightly before the server-declared expiry.
const expirySkew = 30 * time.Second

// TokenSource fetches a bearer token from an authentication endpoint and
// caches it until it expires or is invalidated.
//
// The endpoint receives {"client_id", "client_secret"} as JSON and answers
// with {"token"} or {"access_token"}, optionally with "expires_in" seconds.
// A token without an expiry is cached until Invalidate.
type TokenSource struct {
	url          string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource creates a TokenSource for the endpoint at url.
// A nil httpClient uses a client with a 30 second timeout.
func NewTokenSource(url, clientID, clientSecret string, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenSource{
		url:          url,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// Token returns the cached token or fetches a new one.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expires.IsZero() || s.now().Before(s.expires)) {
		return s.token, nil
	}

	token, ttl, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expires = time.Time{}
	if ttl > expirySkew {
		s.expires = s.now().Add(ttl - expirySkew)
	} else if ttl > 0 {
		s.expires = s.now().Add(ttl)
	}
	return token, nil
}

// Invalidate drops the cached token so the next Token call refetches.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expires = time.Time{}
	s.mu.Unlock()
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *TokenSource) fetch(ctx context.Context) (string, time.Duration, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return "", 0, ErrMissingCredentials
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
	})
	if err != nil {
		return "", 0, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, &fgerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(payload)),
			Endpoint:   s.url,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(payload, &tr); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	token := tr.Token
	if token == "" {
		token = tr.AccessToken
	}
	if token == "" {
		return "", 0, errors.New("token not found in authentication response")
	}
	return token, time.Duration(tr.ExpiresIn) * time.Second, nil
}

// parseRetryAfter reads a Retry-After header given in seconds.
// HTTP-date values are ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
