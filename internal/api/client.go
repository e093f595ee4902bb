// Package api implements the client for the utility provider's account API.
//
// Every call goes through a shared rate limiter. Calls made on behalf of the refresh
// orchestrator and entity updates are wrapped with WithAutoAuth, which logs in again
// and retries once when the session token has expired.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/models"
)

var (
	ErrRequest      = errors.New("error making provider API request")
	ErrStatus       = errors.New("error status from provider API")
	ErrUnauthorized = errors.New("provider API session is not authorized")
)

const invoiceCacheSize = 256

// Client is the account API surface used by the orchestrator and entity classes.
type Client interface {
	Authenticator
	Accounts(ctx context.Context) ([]*models.Account, error)
	AccountInfo(ctx context.Context, code string) (*models.AccountInfo, error)
	Meters(ctx context.Context, code string) ([]models.Meter, error)
	LatestInvoice(ctx context.Context, code string) (*models.Invoice, error)
}

// HTTPClient talks JSON over HTTP to the provider's personal-account API
type HTTPClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	invoices *expirable.LRU[string, *models.Invoice]
	logger   *logrus.Logger

	mu    sync.RWMutex
	token string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func NewHTTPClient(cfg config.ProviderConfig, logger *logrus.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.InvoiceCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		invoices: expirable.NewLRU[string, *models.Invoice](invoiceCacheSize, nil, ttl),
		logger:   logger,
	}
}

// Login exchanges the configured credentials for a session token.
func (c *HTTPClient) Login(ctx context.Context) error {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{
		Username: c.username,
		Password: c.password,
	}, &resp)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("%w: empty token in login response", ErrUnauthorized)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()

	c.logger.Debug("Provider API session established")
	return nil
}

// Accounts returns the accounts attached to the profile, in API order.
func (c *HTTPClient) Accounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *HTTPClient) AccountInfo(ctx context.Context, code string) (*models.AccountInfo, error) {
	var info models.AccountInfo
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(code), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) Meters(ctx context.Context, code string) ([]models.Meter, error) {
	var meters []models.Meter
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(code)+"/meters", nil, &meters); err != nil {
		return nil, err
	}
	return meters, nil
}

// LatestInvoice returns the most recent invoice, or nil when the account has none yet.
// Invoices are immutable once issued, so results are cached for the configured TTL.
func (c *HTTPClient) LatestInvoice(ctx context.Context, code string) (*models.Invoice, error) {
	if invoice, ok := c.invoices.Get(code); ok {
		return invoice, nil
	}

	var invoice models.Invoice
	err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(code)+"/invoices/latest", nil, &invoice)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.invoices.Add(code, &invoice)
	return &invoice, nil
}

var errNotFound = fmt.Errorf("%w: not found", ErrStatus)

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRequest, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: got %d", ErrStatus, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
