package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultTimeout             = 30 * time.Second
	requestBodyReadLimit int64 = 1024
)

var (
	errBaseURLRequired = errors.New("payment gateway base url is required")
	errKeyIDRequired   = errors.New("payment gateway key id is required")
	errSecretRequired  = errors.New("payment gateway key secret is required")
)

// Client wraps the payment provider's order API. The provider charges in
// minor units, so decimal amounts are shifted by two places on the wire.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	currency   string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the gateway client from configuration.
func NewClient(cfg config.PaymentConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errSecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		currency:   strings.TrimSpace(cfg.Currency),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// KeySecret exposes the shared secret used for callback signatures.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// IntentRequest describes a charge to open with the provider.
type IntentRequest struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
}

// Intent is the provider's view of an opened charge.
type Intent struct {
	ID          string
	AmountMinor int64
	Currency    string
	Status      string
}

// CreateIntent opens a charge with the provider and returns its intent.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = c.currency
	}

	payload, err := json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt,omitempty"`
	}{
		Amount:   MinorUnits(req.Amount),
		Currency: currency,
		Receipt:  req.Receipt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal intent request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build intent request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute intent request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "intent request failed")
	}

	var apiResp struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode intent response")
	}
	if strings.TrimSpace(apiResp.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "intent response missing id")
	}

	return &Intent{
		ID:          apiResp.ID,
		AmountMinor: apiResp.Amount,
		Currency:    apiResp.Currency,
		Status:      apiResp.Status,
	}, nil
}

// MinorUnits converts a decimal major-unit amount into provider minor units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
