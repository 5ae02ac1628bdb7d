package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultTimeout             = 30 * time.Second
	requestBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("ml service base url is required")

// Client talks to the recommendation service. Every call is bounded by the
// configured timeout; callers treat failures as a signal to fall back.
type Client struct {
	httpClient *http.Client
	baseURL    string
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

// NewClient builds the recommendation service client.
func NewClient(cfg config.MLConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Recommendations returns ranked product ids personalized for the user.
func (c *Client) Recommendations(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	path := fmt.Sprintf("/recommendations/%s", url.PathEscape(userID.String()))
	return c.fetchRanked(ctx, path, limit)
}

// Similar returns ranked product ids similar to the given product.
func (c *Client) Similar(ctx context.Context, productID uuid.UUID, limit int) ([]uuid.UUID, error) {
	path := fmt.Sprintf("/similar/%s", url.PathEscape(productID.String()))
	return c.fetchRanked(ctx, path, limit)
}

// SearchByImage uploads an image and returns ranked product ids that match
// it visually.
func (c *Client) SearchByImage(ctx context.Context, filename string, image []byte, topK int) ([]uuid.UUID, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ml client not configured")
	}
	if len(image) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image payload is empty")
	}
	if filename == "" {
		filename = "upload"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build image form")
	}
	if _, err := part.Write(image); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write image form")
	}
	if topK > 0 {
		if err := form.WriteField("top_k", strconv.Itoa(topK)); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write image form")
		}
	}
	if err := form.Close(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finish image form")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image-search", &body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build image search request")
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute image search request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "image search request failed")
	}
	return decodeRankedIDs(resp.Body)
}

// Health checks that the recommendation service is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "ml client not configured")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build health request")
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute health request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("ml service unhealthy: status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) fetchRanked(ctx context.Context, path string, limit int) ([]uuid.UUID, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ml client not configured")
	}

	endpoint := c.baseURL + path
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build recommendation request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute recommendation request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "recommendation request failed")
	}

	return decodeRankedIDs(resp.Body)
}

func decodeRankedIDs(r io.Reader) ([]uuid.UUID, error) {
	var apiResp struct {
		ProductIDs []string `json:"product_ids"`
	}
	if err := json.NewDecoder(r).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode recommendation response")
	}

	ids := make([]uuid.UUID, 0, len(apiResp.ProductIDs))
	for _, raw := range apiResp.ProductIDs {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
