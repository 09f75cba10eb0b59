package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// stockEntry is one availability record as returned by the inventory service.
type stockEntry struct {
	SkuCode string `json:"skuCode"`
	InStock bool   `json:"inStock"`
}

var _ Checker = (*Client)(nil)

// Client implements Checker against the inventory service HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Tests use this to
// point the client at a local test server or to inject latency.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for the inventory service at baseURL. The
// default transport is instrumented with otelhttp so the stock check shows
// up as a child span of the placement trace.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckStock queries the inventory service with one repeated skuCode
// parameter per requested code and returns an availability entry for every
// submitted code. Codes the remote side does not report are normalized to
// out of stock rather than omitted.
func (c *Client) CheckStock(ctx context.Context, skuCodes []string) (Availability, error) {
	q := url.Values{}
	for _, code := range skuCodes {
		q.Add("skuCode", code)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/inventory?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build inventory request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "calling inventory: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrUnavailable, "inventory responded %d", resp.StatusCode)
	}

	var entries []stockEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "decode inventory response: %v", err)
	}

	avail := make(Availability, len(skuCodes))
	for _, code := range skuCodes {
		avail[code] = false
	}
	for _, e := range entries {
		if _, requested := avail[e.SkuCode]; requested {
			avail[e.SkuCode] = e.InStock
		}
	}
	return avail, nil
}
