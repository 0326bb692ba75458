// REST CLIENT FOR THE COINBASE EXCHANGE API
// RESTY TRANSPORT + INTERNAL RETRY + CB-AFTER PAGINATION
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dailybuy/src/metrics"
	"dailybuy/src/model"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	defaultCoinbaseBaseURL = "https://api.exchange.coinbase.com"

	// Total attempts per page, the first try included.
	defaultRetryAttempts   = 4
	defaultRetryBaseDelay  = 250 * time.Millisecond
	defaultRetryMaxBackoff = 2 * time.Second

	// The exchange rejects requests without a User-Agent.
	coinbaseUserAgent = "curl/7.47.0"

	headerAfterCursor = "CB-AFTER"
)

// -----------------------------
// REQUEST SHAPE
// -----------------------------

// Param is one query parameter. Params keep insertion order because the query
// string is part of the signed message.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Params []Param

// With returns a copy where key is set to value, replacing an earlier value.
func (p Params) With(key, value string) Params {
	out := make(Params, 0, len(p)+1)
	replaced := false
	for _, kv := range p {
		if kv.Key == key {
			if !replaced {
				out = append(out, Param{Key: key, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, kv)
	}
	if !replaced {
		out = append(out, Param{Key: key, Value: value})
	}
	return out
}

// Add returns a copy with key=value appended, keeping earlier values of key.
func (p Params) Add(key, value string) Params {
	out := make(Params, 0, len(p)+1)
	out = append(out, p...)
	return append(out, Param{Key: key, Value: value})
}

// Encode renders "k1=v1&k2=v2" in insertion order.
func (p Params) Encode() string {
	parts := make([]string, 0, len(p))
	for _, kv := range p {
		parts = append(parts, url.QueryEscape(kv.Key)+"="+url.QueryEscape(kv.Value))
	}
	return strings.Join(parts, "&")
}

// Request is one logical exchange call. Query is flattened onto the path before
// signing; Body is sent and signed as JSON. Attempt counts tries of the current page.
type Request struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Query   Params `json:"query,omitempty"`
	Body    any    `json:"body,omitempty"`
	Attempt int    `json:"attempt"`
}

// requestPath is the path plus query string, as sent and as signed.
func (r Request) requestPath() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	sep := "?"
	if strings.Contains(r.Path, "?") {
		sep = "&"
	}
	return r.Path + sep + r.Query.Encode()
}

// -----------------------------
// CLIENT
// -----------------------------

// CoinbaseClient owns one set of credentials. Build one per invocation; it holds
// no state shared with other clients.
type CoinbaseClient struct {
	apiKey        string
	apiPassphrase string
	apiSecret     string // base64-encoded secret from Coinbase
	baseURL       string
	http          *resty.Client

	retryAttempts   int
	retryBaseDelay  time.Duration
	retryMaxBackoff time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*CoinbaseClient)

func WithBaseURL(baseURL string) Option {
	return func(c *CoinbaseClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
		c.http.SetBaseURL(c.baseURL)
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *CoinbaseClient) { c.http.SetTransport(rt) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *CoinbaseClient) { c.http.SetTimeout(d) }
}

// WithRetry sets the total number of attempts and the backoff bounds. A zero base
// delay retries immediately.
func WithRetry(attempts int, baseDelay, maxBackoff time.Duration) Option {
	return func(c *CoinbaseClient) {
		if attempts < 1 {
			attempts = 1
		}
		c.retryAttempts = attempts
		c.retryBaseDelay = baseDelay
		c.retryMaxBackoff = maxBackoff
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *CoinbaseClient) { c.now = now }
}

func NewCoinbaseClient(apiKey, apiPassphrase, apiSecret string, opts ...Option) *CoinbaseClient {
	config := GetConfig()

	baseURL := strings.TrimRight(config.CoinbaseBaseURL, "/")
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultCoinbaseBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	attempts := config.CoinbaseRetryAttempts
	if attempts < 1 {
		attempts = defaultRetryAttempts
	}

	c := &CoinbaseClient{
		apiKey:        apiKey,
		apiPassphrase: apiPassphrase,
		apiSecret:     apiSecret,
		baseURL:       baseURL,
		// Retries are driven by execute: transport errors only, bounded, counted per attempt.
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(config.CoinbaseTimeout).
			SetRetryCount(0),
		retryAttempts:   attempts,
		retryBaseDelay:  config.CoinbaseRetryBaseDelay,
		retryMaxBackoff: config.CoinbaseRetryMaxBackoff,
		now:             time.Now,
		sleep:           sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff returns the wait before the next attempt: base * 2^(attempt-1), capped.
func (c *CoinbaseClient) backoff(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	d := c.retryBaseDelay << (attempt - 1)
	if c.retryMaxBackoff > 0 && (d > c.retryMaxBackoff || d <= 0) {
		d = c.retryMaxBackoff
	}
	return d
}

// -----------------------------
// LOW-LEVEL REQUESTS
// -----------------------------

// doRequest performs a single signed attempt and returns the raw body and the
// pagination cursor, if any.
func (c *CoinbaseClient) doRequest(ctx context.Context, req *Request) ([]byte, string, error) {
	path := req.requestPath()

	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, "", fmt.Errorf("marshal request body: %w", err)
		}
	}

	timestamp := accessTimestamp(c.now())
	signature, err := SignRequest(c.apiSecret, timestamp, req.Method, path, string(payload))
	if err != nil {
		return nil, "", err
	}

	r := c.http.R().
		SetContext(ctx).
		SetHeader("User-Agent", coinbaseUserAgent).
		SetHeader("Accept", "application/json").
		SetHeader("CB-ACCESS-TIMESTAMP", timestamp).
		SetHeader("CB-ACCESS-PASSPHRASE", c.apiPassphrase).
		SetHeader("CB-ACCESS-KEY", c.apiKey).
		SetHeader("CB-ACCESS-SIGN", signature)

	if payload != nil {
		r = r.
			SetHeader("Content-Type", "application/json").
			SetContentLength(true).
			SetBody(payload)
	}

	logger.WithFields(logger.Fields{
		"method":  req.Method,
		"path":    path,
		"attempt": req.Attempt,
	}).Debug("Coinbase HTTP request")

	resp, err := r.Execute(req.Method, path)
	if err != nil {
		metrics.ExchangeRequests.WithLabelValues(req.Method, "transport_error").Inc()
		return nil, "", &transportError{err: err}
	}

	raw := resp.Body()

	// Error answers carry {"message": "..."}, sometimes with HTTP 200.
	var envelope struct {
		Message string `json:"message"`
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		_ = json.Unmarshal(raw, &envelope)
	}
	if envelope.Message != "" || resp.StatusCode() >= http.StatusBadRequest {
		msg := envelope.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), trimmed)
		}
		metrics.ExchangeRequests.WithLabelValues(req.Method, "api_error").Inc()
		return nil, "", &APIError{
			Message:   msg,
			Status:    resp.StatusCode(),
			Timestamp: timestamp,
			Request:   *req,
		}
	}

	if !json.Valid(raw) {
		metrics.ExchangeRequests.WithLabelValues(req.Method, "decode_error").Inc()
		return nil, "", fmt.Errorf("invalid json from %s %s: %.200s", req.Method, path, trimmed)
	}

	metrics.ExchangeRequests.WithLabelValues(req.Method, "ok").Inc()
	return raw, resp.Header().Get(headerAfterCursor), nil
}

// execute runs doRequest in a bounded loop. Only transport failures are retried;
// API errors and decode errors return at once.
func (c *CoinbaseClient) execute(ctx context.Context, req *Request) ([]byte, string, error) {
	req.Attempt = 0
	for {
		req.Attempt++

		raw, cursor, err := c.doRequest(ctx, req)
		if err == nil {
			return raw, cursor, nil
		}

		var tErr *transportError
		if !errors.As(err, &tErr) {
			return nil, "", err
		}

		if ctx.Err() != nil || req.Attempt >= c.retryAttempts {
			logger.WithError(err).WithFields(logger.Fields{
				"method":   req.Method,
				"path":     req.Path,
				"attempts": req.Attempt,
			}).Error("Coinbase request failed, giving up")
			return nil, "", &RequestError{Err: tErr.err, Request: *req, Attempts: req.Attempt}
		}

		metrics.ExchangeRetries.WithLabelValues(req.Method).Inc()
		wait := c.backoff(req.Attempt)
		logger.WithError(err).WithFields(logger.Fields{
			"method":  req.Method,
			"path":    req.Path,
			"attempt": req.Attempt,
			"wait":    wait.String(),
		}).Warn("Coinbase request failed, retrying")

		if sErr := c.sleep(ctx, wait); sErr != nil {
			return nil, "", &RequestError{Err: sErr, Request: *req, Attempts: req.Attempt}
		}
	}
}

// Do is the single request primitive behind every typed operation. When the
// exchange answers with a CB-AFTER cursor, the same request is re-issued with
// after=<cursor> and the page arrays are concatenated in page order.
func (c *CoinbaseClient) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	merged := []json.RawMessage{}
	paged := false
	seen := map[string]bool{}

	for {
		raw, cursor, err := c.execute(ctx, &req)
		if err != nil {
			return nil, err
		}

		if !paged && cursor == "" {
			return raw, nil
		}

		var page []json.RawMessage
		if err := json.Unmarshal(raw, &page); err != nil {
			if !paged {
				// cursor on a non-list answer, nothing to merge
				return raw, nil
			}
			return nil, fmt.Errorf("decode page of %s %s: %w", req.Method, req.Path, err)
		}
		paged = true
		merged = append(merged, page...)

		if cursor == "" || len(page) == 0 || seen[cursor] {
			break
		}
		seen[cursor] = true
		req.Query = req.Query.With("after", cursor)
	}

	return json.Marshal(merged)
}

func (c *CoinbaseClient) doInto(ctx context.Context, req Request, out any) error {
	raw, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// -----------------------------
// ACCOUNTS & FUNDING
// -----------------------------

// GET /accounts
func (c *CoinbaseClient) Accounts(ctx context.Context) ([]model.Account, error) {
	var out []model.Account
	if err := c.doInto(ctx, Request{Method: http.MethodGet, Path: "/accounts"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GET /payment-methods
func (c *CoinbaseClient) PaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	var out []model.PaymentMethod
	if err := c.doInto(ctx, Request{Method: http.MethodGet, Path: "/payment-methods"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// POST /deposits/payment-method
func (c *CoinbaseClient) DepositFromPaymentMethod(ctx context.Context, deposit model.DepositRequest) (*model.Deposit, error) {
	if strings.TrimSpace(deposit.PaymentMethodID) == "" {
		return nil, errors.New("payment_method_id is required")
	}
	if !deposit.Amount.IsPositive() {
		return nil, errors.New("deposit amount must be > 0")
	}

	var out model.Deposit
	req := Request{Method: http.MethodPost, Path: "/deposits/payment-method", Body: deposit}
	if err := c.doInto(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// -----------------------------
// MARKET DATA
// -----------------------------

// GET /fills?product_id=...
func (c *CoinbaseClient) Fills(ctx context.Context, product model.ProductID) ([]model.Fill, error) {
	req := Request{
		Method: http.MethodGet,
		Path:   "/fills",
		Query:  Params{}.With("product_id", product.String()),
	}

	var out []model.Fill
	if err := c.doInto(ctx, req, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Source = model.SourceCoinbase
	}
	return out, nil
}

// GET /products
func (c *CoinbaseClient) Products(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	if err := c.doInto(ctx, Request{Method: http.MethodGet, Path: "/products"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GET /products/{id}
func (c *CoinbaseClient) Product(ctx context.Context, product model.ProductID) (*model.Product, error) {
	var out model.Product
	req := Request{Method: http.MethodGet, Path: "/products/" + url.PathEscape(product.String())}
	if err := c.doInto(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /products/{id}/stats
func (c *CoinbaseClient) ProductStats(ctx context.Context, product model.ProductID) (*model.ProductStats, error) {
	var out model.ProductStats
	req := Request{Method: http.MethodGet, Path: "/products/" + url.PathEscape(product.String()) + "/stats"}
	if err := c.doInto(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /products/{id}/ticker
func (c *CoinbaseClient) ProductTicker(ctx context.Context, product model.ProductID) (*model.Ticker, error) {
	var out model.Ticker
	req := Request{Method: http.MethodGet, Path: "/products/" + url.PathEscape(product.String()) + "/ticker"}
	if err := c.doInto(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// -----------------------------
// TRADING
// -----------------------------

// POST /orders
func (c *CoinbaseClient) PlaceOrder(ctx context.Context, order model.OrderRequest) (*model.Order, error) {
	if strings.TrimSpace(order.ProductID) == "" {
		return nil, errors.New("product_id is required")
	}
	if !order.Size.IsPositive() {
		return nil, errors.New("size must be > 0")
	}

	var out model.Order
	req := Request{Method: http.MethodPost, Path: "/orders", Body: order}
	if err := c.doInto(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DELETE /orders/{id} or /orders/client:{client_oid}. Returns the cancelled order id.
func (c *CoinbaseClient) CancelOrder(ctx context.Context, ref model.OrderRef) (string, error) {
	seg := ref.PathSegment()
	if seg == "" {
		return "", errors.New("order id or client_oid is required")
	}

	raw, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: "/orders/" + seg})
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return strings.Trim(string(raw), `"`), nil
	}
	return id, nil
}

// DELETE /orders?product_id=... Returns the cancelled order ids.
func (c *CoinbaseClient) CancelOrders(ctx context.Context, product model.ProductID) ([]string, error) {
	req := Request{Method: http.MethodDelete, Path: "/orders"}
	if product != "" {
		req.Query = req.Query.With("product_id", product.String())
	}

	var out []string
	if err := c.doInto(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GET /orders/{id} or /orders/client:{client_oid}
func (c *CoinbaseClient) GetOrder(ctx context.Context, ref model.OrderRef) (*model.Order, error) {
	seg := ref.PathSegment()
	if seg == "" {
		return nil, errors.New("order id or client_oid is required")
	}

	var out model.Order
	if err := c.doInto(ctx, Request{Method: http.MethodGet, Path: "/orders/" + seg}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /orders?product_id=...&status=...
func (c *CoinbaseClient) ListOrders(ctx context.Context, params model.ListOrdersParams) ([]model.Order, error) {
	req := Request{Method: http.MethodGet, Path: "/orders"}
	if params.ProductID != "" {
		req.Query = req.Query.With("product_id", params.ProductID)
	}
	for _, status := range params.Status {
		req.Query = req.Query.Add("status", status)
	}

	var out []model.Order
	if err := c.doInto(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
