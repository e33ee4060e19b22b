// Package paygate integrates the hosted payment gateway. The gateway is a
// redirect PSP: we build a signed payment URL, the customer pays on the
// gateway's page, and the gateway calls back with a signed result.
package paygate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tmnhat/platterly-backend/pkg/config"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
)

const (
	// ResponseCodeSuccess is the gateway's code for a captured payment.
	ResponseCodeSuccess = "00"

	signatureParam            = "pg_signature"
	requestBodyReadLimit int64 = 1024
)

// Client signs payment URLs and verifies gateway callbacks.
type Client struct {
	httpClient *http.Client
	baseURL    string
	merchantID string
	secret     []byte
	returnURL  string
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
func NewClient(cfg config.PayGateConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("paygate base url is required")
	}
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return nil, fmt.Errorf("paygate merchant id is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("paygate secret is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		secret:     []byte(cfg.Secret),
		returnURL:  cfg.ReturnURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// PaymentRequest describes one payment the customer will be redirected to.
type PaymentRequest struct {
	OrderID   string
	Amount    int64
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
}

// BuildPaymentURL returns the signed URL the customer is redirected to.
func (c *Client) BuildPaymentURL(req PaymentRequest) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if req.Amount <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	params := url.Values{}
	params.Set("pg_merchant_id", c.merchantID)
	params.Set("pg_order_ref", req.OrderID)
	params.Set("pg_amount", strconv.FormatInt(req.Amount, 10))
	params.Set("pg_order_info", req.OrderInfo)
	params.Set("pg_client_ip", req.ClientIP)
	params.Set("pg_created_at", createdAt.UTC().Format("20060102150405"))
	if c.returnURL != "" {
		params.Set("pg_return_url", c.returnURL)
	}
	params.Set(signatureParam, c.sign(params))

	return c.baseURL + "/pay?" + params.Encode(), nil
}

// CallbackResult is the verified payload of a gateway callback.
type CallbackResult struct {
	OrderID       string
	TransactionID string
	ResponseCode  string
	Amount        int64
}

// Succeeded reports whether the gateway captured the payment.
func (r CallbackResult) Succeeded() bool {
	return r.ResponseCode == ResponseCodeSuccess
}

// VerifyCallback checks the callback signature and extracts the result.
// A bad signature is a validation error; the callback must be discarded.
func (c *Client) VerifyCallback(params url.Values) (*CallbackResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}

	got := params.Get(signatureParam)
	if got == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback signature is missing")
	}

	unsigned := url.Values{}
	for key, values := range params {
		if key == signatureParam {
			continue
		}
		unsigned[key] = values
	}
	want := c.sign(unsigned)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback signature mismatch")
	}

	amount, err := strconv.ParseInt(params.Get("pg_amount"), 10, 64)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback amount is not a number")
	}

	result := &CallbackResult{
		OrderID:       params.Get("pg_order_ref"),
		TransactionID: params.Get("pg_transaction_id"),
		ResponseCode:  params.Get("pg_response_code"),
		Amount:        amount,
	}
	if result.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback order reference is missing")
	}
	if result.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback transaction id is missing")
	}
	return result, nil
}

// TransactionStatus is the gateway's answer to a status query.
type TransactionStatus struct {
	TransactionID string `json:"transaction_id"`
	ResponseCode  string `json:"response_code"`
	Amount        int64  `json:"amount"`
}

// QueryTransaction asks the gateway for the current state of a transaction.
// Used by reconciliation when a callback was lost.
func (c *Client) QueryTransaction(ctx context.Context, transactionID string) (*TransactionStatus, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	trimmed := strings.TrimSpace(transactionID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	params := url.Values{}
	params.Set("pg_merchant_id", c.merchantID)
	params.Set("pg_transaction_id", trimmed)
	params.Set(signatureParam, c.sign(params))

	endpoint := c.baseURL + "/query?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build transaction query")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute transaction query")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "transaction query failed")
	}

	var status TransactionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode transaction query response")
	}
	return &status, nil
}

// sign computes the HMAC-SHA256 signature over the sorted key=value pairs.
func (c *Client) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, key := range keys {
		if i > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(params.Get(key))
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(builder.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
