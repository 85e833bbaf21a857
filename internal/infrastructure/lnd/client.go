package lnd

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"shadowledger/internal/shared/apperr"
)

const (
	defaultTimeout   = 30 * time.Second
	macaroonHeader   = "Grpc-Metadata-macaroon"
	getInfoPath      = "/v1/getinfo"
	invoicesPath     = "/v1/invoices"
	payReqPath       = "/v1/payreq/"
	sendPaymentPath  = "/v1/channels/transactions"
	maxErrorBodySize = 4096
)

// Config holds connection settings for the node's REST gateway
type Config struct {
	URL          string
	MacaroonHex  string
	MacaroonPath string
	TLSCertPath  string
	Timeout      time.Duration
}

// Client handles communication with the LND REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	macaroon   string
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a node client. When TLSCertPath is set the node's
// certificate becomes the only trusted root.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("lnd REST URL is required")
	}

	macaroon, err := loadMacaroon(cfg)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLSCertPath != "" {
		pem, err := os.ReadFile(cfg.TLSCertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read lnd TLS certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("lnd TLS certificate at %s contains no PEM certificates", cfg.TLSCertPath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		macaroon: macaroon,
	}, nil
}

// NewClientWithHTTP creates a client around an existing HTTP client.
func NewClientWithHTTP(baseURL, macaroonHex string, httpClient *http.Client) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		macaroon:   macaroonHex,
	}
}

func loadMacaroon(cfg Config) (string, error) {
	if cfg.MacaroonHex != "" {
		if _, err := hex.DecodeString(cfg.MacaroonHex); err != nil {
			return "", fmt.Errorf("lnd macaroon is not valid hex: %w", err)
		}
		return cfg.MacaroonHex, nil
	}
	if cfg.MacaroonPath != "" {
		raw, err := os.ReadFile(cfg.MacaroonPath)
		if err != nil {
			return "", fmt.Errorf("failed to read lnd macaroon: %w", err)
		}
		return hex.EncodeToString(raw), nil
	}
	return "", nil
}

// GetInfo returns the node identity and sync state
func (c *Client) GetInfo(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, getInfoPath, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListInvoices returns up to maxCount invoices, most recent first
func (c *Client) ListInvoices(ctx context.Context, maxCount int) ([]Invoice, error) {
	q := url.Values{}
	q.Set("reversed", "true")
	if maxCount > 0 {
		q.Set("num_max_invoices", strconv.Itoa(maxCount))
	}

	var resp ListInvoicesResponse
	if err := c.do(ctx, http.MethodGet, invoicesPath+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Invoices, nil
}

// DecodePaymentRequest decodes a BOLT11 payment request
func (c *Client) DecodePaymentRequest(ctx context.Context, paymentRequest string) (*PayReq, error) {
	if paymentRequest == "" {
		return nil, fmt.Errorf("payment request is required: %w", apperr.ErrValidation)
	}

	var payReq PayReq
	if err := c.do(ctx, http.MethodGet, payReqPath+url.PathEscape(paymentRequest), nil, &payReq); err != nil {
		return nil, err
	}
	return &payReq, nil
}

// SendPayment pays a BOLT11 payment request synchronously. Routing failures
// come back in SendResult.PaymentError with a nil error.
func (c *Client) SendPayment(ctx context.Context, paymentRequest string) (*SendResult, error) {
	body := map[string]string{"payment_request": paymentRequest}

	var result SendResult
	if err := c.do(ctx, http.MethodPost, sendPaymentPath, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateInvoice asks the node for a new invoice
func (c *Client) CreateInvoice(ctx context.Context, amount decimal.Decimal, memo string, expirySeconds int64) (*AddInvoiceResult, error) {
	body := map[string]string{
		"value": amount.String(),
		"memo":  memo,
	}
	if expirySeconds > 0 {
		body["expiry"] = strconv.FormatInt(expirySeconds, 10)
	}

	var result AddInvoiceResult
	if err := c.do(ctx, http.MethodPost, invoicesPath, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do executes a request and decodes a 2xx JSON body into out. Transport
// failures and non-2xx responses wrap apperr.ErrUpstreamUnavailable.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.macaroon != "" {
		req.Header.Set(macaroonHeader, c.macaroon)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lnd request %s %s failed: %v: %w", method, stripQuery(path), err, apperr.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read lnd response body: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lnd %s returned status %d: %s: %w",
			stripQuery(path), resp.StatusCode, errorMessage(body), apperr.ErrUpstreamUnavailable)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal lnd response: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	return nil
}

func errorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	if len(body) > maxErrorBodySize {
		body = body[:maxErrorBodySize]
	}
	return strings.TrimSpace(string(body))
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
