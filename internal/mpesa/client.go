// Package mpesa implements a client for the Safaricom Daraja API: OAuth
// token management, STK push initiation, and callback decoding.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// timestampLayout is the gateway's YYYYMMDDHHMMSS format.
const timestampLayout = "20060102150405"

// Config holds the Daraja credentials and endpoints.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

// Client talks to the Daraja API. It caches the OAuth access token until
// shortly before expiry and is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient creates a Daraja client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		now:  time.Now,
	}
}

// STKPushRequest is the input for initiating an STK push.
type STKPushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// STKPushResponse carries the gateway's correlation ids for a successfully
// submitted push. CheckoutRequestID is the key the asynchronous callback
// is matched on.
type STKPushResponse struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	CustomerMessage   string `json:"CustomerMessage"`
}

// STKPush submits a payment prompt to the customer's phone. The call is
// fire-and-forget: a nil error only means the gateway accepted the
// request; the outcome arrives later on the callback URL.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "access token")
	}

	ts := c.now().Format(timestampLayout)
	body := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		// Daraja rejects fractional amounts; charge whole shillings.
		"Amount":           req.Amount.Ceil().IntPart(),
		"PartyA":           phone,
		"PartyB":           c.cfg.ShortCode,
		"PhoneNumber":      phone,
		"CallBackURL":      c.cfg.CallbackURL,
		"AccountReference": req.AccountReference,
		"TransactionDesc":  req.Description,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send stk push")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("stk push rejected: status %d", resp.StatusCode)
	}

	var out STKPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if out.ResponseCode != "0" {
		return nil, errors.Errorf("stk push rejected: response code %s", out.ResponseCode)
	}
	return &out, nil
}

// Password derives the time-boxed request password:
// base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// accessToken returns a cached OAuth token, refreshing it when it is
// within a minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExp.Add(-time.Minute)) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request token")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("token request failed: status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}
	if out.AccessToken == "" {
		return "", errors.New("empty access token")
	}

	ttl := time.Hour
	var secs int
	if _, err := fmt.Sscanf(out.ExpiresIn, "%d", &secs); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	c.token = out.AccessToken
	c.tokenExp = c.now().Add(ttl)
	return c.token, nil
}
