package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	apperrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

// Credentials is a gateway API key pair. Vendor pairs come out of the vault;
// the platform pair comes from config.
type Credentials struct {
	KeyID     string
	KeySecret string
}

// Client talks to the payment gateway's REST API with one credential pair.
// Instances are cheap and stateless; callers should not cache them across
// credential rotations.
type Client struct {
	baseURL string
	creds   Credentials
	http    *retryablehttp.Client
}

// ClientOptions tunes the underlying HTTP behaviour.
type ClientOptions struct {
	Timeout  time.Duration
	RetryMax int
}

// NewClient binds a credential pair to the gateway base URL.
func NewClient(baseURL string, creds Credentials, opts ClientOptions) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc.HTTPClient.Timeout = timeout
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    rc,
	}
}

// KeyID exposes the bound key id so callers can hand it to browser checkout.
func (c *Client) KeyID() string {
	return c.creds.KeyID
}

// VerifySignature checks a captured-payment signature against this client's
// key secret.
func (c *Client) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return VerifyPaymentSignature(c.creds.KeySecret, gatewayOrderID, gatewayPaymentID, signature)
}

// CreateOrderParams describes the pre-payment order registered with the
// gateway before the buyer is charged. Amounts are minor units.
type CreateOrderParams struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// Order is the gateway's pre-payment order entity.
type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// Payment is the gateway's payment entity.
type Payment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	AmountMinor      int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	Bank             string `json:"bank"`
	Wallet           string `json:"wallet"`
	VPA              string `json:"vpa"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// Refund is the gateway's refund entity. Creation is asynchronous: the
// authoritative completion signal is the refund.processed webhook, not this
// response.
type Refund struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	AmountMinor int64  `json:"amount"`
	Status      string `json:"status"`
}

// CreateOrder registers a pre-payment order. Callers guarantee at-most-once
// per marketplace order by checking for an existing gateway order id first.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPayment retrieves a payment by gateway payment id.
func (c *Client) FetchPayment(ctx context.Context, gatewayPaymentID string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+gatewayPaymentID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type refundRequest struct {
	AmountMinor int64             `json:"amount"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// Refund asks the gateway to refund a captured payment, fully or partially.
func (c *Client) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (*Refund, error) {
	var out Refund
	body := refundRequest{AmountMinor: amountMinor, Notes: notes}
	if err := c.do(ctx, http.MethodPost, "/v1/payments/"+gatewayPaymentID+"/refund", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type gatewayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding gateway request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building gateway request: %w", err)
	}
	req.SetBasicAuth(c.creds.KeyID, c.creds.KeySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeGateway, err, "gateway request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeGateway, err, "reading gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr gatewayErrorBody
		_ = json.Unmarshal(raw, &gwErr)
		msg := gwErr.Error.Description
		if msg == "" {
			msg = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		}
		return apperrors.New(apperrors.CodeGateway, msg).WithDetails(map[string]any{
			"status":     resp.StatusCode,
			"error_code": gwErr.Error.Code,
		})
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperrors.Wrap(apperrors.CodeGateway, err, "decoding gateway response")
		}
	}
	return nil
}
