package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// maxReceiptLen is the gateway's cap on the order receipt string; longer
	// hints are truncated, never rejected.
	maxReceiptLen = 40
	// minOrderMajor is the gateway's floor: one whole currency unit.
	minOrderMajor = 1
)

// Client talks to the hosted payment gateway's REST API.
type Client struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	httpc         *http.Client
	logger        *zap.Logger
}

func NewClient(baseURL, keyID, keySecret, webhookSecret string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		httpc:         &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}
}

// KeyID is the public key identifier, safe to hand to the browser.
func (c *Client) KeyID() string { return c.keyID }

// KeySecret signs checkout callbacks.
func (c *Client) KeySecret() string { return c.keySecret }

// WebhookSecret signs asynchronous webhooks.
func (c *Client) WebhookSecret() string { return c.webhookSecret }

// Order is the gateway's registration of a payment intent. The amount and
// currency echoed here are authoritative for later matching, not the
// caller's own rounding.
type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// Payment is the gateway's view of a single payment.
type Payment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	Email       string `json:"email"`
	Contact     string `json:"contact"`
}

// CreateOrder registers a payment order for the given major-unit amount.
// Amounts below the gateway floor are rejected locally; conversion to minor
// units uses banker's rounding.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string, notes map[string]string) (*Order, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, &Error{Kind: KindUnavailable, Description: "gateway credentials not configured"}
	}
	if amount.LessThan(decimal.NewFromInt(minOrderMajor)) {
		return nil, &Error{Kind: KindAmountRejected, Description: "amount below gateway minimum of 1 currency unit"}
	}
	minor := amount.Shift(2).RoundBank(0).IntPart()
	if len(receipt) > maxReceiptLen {
		receipt = receipt[:maxReceiptLen]
	}

	reqBody := map[string]interface{}{
		"amount":   minor,
		"currency": "INR",
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		reqBody["notes"] = notes
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Err: err}
	}

	var order Order
	if err := c.post(ctx, "/v1/orders", bodyBytes, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, &Error{Kind: KindUnknown, Description: "gateway returned no order id"}
	}
	return &order, nil
}

// FetchPayment retrieves payment details for enrichment. Callers must not
// hold per-payment locks across this call.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, &Error{Kind: KindUnavailable, Description: "gateway credentials not configured"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Err: err}
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}
	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, &Error{Kind: KindUnknown, Err: err}
	}
	return &payment, nil
}

// post sends a JSON body with a bounded retry on transient failures.
func (c *Client) post(ctx context.Context, path string, body []byte, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return &Error{Kind: KindUnknown, Err: err}
		}
		req.SetBasicAuth(c.keyID, c.keySecret)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = &Error{Kind: KindUnavailable, Err: err}
			c.logger.Warn("gateway request failed",
				zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = &Error{Kind: KindUnavailable, HTTPStatus: resp.StatusCode}
			c.logger.Warn("gateway server error",
				zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			defer resp.Body.Close()
			return c.errorFromResponse(resp)
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return &Error{Kind: KindUnknown, Err: err}
		}
		return nil
	}
	return lastErr
}

// errorFromResponse maps a non-2xx gateway response onto the error taxonomy.
func (c *Client) errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var body struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
			Field       string `json:"field"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)

	kind := KindUnknown
	switch {
	case resp.StatusCode >= 500:
		kind = KindUnavailable
	case resp.StatusCode == http.StatusBadRequest && body.Error.Field == "amount":
		kind = KindAmountRejected
	case resp.StatusCode == http.StatusUnauthorized:
		kind = KindUnavailable // misconfigured credentials, operator problem
	}
	return &Error{
		Kind:        kind,
		HTTPStatus:  resp.StatusCode,
		Code:        body.Error.Code,
		Description: body.Error.Description,
	}
}
