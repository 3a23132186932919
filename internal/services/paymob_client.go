package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/models"
)

const maxLoggedBody = 512

// Purchaser is the authenticated buyer as seen by checkout.
type Purchaser struct {
	ID       uuid.UUID
	Email    string
	FullName string
	Phone    string
}

// BillingData is the billing profile Paymob requires on every payment key.
type BillingData struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Apartment      string `json:"apartment"`
	Floor          string `json:"floor"`
	Street         string `json:"street"`
	Building       string `json:"building"`
	ShippingMethod string `json:"shipping_method"`
	PostalCode     string `json:"postal_code"`
	City           string `json:"city"`
	Country        string `json:"country"`
	State          string `json:"state"`
}

// BillingFromPurchaser fills the fields a digital checkout cannot know with
// fixed placeholders.
func BillingFromPurchaser(p Purchaser, country string) BillingData {
	firstName, lastName := "", "Name"
	if names := strings.Fields(p.FullName); len(names) > 0 {
		firstName = names[0]
		if len(names) > 1 {
			lastName = strings.Join(names[1:], " ")
		}
	}
	if firstName == "" {
		if local, _, _ := strings.Cut(p.Email, "@"); local != "" {
			firstName = local
		} else {
			firstName = "User"
		}
	}

	phone := strings.TrimSpace(p.Phone)
	if phone == "" {
		phone = "+201000000000"
	}

	return BillingData{
		FirstName:      firstName,
		LastName:       lastName,
		Email:          p.Email,
		PhoneNumber:    phone,
		Apartment:      "NA",
		Floor:          "NA",
		Street:         "NA",
		Building:       "NA",
		ShippingMethod: "NA",
		PostalCode:     "00000",
		City:           "Cairo",
		Country:        country,
		State:          "Cairo",
	}
}

type OrderItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type OrderRequest struct {
	AmountCents    int64       `json:"amount_cents"`
	Currency       string      `json:"currency"`
	DeliveryNeeded bool        `json:"delivery_needed"`
	Items          []OrderItem `json:"items"`
}

// Order is the gateway order created for one checkout.
type Order struct {
	ID  string
	Raw json.RawMessage
}

type PaymentKeyRequest struct {
	AmountCents   int64       `json:"amount_cents"`
	Currency      string      `json:"currency"`
	IntegrationID int         `json:"integration_id"`
	OrderID       string      `json:"order_id"`
	BillingData   BillingData `json:"billing_data"`
	RedirectURL   string      `json:"redirect_url,omitempty"`
}

// CheckoutRequest describes one purchase to open at the gateway.
type CheckoutRequest struct {
	Method          models.PaymentMethod
	AmountCents     int64
	ItemName        string
	ItemDescription string
	Purchaser       Purchaser
}

// CheckoutSession is everything the gateway handed back for one checkout.
type CheckoutSession struct {
	OrderID       string
	PaymentKey    string
	IntegrationID int
	CheckoutURL   string
	Billing       BillingData
	Order         json.RawMessage
}

// TransactionOrder accepts both the object and the bare id forms Paymob uses.
type TransactionOrder struct {
	ID json.Number `json:"id"`
}

func (o *TransactionOrder) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		return json.Unmarshal(data, &o.ID)
	}
	type plain TransactionOrder
	return json.Unmarshal(data, (*plain)(o))
}

// Transaction is the subset of a Paymob transaction the reconciler acts on.
// Success is nil when the gateway sent no success flag.
type Transaction struct {
	ID           json.Number      `json:"id"`
	Success      *bool            `json:"success"`
	Pending      bool             `json:"pending"`
	ErrorOccured bool             `json:"error_occured"`
	IsVoided     bool             `json:"is_voided"`
	IsRefunded   bool             `json:"is_refunded"`
	AmountCents  int64            `json:"amount_cents"`
	Currency     string           `json:"currency"`
	Order        TransactionOrder `json:"order"`
	Raw          json.RawMessage  `json:"-"`
}

// ParseTransaction decodes a transaction object and keeps the raw bytes for audit.
func ParseTransaction(raw json.RawMessage) (Transaction, error) {
	var txn Transaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		return Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}
	txn.Raw = raw
	return txn, nil
}

// PaymobClient talks to the Paymob Accept API. The auth token is cached per
// instance and dropped on any 401.
type PaymobClient struct {
	cfg        config.PaymobConfig
	httpClient *http.Client
	log        *zap.SugaredLogger
	now        func() time.Time

	tokenMu     sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewPaymobClient creates a client bound to one Paymob account.
func NewPaymobClient(cfg config.PaymobConfig, log *zap.SugaredLogger) *PaymobClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PaymobClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		now:        time.Now,
	}
}

// Currency is the ISO code every order is created in.
func (c *PaymobClient) Currency() string {
	return c.cfg.Currency
}

// Billing builds the billing profile for p in the configured country.
func (c *PaymobClient) Billing(p Purchaser) BillingData {
	return BillingFromPurchaser(p, c.cfg.Country)
}

// Authenticate exchanges the API key for a bearer token, reusing a cached one while valid.
func (c *PaymobClient) Authenticate(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := c.post(ctx, StepAuth, "/auth/tokens", "", map[string]string{"api_key": c.cfg.APIKey})
	if err != nil {
		return "", err
	}

	var authResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &authResp); err != nil {
		return "", &GatewayError{Step: StepAuth, Err: fmt.Errorf("decode response: %w", err)}
	}
	if authResp.Token == "" {
		return "", &GatewayError{Step: StepAuth, Err: errors.New("empty token")}
	}

	ttl := c.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 50 * time.Minute
	}
	c.token = authResp.Token
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

func (c *PaymobClient) invalidateToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token == token {
		c.token = ""
		c.tokenExpiry = time.Time{}
	}
}

// CreateOrder registers an order with the gateway and returns its id.
func (c *PaymobClient) CreateOrder(ctx context.Context, token string, req OrderRequest) (Order, error) {
	body, err := c.post(ctx, StepOrder, "/ecommerce/orders", token, req)
	if err != nil {
		return Order{}, err
	}

	var orderResp struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return Order{}, &GatewayError{Step: StepOrder, Err: fmt.Errorf("decode response: %w", err)}
	}
	if orderResp.ID == "" {
		return Order{}, &GatewayError{Step: StepOrder, Err: errors.New("response has no order id")}
	}

	return Order{ID: orderResp.ID.String(), Raw: body}, nil
}

// CreatePaymentKey issues the single-use key that authorises one checkout session.
func (c *PaymobClient) CreatePaymentKey(ctx context.Context, token string, req PaymentKeyRequest) (string, error) {
	body, err := c.post(ctx, StepPaymentKey, "/acceptance/payment_keys", token, req)
	if err != nil {
		return "", err
	}

	var keyResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &keyResp); err != nil {
		return "", &GatewayError{Step: StepPaymentKey, Err: fmt.Errorf("decode response: %w", err)}
	}
	if keyResp.Token == "" {
		return "", &GatewayError{Step: StepPaymentKey, Err: errors.New("empty payment key")}
	}
	return keyResp.Token, nil
}

// StartCheckout runs auth, order and payment key in order. Any failure aborts
// the whole checkout.
func (c *PaymobClient) StartCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	integrationID, _, err := c.route(req.Method)
	if err != nil {
		return nil, err
	}

	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	order, err := c.CreateOrder(ctx, token, OrderRequest{
		AmountCents:    req.AmountCents,
		Currency:       c.cfg.Currency,
		DeliveryNeeded: false,
		Items: []OrderItem{{
			Name:        req.ItemName,
			AmountCents: req.AmountCents,
			Description: req.ItemDescription,
			Quantity:    1,
		}},
	})
	if err != nil {
		return nil, err
	}
	c.log.Debugw("paymob order created", logging.Step(StepOrder), logging.OrderID(order.ID))

	billing := c.Billing(req.Purchaser)
	key, err := c.CreatePaymentKey(ctx, token, PaymentKeyRequest{
		AmountCents:   req.AmountCents,
		Currency:      c.cfg.Currency,
		IntegrationID: integrationID,
		OrderID:       order.ID,
		BillingData:   billing,
		RedirectURL:   c.cfg.RedirectURL,
	})
	if err != nil {
		return nil, err
	}

	checkoutURL, err := c.CheckoutURL(req.Method, key)
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		OrderID:       order.ID,
		PaymentKey:    key,
		IntegrationID: integrationID,
		CheckoutURL:   checkoutURL,
		Billing:       billing,
		Order:         order.Raw,
	}, nil
}

// InquireTransaction asks the gateway for the latest transaction of an order.
func (c *PaymobClient) InquireTransaction(ctx context.Context, orderID string) (Transaction, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return Transaction{}, err
	}

	var orderRef any = orderID
	if n, err := strconv.ParseInt(orderID, 10, 64); err == nil {
		orderRef = n
	}

	body, err := c.post(ctx, StepInquiry, "/ecommerce/orders/transaction_inquiry", token, map[string]any{"order_id": orderRef})
	if err != nil {
		return Transaction{}, err
	}

	txn, err := ParseTransaction(body)
	if err != nil {
		return Transaction{}, &GatewayError{Step: StepInquiry, Err: err}
	}
	return txn, nil
}

// CheckoutURL builds the hosted iframe URL for a payment key.
func (c *PaymobClient) CheckoutURL(method models.PaymentMethod, paymentKey string) (string, error) {
	_, iframeID, err := c.route(method)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("payment_token", paymentKey)
	if c.cfg.RedirectURL != "" {
		query.Set("redirect_url", c.cfg.RedirectURL)
	}

	return fmt.Sprintf("%s/acceptance/iframes/%d?%s", c.cfg.BaseURL, iframeID, query.Encode()), nil
}

// route picks the integration and iframe for a method. The voucher route falls
// back to the card ids when it has none of its own.
func (c *PaymobClient) route(method models.PaymentMethod) (integrationID, iframeID int, err error) {
	switch method {
	case models.PaymentMethodCard:
		return c.cfg.CardIntegrationID, c.cfg.CardIframeID, nil
	case models.PaymentMethodVoucher:
		integrationID, iframeID = c.cfg.VoucherIntegrationID, c.cfg.VoucherIframeID
		if integrationID == 0 {
			integrationID = c.cfg.CardIntegrationID
		}
		if iframeID == 0 {
			iframeID = c.cfg.CardIframeID
		}
		return integrationID, iframeID, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
}

func (c *PaymobClient) post(ctx context.Context, step, path, token string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &GatewayError{Step: step, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &GatewayError{Step: step, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warnw("paymob request failed", logging.Step(step), "error", err)
		return nil, &GatewayError{Step: step, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Step: step, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			c.invalidateToken(token)
		}
		c.log.Warnw("paymob request rejected",
			logging.Step(step),
			"status", resp.StatusCode,
			"body", truncate(string(body), maxLoggedBody),
		)
		return nil, &GatewayError{Step: step, Status: resp.StatusCode, Body: truncate(string(body), maxLoggedBody)}
	}

	c.log.Debugw("paymob request done", logging.Step(step), "status", resp.StatusCode, "duration", c.now().Sub(start))
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
