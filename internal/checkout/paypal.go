package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotConfigured means PayPal credentials are missing.
var ErrNotConfigured = errors.New("checkout: paypal is not configured")

// SandboxBaseURL is used when no base URL is configured.
const SandboxBaseURL = "https://api-m.sandbox.paypal.com"

// PayPalConfig holds the REST credentials and redirect targets.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	ReturnURL    string
	CancelURL    string
	BrandName    string
}

// APIError is a non-2xx answer from the PayPal REST API.
type APIError struct {
	Status  int    `json:"-"`
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Name != "" {
		return fmt.Sprintf("paypal: %d %s: %s", e.Status, e.Name, msg)
	}
	return fmt.Sprintf("paypal: %d: %s", e.Status, msg)
}

// PayPalClient talks to the Orders v2 API using client credentials.
type PayPalClient struct {
	baseURL string
	http    *http.Client
	cfg     PayPalConfig
}

// NewPayPalClient builds a client. The token source is bound to ctx, so
// ctx must outlive the client.
func NewPayPalClient(ctx context.Context, cfg PayPalConfig) (*PayPalClient, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, ErrNotConfigured
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = SandboxBaseURL
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return &PayPalClient{baseURL: base, http: cc.Client(ctx), cfg: cfg}, nil
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type orderItem struct {
	Name       string `json:"name"`
	Quantity   string `json:"quantity"`
	UnitAmount money  `json:"unit_amount"`
	SKU        string `json:"sku,omitempty"`
}

type purchaseUnit struct {
	Description string      `json:"description,omitempty"`
	Amount      unitAmount  `json:"amount"`
	Items       []orderItem `json:"items,omitempty"`
}

type unitAmount struct {
	money
	Breakdown *breakdown `json:"breakdown,omitempty"`
}

type breakdown struct {
	ItemTotal money `json:"item_total"`
}

type applicationContext struct {
	BrandName  string `json:"brand_name,omitempty"`
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action"`
}

type createOrderBody struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
}

// CreateOrder opens a CAPTURE order and returns its approval link.
func (c *PayPalClient) CreateOrder(ctx context.Context, o Order) (CreatedOrder, error) {
	unit := purchaseUnit{
		Description: o.Description,
		Amount:      unitAmount{money: money{CurrencyCode: o.Currency, Value: formatAmount(o.Amount)}},
	}
	if len(o.Items) > 0 && formatAmount(itemsTotal(o.Items)) == formatAmount(o.Amount) {
		unit.Amount.Breakdown = &breakdown{ItemTotal: money{CurrencyCode: o.Currency, Value: formatAmount(o.Amount)}}
		for _, it := range o.Items {
			unit.Items = append(unit.Items, orderItem{
				Name:       it.Name,
				Quantity:   fmt.Sprint(it.Quantity),
				UnitAmount: money{CurrencyCode: o.Currency, Value: formatAmount(it.Price)},
				SKU:        it.SKU,
			})
		}
	}
	body := createOrderBody{
		Intent:        "CAPTURE",
		PurchaseUnits: []purchaseUnit{unit},
		ApplicationContext: applicationContext{
			BrandName:  c.cfg.BrandName,
			ReturnURL:  c.cfg.ReturnURL,
			CancelURL:  c.cfg.CancelURL,
			UserAction: "PAY_NOW",
		},
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", o.RequestID, body, &resp); err != nil {
		return CreatedOrder{}, err
	}
	approval := approvalLink(resp.Links)
	if approval == "" {
		return CreatedOrder{}, fmt.Errorf("paypal: order %s has no approval link", resp.ID)
	}
	return CreatedOrder{ID: resp.ID, Status: resp.Status, ApprovalURL: approval}, nil
}

// CaptureOrder captures the payment of an approved order.
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (CapturedOrder, error) {
	var resp orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.do(ctx, http.MethodPost, path, "", struct{}{}, &resp); err != nil {
		return CapturedOrder{}, err
	}
	return CapturedOrder{ID: resp.ID, Status: resp.Status}, nil
}

func (c *PayPalClient) do(ctx context.Context, method, path, requestID string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paypal: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{Status: res.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("paypal: decode response: %w", err)
	}
	return nil
}

func approvalLink(links []link) string {
	for _, l := range links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func itemsTotal(items []CartItem) float64 {
	var cents int64
	for _, it := range items {
		cents += int64(it.Price*100+0.5) * int64(it.Quantity)
	}
	return float64(cents) / 100
}
