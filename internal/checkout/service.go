// Package checkout creates and captures PayPal orders for storefront carts.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voltparts/storefront/internal/platform/httpx"
	"github.com/voltparts/storefront/internal/shared"
)

var (
	// ErrInvalidAmount rejects a missing or non-positive amount.
	ErrInvalidAmount = errors.New("checkout: amount must be greater than 0")
	// ErrProvider wraps any failure reported by the payment provider.
	ErrProvider = errors.New("checkout: payment provider failed")
)

var itemValidator = httpx.NewValidator()

const (
	idempotencyModule = "checkout.paypal"
	defaultCurrency   = "USD"
)

// CartItem is one line of the customer's cart.
type CartItem struct {
	ProductID int64   `json:"id,omitempty"`
	Name      string  `json:"name" validate:"required,max=127"`
	SKU       string  `json:"sku,omitempty" validate:"max=127"`
	Price     float64 `json:"price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
}

// Request is the body of a checkout call. Amount is a pointer so a missing
// amount can be told apart from zero.
type Request struct {
	Amount      *float64   `json:"amount"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	CartItems   []CartItem `json:"cartItems"`
}

// Order is what the gateway is asked to open.
type Order struct {
	Amount      float64
	Currency    string
	Description string
	Items       []CartItem
	RequestID   string
}

// CreatedOrder is an order awaiting buyer approval.
type CreatedOrder struct {
	ID          string `json:"paypal_order_id"`
	Status      string `json:"status,omitempty"`
	ApprovalURL string `json:"approval_url"`
}

// CapturedOrder is the result of capturing an approved order.
type CapturedOrder struct {
	ID     string `json:"paypal_order_id"`
	Status string `json:"status"`
}

// Gateway is the payment provider boundary.
type Gateway interface {
	CreateOrder(ctx context.Context, o Order) (CreatedOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (CapturedOrder, error)
}

// Idempotency deduplicates client retries.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// Events receives notifications about created orders.
type Events interface {
	OrderCreated(ctx context.Context, evt OrderCreated) error
}

// OrderCreated is published once PayPal accepted an order.
type OrderCreated struct {
	OrderID  string  `json:"order_id"`
	UserID   int64   `json:"user_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Items    int     `json:"items"`
}

// Service runs checkout flows. A nil gateway means PayPal is not
// configured and every call fails with ErrNotConfigured.
type Service struct {
	gateway     Gateway
	idempotency Idempotency
	events      Events
	logger      *slog.Logger
}

// NewService builds a checkout service. idempotency and events may be nil.
func NewService(gateway Gateway, idempotency Idempotency, events Events, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateway: gateway, idempotency: idempotency, events: events, logger: logger}
}

// Configured reports whether a gateway is available.
func (s *Service) Configured() bool {
	return s.gateway != nil
}

func validate(req Request) (Order, error) {
	// PayPal takes two decimals, so an amount under half a cent is zero.
	if req.Amount == nil || *req.Amount <= 0 || formatAmount(*req.Amount) == "0.00" {
		return Order{}, fmt.Errorf("%w: %w", ErrInvalidAmount, httpx.FieldErrors{"amount": "must be greater than 0"})
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return Order{}, httpx.FieldErrors{"currency": "must be a 3 letter ISO code"}
	}
	for i, it := range req.CartItems {
		it.Name = strings.TrimSpace(it.Name)
		if err := httpx.Validate(itemValidator, it); err != nil {
			var fields httpx.FieldErrors
			if !errors.As(err, &fields) {
				return Order{}, err
			}
			prefixed := make(httpx.FieldErrors, len(fields))
			for name, msg := range fields {
				prefixed[fmt.Sprintf("cartItems[%d].%s", i, name)] = msg
			}
			return Order{}, prefixed
		}
		req.CartItems[i] = it
	}
	return Order{
		Amount:      *req.Amount,
		Currency:    currency,
		Description: strings.TrimSpace(req.Description),
		Items:       req.CartItems,
	}, nil
}

// CreateOrder opens a PayPal order for the cart of userID. A non-empty key
// makes the call idempotent.
func (s *Service) CreateOrder(ctx context.Context, userID int64, req Request, key string) (CreatedOrder, error) {
	order, err := validate(req)
	if err != nil {
		return CreatedOrder{}, err
	}
	if s.gateway == nil {
		return CreatedOrder{}, ErrNotConfigured
	}
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return CreatedOrder{}, fmt.Errorf("checkout %q: %w", key, httpx.ErrConflict)
			}
			return CreatedOrder{}, err
		}
		order.RequestID = key
	}

	created, err := s.gateway.CreateOrder(ctx, order)
	if err != nil {
		if key != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, key, idempotencyModule); relErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", relErr))
			}
		}
		s.logger.Error("paypal create order failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return CreatedOrder{}, errors.Join(ErrProvider, err)
	}

	s.logger.Info("paypal order created",
		slog.String("order_id", created.ID),
		slog.Int64("user_id", userID),
		slog.Float64("amount", order.Amount),
		slog.String("currency", order.Currency))
	if s.events != nil {
		evt := OrderCreated{OrderID: created.ID, UserID: userID, Amount: order.Amount, Currency: order.Currency, Items: len(order.Items)}
		if err := s.events.OrderCreated(ctx, evt); err != nil {
			s.logger.Warn("publish order created", slog.String("order_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}

// CaptureOrder captures an order the buyer approved.
func (s *Service) CaptureOrder(ctx context.Context, orderID string) (CapturedOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return CapturedOrder{}, httpx.FieldErrors{"order_id": "is required"}
	}
	if s.gateway == nil {
		return CapturedOrder{}, ErrNotConfigured
	}
	captured, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("paypal capture failed", slog.String("order_id", orderID), slog.Any("error", err))
		return CapturedOrder{}, errors.Join(ErrProvider, err)
	}
	return captured, nil
}
