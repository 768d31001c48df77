package types

import "github.com/shopspring/decimal"

// Wire messages shared by the HTTP and gRPC boundaries.

type HealthRequest struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type LineItem struct {
	ProductRef string          `json:"product_ref"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int64           `json:"quantity"`
}

func (x *LineItem) GetProductRef() string {
	if x == nil {
		return ""
	}
	return x.ProductRef
}

func (x *LineItem) GetUnitPrice() decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return x.UnitPrice
}

func (x *LineItem) GetQuantity() int64 {
	if x == nil {
		return 0
	}
	return x.Quantity
}

type StartCheckoutRequest struct {
	OrderID    string           `json:"order_id"`
	Items      []*LineItem      `json:"items"`
	Total      *decimal.Decimal `json:"total,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	SuccessURL string           `json:"success_url,omitempty"`
	CancelURL  string           `json:"cancel_url,omitempty"`
}

func (x *StartCheckoutRequest) GetOrderID() string {
	if x == nil {
		return ""
	}
	return x.OrderID
}

func (x *StartCheckoutRequest) GetItems() []*LineItem {
	if x == nil {
		return nil
	}
	return x.Items
}

func (x *StartCheckoutRequest) GetTotal() *decimal.Decimal {
	if x == nil {
		return nil
	}
	return x.Total
}

func (x *StartCheckoutRequest) GetCurrency() string {
	if x == nil {
		return ""
	}
	return x.Currency
}

func (x *StartCheckoutRequest) GetSuccessURL() string {
	if x == nil {
		return ""
	}
	return x.SuccessURL
}

func (x *StartCheckoutRequest) GetCancelURL() string {
	if x == nil {
		return ""
	}
	return x.CancelURL
}

type CheckoutResponse struct {
	PaymentID             string `json:"payment_id"`
	ExternalTransactionID string `json:"external_transaction_id"`
	CheckoutURL           string `json:"checkout_url"`
}

type GetPaymentByOrderRequest struct {
	OrderID string `json:"order_id"`
}

func (x *GetPaymentByOrderRequest) GetOrderID() string {
	if x == nil {
		return ""
	}
	return x.OrderID
}

type Payment struct {
	ID                    string `json:"id"`
	OrderID               string `json:"order_id"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	Status                string `json:"status"`
	Provider              string `json:"provider"`
	ExternalTransactionID string `json:"external_transaction_id,omitempty"`
	CheckoutURL           string `json:"checkout_url,omitempty"`
	RefundedAmount        string `json:"refunded_amount,omitempty"`
	FailureReason         string `json:"failure_reason,omitempty"`
	CreatedAt             string `json:"created_at"`
	UpdatedAt             string `json:"updated_at"`
}

type PaymentEnvelopeResponse struct {
	Payment *Payment `json:"payment"`
}

type InitiateRefundRequest struct {
	OrderID       string           `json:"order_id"`
	PartialAmount *decimal.Decimal `json:"partial_amount,omitempty"`
}

func (x *InitiateRefundRequest) GetOrderID() string {
	if x == nil {
		return ""
	}
	return x.OrderID
}

func (x *InitiateRefundRequest) GetPartialAmount() *decimal.Decimal {
	if x == nil {
		return nil
	}
	return x.PartialAmount
}

type RefundResponse struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	RefundedAmount string `json:"refunded_amount,omitempty"`
	Currency       string `json:"currency"`
}

type ProviderWebhookRequest struct {
	Provider  string
	Signature string
	Payload   []byte
}

func (x *ProviderWebhookRequest) GetProvider() string {
	if x == nil {
		return ""
	}
	return x.Provider
}

func (x *ProviderWebhookRequest) GetSignature() string {
	if x == nil {
		return ""
	}
	return x.Signature
}

func (x *ProviderWebhookRequest) GetPayload() []byte {
	if x == nil {
		return nil
	}
	return x.Payload
}

type PaymentEvent struct {
	EventType       string `json:"event_type"`
	OldStatus       string `json:"old_status,omitempty"`
	NewStatus       string `json:"new_status"`
	Reason          string `json:"reason,omitempty"`
	ProviderEventID string `json:"provider_event_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type PaymentEventsResponse struct {
	OrderID string          `json:"order_id"`
	Events  []*PaymentEvent `json:"events"`
}
