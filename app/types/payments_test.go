package types

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewStartCheckoutRequestFromContextNormalizes(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/checkout", bytes.NewBufferString(`{"order_id":" o1 ","currency":"brl","items":[{"product_ref":" p1 ","unit_price":5.99,"quantity":2}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewStartCheckoutRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetOrderID() != "o1" {
		t.Fatalf("expected trimmed order id, got %q", parsed.GetOrderID())
	}
	if parsed.GetCurrency() != "BRL" {
		t.Fatalf("expected upper-cased currency, got %q", parsed.GetCurrency())
	}
	if len(parsed.GetItems()) != 1 || parsed.GetItems()[0].GetProductRef() != "p1" {
		t.Fatalf("unexpected items: %+v", parsed.GetItems())
	}
	if parsed.GetItems()[0].GetUnitPrice().String() != "5.99" {
		t.Fatalf("unexpected unit price: %s", parsed.GetItems()[0].GetUnitPrice())
	}
	if parsed.GetTotal() != nil {
		t.Fatal("expected total to be absent")
	}
}

func TestStartCheckoutValidate(t *testing.T) {
	req := &StartCheckoutRequest{}
	if err := req.Validate(); err == nil {
		t.Fatal("expected order_id validation error")
	}

	req = &StartCheckoutRequest{OrderID: "o1", Currency: "REAL"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected currency validation error")
	}

	req = &StartCheckoutRequest{OrderID: "o1", Items: []*LineItem{nil}}
	if err := req.Validate(); err == nil {
		t.Fatal("expected null item validation error")
	}

	req = &StartCheckoutRequest{OrderID: "o1"}
	if err := req.Validate(); err != nil {
		t.Fatalf("empty cart is rejected later by the service, got %v", err)
	}
}

func TestNewInitiateRefundRequestFromContextAllowsEmptyBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/orders/o1/refund", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("orderId")
	ctx.SetParamValues("o1")

	parsed, err := NewInitiateRefundRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetOrderID() != "o1" || parsed.GetPartialAmount() != nil {
		t.Fatalf("unexpected refund request: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestNewInitiateRefundRequestFromContextReadsPartialAmount(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/orders/o1/refund", bytes.NewBufferString(`{"partial_amount":"4.50"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("orderId")
	ctx.SetParamValues("o1")

	parsed, err := NewInitiateRefundRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetPartialAmount() == nil || parsed.GetPartialAmount().String() != "4.5" {
		t.Fatalf("unexpected partial amount: %v", parsed.GetPartialAmount())
	}
}

func TestNewProviderWebhookRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("Stripe")

	parsed, err := NewProviderWebhookRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetProvider() != "stripe" {
		t.Fatalf("expected lower-cased provider, got %q", parsed.GetProvider())
	}
	if parsed.GetSignature() != "t=1,v1=abc" {
		t.Fatalf("unexpected signature: %q", parsed.GetSignature())
	}
	if string(parsed.GetPayload()) != `{"id":"evt_1"}` {
		t.Fatalf("unexpected payload: %s", parsed.GetPayload())
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid webhook, got %v", err)
	}
}

func TestProviderWebhookValidateLeavesSignatureToService(t *testing.T) {
	req := &ProviderWebhookRequest{Provider: "stripe", Payload: []byte(`{}`)}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected signature check to be left to the service, got %v", err)
	}

	req.Signature = "sig"
	req.Payload = nil
	if err := req.Validate(); err == nil {
		t.Fatal("expected payload validation error")
	}
}
