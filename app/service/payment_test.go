package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/entity"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/lock"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/metrics"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/provider"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/repository"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/types"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/config"
	"github.com/shopspring/decimal"
)

type servicePaymentRepo struct {
	mu            sync.Mutex
	payments      map[string]domain.Snapshot
	saves         int
	saveConflicts int
	saveErr       error
	findErr       error
	findCalls     int
}

func newServicePaymentRepo() *servicePaymentRepo {
	return &servicePaymentRepo{payments: map[string]domain.Snapshot{}}
}

func (r *servicePaymentRepo) put(s domain.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[s.ID] = s
}

func (r *servicePaymentRepo) get(id string) domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[id]
}

func (r *servicePaymentRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *servicePaymentRepo) Save(_ context.Context, payment *domain.Payment) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	if r.saveConflicts > 0 {
		r.saveConflicts--
		return nil, repository.ErrVersionConflict
	}

	snap := payment.Snapshot()
	if snap.Version == 0 {
		for _, item := range r.payments {
			if item.ExternalTransactionID != "" && item.ExternalTransactionID == snap.ExternalTransactionID {
				return nil, repository.ErrPaymentAlreadyExists
			}
		}
		snap.Version = 1
	} else {
		current, ok := r.payments[snap.ID]
		if !ok {
			return nil, repository.ErrPaymentNotFound
		}
		if current.Version != snap.Version {
			return nil, repository.ErrVersionConflict
		}
		snap.Version++
	}
	r.payments[snap.ID] = snap
	r.saves++
	return domain.RestorePayment(snap), nil
}

func (r *servicePaymentRepo) find(match func(domain.Snapshot) bool) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	items := make([]domain.Snapshot, 0)
	for _, item := range r.payments {
		if match(item) {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return domain.RestorePayment(items[0]), nil
}

func (r *servicePaymentRepo) FindByID(_ context.Context, id string) (*domain.Payment, error) {
	return r.find(func(s domain.Snapshot) bool { return s.ID == id })
}

func (r *servicePaymentRepo) FindByOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	return r.find(func(s domain.Snapshot) bool { return s.OrderID == orderID })
}

func (r *servicePaymentRepo) ListByOrderID(_ context.Context, orderID string) ([]*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	items := make([]domain.Snapshot, 0)
	for _, item := range r.payments {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	out := make([]*domain.Payment, 0, len(items))
	for _, item := range items {
		out = append(out, domain.RestorePayment(item))
	}
	return out, nil
}

func (r *servicePaymentRepo) FindByExternalTransactionID(_ context.Context, externalTransactionID string) (*domain.Payment, error) {
	return r.find(func(s domain.Snapshot) bool { return s.ExternalTransactionID == externalTransactionID })
}

func (r *servicePaymentRepo) ListStalePending(_ context.Context, before time.Time, limit int32) ([]*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*domain.Payment, 0)
	for _, item := range r.payments {
		if item.Status == domain.StatusPending && item.ExternalTransactionID != "" && !item.CreatedAt.After(before) {
			items = append(items, domain.RestorePayment(item))
		}
	}
	if int32(len(items)) > limit {
		items = items[:limit]
	}
	return items, nil
}

type serviceEventRepo struct {
	mu     sync.Mutex
	events []*entity.PaymentEvent
}

func (r *serviceEventRepo) Create(_ context.Context, event *entity.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func (r *serviceEventRepo) ListByPaymentID(_ context.Context, paymentID string) ([]*entity.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.PaymentEvent, 0)
	for _, item := range r.events {
		if item.PaymentID == paymentID {
			items = append(items, item)
		}
	}
	return items, nil
}

type serviceCallbackRepo struct {
	mu        sync.Mutex
	callbacks []*entity.PaymentCallback
}

func (r *serviceCallbackRepo) Create(_ context.Context, callback *entity.PaymentCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *callback
	r.callbacks = append(r.callbacks, &copyItem)
	return nil
}

func (r *serviceCallbackRepo) statuses() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int32, 0, len(r.callbacks))
	for _, item := range r.callbacks {
		out = append(out, item.Status)
	}
	return out
}

type serviceProvider struct {
	mu            sync.Mutex
	checkoutFn    func(*provider.CheckoutInput) (*provider.CheckoutSession, error)
	refundFn      func(*provider.RefundInput) (*provider.Refund, error)
	event         *provider.Event
	parseErr      error
	status        provider.CheckoutStatus
	statusErr     error
	checkoutCalls int
	parseCalls    int
	lastCheckout  *provider.CheckoutInput
	refunds       []*provider.RefundInput
}

func (p *serviceProvider) Name() string { return "stripe" }

func (p *serviceProvider) CreateCheckoutSession(_ context.Context, input *provider.CheckoutInput) (*provider.CheckoutSession, error) {
	p.mu.Lock()
	p.checkoutCalls++
	p.lastCheckout = input
	fn := p.checkoutFn
	calls := p.checkoutCalls
	p.mu.Unlock()

	if fn != nil {
		return fn(input)
	}
	id := fmt.Sprintf("cs_test_%d", calls)
	return &provider.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (p *serviceProvider) ParseWebhookEvent(context.Context, []byte, string) (*provider.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parseCalls++
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	evt := *p.event
	return &evt, nil
}

func (p *serviceProvider) CreateRefund(_ context.Context, input *provider.RefundInput) (*provider.Refund, error) {
	p.mu.Lock()
	p.refunds = append(p.refunds, input)
	fn := p.refundFn
	p.mu.Unlock()

	if fn != nil {
		return fn(input)
	}
	return &provider.Refund{ID: "re_1", Status: "succeeded"}, nil
}

func (p *serviceProvider) GetCheckoutStatus(context.Context, string) (provider.CheckoutStatus, error) {
	if p.statusErr != nil {
		return provider.CheckoutOpen, p.statusErr
	}
	return p.status, nil
}

type serviceFixture struct {
	repo      *servicePaymentRepo
	events    *serviceEventRepo
	callbacks *serviceCallbackRepo
	provider  *serviceProvider
	metrics   *metrics.Metrics
	svc       *PaymentService
}

func newServiceFixture(p *serviceProvider) *serviceFixture {
	f := &serviceFixture{
		repo:      newServicePaymentRepo(),
		events:    &serviceEventRepo{},
		callbacks: &serviceCallbackRepo{},
		provider:  p,
		metrics:   metrics.New("test"),
	}
	f.svc = NewPaymentService(
		f.repo,
		f.events,
		f.callbacks,
		provider.NewRegistry(p),
		lock.NewKeyedMutex(),
		f.metrics,
		config.CheckoutConfig{
			SuccessURL:      "https://shop.example/success",
			CancelURL:       "https://shop.example/cancel",
			DefaultCurrency: "BRL",
		},
		config.PaymentsConfig{
			RetryMaxAttempts:    3,
			RetryBaseDelay:      time.Millisecond,
			RetryMaxDelay:       5 * time.Millisecond,
			LockWait:            5 * time.Second,
			ReconcileStaleAfter: 15 * time.Minute,
			JobBatchSize:        100,
		},
	)
	return f
}

func seedPayment(t *testing.T, repo *servicePaymentRepo, orderID, externalID, amount string, status domain.Status) domain.Snapshot {
	t.Helper()
	money, err := domain.NewMoney(decimal.RequireFromString(amount), "BRL")
	if err != nil {
		t.Fatalf("money: %v", err)
	}
	payment, err := domain.NewPayment(orderID, money, "stripe", "")
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if externalID != "" {
		if err := payment.AttachCheckout(externalID, "https://checkout.stripe.com/c/pay/"+externalID); err != nil {
			t.Fatalf("attach checkout: %v", err)
		}
	}
	snap := payment.Snapshot()
	snap.Status = status
	snap.Version = 1
	repo.put(snap)
	return snap
}

func cartRequest(orderID string, unitPrice string, quantity int64) *types.StartCheckoutRequest {
	return &types.StartCheckoutRequest{
		OrderID:  orderID,
		Items:    []*types.LineItem{{ProductRef: "p1", UnitPrice: decimal.RequireFromString(unitPrice), Quantity: quantity}},
		Currency: "BRL",
	}
}

func webhookRequest() *types.ProviderWebhookRequest {
	return &types.ProviderWebhookRequest{
		Provider:  "stripe",
		Signature: "t=1,v1=abc",
		Payload:   []byte(`{"id":"evt_1"}`),
	}
}

func TestStartCheckoutCreatesPendingPayment(t *testing.T) {
	f := newServiceFixture(&serviceProvider{})

	payment, err := f.svc.StartCheckout(context.Background(), cartRequest("o1", "5.99", 2))
	if err != nil {
		t.Fatalf("start checkout failed: %v", err)
	}
	if payment.Amount().String() != "11.98 BRL" {
		t.Fatalf("unexpected amount: %s", payment.Amount().String())
	}
	if payment.Status() != domain.StatusPending {
		t.Fatalf("expected pending status, got %s", payment.Status())
	}
	if payment.CheckoutURL() == "" || payment.ExternalTransactionID() != "cs_test_1" {
		t.Fatalf("unexpected checkout session: url=%q id=%q", payment.CheckoutURL(), payment.ExternalTransactionID())
	}

	input := f.provider.lastCheckout
	if input.IdempotencyKey != "checkout:"+payment.ID() {
		t.Fatalf("unexpected idempotency key: %s", input.IdempotencyKey)
	}
	if len(input.Items) != 1 || input.Items[0].UnitAmount != 599 || input.Items[0].Quantity != 2 || input.Items[0].Name != "p1" {
		t.Fatalf("unexpected line items: %+v", input.Items)
	}
	if input.SuccessURL != "https://shop.example/success" || input.CancelURL != "https://shop.example/cancel" {
		t.Fatalf("expected configured redirect urls, got %s %s", input.SuccessURL, input.CancelURL)
	}
	if f.repo.saveCount() != 1 {
		t.Fatalf("expected one save, got %d", f.repo.saveCount())
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != "payment_created" {
		t.Fatalf("expected payment_created event, got %+v", f.events.events)
	}
}

func TestStartCheckoutIsIdempotentForPendingOrder(t *testing.T) {
	f := newServiceFixture(&serviceProvider{})

	first, err := f.svc.StartCheckout(context.Background(), cartRequest("o1", "5.99", 2))
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	second, err := f.svc.StartCheckout(context.Background(), cartRequest("o1", "5.99", 2))
	if err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}
	if first.ID() != second.ID() || first.CheckoutURL() != second.CheckoutURL() {
		t.Fatalf("expected same payment, first=%s second=%s", first.ID(), second.ID())
	}
	if f.provider.checkoutCalls != 1 {
		t.Fatalf("expected a single processor session, got %d", f.provider.checkoutCalls)
	}
}

func TestStartCheckoutOrderRules(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.Status
		amount  string
		wantErr error
	}{
		{name: "pending with different amount", status: domain.StatusPending, amount: "20.00", wantErr: ErrPaymentInProgress},
		{name: "already paid", status: domain.StatusSucceeded, amount: "11.98", wantErr: ErrOrderAlreadyPaid},
		{name: "failed allows a new payment", status: domain.StatusFailed, amount: "11.98"},
		{name: "refunded allows a new payment", status: domain.StatusRefunded, amount: "11.98"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(&serviceProvider{})
			seeded := seedPayment(t, f.repo, "o1", "cs_old", tt.amount, tt.status)

			payment, err := f.svc.StartCheckout(context.Background(), cartRequest("o1", "5.99", 2))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if f.provider.checkoutCalls != 0 {
					t.Fatalf("expected no processor call, got %d", f.provider.checkoutCalls)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if payment.ID() == seeded.ID {
				t.Fatal("expected a new payment")
			}
		})
	}
}

func TestStartCheckoutValidation(t *testing.T) {
	total := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}

	tests := []struct {
		name    string
		req     *types.StartCheckoutRequest
		wantErr error
	}{
		{
			name:    "missing order",
			req:     cartRequest("", "5.99", 2),
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "empty cart",
			req:     &types.StartCheckoutRequest{OrderID: "o1"},
			wantErr: ErrEmptyCart,
		},
		{
			name: "total mismatch",
			req: &types.StartCheckoutRequest{
				OrderID: "o1",
				Items:   []*types.LineItem{{ProductRef: "p1", UnitPrice: decimal.RequireFromString("5.99"), Quantity: 2}},
				Total:   total("12.00"),
			},
			wantErr: ErrAmountMismatch,
		},
		{
			name:    "negative unit price",
			req:     cartRequest("o1", "-1.00", 1),
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "zero quantity",
			req:     cartRequest("o1", "5.99", 0),
			wantErr: ErrInvalidLineItem,
		},
		{
			name: "invalid currency",
			req: &types.StartCheckoutRequest{
				OrderID:  "o1",
				Items:    []*types.LineItem{{ProductRef: "p1", UnitPrice: decimal.RequireFromString("5.99"), Quantity: 1}},
				Currency: "REAIS",
			},
			wantErr: domain.ErrInvalidCurrency,
		},
		{
			name:    "free cart",
			req:     cartRequest("o1", "0", 3),
			wantErr: domain.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(&serviceProvider{})
			_, err := f.svc.StartCheckout(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || len(verr.Reasons) == 0 {
				t.Fatalf("expected validation error with reasons, got %v", err)
			}
			if f.provider.checkoutCalls != 0 || f.repo.saveCount() != 0 {
				t.Fatal("validation failure must not reach the processor or the store")
			}
		})
	}
}

func TestStartCheckoutAcceptsTotalWithinRounding(t *testing.T) {
	f := newServiceFixture(&serviceProvider{})
	declared := decimal.RequireFromString("11.9801")
	req := cartRequest("o1", "5.99", 2)
	req.Total = &declared

	if _, err := f.svc.StartCheckout(context.Background(), req); err != nil {
		t.Fatalf("expected total within rounding to pass, got %v", err)
	}
}

func TestStartCheckoutRetriesUnavailableProvider(t *testing.T) {
	failures := 2
	p := &serviceProvider{}
	p.checkoutFn = func(*provider.CheckoutInput) (*provider.CheckoutSession, error) {
		if failures > 0 {
			failures--
			return nil, fmt.Errorf("%w: timeout", provider.ErrProviderUnavailable)
		}
		return &provider.CheckoutSession{ID: "cs_ok", URL: "https://checkout.stripe.com/c/pay/cs_ok"}, nil
	}
	f := newServiceFixture(p)

	payment, err := f.svc.StartCheckout(context.Background(), cartRequest("o1", "5.99", 2))
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if payment.ExternalTransactionID() != "cs_ok" || p.checkoutCalls != 3 {
		t.Fatalf("unexpected result: id=%s calls=%d", payment.ExternalTransactionID(), p.checkoutCalls)
	}
}

func TestStartCheckoutProviderFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   error
		wantCalls int
	}{
		{name: "unavailable exhausts retries", err: provider.ErrProviderUnavailable, wantErr: ErrProviderUnavailable, wantCalls: 3},
		{name: "rejection is not retried", err: provider.ErrProviderRejected, wantErr: ErrProviderRejected, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &serviceProvider{checkoutFn: func(*provider.CheckoutInput) (*provider.CheckoutSession, error) {
				return nil, fmt.Errorf("%w: boom", tt.err)
			}}
			f := newServiceFixture(p)

			_, err := f.svc.StartCheckout(context.Background(), cartRequest("o1", "5.99", 2))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if p.checkoutCalls != tt.wantCalls {
				t.Fatalf("expected %d calls, got %d", tt.wantCalls, p.checkoutCalls)
			}
			if f.repo.saveCount() != 0 {
				t.Fatal("expected no payment to be stored")
			}
		})
	}
}

func TestGetPaymentByOrder(t *testing.T) {
	f := newServiceFixture(&serviceProvider{})
	seeded := seedPayment(t, f.repo, "o1", "cs_1", "11.98", domain.StatusPending)

	payment, err := f.svc.GetPaymentByOrder(context.Background(), &types.GetPaymentByOrderRequest{OrderID: "o1"})
	if err != nil || payment.ID() != seeded.ID {
		t.Fatalf("unexpected result: %v %v", payment, err)
	}

	_, err = f.svc.GetPaymentByOrder(context.Background(), &types.GetPaymentByOrderRequest{OrderID: "missing"})
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}

	_, err = f.svc.GetPaymentByOrder(context.Background(), &types.GetPaymentByOrderRequest{})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestGetPaymentByOrderRetriesStorage(t *testing.T) {
	f := newServiceFixture(&serviceProvider{})
	f.repo.findErr = fmt.Errorf("%w: connection refused", repository.ErrStorageUnavailable)

	_, err := f.svc.GetPaymentByOrder(context.Background(), &types.GetPaymentByOrderRequest{OrderID: "o1"})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if f.repo.findCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.repo.findCalls)
	}
}

func TestListPaymentEvents(t *testing.T) {
	f := newServiceFixture(&serviceProvider{event: &provider.Event{
		ID:                    "evt_1",
		Kind:                  provider.EventPaymentSucceeded,
		ExternalTransactionID: "cs_1",
	}})
	seedPayment(t, f.repo, "o1", "cs_1", "11.98", domain.StatusPending)

	if _, err := f.svc.HandleProviderEvent(context.Background(), webhookRequest()); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}

	events, err := f.svc.ListPaymentEvents(context.Background(), &types.GetPaymentByOrderRequest{OrderID: "o1"})
	if err != nil {
		t.Fatalf("list events failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "payment_confirmed" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].ProviderEventID == nil || *events[0].ProviderEventID != "evt_1" {
		t.Fatalf("expected provider event id on audit row, got %+v", events[0])
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := retryPolicy{attempts: 6, baseDelay: 100 * time.Millisecond, maxDelay: time.Second}
	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, want := range expected {
		if got := p.delay(i + 1); got != want {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestWithRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := withRetry(ctx, retryPolicy{attempts: 5, baseDelay: time.Hour}, func() (int, error) {
		calls++
		return 0, provider.ErrProviderUnavailable
	})
	if !errors.Is(err, provider.ErrProviderUnavailable) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call before cancellation, got %d", calls)
	}
}
