package mapper

import (
	"fmt"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/entity"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/types"
)

func PaymentToEntity(item *domain.Payment) *entity.Payment {
	if item == nil {
		return nil
	}

	return &entity.Payment{
		ID:                    item.ID(),
		OrderID:               item.OrderID(),
		AmountMinor:           item.Amount().MinorUnits(),
		RefundedMinor:         item.RefundedAmount().MinorUnits(),
		Currency:              item.Amount().Currency(),
		Status:                item.Status().String(),
		Provider:              item.Provider(),
		ExternalTransactionID: optionalString(item.ExternalTransactionID()),
		CheckoutURL:           optionalString(item.CheckoutURL()),
		FailureReason:         optionalString(item.FailureReason()),
		Version:               item.Version(),
		CreatedAt:             item.CreatedAt(),
		UpdatedAt:             item.UpdatedAt(),
	}
}

func PaymentFromEntity(row *entity.Payment) (*domain.Payment, error) {
	if row == nil {
		return nil, nil
	}

	amount, err := domain.MoneyFromMinorUnits(row.AmountMinor, row.Currency)
	if err != nil {
		return nil, fmt.Errorf("payment %s amount: %w", row.ID, err)
	}
	refunded, err := domain.MoneyFromMinorUnits(row.RefundedMinor, row.Currency)
	if err != nil {
		return nil, fmt.Errorf("payment %s refunded amount: %w", row.ID, err)
	}
	status, err := domain.ParseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", row.ID, err)
	}

	return domain.RestorePayment(domain.Snapshot{
		ID:                    row.ID,
		OrderID:               row.OrderID,
		Amount:                amount,
		Status:                status,
		Provider:              row.Provider,
		ExternalTransactionID: derefString(row.ExternalTransactionID),
		CheckoutURL:           derefString(row.CheckoutURL),
		RefundedAmount:        refunded,
		FailureReason:         derefString(row.FailureReason),
		Version:               row.Version,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}), nil
}

func PaymentToResponse(item *domain.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	resp := &types.Payment{
		ID:                    item.ID(),
		OrderID:               item.OrderID(),
		Amount:                item.Amount().Amount().StringFixed(2),
		Currency:              item.Amount().Currency(),
		Status:                item.Status().String(),
		Provider:              item.Provider(),
		ExternalTransactionID: item.ExternalTransactionID(),
		CheckoutURL:           item.CheckoutURL(),
		FailureReason:         item.FailureReason(),
		CreatedAt:             item.CreatedAt().UTC().Format(time.RFC3339),
		UpdatedAt:             item.UpdatedAt().UTC().Format(time.RFC3339),
	}
	if !item.RefundedAmount().IsZero() {
		resp.RefundedAmount = item.RefundedAmount().Amount().StringFixed(2)
	}
	return resp
}

func PaymentToRefundResponse(item *domain.Payment) *types.RefundResponse {
	if item == nil {
		return nil
	}

	resp := &types.RefundResponse{
		OrderID:  item.OrderID(),
		Status:   item.Status().String(),
		Currency: item.Amount().Currency(),
	}
	if !item.RefundedAmount().IsZero() {
		resp.RefundedAmount = item.RefundedAmount().Amount().StringFixed(2)
	}
	return resp
}

func PaymentEventsToResponse(orderID string, items []*entity.PaymentEvent) *types.PaymentEventsResponse {
	resp := &types.PaymentEventsResponse{
		OrderID: orderID,
		Events:  make([]*types.PaymentEvent, 0, len(items)),
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Events = append(resp.Events, &types.PaymentEvent{
			EventType:       item.EventType,
			OldStatus:       derefString(item.OldStatus),
			NewStatus:       item.NewStatus,
			Reason:          derefString(item.Reason),
			ProviderEventID: derefString(item.ProviderEventID),
			CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
