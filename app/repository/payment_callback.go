package repository

import (
	"context"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/entity"
)

type PaymentCallbackRepository struct {
	db DBTX
}

func NewPaymentCallbackRepository(db DBTX) *PaymentCallbackRepository {
	return &PaymentCallbackRepository{db: db}
}

func (r *PaymentCallbackRepository) Create(ctx context.Context, callback *entity.PaymentCallback) error {
	query := `
		INSERT INTO payment_callbacks (
			payment_id, provider, provider_event_id, event_type, signature, payload_json, status, error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(callback.PaymentID),
		callback.Provider,
		nullableStringValue(callback.ProviderEventID),
		nullableStringValue(callback.EventType),
		callback.Signature,
		callback.PayloadJSON,
		callback.Status,
		nullableStringValue(callback.Error),
		callback.CreatedAt.UTC(),
		callback.UpdatedAt.UTC(),
	)
	if err != nil {
		return unavailable("insert payment callback", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return unavailable("insert payment callback", err)
	}
	callback.ID = uint64(id)

	return nil
}
