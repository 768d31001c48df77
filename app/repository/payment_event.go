package repository

import (
	"context"
	"database/sql"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/entity"
)

type PaymentEventRepository struct {
	db DBTX
}

func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (
			payment_id, event_type, old_status, new_status, reason, provider_event_id, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.PaymentID,
		event.EventType,
		nullableStringValue(event.OldStatus),
		event.NewStatus,
		nullableStringValue(event.Reason),
		nullableStringValue(event.ProviderEventID),
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return unavailable("insert payment event", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return unavailable("insert payment event", err)
	}
	event.ID = uint64(id)

	return nil
}

func (r *PaymentEventRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*entity.PaymentEvent, error) {
	query := `
		SELECT id, payment_id, event_type, old_status, new_status, reason, provider_event_id, created_at
		FROM payment_events
		WHERE payment_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, unavailable("list payment events", err)
	}
	defer rows.Close()

	events := make([]*entity.PaymentEvent, 0)
	for rows.Next() {
		var oldStatus, reason, providerEventID sql.NullString
		event := &entity.PaymentEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.PaymentID,
			&event.EventType,
			&oldStatus,
			&event.NewStatus,
			&reason,
			&providerEventID,
			&event.CreatedAt,
		); err != nil {
			return nil, unavailable("scan payment event", err)
		}
		event.OldStatus = stringPtrFromNull(oldStatus)
		event.Reason = stringPtrFromNull(reason)
		event.ProviderEventID = stringPtrFromNull(providerEventID)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list payment events", err)
	}

	return events, nil
}
