package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/domain"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/entity"
	"github.com/ferreiradluan/Ze-da-Fruta-sub002/app/mapper"
)

const paymentColumns = `
	id, order_id, amount_minor, refunded_minor, currency, status, provider,
	external_transaction_id, checkout_url, failure_reason, version, created_at, updated_at`

// PaymentRepository persists payments with optimistic concurrency on the version column.
type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Save inserts a payment that was never stored (version 0) or updates it when the
// stored version still matches. It returns the payment as persisted.
func (r *PaymentRepository) Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	row := mapper.PaymentToEntity(payment)
	if row.Version == 0 {
		if err := r.insert(ctx, row); err != nil {
			return nil, err
		}
	} else if err := r.update(ctx, row); err != nil {
		return nil, err
	}
	return mapper.PaymentFromEntity(row)
}

func (r *PaymentRepository) insert(ctx context.Context, row *entity.Payment) error {
	query := `
		INSERT INTO payments (
			id, order_id, amount_minor, refunded_minor, currency, status, provider,
			external_transaction_id, checkout_url, failure_reason, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	row.Version = 1
	_, err := r.db.ExecContext(ctx, query,
		row.ID,
		row.OrderID,
		row.AmountMinor,
		row.RefundedMinor,
		row.Currency,
		row.Status,
		row.Provider,
		nullableStringValue(row.ExternalTransactionID),
		nullableStringValue(row.CheckoutURL),
		nullableStringValue(row.FailureReason),
		row.Version,
		row.CreatedAt.UTC(),
		row.UpdatedAt.UTC(),
	)
	if err != nil {
		row.Version = 0
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return unavailable("insert payment", err)
	}
	return nil
}

func (r *PaymentRepository) update(ctx context.Context, row *entity.Payment) error {
	query := `
		UPDATE payments SET
			refunded_minor = ?,
			status = ?,
			external_transaction_id = ?,
			checkout_url = ?,
			failure_reason = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		row.RefundedMinor,
		row.Status,
		nullableStringValue(row.ExternalTransactionID),
		nullableStringValue(row.CheckoutURL),
		nullableStringValue(row.FailureReason),
		row.UpdatedAt.UTC(),
		row.ID,
		row.Version,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return unavailable("update payment", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("update payment", err)
	}
	if affected == 0 {
		var current int64
		err := r.db.QueryRowContext(ctx, `SELECT version FROM payments WHERE id = ?`, row.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return unavailable("check payment version", err)
		}
		return ErrVersionConflict
	}

	row.Version++
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	return r.findOne(ctx, query, id)
}

// FindByOrderID returns the most recent payment for the order.
func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE order_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	return r.findOne(ctx, query, orderID)
}

func (r *PaymentRepository) FindByExternalTransactionID(ctx context.Context, externalTransactionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_transaction_id = ? LIMIT 1`
	return r.findOne(ctx, query, externalTransactionID)
}

// ListByOrderID returns every payment of the order, newest first.
func (r *PaymentRepository) ListByOrderID(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE order_id = ?
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, "list order payments", query, orderID)
}

// ListStalePending returns pending payments with a processor session created before the cutoff.
func (r *PaymentRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND external_transaction_id IS NOT NULL
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?`

	return r.list(ctx, "list stale payments", query, domain.StatusPending.String(), before.UTC(), limit)
}

func (r *PaymentRepository) list(ctx context.Context, op string, query string, args ...interface{}) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		row := &entity.Payment{}
		if err := scanPayment(rows, row); err != nil {
			return nil, unavailable("scan payment", err)
		}
		item, err := mapper.PaymentFromEntity(row)
		if err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}

	return payments, nil
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*domain.Payment, error) {
	row := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, args...), row); errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, unavailable("find payment", err)
	}
	return mapper.PaymentFromEntity(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var externalTransactionID sql.NullString
	var checkoutURL sql.NullString
	var failureReason sql.NullString

	err := scan.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.AmountMinor,
		&payment.RefundedMinor,
		&payment.Currency,
		&payment.Status,
		&payment.Provider,
		&externalTransactionID,
		&checkoutURL,
		&failureReason,
		&payment.Version,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.ExternalTransactionID = stringPtrFromNull(externalTransactionID)
	payment.CheckoutURL = stringPtrFromNull(checkoutURL)
	payment.FailureReason = stringPtrFromNull(failureReason)

	return nil
}
