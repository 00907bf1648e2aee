package repository

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/model"
)

type ReceiptRepositoryInterface interface {
	CreateReceipt(ctx context.Context, rc *model.Receipt) (bool, error)
	ListReceipts(ctx context.Context, donor model.Address, limit int) ([]model.Receipt, error)
}

type ReceiptRepository struct {
	DB *sql.DB
}

// CreateReceipt is idempotent on EventID. It reports false when a receipt for
// the event already existed, leaving the stored row untouched.
func (r *ReceiptRepository) CreateReceipt(ctx context.Context, rc *model.Receipt) (bool, error) {
	query := `
        INSERT INTO receipts (event_id, fundraiser_id, fund, donor, value, donated_at, content, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        ON CONFLICT (event_id) DO NOTHING
        RETURNING id, created_at
    `
	err := r.DB.QueryRowContext(ctx, query,
		rc.EventID, rc.FundraiserID, rc.Fund, rc.Donor, rc.Value, rc.DonatedAt, rc.Content,
	).Scan(&rc.ID, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.NewUnavailable("insert receipt", err)
	}
	rc.CreatedAt = rc.CreatedAt.UTC()
	return true, nil
}

func (r *ReceiptRepository) ListReceipts(ctx context.Context, donor model.Address, limit int) ([]model.Receipt, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, event_id, fundraiser_id, fund, donor, value, donated_at, content, created_at
        FROM receipts WHERE donor=$1 ORDER BY id DESC LIMIT $2
    `, donor, limit)
	if err != nil {
		return nil, appErrors.NewUnavailable("list receipts", err)
	}
	defer rows.Close()

	receipts := []model.Receipt{}
	for rows.Next() {
		var rc model.Receipt
		if err := rows.Scan(&rc.ID, &rc.EventID, &rc.FundraiserID, &rc.Fund, &rc.Donor,
			&rc.Value, &rc.DonatedAt, &rc.Content, &rc.CreatedAt); err != nil {
			return nil, appErrors.NewUnavailable("scan receipt", err)
		}
		rc.DonatedAt = rc.DonatedAt.UTC()
		rc.CreatedAt = rc.CreatedAt.UTC()
		receipts = append(receipts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewUnavailable("list receipts", err)
	}
	return receipts, nil
}

var _ ReceiptRepositoryInterface = (*ReceiptRepository)(nil)
