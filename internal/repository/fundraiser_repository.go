package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/model"
	"github.com/unclebandit/fundraiser-backend/internal/registry"
)

type FundraiserRepositoryInterface interface {
	registry.Store
	GetFundraiser(ctx context.Context, id model.FundraiserID) (*model.Fundraiser, error)
}

// FundraiserRepository is the Postgres store. Every mutation runs in its own
// transaction so counters never drift from the donation rows.
type FundraiserRepository struct {
	DB *sql.DB
}

// ====================== Fundraisers ======================

func (r *FundraiserRepository) CreateFundraiser(ctx context.Context, f *model.Fundraiser) error {
	query := `
        INSERT INTO fundraisers (name, url, image_url, description, owner, beneficiary,
            total_donations, donations_count, balance, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		f.Name, f.URL, f.ImageURL, f.Description, f.Owner, f.Beneficiary, f.CreatedAt,
	).Scan(&f.ID)
	if err != nil {
		return appErrors.NewUnavailable("insert fundraiser", err)
	}
	return nil
}

func (r *FundraiserRepository) GetFundraiser(ctx context.Context, id model.FundraiserID) (*model.Fundraiser, error) {
	query := `
        SELECT id, name, url, image_url, description, owner, beneficiary,
            total_donations, donations_count, balance, created_at
        FROM fundraisers WHERE id=$1
    `
	var f model.Fundraiser
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.Name, &f.URL, &f.ImageURL, &f.Description, &f.Owner, &f.Beneficiary,
		&f.TotalDonations, &f.DonationsCount, &f.Balance, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewFundraiserNotFound(int64(id))
		}
		return nil, appErrors.NewUnavailable("get fundraiser", err)
	}
	f.CreatedAt = f.CreatedAt.UTC()
	return &f, nil
}

func (r *FundraiserRepository) LoadFundraisers(ctx context.Context) ([]model.FundraiserState, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, name, url, image_url, description, owner, beneficiary,
            total_donations, donations_count, balance, created_at
        FROM fundraisers ORDER BY id ASC
    `)
	if err != nil {
		return nil, appErrors.NewUnavailable("load fundraisers", err)
	}
	defer rows.Close()

	states := []model.FundraiserState{}
	index := map[model.FundraiserID]int{}
	for rows.Next() {
		var s model.FundraiserState
		if err := rows.Scan(
			&s.ID, &s.Name, &s.URL, &s.ImageURL, &s.Description, &s.Owner, &s.Beneficiary,
			&s.TotalDonations, &s.DonationsCount, &s.Balance, &s.CreatedAt,
		); err != nil {
			return nil, appErrors.NewUnavailable("scan fundraiser", err)
		}
		// lib/pq reads timestamptz in the session zone.
		s.CreatedAt = s.CreatedAt.UTC()
		s.Donations = map[model.Address][]model.Donation{}
		index[s.ID] = len(states)
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewUnavailable("load fundraisers", err)
	}

	drows, err := r.DB.QueryContext(ctx, `
        SELECT fundraiser_id, donor, value, donated_at
        FROM donations ORDER BY id ASC
    `)
	if err != nil {
		return nil, appErrors.NewUnavailable("load donations", err)
	}
	defer drows.Close()

	for drows.Next() {
		var id model.FundraiserID
		var d model.Donation
		if err := drows.Scan(&id, &d.Donor, &d.Value, &d.Date); err != nil {
			return nil, appErrors.NewUnavailable("scan donation", err)
		}
		d.Date = d.Date.UTC()
		i, ok := index[id]
		if !ok {
			log.Warn().Stringer("fundraiser_id", id).Msg("donation row without fundraiser")
			continue
		}
		states[i].Donations[d.Donor] = append(states[i].Donations[d.Donor], d)
	}
	if err := drows.Err(); err != nil {
		return nil, appErrors.NewUnavailable("load donations", err)
	}

	return states, nil
}

// ====================== Ledger mutations ======================

func (r *FundraiserRepository) SaveDonation(ctx context.Context, id model.FundraiserID, d model.Donation) error {
	return r.inTx(ctx, "save donation", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO donations (fundraiser_id, donor, value, donated_at) VALUES ($1, $2, $3, $4)`,
			id, d.Donor, d.Value, d.Date,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
            UPDATE fundraisers
            SET total_donations = total_donations + $1, balance = balance + $1,
                donations_count = donations_count + 1, updated_at = $2
            WHERE id = $3
        `, d.Value, d.Date, id)
		return expectRow(res, err, id)
	})
}

func (r *FundraiserRepository) SaveWithdrawal(ctx context.Context, id model.FundraiserID, w model.Withdrawal) error {
	return r.inTx(ctx, "save withdrawal", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO withdrawals (fundraiser_id, beneficiary, amount, withdrawn_at) VALUES ($1, $2, $3, $4)`,
			id, w.Beneficiary, w.Amount, w.Date,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE fundraisers SET balance = balance - $1, updated_at = $2 WHERE id = $3`,
			w.Amount, w.Date, id,
		)
		return expectRow(res, err, id)
	})
}

func (r *FundraiserRepository) SaveBeneficiary(ctx context.Context, id model.FundraiserID, beneficiary model.Address) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE fundraisers SET beneficiary=$1, updated_at=NOW() WHERE id=$2`,
		beneficiary, id,
	)
	if err := expectRow(res, err, id); err != nil {
		if appErrors.IsNotFound(err) {
			return err
		}
		return appErrors.NewUnavailable("save beneficiary", err)
	}
	return nil
}

func (r *FundraiserRepository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return appErrors.NewUnavailable(op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn().Err(rbErr).Str("op", op).Msg("rollback failed")
		}
		if appErrors.IsNotFound(err) {
			return err
		}
		return appErrors.NewUnavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return appErrors.NewUnavailable(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func expectRow(res sql.Result, err error, id model.FundraiserID) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewFundraiserNotFound(int64(id))
	}
	return nil
}

var _ FundraiserRepositoryInterface = (*FundraiserRepository)(nil)
