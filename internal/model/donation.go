// internal/model/donation.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Donation is one entry of a donor's append-only history.
type Donation struct {
	Donor Address         `db:"donor" json:"donor"`
	Value decimal.Decimal `db:"value" json:"value"`
	Date  time.Time       `db:"donated_at" json:"date"`
}

// Withdrawal records a balance transfer to the beneficiary at that time.
type Withdrawal struct {
	Beneficiary Address         `db:"beneficiary" json:"beneficiary"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Date        time.Time       `db:"withdrawn_at" json:"date"`
}
