// internal/model/receipt.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	ID           int             `db:"id" json:"id"`
	EventID      string          `db:"event_id" json:"event_id"`
	FundraiserID FundraiserID    `db:"fundraiser_id" json:"fundraiser_id"`
	Fund         string          `db:"fund" json:"fund"`
	Donor        Address         `db:"donor" json:"donor"`
	Value        decimal.Decimal `db:"value" json:"value"`
	DonatedAt    time.Time       `db:"donated_at" json:"donated_at"`
	Content      string          `db:"content" json:"content"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
