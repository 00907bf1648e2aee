// internal/model/fundraiser.go
package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// FundraiserID is the opaque identifier a store assigns to a new fundraiser.
type FundraiserID int64

func (id FundraiserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseFundraiserID parses the decimal form used in URLs.
func ParseFundraiserID(s string) (FundraiserID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return FundraiserID(v), nil
}

// Fundraiser is the persisted row of a campaign, including its counters.
type Fundraiser struct {
	ID             FundraiserID    `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	URL            string          `db:"url" json:"url"`
	ImageURL       string          `db:"image_url" json:"image_url"`
	Description    string          `db:"description" json:"description"`
	Owner          Address         `db:"owner" json:"owner"`
	Beneficiary    Address         `db:"beneficiary" json:"beneficiary"`
	TotalDonations decimal.Decimal `db:"total_donations" json:"total_donations"`
	DonationsCount int64           `db:"donations_count" json:"donations_count"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// FundraiserState is everything needed to rebuild a ledger on boot.
type FundraiserState struct {
	Fundraiser
	Donations map[Address][]Donation
}
