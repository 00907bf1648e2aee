// internal/service/template_service.go
package service

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unclebandit/fundraiser-backend/internal/model"
)

// ReceiptTemplate is filled by RenderTemplate with fund, date and value.
const ReceiptTemplate = "Thank you for your donation to {fund}\nDate of Donation: {date}\nDonation Value: {value}"

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// NewReceipt builds an unsaved receipt for one donation.
func NewReceipt(id model.FundraiserID, fund string, donor model.Address, value decimal.Decimal, at time.Time) *model.Receipt {
	return &model.Receipt{
		FundraiserID: id,
		Fund:         fund,
		Donor:        donor,
		Value:        value,
		DonatedAt:    at,
		Content: RenderTemplate(ReceiptTemplate, map[string]string{
			"fund":  fund,
			"date":  at.UTC().Format(time.RFC1123),
			"value": value.String(),
		}),
	}
}
