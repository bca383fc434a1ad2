package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/juampidev/pagolink/internal/domain/enums"
)

// Sale is the one persistent entity: a payable engagement with a client,
// addressed everywhere (checkout, reconciliation, dashboard) by its id.
type Sale struct {
	ID                 string                   `json:"id"`
	ClientName         string                   `json:"client_name"`
	Concept            string                   `json:"concept"`
	Amount             decimal.Decimal          `json:"amount"`
	HasSubscription    bool                     `json:"has_subscription"`
	SubscriptionAmount *decimal.Decimal         `json:"subscription_amount,omitempty"`
	PayerFirstName     string                   `json:"payer_first_name,omitempty"`
	PayerLastName      string                   `json:"payer_last_name,omitempty"`
	PayerEmail         string                   `json:"payer_email,omitempty"`
	PayStatus          enums.PayStatus          `json:"pay_status"`
	SubscriptionStatus enums.SubscriptionStatus `json:"subscription_status"`
	NextPaymentDate    *time.Time               `json:"next_payment_date,omitempty"`
	LastPaymentID      string                   `json:"last_payment_id,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// NextPaymentDateFrom computes the due date written alongside the paid
// transition: one month after the update, only for subscription sales.
func (s Sale) NextPaymentDateFrom(now time.Time) *time.Time {
	if !s.HasSubscription {
		return nil
	}
	due := now.AddDate(0, 1, 0)
	return &due
}

func (s Sale) IsPaid() bool {
	return s.PayStatus == enums.PayStatusPaid
}

func (s Sale) HasPayerInfo() bool {
	return s.PayerEmail != ""
}
