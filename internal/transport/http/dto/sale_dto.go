package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/juampidev/pagolink/internal/domain/model"
)

type CreateSaleRequest struct {
	ClientName         string           `json:"client_name"`
	Concept            string           `json:"concept"`
	Amount             decimal.Decimal  `json:"amount"`
	HasSubscription    bool             `json:"has_subscription"`
	SubscriptionAmount *decimal.Decimal `json:"subscription_amount"`
}

type UpdateSaleRequest struct {
	ClientName         string           `json:"client_name"`
	Concept            string           `json:"concept"`
	Amount             decimal.Decimal  `json:"amount"`
	HasSubscription    bool             `json:"has_subscription"`
	SubscriptionAmount *decimal.Decimal `json:"subscription_amount"`
}

type SaleResponse struct {
	ID                 string           `json:"id"`
	ClientName         string           `json:"client_name"`
	Concept            string           `json:"concept"`
	Amount             decimal.Decimal  `json:"amount"`
	HasSubscription    bool             `json:"has_subscription"`
	SubscriptionAmount *decimal.Decimal `json:"subscription_amount,omitempty"`
	PayerFirstName     string           `json:"payer_first_name,omitempty"`
	PayerLastName      string           `json:"payer_last_name,omitempty"`
	PayerEmail         string           `json:"payer_email,omitempty"`
	PayStatus          string           `json:"pay_status"`
	SubscriptionStatus string           `json:"subscription_status"`
	NextPaymentDate    *time.Time       `json:"next_payment_date,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func NewSaleResponse(sale model.Sale) SaleResponse {
	return SaleResponse{
		ID:                 sale.ID,
		ClientName:         sale.ClientName,
		Concept:            sale.Concept,
		Amount:             sale.Amount,
		HasSubscription:    sale.HasSubscription,
		SubscriptionAmount: sale.SubscriptionAmount,
		PayerFirstName:     sale.PayerFirstName,
		PayerLastName:      sale.PayerLastName,
		PayerEmail:         sale.PayerEmail,
		PayStatus:          string(sale.PayStatus),
		SubscriptionStatus: string(sale.SubscriptionStatus),
		NextPaymentDate:    sale.NextPaymentDate,
		CreatedAt:          sale.CreatedAt,
		UpdatedAt:          sale.UpdatedAt,
	}
}

func NewSaleResponses(sales []model.Sale) []SaleResponse {
	out := make([]SaleResponse, 0, len(sales))
	for _, sale := range sales {
		out = append(out, NewSaleResponse(sale))
	}
	return out
}

type SaleCreatedResponse struct {
	Sale        SaleResponse `json:"sale"`
	CheckoutURL string       `json:"checkout_url"`
}

type SaleListMetadata struct {
	Quantity    int             `json:"quantity"`
	Paid        int             `json:"paid"`
	Pending     int             `json:"pending"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type SaleListResponse struct {
	Sales    []SaleResponse   `json:"sales"`
	Metadata SaleListMetadata `json:"metadata"`
}

type SaleExportResponse struct {
	Key         string `json:"key"`
	DownloadURL string `json:"download_url"`
	Rows        int    `json:"rows"`
}

type DeleteSaleResponse struct {
	OK bool `json:"ok"`
}
