package dto

import "github.com/shopspring/decimal"

// Payment endpoint bodies keep the field names the gateway-facing
// frontend already sends; decoded values beyond the sale id are
// re-derived server-side from the stored record.

type PreferenceCreateRequest struct {
	Title      string          `json:"title"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	SaleID     string          `json:"id"`
	PayerEmail string          `json:"payerEmail"`
}

type PreferenceCreateResponse struct {
	InitPoint string `json:"init_point"`
}

type SubscriptionCreateRequest struct {
	Reason            string          `json:"reason"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	SaleID            string          `json:"id"`
	PayerEmail        string          `json:"payer_email"`
}

type SubscriptionCreateResponse struct {
	Status           string `json:"status"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

type VerifyPaymentRequest struct {
	PaymentID string `json:"payment_id"`
	SaleID    string `json:"sale_id"`
}

type VerifyPaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PaymentErrorResponse is the envelope shared by the payment endpoints:
// error carries a stable tag (CONFIG_ERROR, BAD_REQUEST, MP_API_REJECTION,
// LOGIC_CRASH or a user-facing message), details the diagnostic text.
type PaymentErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
