package dto

type PayerInfoRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type CheckoutViewResponse struct {
	Sale             SaleResponse `json:"sale"`
	Screen           string       `json:"screen"`
	BankTransferInfo string       `json:"bank_transfer_info,omitempty"`
}
