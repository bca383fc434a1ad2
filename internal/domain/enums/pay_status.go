package enums

import "strings"

type PayStatus string

const (
	PayStatusPending PayStatus = "pending"
	PayStatusPaid    PayStatus = "paid"
)

// ParsePayStatus treats an empty value as pending: sales are created
// without the field and acquire it on the first paid transition.
func ParsePayStatus(raw string) (PayStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(PayStatusPending):
		return PayStatusPending, true
	case string(PayStatusPaid):
		return PayStatusPaid, true
	default:
		return "", false
	}
}
