package enums

import "strings"

type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusActive   SubscriptionStatus = "active"
)

func ParseSubscriptionStatus(raw string) (SubscriptionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(SubscriptionStatusInactive):
		return SubscriptionStatusInactive, true
	case string(SubscriptionStatusActive):
		return SubscriptionStatusActive, true
	default:
		return "", false
	}
}
