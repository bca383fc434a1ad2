package rules

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount          = errors.New("amount must be greater than zero")
	ErrMissingSubscriptionAmount  = errors.New("subscription amount is required when subscription is enabled")
	ErrUnexpectedSubscriptionAmnt = errors.New("subscription amount must be absent when subscription is disabled")
)

// ValidateAmounts enforces the Sale money invariants: amount > 0, and a
// subscription amount present and positive exactly when the subscription
// flag is set.
func ValidateAmounts(amount decimal.Decimal, hasSubscription bool, subscriptionAmount *decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	if hasSubscription {
		if subscriptionAmount == nil || !subscriptionAmount.IsPositive() {
			return ErrMissingSubscriptionAmount
		}
		return nil
	}

	if subscriptionAmount != nil {
		return ErrUnexpectedSubscriptionAmnt
	}
	return nil
}
