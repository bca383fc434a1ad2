package validate

import "strings"

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Email matches the checkout form's check: anything with an "@" passes,
// deliverability is the gateway's problem.
func Email(value string) bool {
	value = strings.TrimSpace(value)
	return len(value) > 2 && strings.Contains(value, "@")
}
