package reconcile

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var ErrUnknownNotification = errors.New("unrecognized notification payload")

const (
	NotificationPayment     = "payment"
	NotificationPreapproval = "preapproval"
)

// Notification is the normalized form of a gateway webhook. The gateway
// sends two body shapes, {"type","data":{"id"}} and {"topic","id"};
// both collapse to a kind plus the remote resource id.
type Notification struct {
	Kind       string
	ResourceID string
}

func ParseNotification(body []byte) (Notification, error) {
	var raw struct {
		Type  string `json:"type"`
		Topic string `json:"topic"`
		ID    any    `json:"id"`
		Data  struct {
			ID any `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Notification{}, ErrUnknownNotification
	}

	kind, ok := normalizeKind(raw.Type)
	if !ok {
		kind, ok = normalizeKind(raw.Topic)
	}
	if !ok {
		return Notification{}, ErrUnknownNotification
	}

	resourceID := stringifyID(raw.Data.ID)
	if resourceID == "" {
		resourceID = stringifyID(raw.ID)
	}
	if resourceID == "" {
		return Notification{}, ErrUnknownNotification
	}

	return Notification{Kind: kind, ResourceID: resourceID}, nil
}

func normalizeKind(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case NotificationPayment:
		return NotificationPayment, true
	case NotificationPreapproval, "subscription_preapproval":
		return NotificationPreapproval, true
	default:
		return "", false
	}
}

// stringifyID tolerates both string and numeric ids; the gateway is not
// consistent across notification shapes.
func stringifyID(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
