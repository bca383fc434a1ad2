package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCreatePreferenceReturnsInitPoint(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/preferences" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"init_point": "https://mp.example/checkout/123"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, AccessToken: "test-token", Currency: "ARS"})

	initPoint, err := client.CreatePreference(context.Background(), PreferenceInput{
		Title:     "Landing Page",
		UnitPrice: decimal.NewFromInt(50000),
		Quantity:  1,
		SaleID:    "sale-1",
		BackURLs: BackURLs{
			Success: "https://pagos.example.com/pago/sale-1?status=approved",
			Failure: "https://pagos.example.com/pago/sale-1?status=failure",
			Pending: "https://pagos.example.com/pago/sale-1?status=pending",
		},
	})
	if err != nil {
		t.Fatalf("create preference: %v", err)
	}
	if initPoint != "https://mp.example/checkout/123" {
		t.Fatalf("unexpected init point: %s", initPoint)
	}

	if captured["external_reference"] != "sale-1" {
		t.Fatalf("unexpected external_reference: %v", captured["external_reference"])
	}
	if captured["auto_return"] != "approved" {
		t.Fatalf("unexpected auto_return: %v", captured["auto_return"])
	}
	items, ok := captured["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("unexpected items: %v", captured["items"])
	}
	item := items[0].(map[string]any)
	if item["unit_price"].(float64) != 50000 {
		t.Fatalf("unexpected unit_price: %v", item["unit_price"])
	}
	if item["currency_id"] != "ARS" {
		t.Fatalf("unexpected currency_id: %v", item["currency_id"])
	}
}

func TestCreatePreferenceWithoutTokenIsConfigError(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:1", AccessToken: ""})

	_, err := client.CreatePreference(context.Background(), PreferenceInput{
		Title:     "x",
		UnitPrice: decimal.NewFromInt(1),
		SaleID:    "sale-1",
	})

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) || gwErr.Kind != ErrKindConfig {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestCreateSubscriptionTagsGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid payer_email"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, AccessToken: "test-token"})

	_, err := client.CreateSubscription(context.Background(), SubscriptionInput{
		Reason:     "Suscripcion mensual - Landing Page",
		Amount:     decimal.NewFromInt(5000),
		SaleID:     "sale-1",
		PayerEmail: "juan@x.com",
	})

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Kind != ErrKindAPIRejection {
		t.Fatalf("unexpected kind: %s", gwErr.Kind)
	}
	if gwErr.Raw == "" {
		t.Fatalf("expected raw gateway body to be preserved")
	}
}

func TestCreateSubscriptionSendsMonthlyRecurring(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/preapproval" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"init_point":         "https://mp.example/preapproval/9",
			"sandbox_init_point": "https://sandbox.mp.example/preapproval/9",
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, AccessToken: "test-token", Currency: "ARS"})

	result, err := client.CreateSubscription(context.Background(), SubscriptionInput{
		Reason:     "Suscripcion mensual - Landing Page",
		Amount:     decimal.NewFromInt(5000),
		SaleID:     "sale-1",
		PayerEmail: "juan@x.com",
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if result.InitPoint != "https://mp.example/preapproval/9" {
		t.Fatalf("unexpected init point: %s", result.InitPoint)
	}

	recurring, ok := captured["auto_recurring"].(map[string]any)
	if !ok {
		t.Fatalf("missing auto_recurring: %v", captured)
	}
	if recurring["frequency"].(float64) != 1 || recurring["frequency_type"] != "months" {
		t.Fatalf("unexpected recurrence: %v", recurring)
	}
	if recurring["transaction_amount"].(float64) != 5000 {
		t.Fatalf("unexpected transaction_amount: %v", recurring["transaction_amount"])
	}
	if recurring["start_date"] == "" {
		t.Fatalf("missing start_date")
	}
}

func TestGetPaymentDecodesNumericID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/999" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":999,"status":"approved","external_reference":"sale-1"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, AccessToken: "test-token"})

	info, err := client.GetPayment(context.Background(), "999")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if info.ID != "999" || info.Status != "approved" || info.ExternalReference != "sale-1" {
		t.Fatalf("unexpected payment info: %+v", info)
	}
}
