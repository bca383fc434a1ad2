package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/juampidev/pagolink/internal/domain/enums"
	"github.com/juampidev/pagolink/internal/domain/model"
	"github.com/juampidev/pagolink/internal/infra/mercadopago"
	pgrepo "github.com/juampidev/pagolink/internal/repo/postgres"
	redrepo "github.com/juampidev/pagolink/internal/repo/redis"
)

type saleStoreStub struct {
	sales map[string]model.Sale

	markPaidCalls int
}

func newSaleStoreStub(sales ...model.Sale) *saleStoreStub {
	stub := &saleStoreStub{sales: make(map[string]model.Sale)}
	for _, sale := range sales {
		stub.sales[sale.ID] = sale
	}
	return stub
}

func (s *saleStoreStub) FindByID(_ context.Context, saleID string) (model.Sale, error) {
	sale, ok := s.sales[saleID]
	if !ok {
		return model.Sale{}, pgrepo.ErrSaleNotFound
	}
	return sale, nil
}

func (s *saleStoreStub) MarkPaid(_ context.Context, saleID, paymentID string, nextPaymentDate *time.Time) (model.Sale, bool, error) {
	s.markPaidCalls++
	sale, ok := s.sales[saleID]
	if !ok {
		return model.Sale{}, false, pgrepo.ErrSaleNotFound
	}
	if sale.PayStatus == enums.PayStatusPaid {
		return sale, false, nil
	}
	sale.PayStatus = enums.PayStatusPaid
	sale.NextPaymentDate = nextPaymentDate
	sale.LastPaymentID = paymentID
	s.sales[saleID] = sale
	return sale, true, nil
}

func (s *saleStoreStub) ActivateSubscription(_ context.Context, saleID string) (model.Sale, bool, error) {
	sale, ok := s.sales[saleID]
	if !ok {
		return model.Sale{}, false, pgrepo.ErrSaleNotFound
	}
	if sale.SubscriptionStatus == enums.SubscriptionStatusActive {
		return sale, false, nil
	}
	sale.SubscriptionStatus = enums.SubscriptionStatusActive
	s.sales[saleID] = sale
	return sale, true, nil
}

type gatewayStub struct {
	payments     map[string]mercadopago.PaymentInfo
	preapprovals map[string]mercadopago.PreapprovalInfo
	err          error
}

func (g *gatewayStub) GetPayment(_ context.Context, paymentID string) (mercadopago.PaymentInfo, error) {
	if g.err != nil {
		return mercadopago.PaymentInfo{}, g.err
	}
	info, ok := g.payments[paymentID]
	if !ok {
		return mercadopago.PaymentInfo{}, &mercadopago.GatewayError{
			Kind:    mercadopago.ErrKindAPIRejection,
			Details: "gateway returned status 404",
		}
	}
	return info, nil
}

func (g *gatewayStub) GetPreapproval(_ context.Context, preapprovalID string) (mercadopago.PreapprovalInfo, error) {
	if g.err != nil {
		return mercadopago.PreapprovalInfo{}, g.err
	}
	info, ok := g.preapprovals[preapprovalID]
	if !ok {
		return mercadopago.PreapprovalInfo{}, &mercadopago.GatewayError{
			Kind:    mercadopago.ErrKindAPIRejection,
			Details: "gateway returned status 404",
		}
	}
	return info, nil
}

type eventSinkStub struct {
	events []redrepo.SaleEvent
}

func (s *eventSinkStub) Publish(_ context.Context, event redrepo.SaleEvent) error {
	s.events = append(s.events, event)
	return nil
}

func pendingSale(id string) model.Sale {
	return model.Sale{
		ID:                 id,
		ClientName:         "Juan",
		Concept:            "Landing Page",
		Amount:             decimal.NewFromInt(50000),
		PayStatus:          enums.PayStatusPending,
		SubscriptionStatus: enums.SubscriptionStatusInactive,
	}
}

func TestParseNotificationShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Notification
	}{
		{"type with data id", `{"type":"payment","data":{"id":"12345"}}`, Notification{NotificationPayment, "12345"}},
		{"type with numeric id", `{"type":"payment","data":{"id":12345}}`, Notification{NotificationPayment, "12345"}},
		{"topic with top-level id", `{"topic":"payment","id":"67890"}`, Notification{NotificationPayment, "67890"}},
		{"preapproval", `{"type":"subscription_preapproval","data":{"id":"pre-1"}}`, Notification{NotificationPreapproval, "pre-1"}},
		{"preapproval topic", `{"topic":"preapproval","id":"pre-2"}`, Notification{NotificationPreapproval, "pre-2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseNotification([]byte(tc.body))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestParseNotificationRejectsGarbage(t *testing.T) {
	for _, body := range []string{"", "not json", `{"type":"shipment","data":{"id":"1"}}`, `{"type":"payment"}`} {
		if _, err := ParseNotification([]byte(body)); !errors.Is(err, ErrUnknownNotification) {
			t.Fatalf("body %q: expected ErrUnknownNotification, got %v", body, err)
		}
	}
}

func TestVerifyPaymentAppliesApprovedOnce(t *testing.T) {
	sub := decimal.NewFromInt(5000)
	sale := pendingSale("s1")
	sale.HasSubscription = true
	sale.SubscriptionAmount = &sub

	store := newSaleStoreStub(sale)
	gateway := &gatewayStub{payments: map[string]mercadopago.PaymentInfo{
		"pay-1": {ID: "pay-1", Status: "approved", ExternalReference: "s1"},
	}}
	events := &eventSinkStub{}
	svc := NewService(Dependencies{Store: store, Gateway: gateway, Events: events})

	result, err := svc.VerifyPayment(context.Background(), "pay-1", "s1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Status != "approved" || !result.Applied {
		t.Fatalf("unexpected result %+v", result)
	}

	updated := store.sales["s1"]
	if updated.PayStatus != enums.PayStatusPaid || updated.LastPaymentID != "pay-1" {
		t.Fatalf("sale not reconciled: %+v", updated)
	}
	if updated.NextPaymentDate == nil {
		t.Fatalf("subscription sale must get a next payment date")
	}
	if len(events.events) != 1 || events.events[0].EventType != redrepo.EventSalePaid {
		t.Fatalf("expected one SalePaid event, got %+v", events.events)
	}

	// Re-verification confirms the status without re-applying.
	result, err = svc.VerifyPayment(context.Background(), "pay-1", "s1")
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if result.Applied {
		t.Fatalf("second verify must not apply again")
	}
	if len(events.events) != 1 {
		t.Fatalf("second verify must not publish again")
	}
}

func TestVerifyPaymentUnknownSale(t *testing.T) {
	gateway := &gatewayStub{payments: map[string]mercadopago.PaymentInfo{
		"pay-1": {ID: "pay-1", Status: "approved", ExternalReference: "missing"},
	}}
	svc := NewService(Dependencies{Store: newSaleStoreStub(), Gateway: gateway})

	_, err := svc.VerifyPayment(context.Background(), "pay-1", "missing")
	if !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestVerifyPaymentRejectsMismatchedSale(t *testing.T) {
	store := newSaleStoreStub(pendingSale("s1"), pendingSale("s2"))
	gateway := &gatewayStub{payments: map[string]mercadopago.PaymentInfo{
		"pay-1": {ID: "pay-1", Status: "approved", ExternalReference: "s1"},
	}}
	svc := NewService(Dependencies{Store: store, Gateway: gateway})

	_, err := svc.VerifyPayment(context.Background(), "pay-1", "s2")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if store.sales["s2"].PayStatus != enums.PayStatusPending {
		t.Fatalf("mismatched sale must stay pending")
	}
}

func TestVerifyPaymentNonApprovedLeavesSalePending(t *testing.T) {
	store := newSaleStoreStub(pendingSale("s1"))
	gateway := &gatewayStub{payments: map[string]mercadopago.PaymentInfo{
		"pay-1": {ID: "pay-1", Status: "rejected", ExternalReference: "s1"},
	}}
	svc := NewService(Dependencies{Store: store, Gateway: gateway})

	result, err := svc.VerifyPayment(context.Background(), "pay-1", "s1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Applied || result.Status != "rejected" {
		t.Fatalf("unexpected result %+v", result)
	}
	if store.markPaidCalls != 0 {
		t.Fatalf("rejected payment must not touch the store")
	}
}

func TestProcessPaymentNotification(t *testing.T) {
	store := newSaleStoreStub(pendingSale("s1"))
	gateway := &gatewayStub{payments: map[string]mercadopago.PaymentInfo{
		"pay-1": {ID: "pay-1", Status: "approved", ExternalReference: "s1"},
	}}
	events := &eventSinkStub{}
	svc := NewService(Dependencies{Store: store, Gateway: gateway, Events: events})

	n := Notification{Kind: NotificationPayment, ResourceID: "pay-1"}
	if err := svc.ProcessNotification(context.Background(), n); err != nil {
		t.Fatalf("process: %v", err)
	}
	if store.sales["s1"].PayStatus != enums.PayStatusPaid {
		t.Fatalf("sale not marked paid")
	}
	if store.sales["s1"].NextPaymentDate != nil {
		t.Fatalf("one-time sale must not get a next payment date")
	}

	// Webhook retries for the same payment are no-ops.
	if err := svc.ProcessNotification(context.Background(), n); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("retry must not publish again, got %d events", len(events.events))
	}
}

func TestProcessPaymentNotificationIgnoresPending(t *testing.T) {
	store := newSaleStoreStub(pendingSale("s1"))
	gateway := &gatewayStub{payments: map[string]mercadopago.PaymentInfo{
		"pay-1": {ID: "pay-1", Status: "in_process", ExternalReference: "s1"},
	}}
	svc := NewService(Dependencies{Store: store, Gateway: gateway})

	n := Notification{Kind: NotificationPayment, ResourceID: "pay-1"}
	if err := svc.ProcessNotification(context.Background(), n); err != nil {
		t.Fatalf("process: %v", err)
	}
	if store.markPaidCalls != 0 {
		t.Fatalf("non-approved payment must not touch the store")
	}
}

func TestProcessPreapprovalNotificationActivatesOnce(t *testing.T) {
	sub := decimal.NewFromInt(5000)
	sale := pendingSale("s1")
	sale.PayStatus = enums.PayStatusPaid
	sale.HasSubscription = true
	sale.SubscriptionAmount = &sub

	store := newSaleStoreStub(sale)
	gateway := &gatewayStub{preapprovals: map[string]mercadopago.PreapprovalInfo{
		"pre-1": {ID: "pre-1", Status: "authorized", ExternalReference: "s1"},
	}}
	events := &eventSinkStub{}
	svc := NewService(Dependencies{Store: store, Gateway: gateway, Events: events})

	n := Notification{Kind: NotificationPreapproval, ResourceID: "pre-1"}
	if err := svc.ProcessNotification(context.Background(), n); err != nil {
		t.Fatalf("process: %v", err)
	}
	if store.sales["s1"].SubscriptionStatus != enums.SubscriptionStatusActive {
		t.Fatalf("subscription not activated")
	}
	if len(events.events) != 1 || events.events[0].EventType != redrepo.EventSaleUpdated {
		t.Fatalf("expected one SaleUpdated event, got %+v", events.events)
	}

	if err := svc.ProcessNotification(context.Background(), n); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("retry must not publish again")
	}
}

func TestProcessNotificationGatewayFailurePropagates(t *testing.T) {
	gateway := &gatewayStub{err: &mercadopago.GatewayError{
		Kind:    mercadopago.ErrKindAPIRejection,
		Details: "gateway returned status 500",
	}}
	svc := NewService(Dependencies{Store: newSaleStoreStub(), Gateway: gateway})

	err := svc.ProcessNotification(context.Background(), Notification{Kind: NotificationPayment, ResourceID: "pay-1"})
	var gwErr *mercadopago.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}
