package sales

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/juampidev/pagolink/internal/domain/enums"
	"github.com/juampidev/pagolink/internal/domain/model"
	pgrepo "github.com/juampidev/pagolink/internal/repo/postgres"
	redrepo "github.com/juampidev/pagolink/internal/repo/redis"
)

type saleStoreStub struct {
	sales []model.Sale
}

func (s *saleStoreStub) FindByID(_ context.Context, saleID string) (model.Sale, error) {
	for _, sale := range s.sales {
		if sale.ID == saleID {
			return sale, nil
		}
	}
	return model.Sale{}, pgrepo.ErrSaleNotFound
}

func (s *saleStoreStub) List(_ context.Context) ([]model.Sale, error) {
	return s.sales, nil
}

func (s *saleStoreStub) Search(_ context.Context, query string) ([]model.Sale, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.sales, nil
	}
	matched := make([]model.Sale, 0)
	for _, sale := range s.sales {
		if strings.Contains(strings.ToLower(sale.ClientName), query) ||
			strings.Contains(strings.ToLower(sale.Concept), query) {
			matched = append(matched, sale)
		}
	}
	return matched, nil
}

func (s *saleStoreStub) Update(_ context.Context, sale model.Sale) (model.Sale, error) {
	for i, existing := range s.sales {
		if existing.ID == sale.ID {
			existing.ClientName = sale.ClientName
			existing.Concept = sale.Concept
			existing.Amount = sale.Amount
			existing.HasSubscription = sale.HasSubscription
			existing.SubscriptionAmount = sale.SubscriptionAmount
			s.sales[i] = existing
			return existing, nil
		}
	}
	return model.Sale{}, pgrepo.ErrSaleNotFound
}

func (s *saleStoreStub) Delete(_ context.Context, saleID string) error {
	for i, sale := range s.sales {
		if sale.ID == saleID {
			s.sales = append(s.sales[:i], s.sales[i+1:]...)
			return nil
		}
	}
	return pgrepo.ErrSaleNotFound
}

type eventSinkStub struct {
	events []redrepo.SaleEvent
}

func (s *eventSinkStub) Publish(_ context.Context, event redrepo.SaleEvent) error {
	s.events = append(s.events, event)
	return nil
}

func fixtureSales() []model.Sale {
	return []model.Sale{
		{
			ID:         "s1",
			ClientName: "Juan",
			Concept:    "Landing Page",
			Amount:     decimal.NewFromInt(50000),
			PayStatus:  enums.PayStatusPaid,
		},
		{
			ID:         "s2",
			ClientName: "Maria",
			Concept:    "Branding",
			Amount:     decimal.NewFromInt(30000),
			PayStatus:  enums.PayStatusPending,
		},
		{
			ID:         "s3",
			ClientName: "Pedro",
			Concept:    "Mantenimiento web",
			Amount:     decimal.NewFromInt(20000),
			PayStatus:  enums.PayStatusPending,
		},
	}
}

func TestListComputesMetadata(t *testing.T) {
	svc := NewService(Dependencies{Store: &saleStoreStub{sales: fixtureSales()}})

	listing, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	meta := listing.Metadata
	if meta.Quantity != 3 || meta.Paid != 1 || meta.Pending != 2 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if !meta.TotalAmount.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("unexpected total %s", meta.TotalAmount)
	}
}

func TestSearchFiltersAndRecomputesMetadata(t *testing.T) {
	svc := NewService(Dependencies{Store: &saleStoreStub{sales: fixtureSales()}})

	listing, err := svc.Search(context.Background(), "web")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if listing.Metadata.Quantity != 1 || len(listing.Sales) != 1 {
		t.Fatalf("expected one match, got %+v", listing.Metadata)
	}
	if listing.Sales[0].ID != "s3" {
		t.Fatalf("wrong match %s", listing.Sales[0].ID)
	}
}

func TestUpdateRevalidatesAmounts(t *testing.T) {
	store := &saleStoreStub{sales: fixtureSales()}
	events := &eventSinkStub{}
	svc := NewService(Dependencies{Store: store, Events: events})

	_, err := svc.Update(context.Background(), "s1", UpdateInput{
		ClientName:      "Juan",
		Concept:         "Landing Page",
		Amount:          decimal.NewFromInt(60000),
		HasSubscription: true,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing subscription amount, got %v", err)
	}

	sub := decimal.NewFromInt(5000)
	updated, err := svc.Update(context.Background(), "s1", UpdateInput{
		ClientName:         "Juan",
		Concept:            "Landing Page v2",
		Amount:             decimal.NewFromInt(60000),
		HasSubscription:    true,
		SubscriptionAmount: &sub,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Concept != "Landing Page v2" || !updated.HasSubscription {
		t.Fatalf("update not applied: %+v", updated)
	}
	// Payment state survives commercial edits.
	if updated.PayStatus != enums.PayStatusPaid {
		t.Fatalf("pay status must be untouched, got %s", updated.PayStatus)
	}
	if len(events.events) != 1 || events.events[0].EventType != redrepo.EventSaleUpdated {
		t.Fatalf("expected one SaleUpdated event, got %+v", events.events)
	}
}

func TestDeletePublishesEvent(t *testing.T) {
	store := &saleStoreStub{sales: fixtureSales()}
	events := &eventSinkStub{}
	svc := NewService(Dependencies{Store: store, Events: events})

	if err := svc.Delete(context.Background(), "s2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.sales) != 2 {
		t.Fatalf("sale not removed")
	}
	if len(events.events) != 1 || events.events[0].EventType != redrepo.EventSaleDeleted {
		t.Fatalf("expected one SaleDeleted event, got %+v", events.events)
	}

	if err := svc.Delete(context.Background(), "s2"); !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound on repeat delete, got %v", err)
	}
}

func TestGetUnknownSale(t *testing.T) {
	svc := NewService(Dependencies{Store: &saleStoreStub{}})

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestEncodeCSV(t *testing.T) {
	sub := decimal.NewFromInt(5000)
	sales := fixtureSales()
	sales[0].SubscriptionAmount = &sub
	sales[0].PayerEmail = "juan@example.com"

	raw, err := encodeCSV(sales)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	if err != nil {
		t.Fatalf("reparse csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(records))
	}
	if records[0][0] != "id" || records[0][3] != "amount" {
		t.Fatalf("unexpected header %v", records[0])
	}
	if records[1][1] != "Juan" || records[1][5] != "5000" || records[1][6] != "juan@example.com" {
		t.Fatalf("unexpected first row %v", records[1])
	}
}
