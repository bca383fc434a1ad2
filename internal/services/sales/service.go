package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/juampidev/pagolink/internal/domain/model"
	"github.com/juampidev/pagolink/internal/domain/rules"
	pgrepo "github.com/juampidev/pagolink/internal/repo/postgres"
	redrepo "github.com/juampidev/pagolink/internal/repo/redis"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrSaleNotFound = errors.New("sale not found")
)

type SaleStore interface {
	FindByID(ctx context.Context, saleID string) (model.Sale, error)
	List(ctx context.Context) ([]model.Sale, error)
	Search(ctx context.Context, query string) ([]model.Sale, error)
	Update(ctx context.Context, sale model.Sale) (model.Sale, error)
	Delete(ctx context.Context, saleID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event redrepo.SaleEvent) error
}

type EventSource interface {
	Subscribe(ctx context.Context) (<-chan redrepo.SaleEvent, error)
}

// Service is the dashboard surface: listing with aggregates, search,
// edits, deletion and the live event feed.
type Service struct {
	store   SaleStore
	events  EventPublisher
	source  EventSource
	storage *S3ExportStorage
	logger  *zap.Logger
	now     func() time.Time
}

type Dependencies struct {
	Store   SaleStore
	Events  EventPublisher
	Source  EventSource
	Storage *S3ExportStorage
	Logger  *zap.Logger
}

// Metadata travels with every listing so the dashboard header renders
// without a second query.
type Metadata struct {
	Quantity    int             `json:"quantity"`
	Paid        int             `json:"paid"`
	Pending     int             `json:"pending"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type Listing struct {
	Sales    []model.Sale `json:"sales"`
	Metadata Metadata     `json:"metadata"`
}

type UpdateInput struct {
	ClientName         string
	Concept            string
	Amount             decimal.Decimal
	HasSubscription    bool
	SubscriptionAmount *decimal.Decimal
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:   deps.Store,
		events:  deps.Events,
		source:  deps.Source,
		storage: deps.Storage,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) List(ctx context.Context) (Listing, error) {
	if s.store == nil {
		return Listing{}, fmt.Errorf("sale store is nil")
	}

	sales, err := s.store.List(ctx)
	if err != nil {
		return Listing{}, err
	}
	return newListing(sales), nil
}

func (s *Service) Search(ctx context.Context, query string) (Listing, error) {
	if s.store == nil {
		return Listing{}, fmt.Errorf("sale store is nil")
	}

	sales, err := s.store.Search(ctx, query)
	if err != nil {
		return Listing{}, err
	}
	return newListing(sales), nil
}

func (s *Service) Get(ctx context.Context, saleID string) (model.Sale, error) {
	if s.store == nil {
		return model.Sale{}, fmt.Errorf("sale store is nil")
	}
	if strings.TrimSpace(saleID) == "" {
		return model.Sale{}, ErrValidation
	}

	sale, err := s.store.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSaleNotFound) {
			return model.Sale{}, ErrSaleNotFound
		}
		return model.Sale{}, err
	}
	return sale, nil
}

// Update re-validates amount invariants; the dashboard can only touch
// commercial fields, never payment state.
func (s *Service) Update(ctx context.Context, saleID string, in UpdateInput) (model.Sale, error) {
	if s.store == nil {
		return model.Sale{}, fmt.Errorf("sale store is nil")
	}

	clientName := strings.TrimSpace(in.ClientName)
	concept := strings.TrimSpace(in.Concept)
	if strings.TrimSpace(saleID) == "" || clientName == "" || concept == "" {
		return model.Sale{}, ErrValidation
	}
	if err := rules.ValidateAmounts(in.Amount, in.HasSubscription, in.SubscriptionAmount); err != nil {
		return model.Sale{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	updated, err := s.store.Update(ctx, model.Sale{
		ID:                 saleID,
		ClientName:         clientName,
		Concept:            concept,
		Amount:             in.Amount,
		HasSubscription:    in.HasSubscription,
		SubscriptionAmount: in.SubscriptionAmount,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrSaleNotFound) {
			return model.Sale{}, ErrSaleNotFound
		}
		return model.Sale{}, err
	}

	s.publish(ctx, redrepo.EventSaleUpdated, updated.ID)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, saleID string) error {
	if s.store == nil {
		return fmt.Errorf("sale store is nil")
	}
	if strings.TrimSpace(saleID) == "" {
		return ErrValidation
	}

	if err := s.store.Delete(ctx, saleID); err != nil {
		if errors.Is(err, pgrepo.ErrSaleNotFound) {
			return ErrSaleNotFound
		}
		return err
	}

	s.publish(ctx, redrepo.EventSaleDeleted, saleID)
	return nil
}

// Feed exposes the redis event stream to the transport layer. A nil
// source means the instance runs without redis; callers degrade to
// polling.
func (s *Service) Feed(ctx context.Context) (<-chan redrepo.SaleEvent, error) {
	if s.source == nil {
		return nil, fmt.Errorf("event source is not configured")
	}
	return s.source.Subscribe(ctx)
}

func (s *Service) publish(ctx context.Context, eventType, saleID string) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, redrepo.SaleEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		SaleID:     saleID,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("publish sale event", zap.String("sale_id", saleID), zap.Error(err))
	}
}

func newListing(sales []model.Sale) Listing {
	meta := Metadata{Quantity: len(sales), TotalAmount: decimal.Zero}
	for _, sale := range sales {
		if sale.IsPaid() {
			meta.Paid++
		} else {
			meta.Pending++
		}
		meta.TotalAmount = meta.TotalAmount.Add(sale.Amount)
	}
	return Listing{Sales: sales, Metadata: meta}
}
