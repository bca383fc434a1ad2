package links

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/juampidev/pagolink/internal/domain/model"
	"github.com/juampidev/pagolink/internal/domain/rules"
	"github.com/juampidev/pagolink/internal/pkg/validate"
	redrepo "github.com/juampidev/pagolink/internal/repo/redis"
)

var ErrValidation = errors.New("validation error")

type SaleStore interface {
	Create(ctx context.Context, sale model.Sale) (model.Sale, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event redrepo.SaleEvent) error
}

// Service creates Sale records and derives their shareable checkout URLs.
type Service struct {
	store        SaleStore
	events       EventPublisher
	logger       *zap.Logger
	publicOrigin string
}

type Dependencies struct {
	Store        SaleStore
	Events       EventPublisher
	Logger       *zap.Logger
	PublicOrigin string
}

type CreateInput struct {
	ClientName         string
	Concept            string
	Amount             decimal.Decimal
	HasSubscription    bool
	SubscriptionAmount *decimal.Decimal
}

type CreateResult struct {
	Sale        model.Sale
	CheckoutURL string
}

func NewService(deps Dependencies) *Service {
	return &Service{
		store:        deps.Store,
		events:       deps.Events,
		logger:       deps.Logger,
		publicOrigin: strings.TrimRight(deps.PublicOrigin, "/"),
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if s.store == nil {
		return CreateResult{}, fmt.Errorf("sale store is nil")
	}

	clientName := strings.TrimSpace(in.ClientName)
	concept := strings.TrimSpace(in.Concept)
	if !validate.Required(clientName) || !validate.Required(concept) {
		return CreateResult{}, ErrValidation
	}
	if err := rules.ValidateAmounts(in.Amount, in.HasSubscription, in.SubscriptionAmount); err != nil {
		return CreateResult{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	sale, err := s.store.Create(ctx, model.Sale{
		ID:                 uuid.NewString(),
		ClientName:         clientName,
		Concept:            concept,
		Amount:             in.Amount,
		HasSubscription:    in.HasSubscription,
		SubscriptionAmount: in.SubscriptionAmount,
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.publishCreated(ctx, sale)

	return CreateResult{
		Sale:        sale,
		CheckoutURL: s.CheckoutURL(sale.ID),
	}, nil
}

// CheckoutURL is deterministic: {origin}/pago/{id}.
func (s *Service) CheckoutURL(saleID string) string {
	return s.publicOrigin + "/pago/" + saleID
}

func (s *Service) publishCreated(ctx context.Context, sale model.Sale) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, redrepo.SaleEvent{
		EventID:    uuid.NewString(),
		EventType:  redrepo.EventSaleCreated,
		SaleID:     sale.ID,
		OccurredAt: sale.CreatedAt,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("publish sale created event", zap.String("sale_id", sale.ID), zap.Error(err))
	}
}
