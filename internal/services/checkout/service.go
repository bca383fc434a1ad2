package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juampidev/pagolink/internal/domain/enums"
	"github.com/juampidev/pagolink/internal/domain/model"
	"github.com/juampidev/pagolink/internal/infra/mercadopago"
	"github.com/juampidev/pagolink/internal/pkg/validate"
	pgrepo "github.com/juampidev/pagolink/internal/repo/postgres"
	redrepo "github.com/juampidev/pagolink/internal/repo/redis"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrSaleNotFound            = errors.New("sale not found")
	ErrSubscriptionUnavailable = errors.New("subscription is not available for this sale")
)

// Screens the checkout page can be in, decided server-side from the
// loaded sale.
const (
	ScreenPayerForm         = "payer_form"
	ScreenMethodChooser     = "method_chooser"
	ScreenSubscriptionOffer = "subscription_offer"
	ScreenSuccess           = "success"
)

type SaleStore interface {
	FindByID(ctx context.Context, saleID string) (model.Sale, error)
	SetPayerInfo(ctx context.Context, saleID, firstName, lastName, email string) (model.Sale, error)
	MarkPaid(ctx context.Context, saleID, paymentID string, nextPaymentDate *time.Time) (model.Sale, bool, error)
}

type Gateway interface {
	CreatePreference(ctx context.Context, in mercadopago.PreferenceInput) (string, error)
	CreateSubscription(ctx context.Context, in mercadopago.SubscriptionInput) (mercadopago.SubscriptionResult, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event redrepo.SaleEvent) error
}

// Service drives a sale from link-open to paid: load, payer capture,
// gateway redirect, and the return-redirect reconciliation trigger.
type Service struct {
	store   SaleStore
	gateway Gateway
	events  EventPublisher
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
}

type Config struct {
	PublicOrigin       string
	BankTransferInfo   string
	SubscriptionReason string
}

type Dependencies struct {
	Store   SaleStore
	Gateway Gateway
	Events  EventPublisher
	Logger  *zap.Logger
}

type View struct {
	Sale             model.Sale
	Screen           string
	BankTransferInfo string
}

func NewService(deps Dependencies, cfg Config) *Service {
	cfg.PublicOrigin = strings.TrimRight(cfg.PublicOrigin, "/")

	return &Service{
		store:   deps.Store,
		gateway: deps.Gateway,
		events:  deps.Events,
		logger:  deps.Logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *Service) Load(ctx context.Context, saleID string) (View, error) {
	sale, err := s.findSale(ctx, saleID)
	if err != nil {
		return View{}, err
	}

	return View{
		Sale:             sale,
		Screen:           screenFor(sale),
		BankTransferInfo: s.cfg.BankTransferInfo,
	}, nil
}

// SubmitPayerInfo persists payer identity before the first payment
// attempt. Plain overwrite, matching the single-writer checkout flow.
func (s *Service) SubmitPayerInfo(ctx context.Context, saleID, firstName, lastName, email string) (model.Sale, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.TrimSpace(email)
	if !validate.Required(firstName) || !validate.Required(lastName) || !validate.Email(email) {
		return model.Sale{}, ErrValidation
	}

	if _, err := s.findSale(ctx, saleID); err != nil {
		return model.Sale{}, err
	}

	sale, err := s.store.SetPayerInfo(ctx, saleID, firstName, lastName, email)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSaleNotFound) {
			return model.Sale{}, ErrSaleNotFound
		}
		return model.Sale{}, err
	}

	return sale, nil
}

// BeginCardPayment creates the gateway preference and returns the
// redirect URL. The sale is untouched; a failed call is retried by the
// user re-clicking.
func (s *Service) BeginCardPayment(ctx context.Context, saleID string) (string, error) {
	if s.gateway == nil {
		return "", fmt.Errorf("gateway client is nil")
	}

	sale, err := s.findSale(ctx, saleID)
	if err != nil {
		return "", err
	}

	checkoutURL := s.cfg.PublicOrigin + "/pago/" + sale.ID
	initPoint, err := s.gateway.CreatePreference(ctx, mercadopago.PreferenceInput{
		Title:      sale.Concept,
		UnitPrice:  sale.Amount,
		Quantity:   1,
		SaleID:     sale.ID,
		PayerEmail: sale.PayerEmail,
		BackURLs: mercadopago.BackURLs{
			Success: checkoutURL + "?status=approved",
			Failure: checkoutURL + "?status=failure",
			Pending: checkoutURL + "?status=pending",
		},
	})
	if err != nil {
		return "", err
	}

	return initPoint, nil
}

// ApplyReturnStatus is the return-redirect reconciliation trigger. Only
// approved/success statuses mutate the sale; the repo's conditional
// update makes duplicate redirects no-ops.
func (s *Service) ApplyReturnStatus(ctx context.Context, saleID, status string) (model.Sale, bool, error) {
	sale, err := s.findSale(ctx, saleID)
	if err != nil {
		return model.Sale{}, false, err
	}

	if !isApprovedStatus(status) || sale.IsPaid() {
		return sale, false, nil
	}

	updated, changed, err := s.store.MarkPaid(ctx, sale.ID, "", sale.NextPaymentDateFrom(s.now().UTC()))
	if err != nil {
		return model.Sale{}, false, err
	}
	if changed {
		s.publishPaid(ctx, updated)
	}

	return updated, changed, nil
}

// ActivateSubscription is only reachable once the sale is paid and
// carries a subscription; payer email is already known by then.
func (s *Service) ActivateSubscription(ctx context.Context, saleID string) (string, error) {
	if s.gateway == nil {
		return "", fmt.Errorf("gateway client is nil")
	}

	sale, err := s.findSale(ctx, saleID)
	if err != nil {
		return "", err
	}
	if !sale.IsPaid() || !sale.HasSubscription || sale.SubscriptionAmount == nil {
		return "", ErrSubscriptionUnavailable
	}
	if sale.PayerEmail == "" {
		return "", ErrValidation
	}

	reason := s.cfg.SubscriptionReason
	if reason == "" {
		reason = "Suscripcion mensual"
	}

	result, err := s.gateway.CreateSubscription(ctx, mercadopago.SubscriptionInput{
		Reason:     reason + " - " + sale.Concept,
		Amount:     *sale.SubscriptionAmount,
		SaleID:     sale.ID,
		PayerEmail: sale.PayerEmail,
		BackURL:    s.cfg.PublicOrigin + "/pago/" + sale.ID + "?subscription=active",
	})
	if err != nil {
		return "", err
	}

	if result.InitPoint != "" {
		return result.InitPoint, nil
	}
	return result.SandboxInitPoint, nil
}

func (s *Service) findSale(ctx context.Context, saleID string) (model.Sale, error) {
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

func (s *Service) publishPaid(ctx context.Context, sale model.Sale) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, redrepo.SaleEvent{
		EventID:    uuid.NewString(),
		EventType:  redrepo.EventSalePaid,
		SaleID:     sale.ID,
		OccurredAt: s.now().UTC(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("publish sale paid event", zap.String("sale_id", sale.ID), zap.Error(err))
	}
}

func screenFor(sale model.Sale) string {
	switch {
	case !sale.HasPayerInfo():
		return ScreenPayerForm
	case !sale.IsPaid():
		return ScreenMethodChooser
	case sale.HasSubscription && sale.SubscriptionStatus != enums.SubscriptionStatusActive:
		return ScreenSubscriptionOffer
	default:
		return ScreenSuccess
	}
}

func isApprovedStatus(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "success":
		return true
	default:
		return false
	}
}
