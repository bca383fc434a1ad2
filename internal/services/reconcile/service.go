package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juampidev/pagolink/internal/domain/model"
	"github.com/juampidev/pagolink/internal/infra/mercadopago"
	pgrepo "github.com/juampidev/pagolink/internal/repo/postgres"
	redrepo "github.com/juampidev/pagolink/internal/repo/redis"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrSaleNotFound = errors.New("sale not found")
)

type SaleStore interface {
	FindByID(ctx context.Context, saleID string) (model.Sale, error)
	MarkPaid(ctx context.Context, saleID, paymentID string, nextPaymentDate *time.Time) (model.Sale, bool, error)
	ActivateSubscription(ctx context.Context, saleID string) (model.Sale, bool, error)
}

type Gateway interface {
	GetPayment(ctx context.Context, paymentID string) (mercadopago.PaymentInfo, error)
	GetPreapproval(ctx context.Context, preapprovalID string) (mercadopago.PreapprovalInfo, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event redrepo.SaleEvent) error
}

// Service owns the webhook and verify-payment reconciliation triggers.
// Both re-check the gateway before touching a sale, and both lean on the
// store's conditional update so that overlapping triggers apply the paid
// transition exactly once.
type Service struct {
	store   SaleStore
	gateway Gateway
	events  EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

type Dependencies struct {
	Store   SaleStore
	Gateway Gateway
	Events  EventPublisher
	Logger  *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:   deps.Store,
		gateway: deps.Gateway,
		events:  deps.Events,
		logger:  logger,
		now:     time.Now,
	}
}

type VerifyResult struct {
	Status  string
	Applied bool
}

// VerifyPayment confirms a payment against the gateway and applies the
// paid transition when approved. The saleID argument guards against a
// payment being replayed onto a different sale.
func (s *Service) VerifyPayment(ctx context.Context, paymentID, saleID string) (VerifyResult, error) {
	if s.store == nil || s.gateway == nil {
		return VerifyResult{}, fmt.Errorf("reconcile service is not wired")
	}
	paymentID = strings.TrimSpace(paymentID)
	saleID = strings.TrimSpace(saleID)
	if paymentID == "" || saleID == "" {
		return VerifyResult{}, ErrValidation
	}

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return VerifyResult{}, err
	}
	if payment.ExternalReference != saleID {
		return VerifyResult{}, ErrValidation
	}

	sale, err := s.store.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSaleNotFound) {
			return VerifyResult{}, ErrSaleNotFound
		}
		return VerifyResult{}, err
	}

	if payment.Status != "approved" {
		return VerifyResult{Status: payment.Status}, nil
	}

	applied, err := s.applyPaid(ctx, sale, payment.ID)
	if err != nil {
		return VerifyResult{}, err
	}

	return VerifyResult{Status: payment.Status, Applied: applied}, nil
}

// ProcessNotification handles a normalized webhook. Errors here are
// logged and swallowed by the transport layer, which always acks; the
// gateway retries on its own schedule.
func (s *Service) ProcessNotification(ctx context.Context, n Notification) error {
	if s.store == nil || s.gateway == nil {
		return fmt.Errorf("reconcile service is not wired")
	}

	switch n.Kind {
	case NotificationPayment:
		return s.processPayment(ctx, n.ResourceID)
	case NotificationPreapproval:
		return s.processPreapproval(ctx, n.ResourceID)
	default:
		return ErrUnknownNotification
	}
}

func (s *Service) processPayment(ctx context.Context, paymentID string) error {
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	if payment.Status != "approved" {
		s.logger.Info("payment notification ignored",
			zap.String("payment_id", paymentID),
			zap.String("status", payment.Status))
		return nil
	}
	if payment.ExternalReference == "" {
		return fmt.Errorf("payment %s has no external reference", paymentID)
	}

	sale, err := s.store.FindByID(ctx, payment.ExternalReference)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSaleNotFound) {
			return fmt.Errorf("payment %s references unknown sale %s", paymentID, payment.ExternalReference)
		}
		return err
	}

	applied, err := s.applyPaid(ctx, sale, payment.ID)
	if err != nil {
		return err
	}
	if applied {
		s.logger.Info("sale reconciled as paid",
			zap.String("sale_id", sale.ID),
			zap.String("payment_id", payment.ID))
	}
	return nil
}

func (s *Service) processPreapproval(ctx context.Context, preapprovalID string) error {
	preapproval, err := s.gateway.GetPreapproval(ctx, preapprovalID)
	if err != nil {
		return fmt.Errorf("fetch preapproval %s: %w", preapprovalID, err)
	}
	if preapproval.Status != "authorized" {
		s.logger.Info("preapproval notification ignored",
			zap.String("preapproval_id", preapprovalID),
			zap.String("status", preapproval.Status))
		return nil
	}
	if preapproval.ExternalReference == "" {
		return fmt.Errorf("preapproval %s has no external reference", preapprovalID)
	}

	updated, changed, err := s.store.ActivateSubscription(ctx, preapproval.ExternalReference)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSaleNotFound) {
			return fmt.Errorf("preapproval %s references unknown sale %s", preapprovalID, preapproval.ExternalReference)
		}
		return err
	}
	if changed {
		s.publish(ctx, redrepo.EventSaleUpdated, updated.ID)
		s.logger.Info("subscription activated",
			zap.String("sale_id", updated.ID),
			zap.String("preapproval_id", preapprovalID))
	}
	return nil
}

// applyPaid routes every trigger through the same conditional update:
// an already-paid sale returns applied == false and publishes nothing.
func (s *Service) applyPaid(ctx context.Context, sale model.Sale, paymentID string) (bool, error) {
	if sale.IsPaid() {
		return false, nil
	}

	updated, changed, err := s.store.MarkPaid(ctx, sale.ID, paymentID, sale.NextPaymentDateFrom(s.now().UTC()))
	if err != nil {
		return false, err
	}
	if changed {
		s.publish(ctx, redrepo.EventSalePaid, updated.ID)
	}
	return changed, nil
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
		s.logger.Warn("publish reconcile event", zap.String("sale_id", saleID), zap.Error(err))
	}
}
