package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/juampidev/pagolink/internal/infra/mercadopago"
	checkoutsvc "github.com/juampidev/pagolink/internal/services/checkout"
	reconcilesvc "github.com/juampidev/pagolink/internal/services/reconcile"
	"github.com/juampidev/pagolink/internal/transport/http/dto"
	httperrors "github.com/juampidev/pagolink/internal/transport/http/errors"
)

// PaymentHandler exposes the gateway-facing endpoints. These keep the
// {error, details} envelope the checkout frontend consumes, separate
// from the {code, message} envelope of the admin API.
type PaymentHandler struct {
	checkout  *checkoutsvc.Service
	reconcile *reconcilesvc.Service
	logger    *zap.Logger
}

func NewPaymentHandler(checkout *checkoutsvc.Service, reconcile *reconcilesvc.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout:  checkout,
		reconcile: reconcile,
		logger:    logger,
	}
}

func (h *PaymentHandler) CreatePreference(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		writePaymentError(w, http.StatusInternalServerError, "LOGIC_CRASH", "checkout service is unavailable")
		return
	}

	var req dto.PreferenceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writePaymentError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	initPoint, err := h.checkout.BeginCardPayment(r.Context(), req.SaleID)
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PreferenceCreateResponse{InitPoint: initPoint})
}

func (h *PaymentHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		writePaymentError(w, http.StatusInternalServerError, "LOGIC_CRASH", "checkout service is unavailable")
		return
	}

	var req dto.SubscriptionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writePaymentError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	initPoint, err := h.checkout.ActivateSubscription(r.Context(), req.SaleID)
	if err != nil {
		h.handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SubscriptionCreateResponse{
		Status:    "SUCCESS",
		InitPoint: initPoint,
	})
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.reconcile == nil {
		writePaymentError(w, http.StatusInternalServerError, "LOGIC_CRASH", "reconcile service is unavailable")
		return
	}

	var req dto.VerifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writePaymentError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	result, err := h.reconcile.VerifyPayment(r.Context(), req.PaymentID, req.SaleID)
	if err != nil {
		if errors.Is(err, reconcilesvc.ErrSaleNotFound) {
			httperrors.Write(w, http.StatusNotFound, dto.PaymentErrorResponse{Error: "Venta no encontrada"})
			return
		}
		if errors.Is(err, reconcilesvc.ErrValidation) {
			writePaymentError(w, http.StatusBadRequest, "BAD_REQUEST", "payment does not match the sale")
			return
		}
		h.handlePaymentError(w, err)
		return
	}

	if result.Status != "approved" {
		httperrors.Write(w, http.StatusBadRequest, dto.VerifyPaymentResponse{
			Status:  result.Status,
			Message: "el pago no fue aprobado",
		})
		return
	}

	httperrors.Write(w, http.StatusOK, dto.VerifyPaymentResponse{
		Status:  result.Status,
		Message: "pago verificado",
	})
}

// Webhook always acks 200 "OK" whatever happens inside: the gateway
// retries on non-2xx and redelivery is unwanted once the handler has
// safely no-op'd. Failures land in the logs only.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer writeWebhookAck(w)

	if h.reconcile == nil {
		if h.logger != nil {
			h.logger.Error("webhook received with reconcile service unavailable")
		}
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("webhook body read failed", zap.Error(err))
		}
		return
	}

	notification, err := reconcilesvc.ParseNotification(body)
	if err != nil {
		if h.logger != nil {
			h.logger.Info("webhook notification ignored", zap.ByteString("body", body))
		}
		return
	}

	if err := h.reconcile.ProcessNotification(r.Context(), notification); err != nil && h.logger != nil {
		h.logger.Error("webhook processing failed",
			zap.String("kind", notification.Kind),
			zap.String("resource_id", notification.ResourceID),
			zap.Error(err))
	}
}

func writeWebhookAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *PaymentHandler) handlePaymentError(w http.ResponseWriter, err error) {
	var gwErr *mercadopago.GatewayError
	if errors.As(err, &gwErr) {
		status := http.StatusInternalServerError
		if gwErr.Kind == mercadopago.ErrKindBadRequest || gwErr.Kind == mercadopago.ErrKindAPIRejection {
			status = http.StatusBadRequest
		}
		writePaymentError(w, status, string(gwErr.Kind), gwErr.Details)
		return
	}

	switch {
	case errors.Is(err, checkoutsvc.ErrSaleNotFound):
		httperrors.Write(w, http.StatusNotFound, dto.PaymentErrorResponse{Error: "Venta no encontrada"})
	case errors.Is(err, checkoutsvc.ErrValidation), errors.Is(err, checkoutsvc.ErrSubscriptionUnavailable):
		writePaymentError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("payment endpoint failed", zap.Error(err))
		}
		writePaymentError(w, http.StatusInternalServerError, "LOGIC_CRASH", "internal server error")
	}
}

func writePaymentError(w http.ResponseWriter, status int, tag, details string) {
	httperrors.Write(w, status, dto.PaymentErrorResponse{Error: tag, Details: details})
}
