package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	checkoutsvc "github.com/juampidev/pagolink/internal/services/checkout"
	"github.com/juampidev/pagolink/internal/transport/http/dto"
	httperrors "github.com/juampidev/pagolink/internal/transport/http/errors"
)

type CheckoutHandler struct {
	service *checkoutsvc.Service
	logger  *zap.Logger
}

func NewCheckoutHandler(service *checkoutsvc.Service, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, logger: logger}
}

// View serves GET /pago/{id}. A return redirect from the gateway lands
// here with a status query; that status is applied before rendering so
// the page already shows the reconciled state. subscription=active is
// informational only.
func (h *CheckoutHandler) View(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	saleID := chi.URLParam(r, "id")

	if status := r.URL.Query().Get("status"); status != "" {
		if _, _, err := h.service.ApplyReturnStatus(r.Context(), saleID, status); err != nil {
			if errors.Is(err, checkoutsvc.ErrSaleNotFound) {
				writeNotFound(w, "SALE_NOT_FOUND", "Venta no encontrada")
				return
			}
			// Load still renders the current state; the webhook remains
			// the durable trigger.
			if h.logger != nil {
				h.logger.Warn("apply return status failed", zap.String("sale_id", saleID), zap.Error(err))
			}
		}
	}

	view, err := h.service.Load(r.Context(), saleID)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	resp := dto.CheckoutViewResponse{
		Sale:   dto.NewSaleResponse(view.Sale),
		Screen: view.Screen,
	}
	// The bank transfer block only renders on the method chooser.
	if view.Screen == checkoutsvc.ScreenMethodChooser {
		resp.BankTransferInfo = view.BankTransferInfo
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) SubmitPayer(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	var req dto.PayerInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	sale, err := h.service.SubmitPayerInfo(r.Context(), chi.URLParam(r, "id"), req.FirstName, req.LastName, req.Email)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewSaleResponse(sale))
}

func handleCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkoutsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	case errors.Is(err, checkoutsvc.ErrSaleNotFound):
		writeNotFound(w, "SALE_NOT_FOUND", "Venta no encontrada")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
