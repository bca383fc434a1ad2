package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	linkssvc "github.com/juampidev/pagolink/internal/services/links"
	salessvc "github.com/juampidev/pagolink/internal/services/sales"
	"github.com/juampidev/pagolink/internal/transport/http/dto"
	httperrors "github.com/juampidev/pagolink/internal/transport/http/errors"
)

type SalesHandler struct {
	links  *linkssvc.Service
	sales  *salessvc.Service
	logger *zap.Logger
}

func NewSalesHandler(links *linkssvc.Service, sales *salessvc.Service, logger *zap.Logger) *SalesHandler {
	return &SalesHandler{
		links:  links,
		sales:  sales,
		logger: logger,
	}
}

func (h *SalesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.links == nil {
		writeInternal(w, "SALES_SERVICE_UNAVAILABLE", "sales service is unavailable")
		return
	}

	var req dto.CreateSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	result, err := h.links.Create(r.Context(), linkssvc.CreateInput{
		ClientName:         req.ClientName,
		Concept:            req.Concept,
		Amount:             req.Amount,
		HasSubscription:    req.HasSubscription,
		SubscriptionAmount: req.SubscriptionAmount,
	})
	if err != nil {
		if errors.Is(err, linkssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid sale payload")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to create sale")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.SaleCreatedResponse{
		Sale:        dto.NewSaleResponse(result.Sale),
		CheckoutURL: result.CheckoutURL,
	})
}

// List serves both the plain listing and search: a non-empty q query
// filters by client name or concept.
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.sales == nil {
		writeInternal(w, "SALES_SERVICE_UNAVAILABLE", "sales service is unavailable")
		return
	}

	query := r.URL.Query().Get("q")
	listing, err := h.sales.Search(r.Context(), query)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list sales")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SaleListResponse{
		Sales: dto.NewSaleResponses(listing.Sales),
		Metadata: dto.SaleListMetadata{
			Quantity:    listing.Metadata.Quantity,
			Paid:        listing.Metadata.Paid,
			Pending:     listing.Metadata.Pending,
			TotalAmount: listing.Metadata.TotalAmount,
		},
	})
}

func (h *SalesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.sales == nil {
		writeInternal(w, "SALES_SERVICE_UNAVAILABLE", "sales service is unavailable")
		return
	}

	sale, err := h.sales.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleSalesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewSaleResponse(sale))
}

func (h *SalesHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h.sales == nil {
		writeInternal(w, "SALES_SERVICE_UNAVAILABLE", "sales service is unavailable")
		return
	}

	var req dto.UpdateSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	sale, err := h.sales.Update(r.Context(), chi.URLParam(r, "id"), salessvc.UpdateInput{
		ClientName:         req.ClientName,
		Concept:            req.Concept,
		Amount:             req.Amount,
		HasSubscription:    req.HasSubscription,
		SubscriptionAmount: req.SubscriptionAmount,
	})
	if err != nil {
		handleSalesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewSaleResponse(sale))
}

func (h *SalesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.sales == nil {
		writeInternal(w, "SALES_SERVICE_UNAVAILABLE", "sales service is unavailable")
		return
	}

	if err := h.sales.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleSalesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteSaleResponse{OK: true})
}

func (h *SalesHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.sales == nil {
		writeInternal(w, "SALES_SERVICE_UNAVAILABLE", "sales service is unavailable")
		return
	}

	result, err := h.sales.Export(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		if h.logger != nil {
			h.logger.Error("sales export failed", zap.Error(err))
		}
		writeInternal(w, "EXPORT_FAILED", "failed to export sales")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SaleExportResponse{
		Key:         result.Key,
		DownloadURL: result.DownloadURL,
		Rows:        result.Rows,
	})
}

// Feed streams sale events as SSE until the client disconnects. Each
// event is one JSON envelope; the dashboard reloads the affected record
// itself.
func (h *SalesHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if h.sales == nil {
		writeInternal(w, "SALES_SERVICE_UNAVAILABLE", "sales service is unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeInternal(w, "STREAMING_UNSUPPORTED", "streaming is not supported")
		return
	}

	events, err := h.sales.Feed(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("sales feed unavailable", zap.Error(err))
		}
		writeInternal(w, "FEED_UNAVAILABLE", "live feed is unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func handleSalesError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, salessvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid sale payload")
	case errors.Is(err, salessvc.ErrSaleNotFound):
		writeNotFound(w, "SALE_NOT_FOUND", "Venta no encontrada")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
