package sales

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/juampidev/pagolink/internal/domain/model"
)

var exportHeader = []string{
	"id", "client_name", "concept", "amount", "has_subscription",
	"subscription_amount", "payer_email", "pay_status",
	"subscription_status", "next_payment_date", "created_at",
}

type ExportResult struct {
	Key         string `json:"key"`
	DownloadURL string `json:"download_url"`
	Rows        int    `json:"rows"`
}

// Export writes the current listing (optionally filtered) as CSV to
// object storage and returns a presigned download link.
func (s *Service) Export(ctx context.Context, query string) (ExportResult, error) {
	if s.store == nil {
		return ExportResult{}, fmt.Errorf("sale store is nil")
	}
	if s.storage == nil {
		return ExportResult{}, fmt.Errorf("export storage is not configured")
	}

	sales, err := s.store.Search(ctx, query)
	if err != nil {
		return ExportResult{}, err
	}

	body, err := encodeCSV(sales)
	if err != nil {
		return ExportResult{}, err
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return ExportResult{}, err
	}

	key := fmt.Sprintf("exports/sales-%s.csv", s.now().UTC().Format("20060102-150405"))
	if err := s.storage.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "text/csv"); err != nil {
		return ExportResult{}, err
	}

	downloadURL, err := s.storage.PresignGet(ctx, key, exportURLTTL)
	if err != nil {
		return ExportResult{}, err
	}

	return ExportResult{
		Key:         key,
		DownloadURL: downloadURL,
		Rows:        len(sales),
	}, nil
}

func encodeCSV(sales []model.Sale) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, sale := range sales {
		subscriptionAmount := ""
		if sale.SubscriptionAmount != nil {
			subscriptionAmount = sale.SubscriptionAmount.String()
		}
		nextPaymentDate := ""
		if sale.NextPaymentDate != nil {
			nextPaymentDate = sale.NextPaymentDate.UTC().Format("2006-01-02")
		}

		record := []string{
			sale.ID,
			sale.ClientName,
			sale.Concept,
			sale.Amount.String(),
			fmt.Sprintf("%t", sale.HasSubscription),
			subscriptionAmount,
			sale.PayerEmail,
			string(sale.PayStatus),
			string(sale.SubscriptionStatus),
			nextPaymentDate,
			sale.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
