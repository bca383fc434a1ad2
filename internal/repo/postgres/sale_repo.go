package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/juampidev/pagolink/internal/domain/enums"
	"github.com/juampidev/pagolink/internal/domain/model"
)

var ErrSaleNotFound = errors.New("sale not found")

const saleColumns = `id, client_name, concept, amount, has_subscription, subscription_amount,
payer_first_name, payer_last_name, payer_email, pay_status, subscription_status,
next_payment_date, last_payment_id, created_at, updated_at`

type SaleRepo struct {
	pool *pgxpool.Pool
}

func NewSaleRepo(pool *pgxpool.Pool) *SaleRepo {
	return &SaleRepo{pool: pool}
}

func (r *SaleRepo) Create(ctx context.Context, sale model.Sale) (model.Sale, error) {
	if r.pool == nil {
		return model.Sale{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(sale.ID) == "" {
		return model.Sale{}, fmt.Errorf("sale id is required")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO sales (
	id,
	client_name,
	concept,
	amount,
	has_subscription,
	subscription_amount,
	pay_status,
	subscription_status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, 'pending', 'inactive', NOW(), NOW())
RETURNING `+saleColumns+`
`, sale.ID, sale.ClientName, sale.Concept, sale.Amount, sale.HasSubscription, sale.SubscriptionAmount)

	created, err := scanSale(row)
	if err != nil {
		return model.Sale{}, fmt.Errorf("create sale: %w", err)
	}
	return created, nil
}

func (r *SaleRepo) FindByID(ctx context.Context, saleID string) (model.Sale, error) {
	if r.pool == nil {
		return model.Sale{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(saleID) == "" {
		return model.Sale{}, fmt.Errorf("invalid sale id")
	}

	sale, err := scanSale(r.pool.QueryRow(ctx, `
SELECT `+saleColumns+`
FROM sales
WHERE id = $1
LIMIT 1
`, saleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Sale{}, ErrSaleNotFound
		}
		return model.Sale{}, fmt.Errorf("find sale by id: %w", err)
	}

	return sale, nil
}

// List returns every sale, newest first, matching the dashboard feed order.
func (r *SaleRepo) List(ctx context.Context) ([]model.Sale, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+saleColumns+`
FROM sales
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	return collectSales(rows)
}

func (r *SaleRepo) Search(ctx context.Context, query string) ([]model.Sale, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return r.List(ctx)
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+saleColumns+`
FROM sales
WHERE client_name ILIKE '%' || $1 || '%'
   OR concept ILIKE '%' || $1 || '%'
ORDER BY created_at DESC
`, query)
	if err != nil {
		return nil, fmt.Errorf("search sales: %w", err)
	}
	defer rows.Close()

	return collectSales(rows)
}

// Update overwrites the dashboard-editable fields. Payment state is not
// touched here; paid sales keep their status and next payment date.
func (r *SaleRepo) Update(ctx context.Context, sale model.Sale) (model.Sale, error) {
	if r.pool == nil {
		return model.Sale{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(sale.ID) == "" {
		return model.Sale{}, fmt.Errorf("invalid sale id")
	}

	row := r.pool.QueryRow(ctx, `
UPDATE sales
SET
	client_name = $2,
	concept = $3,
	amount = $4,
	has_subscription = $5,
	subscription_amount = $6,
	updated_at = NOW()
WHERE id = $1
RETURNING `+saleColumns+`
`, sale.ID, sale.ClientName, sale.Concept, sale.Amount, sale.HasSubscription, sale.SubscriptionAmount)

	updated, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Sale{}, ErrSaleNotFound
		}
		return model.Sale{}, fmt.Errorf("update sale: %w", err)
	}
	return updated, nil
}

func (r *SaleRepo) Delete(ctx context.Context, saleID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(saleID) == "" {
		return fmt.Errorf("invalid sale id")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *SaleRepo) SetPayerInfo(ctx context.Context, saleID, firstName, lastName, email string) (model.Sale, error) {
	if r.pool == nil {
		return model.Sale{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(saleID) == "" {
		return model.Sale{}, fmt.Errorf("invalid sale id")
	}

	row := r.pool.QueryRow(ctx, `
UPDATE sales
SET
	payer_first_name = $2,
	payer_last_name = $3,
	payer_email = $4,
	updated_at = NOW()
WHERE id = $1
RETURNING `+saleColumns+`
`, saleID, firstName, lastName, email)

	updated, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Sale{}, ErrSaleNotFound
		}
		return model.Sale{}, fmt.Errorf("set payer info: %w", err)
	}
	return updated, nil
}

// MarkPaid applies the pending -> paid transition at most once. The WHERE
// clause is the idempotence guard: concurrent reconciliation triggers race
// on it, and only one sees changed == true.
func (r *SaleRepo) MarkPaid(ctx context.Context, saleID, paymentID string, nextPaymentDate *time.Time) (model.Sale, bool, error) {
	if r.pool == nil {
		return model.Sale{}, false, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(saleID) == "" {
		return model.Sale{}, false, fmt.Errorf("invalid sale id")
	}

	row := r.pool.QueryRow(ctx, `
UPDATE sales
SET
	pay_status = 'paid',
	next_payment_date = $2,
	last_payment_id = $3,
	updated_at = NOW()
WHERE id = $1
  AND pay_status <> 'paid'
RETURNING `+saleColumns+`
`, saleID, nextPaymentDate, paymentID)

	updated, err := scanSale(row)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Sale{}, false, fmt.Errorf("mark sale paid: %w", err)
	}

	existing, err := r.FindByID(ctx, saleID)
	if err != nil {
		return model.Sale{}, false, err
	}
	return existing, false, nil
}

// ActivateSubscription is the preapproval analogue of MarkPaid.
func (r *SaleRepo) ActivateSubscription(ctx context.Context, saleID string) (model.Sale, bool, error) {
	if r.pool == nil {
		return model.Sale{}, false, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(saleID) == "" {
		return model.Sale{}, false, fmt.Errorf("invalid sale id")
	}

	row := r.pool.QueryRow(ctx, `
UPDATE sales
SET
	subscription_status = 'active',
	updated_at = NOW()
WHERE id = $1
  AND subscription_status <> 'active'
RETURNING `+saleColumns+`
`, saleID)

	updated, err := scanSale(row)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Sale{}, false, fmt.Errorf("activate subscription: %w", err)
	}

	existing, err := r.FindByID(ctx, saleID)
	if err != nil {
		return model.Sale{}, false, err
	}
	return existing, false, nil
}

func scanSale(row pgx.Row) (model.Sale, error) {
	var (
		sale               model.Sale
		subscriptionAmount decimal.NullDecimal
		firstName          *string
		lastName           *string
		email              *string
		payStatus          string
		subscriptionStatus string
		lastPaymentID      *string
	)
	if err := row.Scan(
		&sale.ID,
		&sale.ClientName,
		&sale.Concept,
		&sale.Amount,
		&subscriptionAmount,
		&firstName,
		&lastName,
		&email,
		&payStatus,
		&subscriptionStatus,
		&sale.NextPaymentDate,
		&lastPaymentID,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	); err != nil {
		return model.Sale{}, err
	}

	if subscriptionAmount.Valid {
		amount := subscriptionAmount.Decimal
		sale.SubscriptionAmount = &amount
	}
	sale.PayerFirstName = derefString(firstName)
	sale.PayerLastName = derefString(lastName)
	sale.PayerEmail = derefString(email)
	sale.LastPaymentID = derefString(lastPaymentID)

	status, ok := enums.ParsePayStatus(payStatus)
	if !ok {
		return model.Sale{}, fmt.Errorf("unexpected pay status %q", payStatus)
	}
	sale.PayStatus = status

	subStatus, ok := enums.ParseSubscriptionStatus(subscriptionStatus)
	if !ok {
		return model.Sale{}, fmt.Errorf("unexpected subscription status %q", subscriptionStatus)
	}
	sale.SubscriptionStatus = subStatus

	return sale, nil
}

func collectSales(rows pgx.Rows) ([]model.Sale, error) {
	sales := make([]model.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale row: %w", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale rows: %w", err)
	}
	return sales, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
