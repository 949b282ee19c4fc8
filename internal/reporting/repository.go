package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// Repository runs the aggregate queries behind the reports.
type Repository interface {
	SalesTotals(ctx context.Context, from, to time.Time) (SalesTotals, error)
	SalesByPayment(ctx context.Context, from, to time.Time) (map[string]float64, error)
	DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error)

	ServiceTotals(ctx context.Context, from, to time.Time) (ServiceTotals, error)
	TicketsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, error)
	OpenTickets(ctx context.Context) (int64, error)

	ActiveProducts(ctx context.Context) ([]masterdata.Product, error)
}

type repository struct {
	source db.Source
}

// NewRepository returns a Repository over the tenant database bound to ctx.
func NewRepository(source db.Source) Repository {
	return &repository{source: source}
}

func (r *repository) SalesTotals(ctx context.Context, from, to time.Time) (SalesTotals, error) {
	var t SalesTotals
	err := r.source.Pool(ctx).QueryRow(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(s.subtotal), 0),
			COALESCE(SUM(s.discount), 0),
			COALESCE(SUM(s.total), 0),
			COALESCE((SELECT SUM(si.qty * si.unit_cost)
				FROM sale_items si
				JOIN sales sc ON sc.id = si.sale_id
				WHERE sc.status = 'completed' AND sc.sold_at >= $1 AND sc.sold_at <= $2), 0)
		FROM sales s
		WHERE s.status = 'completed' AND s.sold_at >= $1 AND s.sold_at <= $2`,
		from, to).Scan(&t.Transactions, &t.Gross, &t.Discount, &t.Net, &t.COGS)
	if err != nil {
		return SalesTotals{}, fmt.Errorf("sales totals: %w", err)
	}
	t.GrossProfit = t.Net - t.COGS
	return t, nil
}

func (r *repository) SalesByPayment(ctx context.Context, from, to time.Time) (map[string]float64, error) {
	rows, err := r.source.Pool(ctx).Query(ctx, `SELECT s.payment_method, COALESCE(SUM(s.total), 0)
		FROM sales s
		WHERE s.status = 'completed' AND s.sold_at >= $1 AND s.sold_at <= $2
		GROUP BY s.payment_method`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("sales by payment: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var (
			method string
			total  float64
		)
		if err := rows.Scan(&method, &total); err != nil {
			return nil, fmt.Errorf("scan payment bucket: %w", err)
		}
		out[method] = total
	}
	return out, rows.Err()
}

func (r *repository) DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows, err := r.source.Pool(ctx).Query(ctx, `SELECT DATE(s.sold_at), COUNT(*), COALESCE(SUM(s.total), 0)
		FROM sales s
		WHERE s.status = 'completed' AND s.sold_at >= $1 AND s.sold_at <= $2
		GROUP BY DATE(s.sold_at)
		ORDER BY DATE(s.sold_at)`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	var series []DailySales
	for rows.Next() {
		var (
			day time.Time
			d   DailySales
		)
		if err := rows.Scan(&day, &d.Transactions, &d.Net); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		d.Date = day.Format(shared.DateOnly)
		series = append(series, d)
	}
	return series, rows.Err()
}

func (r *repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error) {
	rows, err := r.source.Pool(ctx).Query(ctx, `SELECT si.product_id, p.code, p.name, SUM(si.qty), SUM(si.line_total)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.status = 'completed' AND s.sold_at >= $1 AND s.sold_at <= $2
		GROUP BY si.product_id, p.code, p.name
		ORDER BY SUM(si.line_total) DESC
		LIMIT $3`,
		from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	var out []ProductSales
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductID, &p.ProductCode, &p.ProductName, &p.Qty, &p.Net); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) ServiceTotals(ctx context.Context, from, to time.Time) (ServiceTotals, error) {
	var t ServiceTotals
	err := r.source.Pool(ctx).QueryRow(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(t.labor_charge), 0),
			COALESCE((SELECT SUM(p.qty * p.unit_price)
				FROM service_ticket_parts p
				JOIN service_tickets tc ON tc.id = p.ticket_id
				WHERE tc.status IN ('completed', 'delivered')
					AND tc.completed_at >= $1 AND tc.completed_at <= $2), 0),
			COALESCE((SELECT SUM(p.qty * p.unit_cost)
				FROM service_ticket_parts p
				JOIN service_tickets tc ON tc.id = p.ticket_id
				WHERE tc.status IN ('completed', 'delivered')
					AND tc.completed_at >= $1 AND tc.completed_at <= $2), 0)
		FROM service_tickets t
		WHERE t.status IN ('completed', 'delivered')
			AND t.completed_at >= $1 AND t.completed_at <= $2`,
		from, to).Scan(&t.Completed, &t.LaborRevenue, &t.PartsRevenue, &t.PartsCost)
	if err != nil {
		return ServiceTotals{}, fmt.Errorf("service totals: %w", err)
	}
	t.Revenue = t.LaborRevenue + t.PartsRevenue
	return t, nil
}

func (r *repository) TicketsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	rows, err := r.source.Pool(ctx).Query(ctx, `SELECT t.status, COUNT(*)
		FROM service_tickets t
		WHERE t.created_at >= $1 AND t.created_at <= $2
		GROUP BY t.status`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("tickets by status: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan ticket bucket: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}

func (r *repository) OpenTickets(ctx context.Context) (int64, error) {
	var count int64
	err := r.source.Pool(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM service_tickets WHERE status IN ('open', 'in_progress')`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("open tickets: %w", err)
	}
	return count, nil
}

func (r *repository) ActiveProducts(ctx context.Context) ([]masterdata.Product, error) {
	rows, err := r.source.Pool(ctx).Query(ctx, `SELECT id, code, name, price, cost, avg_cost, last_purchase_price, stock, min_stock
		FROM products WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("active products: %w", err)
	}
	defer rows.Close()

	var products []masterdata.Product
	for rows.Next() {
		var p masterdata.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Price, &p.Cost, &p.AvgCost,
			&p.LastPurchasePrice, &p.Stock, &p.MinStock); err != nil {
			return nil, fmt.Errorf("scan product value: %w", err)
		}
		p.IsActive = true
		products = append(products, p)
	}
	return products, rows.Err()
}
