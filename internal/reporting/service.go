package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/shared"
	"github.com/lokapos/lokapos/internal/tenancy"
)

const topProductsLimit = 5

type summaryReader interface {
	GetSummary(ctx context.Context, from, to *time.Time) (*ledger.Summary, error)
}

// Service builds the reports, fanning the aggregate queries out and
// caching the assembled result per tenant.
type Service struct {
	logger *slog.Logger
	repo   Repository
	ledger summaryReader
	cache  *Cache
	now    func() time.Time
}

// NewService wires the reporting reads.
func NewService(logger *slog.Logger, repo Repository, ledgerSvc *ledger.Service, cache *Cache) *Service {
	return &Service{
		logger: logger.With(slog.String("component", "reporting")),
		repo:   repo,
		ledger: ledgerSvc,
		cache:  cache,
		now:    time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func tenantKey(ctx context.Context) string {
	if t := tenancy.TenantFromContext(ctx); t != nil {
		return t.Subdomain
	}
	return "-"
}

func validateWindow(from, to time.Time) error {
	if from.After(to) {
		return fmt.Errorf("start date is after end date: %w", shared.ErrValidation)
	}
	return nil
}

// SalesReport summarizes completed sales over the inclusive window.
func (s *Service) SalesReport(ctx context.Context, from, to time.Time) (*SalesReport, error) {
	if err := validateWindow(from, to); err != nil {
		return nil, err
	}
	loader := func(ctx context.Context) (any, error) {
		return s.buildSalesReport(ctx, from, to)
	}
	key, err := s.cache.BuildKey(ctx, tenantKey(ctx), "sales",
		from.Format(shared.DateOnly), to.Format(shared.DateOnly))
	if err != nil {
		return nil, err
	}
	var report SalesReport
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) buildSalesReport(ctx context.Context, from, to time.Time) (*SalesReport, error) {
	report := SalesReport{Window: Window{From: from, To: to}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.repo.SalesTotals(gctx, from, to)
		if err == nil {
			report.Totals = totals
		}
		return err
	})
	g.Go(func() error {
		byPayment, err := s.repo.SalesByPayment(gctx, from, to)
		if err == nil {
			report.ByPaymentMethod = byPayment
		}
		return err
	})
	g.Go(func() error {
		daily, err := s.repo.DailySales(gctx, from, to)
		if err == nil {
			report.Daily = daily
		}
		return err
	})
	g.Go(func() error {
		top, err := s.repo.TopProducts(gctx, from, to, topProductsLimit)
		if err == nil {
			report.TopProducts = top
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.NetDisplay = formatMoney(report.Totals.Net)
	report.ProfitDisplay = formatMoney(report.Totals.GrossProfit)
	return &report, nil
}

// ServiceReport summarizes repair work over the inclusive window.
func (s *Service) ServiceReport(ctx context.Context, from, to time.Time) (*ServiceReport, error) {
	if err := validateWindow(from, to); err != nil {
		return nil, err
	}
	loader := func(ctx context.Context) (any, error) {
		return s.buildServiceReport(ctx, from, to)
	}
	key, err := s.cache.BuildKey(ctx, tenantKey(ctx), "service",
		from.Format(shared.DateOnly), to.Format(shared.DateOnly))
	if err != nil {
		return nil, err
	}
	var report ServiceReport
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) buildServiceReport(ctx context.Context, from, to time.Time) (*ServiceReport, error) {
	report := ServiceReport{Window: Window{From: from, To: to}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.repo.ServiceTotals(gctx, from, to)
		if err == nil {
			report.Totals = totals
		}
		return err
	})
	g.Go(func() error {
		byStatus, err := s.repo.TicketsByStatus(gctx, from, to)
		if err == nil {
			report.ByStatus = byStatus
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.RevenueDisplay = formatMoney(report.Totals.Revenue)
	return &report, nil
}

// Financial wraps the ledger summary for the window with display strings.
func (s *Service) Financial(ctx context.Context, from, to time.Time) (*FinancialReport, error) {
	if err := validateWindow(from, to); err != nil {
		return nil, err
	}
	loader := func(ctx context.Context) (any, error) {
		summary, err := s.ledger.GetSummary(ctx, &from, &to)
		if err != nil {
			return nil, err
		}
		return &FinancialReport{
			Window:           Window{From: from, To: to},
			Summary:          *summary,
			IncomeDisplay:    formatMoney(summary.TotalIncome),
			ExpenseDisplay:   formatMoney(summary.TotalExpense),
			NetProfitDisplay: formatMoney(summary.NetProfit),
		}, nil
	}
	key, err := s.cache.BuildKey(ctx, tenantKey(ctx), "financial",
		from.Format(shared.DateOnly), to.Format(shared.DateOnly))
	if err != nil {
		return nil, err
	}
	var report FinancialReport
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return nil, err
	}
	return &report, nil
}

// MonthlyFinancial is Financial over one calendar month ("2006-01").
func (s *Service) MonthlyFinancial(ctx context.Context, period string) (*FinancialReport, error) {
	start, end, err := shared.MonthWindow(period)
	if err != nil {
		return nil, err
	}
	return s.Financial(ctx, start, end)
}

// InventoryValue prices current stock at recorded unit cost and flags
// products at or below their minimum level.
func (s *Service) InventoryValue(ctx context.Context) (*InventoryValueReport, error) {
	loader := func(ctx context.Context) (any, error) {
		return s.buildInventoryValue(ctx)
	}
	key, err := s.cache.BuildKey(ctx, tenantKey(ctx), "inventory_value")
	if err != nil {
		return nil, err
	}
	var report InventoryValueReport
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) buildInventoryValue(ctx context.Context) (*InventoryValueReport, error) {
	products, err := s.repo.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}

	report := InventoryValueReport{AsOf: s.now()}
	for _, p := range products {
		unitCost := p.UnitCost()
		value := p.Stock * unitCost
		report.TotalValue += value
		report.Products = append(report.Products, ProductValue{
			ProductID:   p.ID,
			ProductCode: p.Code,
			ProductName: p.Name,
			Stock:       p.Stock,
			UnitCost:    unitCost,
			Value:       value,
		})
		if p.MinStock > 0 && p.Stock <= p.MinStock {
			report.LowStock = append(report.LowStock, LowStockItem{
				ProductID:   p.ID,
				ProductCode: p.Code,
				ProductName: p.Name,
				Stock:       p.Stock,
				MinStock:    p.MinStock,
			})
		}
	}
	report.TotalValueDisplay = formatMoney(report.TotalValue)
	return &report, nil
}

// Dashboard snapshots today, the month so far, and the open queues.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	loader := func(ctx context.Context) (any, error) {
		return s.buildDashboard(ctx, now)
	}
	key, err := s.cache.BuildKey(ctx, tenantKey(ctx), "dashboard", now.Format(shared.DateOnly))
	if err != nil {
		return nil, err
	}
	var dash Dashboard
	if err := s.cache.FetchJSON(ctx, key, &dash, loader); err != nil {
		return nil, err
	}
	return &dash, nil
}

func (s *Service) buildDashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	dash := Dashboard{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		today, err := s.repo.SalesTotals(gctx, dayStart, now)
		if err == nil {
			dash.Today = today
		}
		return err
	})
	g.Go(func() error {
		month, err := s.repo.SalesTotals(gctx, monthStart, now)
		if err == nil {
			dash.MonthSales = month
		}
		return err
	})
	g.Go(func() error {
		summary, err := s.ledger.GetSummary(gctx, &monthStart, &now)
		if err == nil {
			dash.Month = *summary
		}
		return err
	})
	g.Go(func() error {
		open, err := s.repo.OpenTickets(gctx)
		if err == nil {
			dash.OpenTickets = open
		}
		return err
	})
	g.Go(func() error {
		value, err := s.buildInventoryValue(gctx)
		if err == nil {
			dash.LowStockCount = len(value.LowStock)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dash, nil
}

// Warmup refreshes the tenant's cached reports: it bumps the version so
// readers stop hitting stale keys, then precomputes the views the
// dashboard opens with.
func (s *Service) Warmup(ctx context.Context) error {
	tenant := tenantKey(ctx)
	if err := s.cache.Bump(ctx, tenant); err != nil {
		return fmt.Errorf("bump report cache: %w", err)
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	if _, err := s.SalesReport(ctx, dayStart, now); err != nil {
		return fmt.Errorf("warm sales report: %w", err)
	}
	if _, err := s.Financial(ctx, monthStart, now); err != nil {
		return fmt.Errorf("warm financial report: %w", err)
	}
	if _, err := s.InventoryValue(ctx); err != nil {
		return fmt.Errorf("warm inventory value: %w", err)
	}

	s.logger.Info("report cache warmed", slog.String("tenant", tenant))
	return nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
