package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/lokapos/lokapos/internal/shared"
)

// Service wraps the catalog repository with input normalization.
type Service struct {
	repo Repository
}

// NewService constructs the catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Products(ctx context.Context, f ProductFilter) ([]Product, shared.Pagination, error) {
	products, total, err := s.repo.Products(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

func (s *Service) Product(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Product(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if err := normalizeProduct(p); err != nil {
		return err
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	if err := normalizeProduct(p); err != nil {
		return err
	}
	return s.repo.UpdateProduct(ctx, p)
}

func (s *Service) DeactivateProduct(ctx context.Context, id int64) error {
	return s.repo.DeactivateProduct(ctx, id)
}

func (s *Service) Customers(ctx context.Context, search string, page shared.Pagination) ([]Customer, shared.Pagination, error) {
	customers, total, err := s.repo.Customers(ctx, search, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return customers, shared.NewPagination(page.Page, page.PerPage, total), nil
}

func (s *Service) Customer(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Customer(ctx, id)
}

func (s *Service) CreateCustomer(ctx context.Context, c *Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("customer name required: %w", shared.ErrValidation)
	}
	return s.repo.CreateCustomer(ctx, c)
}

func (s *Service) UpdateCustomer(ctx context.Context, c *Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("customer name required: %w", shared.ErrValidation)
	}
	return s.repo.UpdateCustomer(ctx, c)
}

func (s *Service) Suppliers(ctx context.Context, search string, page shared.Pagination) ([]Supplier, shared.Pagination, error) {
	suppliers, total, err := s.repo.Suppliers(ctx, search, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return suppliers, shared.NewPagination(page.Page, page.PerPage, total), nil
}

func (s *Service) Supplier(ctx context.Context, id int64) (*Supplier, error) {
	return s.repo.Supplier(ctx, id)
}

func (s *Service) CreateSupplier(ctx context.Context, sup *Supplier) error {
	sup.Name = strings.TrimSpace(sup.Name)
	if sup.Name == "" {
		return fmt.Errorf("supplier name required: %w", shared.ErrValidation)
	}
	return s.repo.CreateSupplier(ctx, sup)
}

func (s *Service) UpdateSupplier(ctx context.Context, sup *Supplier) error {
	sup.Name = strings.TrimSpace(sup.Name)
	if sup.Name == "" {
		return fmt.Errorf("supplier name required: %w", shared.ErrValidation)
	}
	return s.repo.UpdateSupplier(ctx, sup)
}

func normalizeProduct(p *Product) error {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	if p.Code == "" {
		return fmt.Errorf("product code required: %w", shared.ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("product name required: %w", shared.ErrValidation)
	}
	if p.Price < 0 || p.Cost < 0 || p.MinStock < 0 {
		return fmt.Errorf("product amounts cannot be negative: %w", shared.ErrValidation)
	}
	if p.Unit == "" {
		p.Unit = "pcs"
	}
	return nil
}
