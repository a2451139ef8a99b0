package usecase

import (
	"context"
	"fmt"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type CatalogService struct {
	store repository.Store
	cache Cache
}

func NewCatalogService(store repository.Store, cache Cache) *CatalogService {
	return &CatalogService{store: store, cache: cache}
}

type ProductQuery struct {
	CategoryID *int64
	Keyword    string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Page       domain.Page
}

func (s *CatalogService) ListProducts(ctx context.Context, in ProductQuery) (domain.PageResult[domain.Product], error) {
	page := in.Page.Normalize(20)
	f := repository.ProductFilter{
		CategoryID: in.CategoryID,
		Keyword:    in.Keyword,
		MinPrice:   in.MinPrice,
		MaxPrice:   in.MaxPrice,
		ActiveOnly: true,
	}

	var (
		products []domain.Product
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.store.ListProducts(gctx, f, page)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.store.CountProducts(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.PageResult[domain.Product]{}, fmt.Errorf("list products: %w", err)
	}

	return domain.PageResult[domain.Product]{Items: products, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// GetProduct returns the product with its SKUs and counts a view. The view
// counter is best effort and bypasses the cache.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	logger := zerolog.Ctx(ctx)

	product, found, err := s.cache.GetProduct(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Int64("product_id", id).Msg("product cache read failed")
	}
	if !found {
		product, err = s.loadProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetProduct(ctx, product); err != nil {
			logger.Warn().Err(err).Int64("product_id", id).Msg("product cache write failed")
		}
	}

	if err := s.store.IncrementProductViews(ctx, id); err != nil {
		logger.Warn().Err(err).Int64("product_id", id).Msg("view counter update failed")
	}
	return product, nil
}

func (s *CatalogService) loadProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if product.Skus, err = s.store.ListSkusByProduct(ctx, id); err != nil {
		return nil, fmt.Errorf("list skus: %w", err)
	}
	return &product, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CatalogService) CreateCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	if c.Name == "" {
		return nil, domain.Errorf(domain.ErrInvalidInput, "category name is required")
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &created, nil
}

// CreateProduct stores the product and its SKUs together.
func (s *CatalogService) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = domain.ProductActive
	}

	var created domain.Product
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		created, err = q.CreateProduct(ctx, p)
		if err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		created.Skus = make([]domain.ProductSku, 0, len(p.Skus))
		for _, sku := range p.Skus {
			sku.ProductID = created.ID
			saved, err := q.CreateSku(ctx, sku)
			if err != nil {
				return fmt.Errorf("create sku: %w", err)
			}
			created.Skus = append(created.Skus, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func validateProduct(p *domain.Product) error {
	if p.Name == "" {
		return domain.Errorf(domain.ErrInvalidInput, "product name is required")
	}
	if p.Price.IsNegative() || p.Stock < 0 {
		return domain.Errorf(domain.ErrInvalidInput, "price and stock must not be negative")
	}
	if p.Status != "" && p.Status != domain.ProductActive && p.Status != domain.ProductInactive {
		return domain.Errorf(domain.ErrInvalidInput, "invalid product status %q", p.Status)
	}
	for _, sku := range p.Skus {
		if sku.Price.IsNegative() || sku.Stock < 0 {
			return domain.Errorf(domain.ErrInvalidInput, "sku price and stock must not be negative")
		}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return nil
}

type ProductPatch struct {
	CategoryID  *int64
	Name        *string
	SubTitle    *string
	Images      []string
	Price       *decimal.Decimal
	Stock       *int
	Status      *domain.ProductStatus
	Description *string
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error) {
	var updated domain.Product
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		p, err := q.GetProduct(ctx, id)
		if err != nil {
			return notFound(err, "product")
		}

		if patch.CategoryID != nil {
			p.CategoryID = *patch.CategoryID
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.SubTitle != nil {
			p.SubTitle = *patch.SubTitle
		}
		if patch.Images != nil {
			p.Images = patch.Images
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Stock != nil {
			p.Stock = *patch.Stock
		}
		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if err := validateProduct(&p); err != nil {
			return err
		}

		if updated, err = q.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		updated.Skus, err = q.ListSkusByProduct(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return &updated, nil
}

// DeleteProduct takes the product off sale; order history keeps referencing it.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	inactive := domain.ProductInactive
	_, err := s.UpdateProduct(ctx, id, ProductPatch{Status: &inactive})
	return err
}

func (s *CatalogService) invalidate(ctx context.Context, ids ...int64) {
	if err := s.cache.InvalidateProducts(ctx, ids...); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Ints64("product_ids", ids).Msg("product cache invalidation failed")
	}
}
