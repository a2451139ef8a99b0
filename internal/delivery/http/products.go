package http

import (
	"net/http"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/usecase"
	"github.com/shopspring/decimal"
)

type SkuRequest struct {
	Specs map[string]string `json:"specs" validate:"required"`
	Price decimal.Decimal   `json:"price"`
	Stock int               `json:"stock" validate:"gte=0"`
}

type CreateProductRequest struct {
	CategoryID  int64           `json:"categoryId" validate:"required,gte=1"`
	Name        string          `json:"name" validate:"required,max=200"`
	SubTitle    string          `json:"subTitle" validate:"max=200"`
	Images      []string        `json:"images"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Description string          `json:"description"`
	Skus        []SkuRequest    `json:"skus" validate:"dive"`
}

type UpdateProductRequest struct {
	CategoryID  *int64           `json:"categoryId" validate:"omitempty,gte=1"`
	Name        *string          `json:"name" validate:"omitempty,max=200"`
	SubTitle    *string          `json:"subTitle" validate:"omitempty,max=200"`
	Images      []string         `json:"images"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active inactive"`
	Description *string          `json:"description"`
}

type CreateCategoryRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	ParentID *int64 `json:"parentId"`
	Sort     int    `json:"sort"`
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q, err := productQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Catalog.ListProducts(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	paginated(w, res)
}

func productQuery(r *http.Request) (usecase.ProductQuery, error) {
	var (
		q   usecase.ProductQuery
		err error
	)
	if q.Page, err = pageParams(r); err != nil {
		return q, err
	}
	if q.CategoryID, err = queryInt64Ptr(r, "categoryId"); err != nil {
		return q, err
	}
	if q.MinPrice, err = queryDecimalPtr(r, "minPrice"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = queryDecimalPtr(r, "maxPrice"); err != nil {
		return q, err
	}
	q.Keyword = r.URL.Query().Get("keyword")
	return q, nil
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.svc.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, p, "ok")
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Catalog.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	ok(w, cats, "ok")
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !h.bind(w, r, &req) {
		return
	}

	c, err := h.svc.Catalog.CreateCategory(r.Context(), domain.Category{
		Name:     req.Name,
		ParentID: req.ParentID,
		Sort:     req.Sort,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, c, "category created")
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.bind(w, r, &req) {
		return
	}

	p := domain.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		SubTitle:    req.SubTitle,
		Images:      req.Images,
		Price:       req.Price,
		Stock:       req.Stock,
		Description: req.Description,
	}
	for _, s := range req.Skus {
		p.Skus = append(p.Skus, domain.ProductSku{Specs: s.Specs, Price: s.Price, Stock: s.Stock})
	}

	out, err := h.svc.Catalog.CreateProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, out, "product created")
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req UpdateProductRequest
	if !h.bind(w, r, &req) {
		return
	}

	patch := usecase.ProductPatch{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		SubTitle:    req.SubTitle,
		Images:      req.Images,
		Price:       req.Price,
		Stock:       req.Stock,
		Description: req.Description,
	}
	if req.Status != nil {
		st := domain.ProductStatus(*req.Status)
		patch.Status = &st
	}

	p, err := h.svc.Catalog.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, p, "product updated")
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Catalog.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	ok(w, nil, "product deleted")
}
