package repository

import (
	"context"
	"fmt"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
)

const listCategories = `SELECT id, name, parent_id, sort FROM categories ORDER BY sort, id`

func (q *Queries) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Category, error) {
		var c domain.Category
		err := row.Scan(&c.ID, &c.Name, &c.ParentID, &c.Sort)
		return c, err
	})
}

const createCategory = `INSERT INTO categories (name, parent_id, sort) VALUES ($1, $2, $3)
RETURNING id, name, parent_id, sort`

func (q *Queries) CreateCategory(ctx context.Context, arg domain.Category) (domain.Category, error) {
	var c domain.Category
	err := q.db.QueryRow(ctx, createCategory, arg.Name, arg.ParentID, arg.Sort).
		Scan(&c.ID, &c.Name, &c.ParentID, &c.Sort)
	return c, err
}

const productColumns = `id, category_id, name, sub_title, images, price, stock, sales, views, status, description, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.SubTitle, &p.Images, &p.Price, &p.Stock,
		&p.Sales, &p.Views, &p.Status, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func productWhere(f ProductFilter) *where {
	w := &where{}
	if f.ActiveOnly {
		w.raw("status = 'active'")
	}
	if f.CategoryID != nil {
		w.add("category_id = $%d", *f.CategoryID)
	}
	if f.Keyword != "" {
		w.add("(name ILIKE '%%' || $%[1]d || '%%' OR sub_title ILIKE '%%' || $%[1]d || '%%')", f.Keyword)
	}
	if f.MinPrice != nil {
		w.add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add("price <= $%d", *f.MaxPrice)
	}
	return w
}

func (q *Queries) ListProducts(ctx context.Context, f ProductFilter, page domain.Page) ([]domain.Product, error) {
	w := productWhere(f)
	sql := `SELECT ` + productColumns + ` FROM products` + w.String() +
		` ORDER BY created_at DESC, id DESC` + w.page(page.PageSize, page.Offset())

	rows, err := q.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		return scanProduct(row)
	})
}

func (q *Queries) CountProducts(ctx context.Context, f ProductFilter) (int64, error) {
	w := productWhere(f)
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM products`+w.String(), w.args...).Scan(&n)
	return n, err
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const listSkusByProduct = `SELECT id, product_id, specs, price, stock FROM product_skus
WHERE product_id = $1 ORDER BY id`

func (q *Queries) ListSkusByProduct(ctx context.Context, productID int64) ([]domain.ProductSku, error) {
	rows, err := q.db.Query(ctx, listSkusByProduct, productID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ProductSku, error) {
		var s domain.ProductSku
		err := row.Scan(&s.ID, &s.ProductID, &s.Specs, &s.Price, &s.Stock)
		return s, err
	})
}

const createProduct = `INSERT INTO products (category_id, name, sub_title, images, price, stock, status, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + productColumns

func (q *Queries) CreateProduct(ctx context.Context, arg domain.Product) (domain.Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.CategoryID, arg.Name, arg.SubTitle, arg.Images, arg.Price, arg.Stock, arg.Status, arg.Description,
	)
	return scanProduct(row)
}

const createSku = `INSERT INTO product_skus (product_id, specs, price, stock) VALUES ($1, $2, $3, $4)
RETURNING id, product_id, specs, price, stock`

func (q *Queries) CreateSku(ctx context.Context, arg domain.ProductSku) (domain.ProductSku, error) {
	var s domain.ProductSku
	specs := arg.Specs
	if specs == nil {
		specs = map[string]string{}
	}
	err := q.db.QueryRow(ctx, createSku, arg.ProductID, specs, arg.Price, arg.Stock).
		Scan(&s.ID, &s.ProductID, &s.Specs, &s.Price, &s.Stock)
	return s, err
}

const updateProduct = `UPDATE products
SET category_id = $2, name = $3, sub_title = $4, images = $5, price = $6, stock = $7,
    status = $8, description = $9, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

func (q *Queries) UpdateProduct(ctx context.Context, arg domain.Product) (domain.Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID, arg.CategoryID, arg.Name, arg.SubTitle, arg.Images, arg.Price, arg.Stock, arg.Status, arg.Description,
	)
	return scanProduct(row)
}

func (q *Queries) IncrementProductViews(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `UPDATE products SET views = views + 1 WHERE id = $1`, id)
	return err
}

// The decrement queries only match while enough stock remains; zero rows
// affected means the reservation lost a race or stock ran out.
const decrementProductStock = `UPDATE products SET stock = stock - $2, sales = sales + $2, updated_at = now()
WHERE id = $1 AND stock >= $2`

func (q *Queries) DecrementProductStock(ctx context.Context, id int64, qty int) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementProductStock, id, qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const decrementSkuStock = `UPDATE product_skus SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

func (q *Queries) DecrementSkuStock(ctx context.Context, id int64, qty int) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementSkuStock, id, qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const restoreProductStock = `UPDATE products SET stock = stock + $2, sales = GREATEST(sales - $2, 0), updated_at = now()
WHERE id = $1`

func (q *Queries) RestoreProductStock(ctx context.Context, id int64, qty int) error {
	_, err := q.db.Exec(ctx, restoreProductStock, id, qty)
	return err
}

func (q *Queries) RestoreSkuStock(ctx context.Context, id int64, qty int) error {
	_, err := q.db.Exec(ctx, `UPDATE product_skus SET stock = stock + $2 WHERE id = $1`, id, qty)
	return err
}
