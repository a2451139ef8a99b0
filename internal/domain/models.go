package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole rejects anything outside the closed set of roles.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", Errorf(ErrInvalidInput, "unknown role %q", s)
}

type UserStatus string

const (
	UserActive UserStatus = "active"
	UserBanned UserStatus = "banned"
)

type User struct {
	ID           int64      `json:"id"`
	Username     *string    `json:"username"`
	Phone        string     `json:"phone"`
	Email        *string    `json:"email"`
	PasswordHash string     `json:"-"`
	Nickname     string     `json:"nickname"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId"`
	Sort     int    `json:"sort"`
}

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

type Product struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"categoryId"`
	Name        string          `json:"name"`
	SubTitle    string          `json:"subTitle"`
	Images      []string        `json:"images"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Sales       int             `json:"sales"`
	Views       int             `json:"views"`
	Status      ProductStatus   `json:"status"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Skus        []ProductSku    `json:"skus,omitempty"`
}

func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p *Product) FindSku(id int64) (*ProductSku, bool) {
	for i := range p.Skus {
		if p.Skus[i].ID == id {
			return &p.Skus[i], true
		}
	}
	return nil, false
}

type ProductSku struct {
	ID        int64             `json:"id"`
	ProductID int64             `json:"productId"`
	Specs     map[string]string `json:"specs"`
	Price     decimal.Decimal   `json:"price"`
	Stock     int               `json:"stock"`
}

type Address struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Province  string    `json:"province"`
	City      string    `json:"city"`
	District  string    `json:"district"`
	Detail    string    `json:"detail"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot copies the fields an order keeps so that later edits to the
// address book do not rewrite order history.
func (a *Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		Name:     a.Name,
		Phone:    a.Phone,
		Province: a.Province,
		City:     a.City,
		District: a.District,
		Detail:   a.Detail,
	}
}

type AddressSnapshot struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Province string `json:"province"`
	City     string `json:"city"`
	District string `json:"district"`
	Detail   string `json:"detail"`
}

type Page struct {
	Page     int
	PageSize int
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Normalize clamps paging input to sane bounds.
func (p Page) Normalize(defaultSize int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultSize
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	return p
}

type PageResult[T any] struct {
	Items    []T
	Total    int64
	Page     int
	PageSize int
}
