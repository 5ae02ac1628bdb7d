package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ProductSort names an allowed ordering for catalog listings.
type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortRating    ProductSort = "rating"
)

var sortClauses = map[ProductSort]string{
	SortNewest:    "created_at DESC",
	SortPriceAsc:  "price ASC",
	SortPriceDesc: "price DESC",
	SortRating:    "rating DESC, rating_count DESC",
}

// ParseProductSort maps raw query input onto the sort whitelist.
func ParseProductSort(value string) (ProductSort, bool) {
	sort := ProductSort(strings.ToLower(strings.TrimSpace(value)))
	if sort == "" {
		return SortNewest, true
	}
	_, ok := sortClauses[sort]
	return sort, ok
}

// ProductFilter narrows catalog listings. The zero value matches everything
// and sorts newest first.
type ProductFilter struct {
	Category *enums.ProductCategory
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  bool
	Search   string
	Sort     ProductSort
}

// Apply compiles the filter onto the query.
func (f ProductFilter) Apply(query *gorm.DB) *gorm.DB {
	if f.Category != nil {
		query = query.Where("category = ?", *f.Category)
	}
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}
	if f.InStock {
		query = query.Where("stock > 0")
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	return query
}

func (f ProductFilter) orderClause() string {
	if clause, ok := sortClauses[f.Sort]; ok {
		return clause
	}
	return sortClauses[SortNewest]
}
