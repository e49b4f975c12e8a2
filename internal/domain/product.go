package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog item with its taxonomy references resolved for
// response shaping.
type Product struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Description   string    `json:"description"`
	Image         string    `json:"image"`
	Images        []string  `json:"images"`
	InStock       bool      `json:"inStock"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"reviewCount"`
	CreatedAt     time.Time `json:"createdAt"`

	Category    *TaxonomyEntity  `json:"category,omitempty"`
	Subcategory *Subcategory     `json:"subcategory,omitempty"`
	Brand       *TaxonomyEntity  `json:"brand,omitempty"`
	Sizes       []TaxonomyEntity `json:"sizes"`
	Colors      []TaxonomyEntity `json:"colors"`
	Tags        []TaxonomyEntity `json:"tags"`
}

// CreateProductInput carries validated scalar fields plus taxonomy
// references for product creation. For every facet the caller supplies
// either names (created on demand) or ids (must already exist), never
// both.
type CreateProductInput struct {
	Name          string
	Price         float64
	OriginalPrice *float64
	Description   string
	Image         string
	Images        []string
	InStock       bool
	Rating        float64
	ReviewCount   int

	CategoryID      *uuid.UUID
	CategoryName    string
	SubcategoryID   *uuid.UUID
	SubcategoryName string
	BrandID         *uuid.UUID
	BrandName       string

	SizeIDs    []uuid.UUID
	SizeNames  []string
	ColorIDs   []uuid.UUID
	ColorNames []string
	TagIDs     []uuid.UUID
	TagNames   []string
}

// UpdateProductInput carries a partial product update. Nil pointers leave
// the corresponding field untouched. A non-nil many-to-many set replaces
// the product's links entirely; a pointer to an empty slice clears them.
type UpdateProductInput struct {
	ID uuid.UUID

	Name          *string
	Price         *float64
	OriginalPrice *float64
	Description   *string
	Image         *string
	Images        *[]string
	InStock       *bool
	Rating        *float64
	ReviewCount   *int

	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
	BrandID       *uuid.UUID

	SizeIDs  *[]uuid.UUID
	ColorIDs *[]uuid.UUID
	TagIDs   *[]uuid.UUID
}

// ProductQuery is a parsed, validated set of filter parameters. Zero
// values mean "no filter". All filters compose with AND; the search term
// matches name, description, brand name or any tag name.
type ProductQuery struct {
	Search      string
	Category    string
	Subcategory string
	Brands      []string
	Sizes       []string
	Colors      []string
	MinPrice    *float64
	MaxPrice    *float64
	InStock     *bool

	SortField string
	SortDesc  bool

	Page  int
	Limit int
}

// PriceRange is the global min/max product price across the catalog.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AvailableFilters lists every facet value linked to at least one
// product, plus the catalog-wide price range. It always describes the
// whole catalog, never a filtered subset.
type AvailableFilters struct {
	Categories    []TaxonomyEntity `json:"categories"`
	Subcategories []Subcategory    `json:"subcategories"`
	Brands        []TaxonomyEntity `json:"brands"`
	Sizes         []TaxonomyEntity `json:"sizes"`
	Colors        []TaxonomyEntity `json:"colors"`
	Tags          []TaxonomyEntity `json:"tags"`
	PriceRange    PriceRange       `json:"priceRange"`
}
