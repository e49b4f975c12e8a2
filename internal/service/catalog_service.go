package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"threadmart/internal/domain"
	"threadmart/internal/repository"

	"github.com/google/uuid"
)

const (
	// DefaultPageSize is applied when no limit parameter is supplied
	DefaultPageSize = 12
	// MaxPageSize is the upper clamp for the limit parameter
	MaxPageSize = 100
)

// ListParams is the raw query-parameter bag for the product list
// endpoint, exactly as received on the wire.
type ListParams struct {
	Search        string
	Category      string
	Subcategory   string
	Brands        string
	Sizes         string
	Colors        string
	MinPrice      string
	MaxPrice      string
	InStock       string
	SortField     string
	SortDirection string
	Page          string
	Limit         string
}

// ProductPage is one page of query results plus the pre-pagination total.
type ProductPage struct {
	Items []*domain.Product `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// CatalogService defines the business logic around products and their
// taxonomy entities.
type CatalogService interface {
	CreateProduct(ctx context.Context, input domain.CreateProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, input domain.UpdateProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, params ListParams) (*ProductPage, error)
	Filters(ctx context.Context) (*domain.AvailableFilters, error)

	ListTaxonomy(ctx context.Context, kind domain.TaxonomyKind) ([]domain.TaxonomyEntity, error)
	CreateTaxonomy(ctx context.Context, kind domain.TaxonomyKind, name string) (*domain.TaxonomyEntity, error)
	DeleteTaxonomy(ctx context.Context, kind domain.TaxonomyKind, id uuid.UUID) error
	ListSubcategories(ctx context.Context) ([]domain.Subcategory, error)
}

type catalogService struct {
	products   repository.ProductRepository
	taxonomies repository.TaxonomyRepository
	// db is used for taxonomy upserts that run outside a transaction.
	db repository.DBTX
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(products repository.ProductRepository, taxonomies repository.TaxonomyRepository, db repository.DBTX) CatalogService {
	return &catalogService{
		products:   products,
		taxonomies: taxonomies,
		db:         db,
	}
}

// CreateProduct rejects ambiguous facet references before any store
// access, then delegates to the transactional repository orchestrator.
func (s *catalogService) CreateProduct(ctx context.Context, input domain.CreateProductInput) (*domain.Product, error) {
	if rej := ambiguousFacets(input); rej != nil {
		return nil, rej
	}

	product, err := s.products.CreateWithFilters(ctx, input)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	return product, nil
}

// ambiguousFacets collects every facet for which both an identifier and a
// name were supplied. All conflicts are reported at once, not just the
// first.
func ambiguousFacets(input domain.CreateProductInput) *Rejection {
	rej := newRejection(RejectionInvalid)

	if input.CategoryID != nil && input.CategoryName != "" {
		rej.Fields["category"] = "provide either categoryId or categoryName, not both"
	}
	if input.SubcategoryID != nil && input.SubcategoryName != "" {
		rej.Fields["subcategory"] = "provide either subcategoryId or subcategoryName, not both"
	}
	if input.BrandID != nil && input.BrandName != "" {
		rej.Fields["brand"] = "provide either brandId or brandName, not both"
	}
	if len(input.SizeIDs) > 0 && len(input.SizeNames) > 0 {
		rej.Fields["sizes"] = "provide either sizeIds or sizeNames, not both"
	}
	if len(input.ColorIDs) > 0 && len(input.ColorNames) > 0 {
		rej.Fields["colors"] = "provide either colorIds or colorNames, not both"
	}
	if len(input.TagIDs) > 0 && len(input.TagNames) > 0 {
		rej.Fields["tags"] = "provide either tagIds or tagNames, not both"
	}

	if len(rej.Fields) == 0 {
		return nil
	}
	return rej
}

// UpdateProduct applies a partial update; taxonomy references are
// id-based on this path.
func (s *catalogService) UpdateProduct(ctx context.Context, input domain.UpdateProductInput) (*domain.Product, error) {
	product, err := s.products.Update(ctx, input)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return product, nil
}

// DeleteProduct removes a product by ID
func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return mapRepositoryError(err)
	}
	return nil
}

// GetProduct retrieves a product by ID with taxonomy references embedded
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return product, nil
}

// ListProducts parses and validates the raw parameter bag, then runs the
// filtered query. Every unparseable parameter is reported; parsing never
// silently ignores a bad value, except the documented sortField fallback.
func (s *catalogService) ListProducts(ctx context.Context, params ListParams) (*ProductPage, error) {
	query, rej := parseListParams(params)
	if rej != nil {
		return nil, rej
	}

	items, total, err := s.products.Query(ctx, *query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &ProductPage{
		Items: items,
		Total: total,
		Page:  query.Page,
		Limit: query.Limit,
	}, nil
}

func parseListParams(params ListParams) (*domain.ProductQuery, *Rejection) {
	rej := newRejection(RejectionInvalid)

	query := &domain.ProductQuery{
		Search:      strings.TrimSpace(params.Search),
		Category:    strings.TrimSpace(params.Category),
		Subcategory: strings.TrimSpace(params.Subcategory),
		Brands:      splitList(params.Brands),
		Sizes:       splitList(params.Sizes),
		Colors:      splitList(params.Colors),
		SortField:   params.SortField,
		Page:        1,
		Limit:       DefaultPageSize,
	}

	if params.MinPrice != "" {
		v, err := strconv.ParseFloat(params.MinPrice, 64)
		if err != nil {
			rej.Fields["minPrice"] = "must be a number"
		} else {
			query.MinPrice = &v
		}
	}
	if params.MaxPrice != "" {
		v, err := strconv.ParseFloat(params.MaxPrice, 64)
		if err != nil {
			rej.Fields["maxPrice"] = "must be a number"
		} else {
			query.MaxPrice = &v
		}
	}
	if params.InStock != "" {
		v, err := strconv.ParseBool(params.InStock)
		if err != nil {
			rej.Fields["inStock"] = "must be true or false"
		} else {
			query.InStock = &v
		}
	}
	if params.Page != "" {
		v, err := strconv.Atoi(params.Page)
		if err != nil {
			rej.Fields["page"] = "must be an integer"
		} else {
			query.Page = v
		}
	}
	if params.Limit != "" {
		v, err := strconv.Atoi(params.Limit)
		if err != nil {
			rej.Fields["limit"] = "must be an integer"
		} else {
			query.Limit = v
		}
	}

	if len(rej.Fields) > 0 {
		return nil, rej
	}

	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = 1
	}
	if query.Limit > MaxPageSize {
		query.Limit = MaxPageSize
	}

	// Descending unless an explicit non-desc direction is given; an
	// unrecognized sortField overrides this to created_at descending in
	// the repository.
	query.SortDesc = params.SortDirection == "" || params.SortDirection == "desc"

	return query, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Filters returns every facet value linked to at least one product plus
// the global price range.
func (s *catalogService) Filters(ctx context.Context) (*domain.AvailableFilters, error) {
	filters, err := s.products.ActiveFilters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate filters: %w", err)
	}
	return filters, nil
}

// ListTaxonomy retrieves all entities of the given kind
func (s *catalogService) ListTaxonomy(ctx context.Context, kind domain.TaxonomyKind) ([]domain.TaxonomyEntity, error) {
	entities, err := s.taxonomies.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	return entities, nil
}

// CreateTaxonomy performs a normalizing upsert of a single entity
func (s *catalogService) CreateTaxonomy(ctx context.Context, kind domain.TaxonomyKind, name string) (*domain.TaxonomyEntity, error) {
	entity, _, err := s.taxonomies.GetOrCreateNormalized(ctx, s.db, kind, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	if entity == nil {
		return nil, rejectField(RejectionInvalid, "name", "must not be blank")
	}
	return entity, nil
}

// DeleteTaxonomy removes an entity; deletion is refused while any product
// references it.
func (s *catalogService) DeleteTaxonomy(ctx context.Context, kind domain.TaxonomyKind, id uuid.UUID) error {
	if err := s.taxonomies.Delete(ctx, kind, id); err != nil {
		return mapRepositoryError(err)
	}
	return nil
}

// ListSubcategories retrieves all subcategories with parent category names
func (s *catalogService) ListSubcategories(ctx context.Context) ([]domain.Subcategory, error) {
	subcategories, err := s.taxonomies.ListSubcategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	return subcategories, nil
}

// mapRepositoryError translates repository sentinels into structured
// rejections; anything else propagates as an internal failure.
func mapRepositoryError(err error) error {
	var nf *repository.TaxonomyNotFoundError
	if errors.As(err, &nf) {
		return rejectField(RejectionNotFound, nf.Field, "referenced entity not found")
	}

	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return rejectField(RejectionNotFound, "id", "product not found")
	case errors.Is(err, repository.ErrTaxonomyNotFound):
		return rejectField(RejectionNotFound, "id", "entity not found")
	case errors.Is(err, repository.ErrSubcategoryNotFound):
		return rejectField(RejectionNotFound, "id", "subcategory not found")
	case errors.Is(err, repository.ErrTaxonomyInUse):
		return rejectField(RejectionConflict, "id", "entity is referenced by products")
	}

	return err
}
