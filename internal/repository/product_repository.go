package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"threadmart/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// productSortColumns whitelists the sortable columns. An unrecognized
// sort field falls back to creation time descending; this is the only
// silently-defaulted parameter on the read path.
var productSortColumns = map[string]string{
	"createdAt": "p.created_at",
	"name":      "p.name",
	"price":     "p.price",
	"rating":    "p.rating",
	"brand":     "b.name",
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	// CreateWithFilters inserts one product and resolves or creates every
	// taxonomy reference it carries, all inside a single transaction. Any
	// failure rolls back the product row, the link rows and any taxonomy
	// rows created earlier in the same call.
	CreateWithFilters(ctx context.Context, input domain.CreateProductInput) (*domain.Product, error)
	// Update replaces the provided scalar fields and relationship sets.
	// A many-to-many set that is absent from the input is left untouched;
	// an explicit empty set clears the links.
	Update(ctx context.Context, input domain.UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// Query returns one page of matching products plus the total match
	// count before pagination.
	Query(ctx context.Context, params domain.ProductQuery) ([]*domain.Product, int, error)
	// ActiveFilters aggregates facet values and the price range over the
	// entire catalog.
	ActiveFilters(ctx context.Context) (*domain.AvailableFilters, error)
}

type productRepository struct {
	db         *sql.DB
	taxonomies TaxonomyRepository
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB, taxonomies TaxonomyRepository) ProductRepository {
	return &productRepository{db: db, taxonomies: taxonomies}
}

// CreateWithFilters resolves singular references first (subcategory
// resolution needs the category), inserts the product row, then builds
// the many-to-many sets, which need the product id for the link rows.
func (r *productRepository) CreateWithFilters(ctx context.Context, input domain.CreateProductInput) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	product := &domain.Product{
		ID:            uuid.New(),
		Name:          input.Name,
		Price:         input.Price,
		OriginalPrice: input.OriginalPrice,
		Description:   input.Description,
		Image:         input.Image,
		Images:        input.Images,
		InStock:       input.InStock,
		Rating:        input.Rating,
		ReviewCount:   input.ReviewCount,
		CreatedAt:     time.Now().UTC(),
		Sizes:         []domain.TaxonomyEntity{},
		Colors:        []domain.TaxonomyEntity{},
		Tags:          []domain.TaxonomyEntity{},
	}
	if product.Images == nil {
		product.Images = []string{}
	}

	if input.CategoryID != nil {
		category, err := r.taxonomies.FindByID(ctx, tx, domain.KindCategory, *input.CategoryID)
		if err != nil {
			if errors.Is(err, ErrTaxonomyNotFound) {
				return nil, &TaxonomyNotFoundError{Field: "categoryId", ID: *input.CategoryID}
			}
			return nil, err
		}
		product.Category = category
	} else if input.CategoryName != "" {
		category, _, err := r.taxonomies.GetOrCreateNormalized(ctx, tx, domain.KindCategory, input.CategoryName)
		if err != nil {
			return nil, err
		}
		product.Category = category
	}

	// A subcategory id must resolve even when no category accompanies it,
	// but the link is only attached in the context of a category.
	if input.SubcategoryID != nil {
		subcategory, err := r.taxonomies.FindSubcategoryByID(ctx, tx, *input.SubcategoryID)
		if err != nil {
			if errors.Is(err, ErrSubcategoryNotFound) {
				return nil, &TaxonomyNotFoundError{Field: "subcategoryId", ID: *input.SubcategoryID}
			}
			return nil, err
		}
		if product.Category != nil && subcategory.CategoryID == product.Category.ID {
			product.Subcategory = subcategory
		} else if product.Category != nil {
			// Same name, different parent: rescope under the resolved category.
			subcategory, _, err = r.taxonomies.GetOrCreateSubcategory(ctx, tx, product.Category, subcategory.Name)
			if err != nil {
				return nil, err
			}
			product.Subcategory = subcategory
		}
	} else if input.SubcategoryName != "" && product.Category != nil {
		subcategory, _, err := r.taxonomies.GetOrCreateSubcategory(ctx, tx, product.Category, input.SubcategoryName)
		if err != nil {
			return nil, err
		}
		product.Subcategory = subcategory
	}

	if input.BrandID != nil {
		brand, err := r.taxonomies.FindByID(ctx, tx, domain.KindBrand, *input.BrandID)
		if err != nil {
			if errors.Is(err, ErrTaxonomyNotFound) {
				return nil, &TaxonomyNotFoundError{Field: "brandId", ID: *input.BrandID}
			}
			return nil, err
		}
		product.Brand = brand
	} else if input.BrandName != "" {
		brand, _, err := r.taxonomies.GetOrCreateNormalized(ctx, tx, domain.KindBrand, input.BrandName)
		if err != nil {
			return nil, err
		}
		product.Brand = brand
	}

	if err := r.insertProduct(ctx, tx, product); err != nil {
		return nil, err
	}

	facets := []struct {
		kind  domain.TaxonomyKind
		field string
		ids   []uuid.UUID
		names []string
		dst   *[]domain.TaxonomyEntity
	}{
		{domain.KindSize, "sizeIds", input.SizeIDs, input.SizeNames, &product.Sizes},
		{domain.KindColor, "colorIds", input.ColorIDs, input.ColorNames, &product.Colors},
		{domain.KindTag, "tagIds", input.TagIDs, input.TagNames, &product.Tags},
	}
	for _, f := range facets {
		if len(f.ids) == 0 && len(f.names) == 0 {
			continue
		}
		set, err := r.resolveSet(ctx, tx, f.kind, f.field, f.ids, f.names)
		if err != nil {
			return nil, err
		}
		if err := r.replaceLinks(ctx, tx, f.kind, product.ID, set); err != nil {
			return nil, err
		}
		*f.dst = set
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}

	return product, nil
}

// resolveSet builds a deduplicated member set from raw names (created on
// demand under the kind's normalization rule) and/or existing ids
// (strict: an unknown id fails the whole operation).
func (r *productRepository) resolveSet(ctx context.Context, q DBTX, kind domain.TaxonomyKind, field string, ids []uuid.UUID, names []string) ([]domain.TaxonomyEntity, error) {
	set := make([]domain.TaxonomyEntity, 0, len(ids)+len(names))
	seen := make(map[uuid.UUID]struct{})

	for _, name := range names {
		entity, _, err := r.taxonomies.GetOrCreateNormalized(ctx, q, kind, name)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			// Blank after trimming.
			continue
		}
		if _, ok := seen[entity.ID]; ok {
			continue
		}
		seen[entity.ID] = struct{}{}
		set = append(set, *entity)
	}

	if len(ids) > 0 {
		resolved, err := r.taxonomies.ResolveIDs(ctx, q, kind, ids)
		if err != nil {
			var nf *TaxonomyNotFoundError
			if errors.As(err, &nf) {
				return nil, &TaxonomyNotFoundError{Field: field, ID: nf.ID}
			}
			return nil, err
		}
		for _, entity := range resolved {
			if _, ok := seen[entity.ID]; ok {
				continue
			}
			seen[entity.ID] = struct{}{}
			set = append(set, entity)
		}
	}

	return set, nil
}

// replaceLinks swaps the product's link rows for the given kind with
// exactly the resolved set.
func (r *productRepository) replaceLinks(ctx context.Context, q DBTX, kind domain.TaxonomyKind, productID uuid.UUID, set []domain.TaxonomyEntity) error {
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE product_id = $1`, kind.JoinTable())
	if _, err := q.ExecContext(ctx, deleteQuery, productID); err != nil {
		return fmt.Errorf("failed to clear %s links: %w", kind, err)
	}

	if len(set) == 0 {
		return nil
	}

	values := make([]string, len(set))
	args := make([]any, 0, len(set)*2)
	args = append(args, productID)
	for i, entity := range set {
		values[i] = fmt.Sprintf("($1, $%d)", i+2)
		args = append(args, entity.ID)
	}

	insertQuery := fmt.Sprintf(
		`INSERT INTO %s (product_id, %s) VALUES %s`,
		kind.JoinTable(), kind.JoinColumn(), strings.Join(values, ", "),
	)
	if _, err := q.ExecContext(ctx, insertQuery, args...); err != nil {
		return fmt.Errorf("failed to insert %s links: %w", kind, err)
	}

	return nil
}

func (r *productRepository) insertProduct(ctx context.Context, q DBTX, product *domain.Product) error {
	images, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	var categoryID, subcategoryID, brandID *uuid.UUID
	if product.Category != nil {
		categoryID = &product.Category.ID
	}
	if product.Subcategory != nil {
		subcategoryID = &product.Subcategory.ID
	}
	if product.Brand != nil {
		brandID = &product.Brand.ID
	}

	query := `
		INSERT INTO products (
			id, name, price, original_price, description, image, images,
			in_stock, rating, review_count, category_id, subcategory_id,
			brand_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = q.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.OriginalPrice,
		product.Description,
		product.Image,
		images,
		product.InStock,
		product.Rating,
		product.ReviewCount,
		categoryID,
		subcategoryID,
		brandID,
		product.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update applies a partial update inside one transaction. Singular
// references change only when an id is supplied; many-to-many sets are
// replaced only when present in the input.
func (r *productRepository) Update(ctx context.Context, input domain.UpdateProductInput) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	product, err := r.findByID(ctx, tx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.OriginalPrice != nil {
		product.OriginalPrice = input.OriginalPrice
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Image != nil {
		product.Image = *input.Image
	}
	if input.Images != nil {
		product.Images = *input.Images
		if product.Images == nil {
			product.Images = []string{}
		}
	}
	if input.InStock != nil {
		product.InStock = *input.InStock
	}
	if input.Rating != nil {
		product.Rating = *input.Rating
	}
	if input.ReviewCount != nil {
		product.ReviewCount = *input.ReviewCount
	}

	if input.CategoryID != nil {
		category, err := r.taxonomies.FindByID(ctx, tx, domain.KindCategory, *input.CategoryID)
		if err != nil {
			if errors.Is(err, ErrTaxonomyNotFound) {
				return nil, &TaxonomyNotFoundError{Field: "categoryId", ID: *input.CategoryID}
			}
			return nil, err
		}
		product.Category = category
	}
	if input.SubcategoryID != nil {
		subcategory, err := r.taxonomies.FindSubcategoryByID(ctx, tx, *input.SubcategoryID)
		if err != nil {
			if errors.Is(err, ErrSubcategoryNotFound) {
				return nil, &TaxonomyNotFoundError{Field: "subcategoryId", ID: *input.SubcategoryID}
			}
			return nil, err
		}
		product.Subcategory = subcategory
	}
	if input.BrandID != nil {
		brand, err := r.taxonomies.FindByID(ctx, tx, domain.KindBrand, *input.BrandID)
		if err != nil {
			if errors.Is(err, ErrTaxonomyNotFound) {
				return nil, &TaxonomyNotFoundError{Field: "brandId", ID: *input.BrandID}
			}
			return nil, err
		}
		product.Brand = brand
	}

	if err := r.updateProductRow(ctx, tx, product); err != nil {
		return nil, err
	}

	facets := []struct {
		kind  domain.TaxonomyKind
		field string
		ids   *[]uuid.UUID
		dst   *[]domain.TaxonomyEntity
	}{
		{domain.KindSize, "sizeIds", input.SizeIDs, &product.Sizes},
		{domain.KindColor, "colorIds", input.ColorIDs, &product.Colors},
		{domain.KindTag, "tagIds", input.TagIDs, &product.Tags},
	}
	for _, f := range facets {
		if f.ids == nil {
			continue
		}
		set, err := r.resolveSet(ctx, tx, f.kind, f.field, *f.ids, nil)
		if err != nil {
			return nil, err
		}
		if set == nil {
			set = []domain.TaxonomyEntity{}
		}
		if err := r.replaceLinks(ctx, tx, f.kind, product.ID, set); err != nil {
			return nil, err
		}
		*f.dst = set
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}

	return product, nil
}

func (r *productRepository) updateProductRow(ctx context.Context, q DBTX, product *domain.Product) error {
	images, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	var categoryID, subcategoryID, brandID *uuid.UUID
	if product.Category != nil {
		categoryID = &product.Category.ID
	}
	if product.Subcategory != nil {
		subcategoryID = &product.Subcategory.ID
	}
	if product.Brand != nil {
		brandID = &product.Brand.ID
	}

	query := `
		UPDATE products
		SET name = $2, price = $3, original_price = $4, description = $5,
		    image = $6, images = $7, in_stock = $8, rating = $9,
		    review_count = $10, category_id = $11, subcategory_id = $12,
		    brand_id = $13
		WHERE id = $1
	`

	result, err := q.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.OriginalPrice,
		product.Description,
		product.Image,
		images,
		product.InStock,
		product.Rating,
		product.ReviewCount,
		categoryID,
		subcategoryID,
		brandID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product and its link rows (cascade)
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product with its taxonomy references embedded
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findByID(ctx, r.db, id)
}

const productSelectColumns = `
	p.id, p.name, p.price, p.original_price, p.description, p.image,
	p.images, p.in_stock, p.rating, p.review_count, p.created_at,
	c.id, c.name,
	sc.id, sc.name, sc.category_id, scc.name,
	b.id, b.name
`

const productFromClause = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN subcategories sc ON sc.id = p.subcategory_id
	LEFT JOIN categories scc ON scc.id = sc.category_id
	LEFT JOIN brands b ON b.id = p.brand_id
`

func (r *productRepository) findByID(ctx context.Context, q DBTX, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productSelectColumns + productFromClause + ` WHERE p.id = $1`

	product, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	if err := r.loadLinkSets(ctx, q, []*domain.Product{product}); err != nil {
		return nil, err
	}

	return product, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{
		Sizes:  []domain.TaxonomyEntity{},
		Colors: []domain.TaxonomyEntity{},
		Tags:   []domain.TaxonomyEntity{},
	}

	var (
		originalPrice sql.NullFloat64
		images        []byte
		catID         uuid.NullUUID
		catName       sql.NullString
		subID         uuid.NullUUID
		subName       sql.NullString
		subCatID      uuid.NullUUID
		subCatName    sql.NullString
		brandID       uuid.NullUUID
		brandName     sql.NullString
	)

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&originalPrice,
		&product.Description,
		&product.Image,
		&images,
		&product.InStock,
		&product.Rating,
		&product.ReviewCount,
		&product.CreatedAt,
		&catID,
		&catName,
		&subID,
		&subName,
		&subCatID,
		&subCatName,
		&brandID,
		&brandName,
	)
	if err != nil {
		return nil, err
	}

	if originalPrice.Valid {
		product.OriginalPrice = &originalPrice.Float64
	}
	product.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &product.Images); err != nil {
			return nil, fmt.Errorf("failed to decode images: %w", err)
		}
	}
	if catID.Valid {
		product.Category = &domain.TaxonomyEntity{ID: catID.UUID, Name: catName.String}
	}
	if subID.Valid {
		product.Subcategory = &domain.Subcategory{
			ID:           subID.UUID,
			Name:         subName.String,
			CategoryID:   subCatID.UUID,
			CategoryName: subCatName.String,
		}
	}
	if brandID.Valid {
		product.Brand = &domain.TaxonomyEntity{ID: brandID.UUID, Name: brandName.String}
	}

	return product, nil
}

// loadLinkSets fills the size/color/tag sets for a batch of products with
// one query per facet.
func (r *productRepository) loadLinkSets(ctx context.Context, q DBTX, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Product, len(products))
	placeholders := make([]string, len(products))
	args := make([]any, len(products))
	for i, product := range products {
		byID[product.ID] = product
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = product.ID
	}
	in := strings.Join(placeholders, ", ")

	for _, kind := range []domain.TaxonomyKind{domain.KindSize, domain.KindColor, domain.KindTag} {
		query := fmt.Sprintf(`
			SELECT j.product_id, t.id, t.name
			FROM %s j
			JOIN %s t ON t.id = j.%s
			WHERE j.product_id IN (%s)
			ORDER BY t.name ASC
		`, kind.JoinTable(), kind.Table(), kind.JoinColumn(), in)

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to load %s links: %w", kind, err)
		}

		for rows.Next() {
			var productID uuid.UUID
			var entity domain.TaxonomyEntity
			if err := rows.Scan(&productID, &entity.ID, &entity.Name); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan %s link: %w", kind, err)
			}
			product := byID[productID]
			switch kind {
			case domain.KindSize:
				product.Sizes = append(product.Sizes, entity)
			case domain.KindColor:
				product.Colors = append(product.Colors, entity)
			case domain.KindTag:
				product.Tags = append(product.Tags, entity)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("error iterating %s links: %w", kind, err)
		}
		rows.Close()
	}

	return nil
}

// Query builds one WHERE clause shared by the count and page queries.
// Multi-valued size/color filters use EXISTS against the link tables, so
// a product with several matching members still appears exactly once.
func (r *productRepository) Query(ctx context.Context, params domain.ProductQuery) ([]*domain.Product, int, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Search != "" {
		p := arg("%" + params.Search + "%")
		conditions = append(conditions, fmt.Sprintf(`(
			p.name ILIKE %[1]s
			OR p.description ILIKE %[1]s
			OR b.name ILIKE %[1]s
			OR EXISTS (
				SELECT 1 FROM product_tags pt
				JOIN tags t ON t.id = pt.tag_id
				WHERE pt.product_id = p.id AND t.name ILIKE %[1]s
			)
		)`, p))
	}
	if params.Category != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) = LOWER(%s)", arg(params.Category)))
	}
	if params.Subcategory != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(sc.name) = LOWER(%s)", arg(params.Subcategory)))
	}
	if len(params.Brands) > 0 {
		placeholders := make([]string, len(params.Brands))
		for i, brand := range params.Brands {
			placeholders[i] = arg(brand)
		}
		conditions = append(conditions, fmt.Sprintf("b.name IN (%s)", strings.Join(placeholders, ", ")))
	}
	for _, facet := range []struct {
		kind   domain.TaxonomyKind
		values []string
	}{
		{domain.KindSize, params.Sizes},
		{domain.KindColor, params.Colors},
	} {
		if len(facet.values) == 0 {
			continue
		}
		placeholders := make([]string, len(facet.values))
		for i, value := range facet.values {
			placeholders[i] = arg(value)
		}
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM %s j
			JOIN %s t ON t.id = j.%s
			WHERE j.product_id = p.id AND t.name IN (%s)
		)`, facet.kind.JoinTable(), facet.kind.Table(), facet.kind.JoinColumn(), strings.Join(placeholders, ", ")))
	}
	if params.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price >= %s", arg(*params.MinPrice)))
	}
	if params.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price <= %s", arg(*params.MaxPrice)))
	}
	if params.InStock != nil {
		conditions = append(conditions, fmt.Sprintf("p.in_stock = %s", arg(*params.InStock)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := `SELECT COUNT(*)` + productFromClause + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	sortColumn, ok := productSortColumns[params.SortField]
	direction := "ASC"
	if !ok {
		sortColumn = "p.created_at"
		direction = "DESC"
	} else if params.SortDesc {
		direction = "DESC"
	}

	offset := (params.Page - 1) * params.Limit
	query := fmt.Sprintf(
		`SELECT %s %s %s ORDER BY %s %s, p.id ASC LIMIT %s OFFSET %s`,
		productSelectColumns, productFromClause, whereClause,
		sortColumn, direction, arg(params.Limit), arg(offset),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	if err := r.loadLinkSets(ctx, r.db, products); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ActiveFilters aggregates facet values linked to at least one product
// and the global price range. Results ignore any active query filters.
func (r *productRepository) ActiveFilters(ctx context.Context) (*domain.AvailableFilters, error) {
	filters := &domain.AvailableFilters{}

	var err error
	if filters.Categories, err = r.taxonomies.ListWithProducts(ctx, domain.KindCategory); err != nil {
		return nil, err
	}
	if filters.Subcategories, err = r.taxonomies.ListSubcategoriesWithProducts(ctx); err != nil {
		return nil, err
	}
	if filters.Brands, err = r.taxonomies.ListWithProducts(ctx, domain.KindBrand); err != nil {
		return nil, err
	}
	if filters.Sizes, err = r.taxonomies.ListWithProducts(ctx, domain.KindSize); err != nil {
		return nil, err
	}
	if filters.Colors, err = r.taxonomies.ListWithProducts(ctx, domain.KindColor); err != nil {
		return nil, err
	}
	if filters.Tags, err = r.taxonomies.ListWithProducts(ctx, domain.KindTag); err != nil {
		return nil, err
	}

	query := `SELECT COALESCE(MIN(price), 0), COALESCE(MAX(price), 0) FROM products`
	if err := r.db.QueryRowContext(ctx, query).Scan(&filters.PriceRange.Min, &filters.PriceRange.Max); err != nil {
		return nil, fmt.Errorf("failed to aggregate price range: %w", err)
	}

	return filters, nil
}
