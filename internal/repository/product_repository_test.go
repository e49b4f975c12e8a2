package repository

import (
	"context"
	"errors"
	"testing"

	"threadmart/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogRepos() (ProductRepository, TaxonomyRepository) {
	taxonomies := NewTaxonomyRepository(testDB)
	return NewProductRepository(testDB, taxonomies), taxonomies
}

func TestCreateWithFiltersNormalizesNames(t *testing.T) {
	resetCatalog(t)
	products, _ := newCatalogRepos()
	ctx := context.Background()

	product, err := products.CreateWithFilters(ctx, domain.CreateProductInput{
		Name:         "Trail Runner",
		Price:        129.50,
		InStock:      true,
		CategoryName: "  men's shoes ",
		BrandName:    "salomon",
		SizeNames:    []string{" 42 ", "43"},
		ColorNames:   []string{"deep blue"},
		TagNames:     []string{" Trail ", "RUNNING"},
	})
	require.NoError(t, err)

	require.NotNil(t, product.Category)
	assert.Equal(t, "Men'S Shoes", product.Category.Name)
	require.NotNil(t, product.Brand)
	assert.Equal(t, "Salomon", product.Brand.Name)

	sizeNames := []string{product.Sizes[0].Name, product.Sizes[1].Name}
	assert.ElementsMatch(t, []string{"42", "43"}, sizeNames)

	require.Len(t, product.Colors, 1)
	assert.Equal(t, "Deep Blue", product.Colors[0].Name)

	tagNames := []string{product.Tags[0].Name, product.Tags[1].Name}
	assert.ElementsMatch(t, []string{"trail", "running"}, tagNames)

	// The persisted row round-trips with the same references.
	loaded, err := products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Category.ID, loaded.Category.ID)
	assert.Len(t, loaded.Sizes, 2)
}

func TestCreateWithFiltersDeduplicatesNames(t *testing.T) {
	resetCatalog(t)
	products, _ := newCatalogRepos()
	ctx := context.Background()

	// "m", " M " and "M" are one size after normalization.
	product, err := products.CreateWithFilters(ctx, domain.CreateProductInput{
		Name:      "Hoodie",
		Price:     49.00,
		SizeNames: []string{"m", " M ", "M", "l"},
	})
	require.NoError(t, err)
	assert.Len(t, product.Sizes, 2)

	var count int
	require.NoError(t, testDB.QueryRow(`SELECT COUNT(*) FROM sizes`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestCreateWithFiltersRollsBackOnUnknownID(t *testing.T) {
	resetCatalog(t)
	products, _ := newCatalogRepos()
	ctx := context.Background()

	_, err := products.CreateWithFilters(ctx, domain.CreateProductInput{
		Name:         "Ghost Product",
		Price:        10,
		CategoryName: "phantom gear",
		SizeIDs:      []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)

	var nf *TaxonomyNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "sizeIds", nf.Field)

	// The failed insert leaves nothing behind, including the category
	// created earlier in the same transaction.
	var count int
	require.NoError(t, testDB.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&count))
	assert.Equal(t, 0, count)
	require.NoError(t, testDB.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestCreateWithFiltersResolvesExistingIDs(t *testing.T) {
	resetCatalog(t)
	products, taxonomies := newCatalogRepos()
	ctx := context.Background()

	brand, _, err := taxonomies.GetOrCreateNormalized(ctx, testDB, domain.KindBrand, "asics")
	require.NoError(t, err)
	size, _, err := taxonomies.GetOrCreateNormalized(ctx, testDB, domain.KindSize, "44")
	require.NoError(t, err)

	product, err := products.CreateWithFilters(ctx, domain.CreateProductInput{
		Name:    "Gel Kayano",
		Price:   159.99,
		BrandID: &brand.ID,
		SizeIDs: []uuid.UUID{size.ID},
	})
	require.NoError(t, err)

	require.NotNil(t, product.Brand)
	assert.Equal(t, brand.ID, product.Brand.ID)
	require.Len(t, product.Sizes, 1)
	assert.Equal(t, size.ID, product.Sizes[0].ID)
}

func TestUpdateProductFacetSets(t *testing.T) {
	resetCatalog(t)
	products, taxonomies := newCatalogRepos()
	ctx := context.Background()

	product, err := products.CreateWithFilters(ctx, domain.CreateProductInput{
		Name:       "Jacket",
		Price:      120,
		ColorNames: []string{"red", "black"},
		SizeNames:  []string{"s"},
	})
	require.NoError(t, err)

	// A nil set leaves links untouched while scalars update.
	newPrice := 99.0
	updated, err := products.Update(ctx, domain.UpdateProductInput{
		ID:    product.ID,
		Price: &newPrice,
	})
	require.NoError(t, err)
	assert.Equal(t, 99.0, updated.Price)
	assert.Len(t, updated.Colors, 2)
	assert.Len(t, updated.Sizes, 1)

	// An explicit set replaces the links entirely.
	green, _, err := taxonomies.GetOrCreateNormalized(ctx, testDB, domain.KindColor, "green")
	require.NoError(t, err)
	colorSet := []uuid.UUID{green.ID}
	updated, err = products.Update(ctx, domain.UpdateProductInput{
		ID:       product.ID,
		ColorIDs: &colorSet,
	})
	require.NoError(t, err)
	require.Len(t, updated.Colors, 1)
	assert.Equal(t, "Green", updated.Colors[0].Name)

	// An empty set clears the links.
	empty := []uuid.UUID{}
	updated, err = products.Update(ctx, domain.UpdateProductInput{
		ID:       product.ID,
		ColorIDs: &empty,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Colors)
	assert.Len(t, updated.Sizes, 1)

	// Unknown facet ids reject the whole update.
	bogus := []uuid.UUID{uuid.New()}
	_, err = products.Update(ctx, domain.UpdateProductInput{
		ID:      product.ID,
		SizeIDs: &bogus,
	})
	require.Error(t, err)

	var nf *TaxonomyNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "sizeIds", nf.Field)

	// The failed update left the previous links in place.
	current, err := products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, current.Sizes, 1)
}

func seedQueryFixtures(t *testing.T, products ProductRepository) {
	t.Helper()
	ctx := context.Background()

	fixtures := []domain.CreateProductInput{
		{
			Name: "Air Zoom", Price: 120, InStock: true, Rating: 4.5,
			CategoryName: "shoes", BrandName: "nike",
			SizeNames: []string{"42", "43"}, ColorNames: []string{"white"},
			TagNames: []string{"running"},
		},
		{
			Name: "Ultraboost", Price: 180, InStock: true, Rating: 4.8,
			CategoryName: "shoes", BrandName: "adidas",
			SizeNames: []string{"42"}, ColorNames: []string{"black"},
			TagNames: []string{"running", "comfort"},
		},
		{
			Name: "Everyday Tee", Price: 25, InStock: false, Rating: 3.9,
			CategoryName: "clothing", BrandName: "uniqlo",
			SizeNames: []string{"M", "L"}, ColorNames: []string{"white", "black"},
			TagNames: []string{"basics"},
		},
	}

	for _, f := range fixtures {
		_, err := products.CreateWithFilters(ctx, f)
		require.NoError(t, err)
	}
}

func TestQueryFilters(t *testing.T) {
	resetCatalog(t)
	products, _ := newCatalogRepos()
	ctx := context.Background()
	seedQueryFixtures(t, products)

	// Category filter is exact but case-insensitive.
	items, total, err := products.Query(ctx, domain.ProductQuery{
		Category: "SHOES", Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	// Brand filter accepts multiple values.
	_, total, err = products.Query(ctx, domain.ProductQuery{
		Brands: []string{"Nike", "Uniqlo"}, Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// A product matching several selected sizes still counts once.
	items, total, err = products.Query(ctx, domain.ProductQuery{
		Sizes: []string{"42", "43"}, Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	// Price bounds are inclusive.
	minP, maxP := 25.0, 120.0
	_, total, err = products.Query(ctx, domain.ProductQuery{
		MinPrice: &minP, MaxPrice: &maxP, Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// Stock filter.
	inStock := false
	_, total, err = products.Query(ctx, domain.ProductQuery{
		InStock: &inStock, Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// Filters compose with AND.
	_, total, err = products.Query(ctx, domain.ProductQuery{
		Category: "shoes", Brands: []string{"Adidas"}, Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestQuerySearchSpansNameBrandAndTags(t *testing.T) {
	resetCatalog(t)
	products, _ := newCatalogRepos()
	ctx := context.Background()
	seedQueryFixtures(t, products)

	// Matches the product name.
	_, total, err := products.Query(ctx, domain.ProductQuery{
		Search: "zoom", Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// Matches the brand name.
	_, total, err = products.Query(ctx, domain.ProductQuery{
		Search: "adidas", Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// Matches a tag and counts each product once despite two tag rows.
	items, total, err := products.Query(ctx, domain.ProductQuery{
		Search: "running", Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
}

func TestQuerySortingAndPagination(t *testing.T) {
	resetCatalog(t)
	products, _ := newCatalogRepos()
	ctx := context.Background()
	seedQueryFixtures(t, products)

	items, total, err := products.Query(ctx, domain.ProductQuery{
		SortField: "price", SortDesc: false, Page: 1, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Everyday Tee", items[0].Name)
	assert.Equal(t, "Air Zoom", items[1].Name)

	// The second page carries the remainder; total stays the same.
	items, total, err = products.Query(ctx, domain.ProductQuery{
		SortField: "price", SortDesc: false, Page: 2, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Ultraboost", items[0].Name)

	// An unknown sort field falls back to newest first instead of failing.
	items, _, err = products.Query(ctx, domain.ProductQuery{
		SortField: "sneakiness; DROP TABLE products", Page: 1, Limit: 12,
	})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestActiveFilters(t *testing.T) {
	resetCatalog(t)
	products, taxonomies := newCatalogRepos()
	ctx := context.Background()
	seedQueryFixtures(t, products)

	// An unlinked brand never shows up in the aggregate.
	_, _, err := taxonomies.GetOrCreateNormalized(ctx, testDB, domain.KindBrand, "phantom")
	require.NoError(t, err)

	filters, err := products.ActiveFilters(ctx)
	require.NoError(t, err)

	brandNames := make([]string, 0, len(filters.Brands))
	for _, b := range filters.Brands {
		brandNames = append(brandNames, b.Name)
	}
	assert.ElementsMatch(t, []string{"Nike", "Adidas", "Uniqlo"}, brandNames)

	assert.Equal(t, 25.0, filters.PriceRange.Min)
	assert.Equal(t, 180.0, filters.PriceRange.Max)
}

func TestActiveFiltersEmptyCatalog(t *testing.T) {
	resetCatalog(t)
	products, _ := newCatalogRepos()

	filters, err := products.ActiveFilters(context.Background())
	require.NoError(t, err)

	assert.Empty(t, filters.Brands)
	assert.Empty(t, filters.Categories)
	assert.Equal(t, 0.0, filters.PriceRange.Min)
	assert.Equal(t, 0.0, filters.PriceRange.Max)
}

func TestDeleteProduct(t *testing.T) {
	resetCatalog(t)
	products, _ := newCatalogRepos()
	ctx := context.Background()

	product, err := products.CreateWithFilters(ctx, domain.CreateProductInput{
		Name:      "Disposable",
		Price:     5,
		TagNames:  []string{"clearance"},
		SizeNames: []string{"S"},
	})
	require.NoError(t, err)

	require.NoError(t, products.Delete(ctx, product.ID))

	_, err = products.FindByID(ctx, product.ID)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	// Link rows go with the product, the taxonomy rows stay.
	var count int
	require.NoError(t, testDB.QueryRow(`SELECT COUNT(*) FROM product_tags`).Scan(&count))
	assert.Equal(t, 0, count)
	require.NoError(t, testDB.QueryRow(`SELECT COUNT(*) FROM tags`).Scan(&count))
	assert.Equal(t, 1, count)

	assert.True(t, errors.Is(products.Delete(ctx, uuid.New()), ErrProductNotFound))
}
