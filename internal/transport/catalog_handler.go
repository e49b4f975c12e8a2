package transport

import (
	"errors"
	"net/http"

	"threadmart/internal/domain"
	"threadmart/internal/middleware"
	"threadmart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProductRequest represents the product creation payload. Each
// taxonomy facet accepts either ids of existing entities or names that
// are created on demand.
type CreateProductRequest struct {
	Name          string   `json:"name" validate:"required"`
	Price         float64  `json:"price" validate:"gte=0"`
	OriginalPrice *float64 `json:"originalPrice" validate:"omitempty,gte=0"`
	Description   string   `json:"description"`
	Image         string   `json:"image"`
	Images        []string `json:"images"`
	InStock       bool     `json:"inStock"`
	Rating        float64  `json:"rating" validate:"gte=0,lte=5"`
	ReviewCount   int      `json:"reviewCount" validate:"gte=0"`

	CategoryID      *string `json:"categoryId" validate:"omitempty,uuid"`
	CategoryName    string  `json:"categoryName"`
	SubcategoryID   *string `json:"subcategoryId" validate:"omitempty,uuid"`
	SubcategoryName string  `json:"subcategoryName"`
	BrandID         *string `json:"brandId" validate:"omitempty,uuid"`
	BrandName       string  `json:"brandName"`

	SizeIDs    []string `json:"sizeIds" validate:"omitempty,dive,uuid"`
	SizeNames  []string `json:"sizeNames"`
	ColorIDs   []string `json:"colorIds" validate:"omitempty,dive,uuid"`
	ColorNames []string `json:"colorNames"`
	TagIDs     []string `json:"tagIds" validate:"omitempty,dive,uuid"`
	TagNames   []string `json:"tagNames"`
}

// UpdateProductRequest represents a partial product update. Absent fields
// are left untouched; an empty id list clears that facet.
type UpdateProductRequest struct {
	Name          *string   `json:"name"`
	Price         *float64  `json:"price" validate:"omitempty,gte=0"`
	OriginalPrice *float64  `json:"originalPrice" validate:"omitempty,gte=0"`
	Description   *string   `json:"description"`
	Image         *string   `json:"image"`
	Images        *[]string `json:"images"`
	InStock       *bool     `json:"inStock"`
	Rating        *float64  `json:"rating" validate:"omitempty,gte=0,lte=5"`
	ReviewCount   *int      `json:"reviewCount" validate:"omitempty,gte=0"`

	CategoryID    *string `json:"categoryId" validate:"omitempty,uuid"`
	SubcategoryID *string `json:"subcategoryId" validate:"omitempty,uuid"`
	BrandID       *string `json:"brandId" validate:"omitempty,uuid"`

	SizeIDs  *[]string `json:"sizeIds" validate:"omitempty,dive,uuid"`
	ColorIDs *[]string `json:"colorIds" validate:"omitempty,dive,uuid"`
	TagIDs   *[]string `json:"tagIds" validate:"omitempty,dive,uuid"`
}

// CreateTaxonomyRequest represents a taxonomy entity creation payload
type CreateTaxonomyRequest struct {
	Name string `json:"name" validate:"required"`
}

// CatalogHandler handles HTTP requests for products and taxonomy entities
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes. Read endpoints are public;
// writes require an authenticated admin.
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	admin := func(r chi.Router) chi.Router {
		return r.With(authMiddleware, middleware.RequireAdmin(h.logger))
	}

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		admin(r).Post("/", h.CreateProduct)
		admin(r).Put("/{id}", h.UpdateProduct)
		admin(r).Delete("/{id}", h.DeleteProduct)
	})

	r.Get("/api/filters", h.GetFilters)

	for _, kind := range []domain.TaxonomyKind{
		domain.KindCategory,
		domain.KindBrand,
		domain.KindSize,
		domain.KindColor,
		domain.KindTag,
	} {
		kind := kind
		r.Route("/api/"+kind.Table(), func(r chi.Router) {
			r.Get("/", h.listTaxonomy(kind))
			admin(r).Post("/", h.createTaxonomy(kind))
			admin(r).Delete("/{id}", h.deleteTaxonomy(kind))
		})
	}

	r.Get("/api/subcategories", h.ListSubcategories)
}

// ListProducts handles the filtered, paginated product listing
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.ListParams{
		Search:        q.Get("search"),
		Category:      q.Get("category"),
		Subcategory:   q.Get("subcategory"),
		Brands:        q.Get("brands"),
		Sizes:         q.Get("sizes"),
		Colors:        q.Get("colors"),
		MinPrice:      q.Get("minPrice"),
		MaxPrice:      q.Get("maxPrice"),
		InStock:       q.Get("inStock"),
		SortField:     q.Get("sortField"),
		SortDirection: q.Get("sortDirection"),
		Page:          q.Get("page"),
		Limit:         q.Get("limit"),
	}

	page, err := h.catalogService.ListProducts(r.Context(), params)
	if err != nil {
		h.respondServiceError(w, "Failed to list products", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct handles fetching a single product
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "Failed to get product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct handles product creation with on-demand taxonomy entities
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := domain.CreateProductInput{
		Name:            req.Name,
		Price:           req.Price,
		OriginalPrice:   req.OriginalPrice,
		Description:     req.Description,
		Image:           req.Image,
		Images:          req.Images,
		InStock:         req.InStock,
		Rating:          req.Rating,
		ReviewCount:     req.ReviewCount,
		CategoryID:      parseOptionalID(req.CategoryID),
		CategoryName:    req.CategoryName,
		SubcategoryID:   parseOptionalID(req.SubcategoryID),
		SubcategoryName: req.SubcategoryName,
		BrandID:         parseOptionalID(req.BrandID),
		BrandName:       req.BrandName,
		SizeIDs:         parseIDList(req.SizeIDs),
		SizeNames:       req.SizeNames,
		ColorIDs:        parseIDList(req.ColorIDs),
		ColorNames:      req.ColorNames,
		TagIDs:          parseIDList(req.TagIDs),
		TagNames:        req.TagNames,
	}

	product, err := h.catalogService.CreateProduct(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, "Failed to create product", err)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles partial product updates
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req UpdateProductRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := domain.UpdateProductInput{
		ID:            id,
		Name:          req.Name,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Description:   req.Description,
		Image:         req.Image,
		Images:        req.Images,
		InStock:       req.InStock,
		Rating:        req.Rating,
		ReviewCount:   req.ReviewCount,
		CategoryID:    parseOptionalID(req.CategoryID),
		SubcategoryID: parseOptionalID(req.SubcategoryID),
		BrandID:       parseOptionalID(req.BrandID),
		SizeIDs:       parseIDSet(req.SizeIDs),
		ColorIDs:      parseIDSet(req.ColorIDs),
		TagIDs:        parseIDSet(req.TagIDs),
	}

	product, err := h.catalogService.UpdateProduct(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, "Failed to update product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles product deletion
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.catalogService.DeleteProduct(r.Context(), id); err != nil {
		h.respondServiceError(w, "Failed to delete product", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetFilters returns every facet value in use plus the global price range
func (h *CatalogHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := h.catalogService.Filters(r.Context())
	if err != nil {
		h.respondServiceError(w, "Failed to aggregate filters", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, filters)
}

// ListSubcategories returns all subcategories with parent category names
func (h *CatalogHandler) ListSubcategories(w http.ResponseWriter, r *http.Request) {
	subcategories, err := h.catalogService.ListSubcategories(r.Context())
	if err != nil {
		h.respondServiceError(w, "Failed to list subcategories", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, subcategories)
}

func (h *CatalogHandler) listTaxonomy(kind domain.TaxonomyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entities, err := h.catalogService.ListTaxonomy(r.Context(), kind)
		if err != nil {
			h.respondServiceError(w, "Failed to list entities", err)
			return
		}

		middleware.RespondWithJSON(w, http.StatusOK, entities)
	}
}

func (h *CatalogHandler) createTaxonomy(kind domain.TaxonomyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTaxonomyRequest

		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
				middleware.RespondWithValidationErrors(w, validationErrors)
				return
			}

			middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		entity, err := h.catalogService.CreateTaxonomy(r.Context(), kind, req.Name)
		if err != nil {
			h.respondServiceError(w, "Failed to create entity", err)
			return
		}

		middleware.RespondWithJSON(w, http.StatusCreated, entity)
	}
}

func (h *CatalogHandler) deleteTaxonomy(kind domain.TaxonomyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}

		if err := h.catalogService.DeleteTaxonomy(r.Context(), kind, id); err != nil {
			h.respondServiceError(w, "Failed to delete entity", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// pathID parses the {id} path parameter, responding with 400 on failure
func (h *CatalogHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps structured service rejections onto HTTP status
// codes and logs everything else as an internal failure.
func (h *CatalogHandler) respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	var rej *service.Rejection
	if errors.As(err, &rej) {
		status := http.StatusBadRequest
		switch rej.Kind {
		case service.RejectionNotFound:
			status = http.StatusNotFound
		case service.RejectionConflict:
			status = http.StatusConflict
		}

		middleware.RespondWithFieldErrors(w, status, rej.Error(), rej.Fields)
		return
	}

	h.logger.Error(logMsg, zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
}

// parseOptionalID converts a validated uuid string pointer. Validation has
// already run, so a parse failure here means a nil result.
func parseOptionalID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

func parseIDList(values []string) []uuid.UUID {
	if len(values) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		if id, err := uuid.Parse(v); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// parseIDSet preserves the absent/empty distinction of the request field:
// nil means untouched, an empty list clears the links.
func parseIDSet(values *[]string) *[]uuid.UUID {
	if values == nil {
		return nil
	}
	ids := parseIDList(*values)
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return &ids
}
