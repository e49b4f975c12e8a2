package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"threadmart/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrTaxonomyNotFound    = errors.New("taxonomy entity not found")
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	ErrTaxonomyInUse       = errors.New("taxonomy entity is referenced by products")
)

// TaxonomyNotFoundError reports an identifier reference that does not
// resolve to an existing row, naming the request field it came from.
type TaxonomyNotFoundError struct {
	Field string
	ID    uuid.UUID
}

func (e *TaxonomyNotFoundError) Error() string {
	return fmt.Sprintf("%s: no entity with id %s", e.Field, e.ID)
}

func (e *TaxonomyNotFoundError) Unwrap() error { return ErrTaxonomyNotFound }

// TaxonomyRepository is the data access layer for all uniquely-named
// classification types. One implementation serves every kind; the kind
// supplies the table and the normalization rule.
type TaxonomyRepository interface {
	// GetOrCreateNormalized normalizes rawName per the kind's rule and
	// atomically finds or inserts the row with that canonical name.
	// A name that is blank after trimming yields (nil, false, nil).
	GetOrCreateNormalized(ctx context.Context, q DBTX, kind domain.TaxonomyKind, rawName string) (*domain.TaxonomyEntity, bool, error)
	FindByID(ctx context.Context, q DBTX, kind domain.TaxonomyKind, id uuid.UUID) (*domain.TaxonomyEntity, error)
	// ResolveIDs resolves every id to an existing row or fails with
	// ErrTaxonomyNotFound. It never silently drops an id.
	ResolveIDs(ctx context.Context, q DBTX, kind domain.TaxonomyKind, ids []uuid.UUID) ([]domain.TaxonomyEntity, error)
	List(ctx context.Context, kind domain.TaxonomyKind) ([]domain.TaxonomyEntity, error)
	// ListWithProducts returns only entities linked to at least one product.
	ListWithProducts(ctx context.Context, kind domain.TaxonomyKind) ([]domain.TaxonomyEntity, error)
	// Delete removes an entity unless any product references it.
	Delete(ctx context.Context, kind domain.TaxonomyKind, id uuid.UUID) error

	GetOrCreateSubcategory(ctx context.Context, q DBTX, category *domain.TaxonomyEntity, rawName string) (*domain.Subcategory, bool, error)
	FindSubcategoryByID(ctx context.Context, q DBTX, id uuid.UUID) (*domain.Subcategory, error)
	ListSubcategories(ctx context.Context) ([]domain.Subcategory, error)
	ListSubcategoriesWithProducts(ctx context.Context) ([]domain.Subcategory, error)
	DeleteSubcategory(ctx context.Context, id uuid.UUID) error
}

type taxonomyRepository struct {
	db *sql.DB
}

// NewTaxonomyRepository creates a new instance of TaxonomyRepository
func NewTaxonomyRepository(db *sql.DB) TaxonomyRepository {
	return &taxonomyRepository{db: db}
}

// GetOrCreateNormalized performs the find-or-insert as a single statement
// against the unique index on name, so two concurrent callers racing on
// the same canonical name both resolve to the one surviving row. The
// no-op DO UPDATE makes the insert return the existing row on conflict;
// xmax = 0 distinguishes a fresh insert from a found one.
func (r *taxonomyRepository) GetOrCreateNormalized(ctx context.Context, q DBTX, kind domain.TaxonomyKind, rawName string) (*domain.TaxonomyEntity, bool, error) {
	name := kind.Rule().Normalize(rawName)
	if name == "" {
		return nil, false, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, (xmax = 0)
	`, kind.Table())

	entity := &domain.TaxonomyEntity{Name: name}
	var created bool
	err := q.QueryRowContext(ctx, query, uuid.New(), name).Scan(&entity.ID, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create %s: %w", kind, err)
	}

	return entity, created, nil
}

// FindByID retrieves an entity of the given kind by ID
func (r *taxonomyRepository) FindByID(ctx context.Context, q DBTX, kind domain.TaxonomyKind, id uuid.UUID) (*domain.TaxonomyEntity, error) {
	query := fmt.Sprintf(`SELECT id, name FROM %s WHERE id = $1`, kind.Table())

	entity := &domain.TaxonomyEntity{}
	err := q.QueryRowContext(ctx, query, id).Scan(&entity.ID, &entity.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaxonomyNotFound
		}
		return nil, fmt.Errorf("failed to find %s by ID: %w", kind, err)
	}

	return entity, nil
}

// ResolveIDs resolves identifiers to existing rows, all-or-nothing
func (r *taxonomyRepository) ResolveIDs(ctx context.Context, q DBTX, kind domain.TaxonomyKind, ids []uuid.UUID) ([]domain.TaxonomyEntity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	placeholders := make([]string, len(unique))
	args := make([]any, len(unique))
	for i, id := range unique {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT id, name FROM %s WHERE id IN (%s)`,
		kind.Table(), strings.Join(placeholders, ", "),
	)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s ids: %w", kind, err)
	}
	defer rows.Close()

	found := make(map[uuid.UUID]domain.TaxonomyEntity, len(unique))
	for rows.Next() {
		var entity domain.TaxonomyEntity
		if err := rows.Scan(&entity.ID, &entity.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		found[entity.ID] = entity
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", kind, err)
	}

	// Report the first missing id in input order, preserving that order
	// in the result.
	entities := make([]domain.TaxonomyEntity, 0, len(unique))
	for _, id := range unique {
		entity, ok := found[id]
		if !ok {
			return nil, &TaxonomyNotFoundError{Field: string(kind), ID: id}
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

// List retrieves all entities of the given kind ordered by name
func (r *taxonomyRepository) List(ctx context.Context, kind domain.TaxonomyKind) ([]domain.TaxonomyEntity, error) {
	query := fmt.Sprintf(`SELECT id, name FROM %s ORDER BY name ASC`, kind.Table())
	return r.queryEntities(ctx, kind, query)
}

// ListWithProducts retrieves entities of the given kind that are linked
// to at least one product
func (r *taxonomyRepository) ListWithProducts(ctx context.Context, kind domain.TaxonomyKind) ([]domain.TaxonomyEntity, error) {
	var query string
	if join := kind.JoinTable(); join != "" {
		query = fmt.Sprintf(`
			SELECT t.id, t.name
			FROM %s t
			WHERE EXISTS (SELECT 1 FROM %s j WHERE j.%s = t.id)
			ORDER BY t.name ASC
		`, kind.Table(), join, kind.JoinColumn())
	} else {
		query = fmt.Sprintf(`
			SELECT t.id, t.name
			FROM %s t
			WHERE EXISTS (SELECT 1 FROM products p WHERE p.%s_id = t.id)
			ORDER BY t.name ASC
		`, kind.Table(), kind)
	}

	return r.queryEntities(ctx, kind, query)
}

func (r *taxonomyRepository) queryEntities(ctx context.Context, kind domain.TaxonomyKind, query string, args ...any) ([]domain.TaxonomyEntity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Table(), err)
	}
	defer rows.Close()

	entities := []domain.TaxonomyEntity{}
	for rows.Next() {
		var entity domain.TaxonomyEntity
		if err := rows.Scan(&entity.ID, &entity.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		entities = append(entities, entity)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind.Table(), err)
	}

	return entities, nil
}

// Delete removes an entity unless a product still references it. For
// category deletes the guard also covers products linked through the
// category's subcategories, which would otherwise be orphaned by the
// cascade.
func (r *taxonomyRepository) Delete(ctx context.Context, kind domain.TaxonomyKind, id uuid.UUID) error {
	var guard string
	if join := kind.JoinTable(); join != "" {
		guard = fmt.Sprintf(`NOT EXISTS (SELECT 1 FROM %s j WHERE j.%s = $1)`, join, kind.JoinColumn())
	} else {
		guard = fmt.Sprintf(`NOT EXISTS (SELECT 1 FROM products p WHERE p.%s_id = $1)`, kind)
	}
	if kind == domain.KindCategory {
		guard += ` AND NOT EXISTS (
			SELECT 1 FROM products p
			JOIN subcategories sc ON sc.id = p.subcategory_id
			WHERE sc.category_id = $1
		)`
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND %s`, kind.Table(), guard)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		// 23503: restrict FK on a link table fired between guard and delete.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrTaxonomyInUse
		}
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish "missing" from "protected".
		if _, err := r.FindByID(ctx, r.db, kind, id); err != nil {
			return err
		}
		return ErrTaxonomyInUse
	}

	return nil
}

// GetOrCreateSubcategory finds or inserts a subcategory scoped to its
// parent category. Names are title-cased; uniqueness is on the
// (name, category) pair.
func (r *taxonomyRepository) GetOrCreateSubcategory(ctx context.Context, q DBTX, category *domain.TaxonomyEntity, rawName string) (*domain.Subcategory, bool, error) {
	name := domain.RuleTitle.Normalize(rawName)
	if name == "" {
		return nil, false, nil
	}

	query := `
		INSERT INTO subcategories (id, name, category_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, category_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, (xmax = 0)
	`

	subcategory := &domain.Subcategory{
		Name:         name,
		CategoryID:   category.ID,
		CategoryName: category.Name,
	}
	var created bool
	err := q.QueryRowContext(ctx, query, uuid.New(), name, category.ID).Scan(&subcategory.ID, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create subcategory: %w", err)
	}

	return subcategory, created, nil
}

// FindSubcategoryByID retrieves a subcategory with its parent category name
func (r *taxonomyRepository) FindSubcategoryByID(ctx context.Context, q DBTX, id uuid.UUID) (*domain.Subcategory, error) {
	query := `
		SELECT sc.id, sc.name, sc.category_id, c.name
		FROM subcategories sc
		JOIN categories c ON c.id = sc.category_id
		WHERE sc.id = $1
	`

	subcategory := &domain.Subcategory{}
	err := q.QueryRowContext(ctx, query, id).Scan(
		&subcategory.ID,
		&subcategory.Name,
		&subcategory.CategoryID,
		&subcategory.CategoryName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubcategoryNotFound
		}
		return nil, fmt.Errorf("failed to find subcategory by ID: %w", err)
	}

	return subcategory, nil
}

// ListSubcategories retrieves all subcategories with parent category names
func (r *taxonomyRepository) ListSubcategories(ctx context.Context) ([]domain.Subcategory, error) {
	query := `
		SELECT sc.id, sc.name, sc.category_id, c.name
		FROM subcategories sc
		JOIN categories c ON c.id = sc.category_id
		ORDER BY c.name ASC, sc.name ASC
	`
	return r.querySubcategories(ctx, query)
}

// ListSubcategoriesWithProducts retrieves subcategories linked to at
// least one product
func (r *taxonomyRepository) ListSubcategoriesWithProducts(ctx context.Context) ([]domain.Subcategory, error) {
	query := `
		SELECT sc.id, sc.name, sc.category_id, c.name
		FROM subcategories sc
		JOIN categories c ON c.id = sc.category_id
		WHERE EXISTS (SELECT 1 FROM products p WHERE p.subcategory_id = sc.id)
		ORDER BY c.name ASC, sc.name ASC
	`
	return r.querySubcategories(ctx, query)
}

func (r *taxonomyRepository) querySubcategories(ctx context.Context, query string) ([]domain.Subcategory, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	defer rows.Close()

	subcategories := []domain.Subcategory{}
	for rows.Next() {
		var sc domain.Subcategory
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.CategoryID, &sc.CategoryName); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory: %w", err)
		}
		subcategories = append(subcategories, sc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subcategories: %w", err)
	}

	return subcategories, nil
}

// DeleteSubcategory removes a subcategory unless a product references it
func (r *taxonomyRepository) DeleteSubcategory(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM subcategories
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM products p WHERE p.subcategory_id = $1)
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete subcategory: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.FindSubcategoryByID(ctx, r.db, id); err != nil {
			return err
		}
		return ErrTaxonomyInUse
	}

	return nil
}
