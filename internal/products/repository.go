package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

// Repository persists product listings and their stock counters.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts every column of the listing.
func (r *Repository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Select("*").Create(p).Error
}

// FindByID loads the product regardless of owner.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindForOrg loads the product owned by orgID.
func (r *Repository) FindForOrg(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindForOrgForUpdate loads the product owned by orgID, row-locked on postgres.
func (r *Repository) FindForOrgForUpdate(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p models.Product
	if err := q.Where("id = ? AND org_id = ?", id, orgID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes every column of the listing.
func (r *Repository) Save(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// SetStock updates both stock counters.
func (r *Repository) SetStock(ctx context.Context, id uuid.UUID, original, onHand int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity_original": original,
			"quantity_on_hand":  onHand,
		}).Error
}

// SetStatus moves the listing to status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.ProductStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// CountCartReferences counts cart lines of any status pointing at the product.
func (r *Repository) CountCartReferences(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

// DecrementOnHand removes quantity units only when enough are on hand and
// reports the affected row count.
func (r *Repository) DecrementOnHand(ctx context.Context, id uuid.UUID, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity_on_hand >= ?", id, quantity).
		Update("quantity_on_hand", gorm.Expr("quantity_on_hand - ?", quantity))
	return res.RowsAffected, res.Error
}

// ListForOrg returns up to limit listings older than the cursor, newest first.
func (r *Repository) ListForOrg(ctx context.Context, orgID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	q := r.db.WithContext(ctx).
		Where("org_id = ?", orgID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Product
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// FindPublished loads a listing only while it is published.
func (r *Repository) FindPublished(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.ProductStatusPublished).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CatalogFilter narrows the published catalog. Zero values do not filter.
type CatalogFilter struct {
	Search    string
	Make      string
	MakeID    *uuid.UUID
	Condition enums.ProductCondition
	PriceMin  *decimal.Decimal
	PriceMax  *decimal.Decimal
}

// ListPublished returns up to limit published listings older than the cursor,
// newest first with id breaking created_at ties.
func (r *Repository) ListPublished(ctx context.Context, filter CatalogFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.ProductStatusPublished)
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := dbpkg.ContainsPattern(term)
		q = q.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(part_number) LIKE ? ESCAPE '\'
			OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(COALESCE(make_name, '')) LIKE ? ESCAPE '\')`,
			like, like, like, like)
	}
	if makeName := strings.TrimSpace(filter.Make); makeName != "" {
		q = q.Where(`LOWER(COALESCE(make_name, '')) LIKE ? ESCAPE '\'`, dbpkg.ContainsPattern(makeName))
	}
	if filter.MakeID != nil {
		q = q.Where("make_id = ?", *filter.MakeID)
	}
	if filter.Condition != "" {
		q = q.Where("condition = ?", filter.Condition)
	}
	if filter.PriceMin != nil {
		q = q.Where("price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		q = q.Where("price <= ?", *filter.PriceMax)
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Product
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
