package fulfillment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

const sellerItemColumns = `order_items.*,
	orders.created_at AS order_created_at,
	orders.payment_status AS payment_status,
	orders.shipping_address AS shipping_address,
	orders.notes AS notes,
	orders.buyer_id AS buyer_id,
	COALESCE(users.email, '') AS buyer_email,
	COALESCE(users.username, '') AS buyer_username`

// Repository reads and updates order items on behalf of sellers. Every query
// is scoped to a set of organization ids.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

type listFilter struct {
	orgIDs   []uuid.UUID
	statuses []enums.OrderItemStatus
	search   string
	cursor   *pagination.Cursor
	limit    int
}

func (r *Repository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("order_items").
		Select(sellerItemColumns).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("LEFT JOIN users ON users.id = orders.buyer_id")
}

func (r *Repository) List(ctx context.Context, filter listFilter) ([]sellerItemRow, error) {
	q := r.joined(ctx).Where("order_items.seller_org_id IN ?", filter.orgIDs)
	if len(filter.statuses) > 0 {
		q = q.Where("order_items.status IN ?", filter.statuses)
	}
	if term := strings.TrimSpace(filter.search); term != "" {
		like := dbpkg.ContainsPattern(term)
		q = q.Where(`(LOWER(order_items.product_title) LIKE ? ESCAPE '\'
			OR LOWER(order_items.product_part_number) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(users.email, '')) LIKE ? ESCAPE '\')`, like, like, like)
	}
	if filter.cursor != nil {
		q = q.Where("((order_items.created_at < ?) OR (order_items.created_at = ? AND order_items.id < ?))",
			filter.cursor.CreatedAt, filter.cursor.CreatedAt, filter.cursor.ID)
	}

	var rows []sellerItemRow
	err := q.
		Order("order_items.created_at DESC").
		Order("order_items.id DESC").
		Limit(filter.limit).
		Scan(&rows).Error
	return rows, err
}

// FindView loads the joined projection of one item owned by orgIDs.
func (r *Repository) FindView(ctx context.Context, itemID uuid.UUID, orgIDs []uuid.UUID) (*sellerItemRow, error) {
	var rows []sellerItemRow
	err := r.joined(ctx).
		Where("order_items.id = ? AND order_items.seller_org_id IN ?", itemID, orgIDs).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// FindForUpdate locks the item row when the dialect supports it.
func (r *Repository) FindForUpdate(ctx context.Context, itemID uuid.UUID, orgIDs []uuid.UUID) (*models.OrderItem, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.OrderItem
	if err := q.First(&item, "id = ? AND seller_org_id IN ?", itemID, orgIDs).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) Exists(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("id = ?", itemID).Count(&count).Error
	return count > 0, err
}

// SaveFulfillment writes the status and fulfillment columns of item, guarded
// by the status it was loaded with.
func (r *Repository) SaveFulfillment(ctx context.Context, item *models.OrderItem, from enums.OrderItemStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", item.ID, from).
		Updates(map[string]any{
			"status":           item.Status,
			"carrier_code":     item.CarrierCode,
			"tracking_number":  item.TrackingNumber,
			"tracking_url":     item.TrackingURL,
			"shipped_at":       item.ShippedAt,
			"delivered_at":     item.DeliveredAt,
			"cancelled_at":     item.CancelledAt,
			"rejection_reason": item.RejectionReason,
		})
	return res.RowsAffected, res.Error
}

