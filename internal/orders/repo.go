package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveCartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.CartItemStatusActive).
		Where("cart_id IN (?)", r.db.Session(&gorm.Session{NewDB: true}).Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// CreateOrder inserts the order and its items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid flips a not-yet-paid order to paid. Zero rows means it was already paid.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", id, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"paid_at":        paidAt,
		})
	return res.RowsAffected, res.Error
}

// UpdatePaymentStatus is a compare-and-set on payment_status.
func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, from).
		Update("payment_status", to)
	return res.RowsAffected, res.Error
}

func (r *repository) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string, paymentIntentID *string) error {
	updates := map[string]any{"stripe_checkout_session_id": sessionID}
	if paymentIntentID != nil {
		updates["stripe_payment_intent_id"] = *paymentIntentID
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, filter listFilter) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.buyer_id = ?", buyerID)

	if len(filter.statuses) > 0 {
		q = q.Where("orders.payment_status IN ?", filter.statuses)
	}
	if term := strings.TrimSpace(filter.search); term != "" {
		like := dbpkg.ContainsPattern(term)
		q = q.Where(`(LOWER(COALESCE(orders.notes, '')) LIKE ? ESCAPE '\' OR EXISTS (
			SELECT 1 FROM order_items oi
			WHERE oi.order_id = orders.id AND (
				LOWER(oi.product_part_number) LIKE ? ESCAPE '\'
				OR LOWER(oi.product_title) LIKE ? ESCAPE '\'
				OR LOWER(oi.product_description) LIKE ? ESCAPE '\'
			)
		))`, like, like, like, like)
	}

	column := "orders.created_at"
	if filter.orderBy.byAmount() {
		column = "orders.total_amount"
	}
	cmp, dir := ">", "ASC"
	if filter.orderBy.descending() {
		cmp, dir = "<", "DESC"
	}

	switch {
	case filter.amountCursor != nil:
		q = q.Where("(("+column+" "+cmp+" ?) OR ("+column+" = ? AND orders.id "+cmp+" ?))",
			filter.amountCursor.Amount, filter.amountCursor.Amount, filter.amountCursor.ID)
	case filter.cursor != nil:
		q = q.Where("(("+column+" "+cmp+" ?) OR ("+column+" = ? AND orders.id "+cmp+" ?))",
			filter.cursor.CreatedAt, filter.cursor.CreatedAt, filter.cursor.ID)
	}

	var rows []models.Order
	err := q.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Order(column + " " + dir).
		Order("orders.id " + dir).
		Limit(filter.limit).
		Find(&rows).Error
	return rows, err
}


// PendingReader lists unpaid orders for the checkout expiry sweep.
type PendingReader struct {
	db *gorm.DB
}

// NewPendingReader binds a PendingReader to db.
func NewPendingReader(db *gorm.DB) *PendingReader {
	return &PendingReader{db: db}
}

// FindPendingBefore returns up to limit PENDING orders created before cutoff,
// oldest first.
func (r *PendingReader) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).
		Where("payment_status = ? AND created_at < ?", enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
