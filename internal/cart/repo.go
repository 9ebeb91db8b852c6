package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// Repository persists carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetOrCreate inserts the user's cart when missing and returns the stored row.
func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	candidate := models.Cart{ID: uuid.New(), UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// ListItems returns the cart's items in the given statuses, oldest first.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID, statuses []enums.CartItemStatus) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND status IN ?", cartID, statuses).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

// FindItem loads the item and the cart that owns it.
func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, *models.Cart, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, nil, err
	}
	var cart models.Cart
	if err := r.db.WithContext(ctx).First(&cart, "id = ?", item.CartID).Error; err != nil {
		return nil, nil, err
	}
	return &item, &cart, nil
}

// FindActiveItemForProduct returns nil without error when the cart holds no ACTIVE line for the product.
func (r *Repository) FindActiveItemForProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ? AND status = ?", cartID, productID, enums.CartItemStatusActive).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItemQuantity only touches ACTIVE items.
func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND status = ?", itemID, enums.CartItemStatusActive).
		Update("quantity", quantity)
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteActiveItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", itemID, enums.CartItemStatusActive).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteActiveItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND status = ?", cartID, enums.CartItemStatusActive).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// LockItems moves the user's ACTIVE items (optionally only itemIDs) to LOCKED
// against orderID in one statement.
func (r *Repository) LockItems(ctx context.Context, orderID, userID uuid.UUID, itemIDs []uuid.UUID, lockedAt time.Time) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("status = ?", enums.CartItemStatusActive).
		Where("cart_id IN (?)", r.userCart(ctx, userID))
	if len(itemIDs) > 0 {
		q = q.Where("id IN ?", itemIDs)
	}
	res := q.Updates(map[string]any{
		"status":    enums.CartItemStatusLocked,
		"order_id":  orderID,
		"locked_at": lockedAt,
	})
	return res.RowsAffected, res.Error
}

// PurchaseItems moves the order's LOCKED items in the user's cart to PURCHASED.
func (r *Repository) PurchaseItems(ctx context.Context, orderID, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("order_id = ? AND status = ?", orderID, enums.CartItemStatusLocked).
		Where("cart_id IN (?)", r.userCart(ctx, userID)).
		Update("status", enums.CartItemStatusPurchased)
	return res.RowsAffected, res.Error
}

func (r *Repository) userCart(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Session(&gorm.Session{NewDB: true}).
		Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
}
