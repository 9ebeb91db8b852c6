package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID, statuses []enums.CartItemStatus) ([]models.CartItem, error)
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, *models.Cart, error)
	FindActiveItemForProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (int64, error)
	DeleteActiveItem(ctx context.Context, itemID uuid.UUID) (int64, error)
	DeleteActiveItems(ctx context.Context, cartID uuid.UUID) (int64, error)
	LockItems(ctx context.Context, orderID, userID uuid.UUID, itemIDs []uuid.UUID, lockedAt time.Time) (int64, error)
	PurchaseItems(ctx context.Context, orderID, userID uuid.UUID) (int64, error)
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}
