package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

// Repository defines the persistence surface of the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveCartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus) (int64, error)
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string, paymentIntentID *string) error
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, filter listFilter) ([]models.Order, error)
}

type listFilter struct {
	statuses     []enums.PaymentStatus
	search       string
	orderBy      OrderBy
	cursor       *pagination.Cursor
	amountCursor *pagination.AmountCursor
	limit        int
}
