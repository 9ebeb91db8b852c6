package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

// DefaultMaxItemQuantity caps a single cart line.
const DefaultMaxItemQuantity = 99

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the cart and reservation operations.
type Service interface {
	WithTx(tx *gorm.DB) Service
	GetOrCreateCart(ctx context.Context, userID uuid.UUID, includeLocked bool) (*CartView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartView, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error)
	ClearCart(ctx context.Context, userID uuid.UUID) (int64, error)
	LockItems(ctx context.Context, orderID, userID uuid.UUID, itemIDs ...uuid.UUID) (int64, error)
	PurchaseItems(ctx context.Context, orderID, userID uuid.UUID) (int64, error)
}

type ServiceParams struct {
	Repo        CartRepository
	Products    productLoader
	TX          txRunner
	MaxQuantity int
	Logger      *logger.Logger
}

type service struct {
	repo     CartRepository
	products productLoader
	tx       txRunner
	maxQty   int
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repository required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product loader required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	maxQty := params.MaxQuantity
	if maxQty <= 0 {
		maxQty = DefaultMaxItemQuantity
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		tx:       params.TX,
		maxQty:   maxQty,
		logg:     logg,
	}, nil
}

// WithTx binds the reservation writes to the caller's transaction.
func (s *service) WithTx(tx *gorm.DB) Service {
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	return &clone
}

func (s *service) GetOrCreateCart(ctx context.Context, userID uuid.UUID, includeLocked bool) (*CartView, error) {
	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: get or create cart")
	}
	return s.view(ctx, s.repo, cart, includeLocked)
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error) {
	if err := s.validateQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if err := ensureCartable(product); err != nil {
		return nil, err
	}

	var view *CartView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.GetOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: get or create cart")
		}

		existing, err := repo.FindActiveItemForProduct(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart item")
		}

		if existing != nil {
			merged := existing.Quantity + quantity
			if merged > s.maxQty {
				return pkgerrors.New(pkgerrors.CodeConflict, "cart line would exceed the maximum quantity").
					WithDetails(map[string]any{"max_quantity": s.maxQty, "requested": merged})
			}
			if merged > product.QuantityOnHand {
				return insufficientStock(product, merged)
			}
			if _, err := repo.UpdateItemQuantity(ctx, existing.ID, merged); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart item")
			}
		} else {
			if quantity > product.QuantityOnHand {
				return insufficientStock(product, quantity)
			}
			item := &models.CartItem{
				ID:                 uuid.New(),
				CartID:             cart.ID,
				ProductID:          product.ID,
				SellerOrgID:        product.OrgID,
				ProductTitle:       product.Title,
				ProductDescription: product.Description,
				ProductPartNumber:  product.PartNumber,
				UnitPrice:          product.Price,
				Quantity:           quantity,
				Status:             enums.CartItemStatusActive,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				if dbpkg.IsUniqueViolation(err, "uq_cart_items_active_product") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product already in cart")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert cart item")
			}
		}

		view, err = s.view(ctx, repo, cart, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithUserID(ctx, userID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"product_id": productID.String(), "quantity": quantity})
	s.logg.Info(logCtx, "cart item added")
	return view, nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartView, error) {
	if err := s.validateQuantity(quantity); err != nil {
		return nil, err
	}

	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, cart, err := s.ownedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		if item.Status != enums.CartItemStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart item is not active").
				WithDetails(map[string]any{"status": item.Status})
		}

		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeConflict, "product no longer available")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		if quantity > product.QuantityOnHand {
			return insufficientStock(product, quantity)
		}

		rows, err := repo.UpdateItemQuantity(ctx, item.ID, quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart item")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart item is not active")
		}

		view, err = s.view(ctx, repo, cart, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, cart, err := s.ownedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		if item.Status != enums.CartItemStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "only active cart items can be removed").
				WithDetails(map[string]any{"status": item.Status})
		}
		if _, err := repo.DeleteActiveItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete cart item")
		}
		view, err = s.view(ctx, repo, cart, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) (int64, error) {
	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: get or create cart")
	}
	rows, err := s.repo.DeleteActiveItems(ctx, cart.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
	}
	return rows, nil
}

// LockItems reserves the user's ACTIVE items for orderID. When itemIDs is
// non-empty only those items are locked.
func (s *service) LockItems(ctx context.Context, orderID, userID uuid.UUID, itemIDs ...uuid.UUID) (int64, error) {
	rows, err := s.repo.LockItems(ctx, orderID, userID, itemIDs, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock cart items")
	}
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithUserID(logCtx, userID.String())
	logCtx = s.logg.WithField(logCtx, "rows", rows)
	s.logg.Info(logCtx, "cart items locked")
	return rows, nil
}

// PurchaseItems finalizes the items locked for orderID. Zero rows is not an error.
func (s *service) PurchaseItems(ctx context.Context, orderID, userID uuid.UUID) (int64, error) {
	rows, err := s.repo.PurchaseItems(ctx, orderID, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: purchase cart items")
	}
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithField(logCtx, "rows", rows)
	s.logg.Info(logCtx, "cart items purchased")
	return rows, nil
}

func (s *service) view(ctx context.Context, repo CartRepository, cart *models.Cart, includeLocked bool) (*CartView, error) {
	statuses := []enums.CartItemStatus{enums.CartItemStatusActive}
	if includeLocked {
		statuses = append(statuses, enums.CartItemStatusLocked)
	}
	items, err := repo.ListItems(ctx, cart.ID, statuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart items")
	}
	return buildView(cart, items), nil
}

func (s *service) ownedItem(ctx context.Context, repo CartRepository, userID, itemID uuid.UUID) (*models.CartItem, *models.Cart, error) {
	item, cart, err := repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart item")
	}
	if cart.UserID != userID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item belongs to another user")
	}
	return item, cart, nil
}

func (s *service) validateQuantity(quantity int) error {
	if quantity < 1 || quantity > s.maxQty {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
			WithDetails(map[string]any{"min": 1, "max": s.maxQty, "quantity": quantity})
	}
	return nil
}

func ensureCartable(p *models.Product) error {
	switch {
	case p.Status != enums.ProductStatusPublished:
		return pkgerrors.New(pkgerrors.CodeConflict, "product is not published")
	case p.StockType == enums.StockTypeUnique:
		return pkgerrors.New(pkgerrors.CodeConflict, "unique parts are sold through chat")
	case !p.AllowCart:
		return pkgerrors.New(pkgerrors.CodeConflict, "product cannot be added to carts")
	}
	return nil
}

func insufficientStock(p *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": p.ID.String(),
			"available":  p.QuantityOnHand,
			"requested":  requested,
		})
}
