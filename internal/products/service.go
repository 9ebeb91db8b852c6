package product

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

const defaultCreateKeyTTL = 60 * time.Second

// Service manages seller listings and the stock ledger behind them.
type Service interface {
	GetPublished(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	GetForOrg(ctx context.Context, orgID, productID uuid.UUID) (*ProductDTO, error)
	ListPublished(ctx context.Context, query CatalogQuery) (*ProductList, error)
	Create(ctx context.Context, userID, orgID uuid.UUID, input CreateProductInput, idempotencyKey string) (*ProductDTO, error)
	Patch(ctx context.Context, orgID, productID uuid.UUID, patch ProductPatch) (*ProductDTO, error)
	AdjustStock(ctx context.Context, orgID, productID uuid.UUID, delta int) (*ProductDTO, error)
	Publish(ctx context.Context, orgID, productID uuid.UUID) (*ProductDTO, error)
	Unpublish(ctx context.Context, orgID, productID uuid.UUID) (*ProductDTO, error)
	ListForOrg(ctx context.Context, orgID uuid.UUID, params pagination.Params) (*ProductList, error)
	ReserveStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type createKeyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ProductCreateKey(orgID, key string) string
}

type ServiceParams struct {
	Repo         *Repository
	TX           txRunner
	Outbox       outbox.Emitter
	CreateKeys   createKeyStore
	CreateKeyTTL time.Duration
	Logger       *logger.Logger
}

type service struct {
	repo       *Repository
	tx         txRunner
	outbox     outbox.Emitter
	createKeys createKeyStore
	keyTTL     time.Duration
	logg       *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product repository required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	ttl := params.CreateKeyTTL
	if ttl <= 0 {
		ttl = defaultCreateKeyTTL
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:       params.Repo,
		tx:         params.TX,
		outbox:     params.Outbox,
		createKeys: params.CreateKeys,
		keyTTL:     ttl,
		logg:       logg,
	}, nil
}

// GetPublished returns a catalog listing. Drafts and archived listings read as
// not found.
func (s *service) GetPublished(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	p, err := s.repo.FindPublished(ctx, productID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	dto := FromModel(p)
	return &dto, nil
}

// GetForOrg returns a listing of any status owned by orgID.
func (s *service) GetForOrg(ctx context.Context, orgID, productID uuid.UUID) (*ProductDTO, error) {
	p, err := s.repo.FindForOrg(ctx, orgID, productID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	dto := FromModel(p)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, userID, orgID uuid.UUID, input CreateProductInput, idempotencyKey string) (*ProductDTO, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org id required")
	}
	if input.StockType == enums.StockTypeStock && input.Quantity < 1 {
		return nil, invalid("stock listings need a quantity of at least one", "quantity")
	}

	p := input.toModel(orgID)
	if err := validateListing(p); err != nil {
		return nil, err
	}

	if key := strings.TrimSpace(idempotencyKey); key != "" && s.createKeys != nil {
		won, err := s.createKeys.SetNX(ctx, s.createKeys.ProductCreateKey(orgID.String(), key), userID.String(), s.keyTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
		}
		if !won {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used").
				WithDetails(map[string]any{"idempotency_key": key})
		}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, mapWriteError(err, "db: insert product")
	}

	logCtx := s.logg.WithOrgID(ctx, orgID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"product_id": p.ID.String(),
		"user_id":    userID.String(),
		"stock_type": p.StockType,
	})
	s.logg.Info(logCtx, "product created")

	dto := FromModel(p)
	return &dto, nil
}

func (s *service) Patch(ctx context.Context, orgID, productID uuid.UUID, patch ProductPatch) (*ProductDTO, error) {
	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		p, err := repo.FindForOrgForUpdate(ctx, orgID, productID)
		if err != nil {
			return mapLoadError(err)
		}

		if patch.StockType != nil && *patch.StockType != p.StockType {
			refs, err := repo.CountCartReferences(ctx, productID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count cart references")
			}
			if refs > 0 {
				return invalid("stock_type cannot change while carts reference the product", "stock_type")
			}
		}

		patch.apply(p)
		if err := validateListing(p); err != nil {
			return err
		}
		if err := repo.Save(ctx, p); err != nil {
			return mapWriteError(err, "db: update product")
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(updated)
	return &dto, nil
}

// AdjustStock applies delta to quantity_on_hand. Restocks of countable listings
// raise quantity_original when they exceed it.
func (s *service) AdjustStock(ctx context.Context, orgID, productID uuid.UUID, delta int) (*ProductDTO, error) {
	if delta == 0 {
		return nil, invalid("delta must not be zero", "delta")
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		p, err := repo.FindForOrgForUpdate(ctx, orgID, productID)
		if err != nil {
			return mapLoadError(err)
		}

		onHand := p.QuantityOnHand + delta
		if onHand < 0 {
			return invalid("stock cannot go below zero", "delta").
				WithDetails(map[string]any{"field": "delta", "quantity_on_hand": p.QuantityOnHand})
		}
		original := p.QuantityOriginal
		switch p.StockType {
		case enums.StockTypeUnique:
			if onHand > 1 {
				return invalid("unique parts hold at most one unit", "delta")
			}
		default:
			if onHand > original {
				original = onHand
			}
		}

		if err := repo.SetStock(ctx, p.ID, original, onHand); err != nil {
			return mapWriteError(err, "db: adjust stock")
		}
		p.QuantityOriginal = original
		p.QuantityOnHand = onHand

		now := time.Now().UTC()
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductStockAdjusted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   p.ID,
			Actor:         &outbox.ActorRef{OrgID: &orgID},
			Data: payloads.ProductStockAdjustedEvent{
				ProductID:      p.ID,
				OrgID:          p.OrgID,
				Delta:          delta,
				QuantityOnHand: onHand,
				AdjustedAt:     now,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock adjusted event")
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrgID(ctx, orgID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"product_id":       productID.String(),
		"delta":            delta,
		"quantity_on_hand": updated.QuantityOnHand,
	})
	s.logg.Info(logCtx, "product stock adjusted")

	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) Publish(ctx context.Context, orgID, productID uuid.UUID) (*ProductDTO, error) {
	return s.setStatus(ctx, orgID, productID, enums.ProductStatusPublished)
}

func (s *service) Unpublish(ctx context.Context, orgID, productID uuid.UUID) (*ProductDTO, error) {
	return s.setStatus(ctx, orgID, productID, enums.ProductStatusDraft)
}

func (s *service) setStatus(ctx context.Context, orgID, productID uuid.UUID, target enums.ProductStatus) (*ProductDTO, error) {
	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		p, err := repo.FindForOrgForUpdate(ctx, orgID, productID)
		if err != nil {
			return mapLoadError(err)
		}
		if p.Status == target {
			return pkgerrors.New(pkgerrors.CodeConflict, "product already "+string(target))
		}
		if err := repo.SetStatus(ctx, p.ID, target); err != nil {
			return mapWriteError(err, "db: update product status")
		}
		p.Status = target
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) ListForOrg(ctx context.Context, orgID uuid.UUID, params pagination.Params) (*ProductList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListForOrg(ctx, orgID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}

	return pageOf(rows, limit), nil
}

// ListPublished pages through the buyer catalog, newest first.
func (s *service) ListPublished(ctx context.Context, query CatalogQuery) (*ProductList, error) {
	if err := query.validate(); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(query.Limit)
	rows, err := s.repo.ListPublished(ctx, query.CatalogFilter, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list catalog")
	}
	return pageOf(rows, limit), nil
}

func pageOf(rows []models.Product, limit int) *ProductList {
	out := &ProductList{Items: make([]ProductDTO, 0, limit)}
	if len(rows) > limit {
		last := rows[limit-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for i := range rows {
		out.Items = append(out.Items, FromModel(&rows[i]))
	}
	return out
}

// ReserveStock decrements quantity_on_hand inside the caller's transaction. It
// reports false without error when fewer than quantity units remain.
func (s *service) ReserveStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, invalid("quantity must be positive", "quantity")
	}
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	rows, err := repo.DecrementOnHand(ctx, productID, quantity)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reserve stock")
	}
	return rows == 1, nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
}

func mapWriteError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if dbpkg.IsCheckViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "product violates listing constraints")
	}
	if dbpkg.IsForeignKeyViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown organization")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
