package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/metrics"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type membershipLister interface {
	ListOrgIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type transitionMetrics interface {
	FulfillmentTransition(action, outcome string)
}

// Service drives the seller side of order items.
type Service interface {
	ListItems(ctx context.Context, userID uuid.UUID, query ListQuery) (*ItemList, error)
	GetItem(ctx context.Context, userID, itemID uuid.UUID) (*SellerOrderItemView, error)
	AcceptItem(ctx context.Context, userID, itemID uuid.UUID) (*SellerOrderItemView, error)
	RejectItem(ctx context.Context, userID, itemID uuid.UUID, input RejectInput) (*SellerOrderItemView, error)
	ShipItem(ctx context.Context, userID, itemID uuid.UUID, input ShipInput) (*SellerOrderItemView, error)
	DeliverItem(ctx context.Context, userID, itemID uuid.UUID, input DeliverInput) (*SellerOrderItemView, error)
}

type ServiceParams struct {
	Repo        *Repository
	Memberships membershipLister
	TX          txRunner
	Outbox      outbox.Emitter
	Metrics     transitionMetrics
	Logger      *logger.Logger
}

type service struct {
	repo        *Repository
	memberships membershipLister
	tx          txRunner
	outbox      outbox.Emitter
	metrics     transitionMetrics
	logg        *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment repository required")
	}
	if params.Memberships == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership lister required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	m := params.Metrics
	if m == nil {
		m = (*metrics.MarketplaceMetrics)(nil)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:        params.Repo,
		memberships: params.Memberships,
		tx:          params.TX,
		outbox:      params.Outbox,
		metrics:     m,
		logg:        logg,
	}, nil
}

func (s *service) orgIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.memberships.ListOrgIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list memberships")
	}
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller organization membership required")
	}
	return ids, nil
}

func (s *service) ListItems(ctx context.Context, userID uuid.UUID, query ListQuery) (*ItemList, error) {
	orgIDs, err := s.orgIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if query.OrgID != nil {
		if !containsID(orgIDs, *query.OrgID) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this organization")
		}
		orgIDs = []uuid.UUID{*query.OrgID}
	}
	for _, status := range query.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order item status").
				WithDetails(map[string]any{"status": status})
		}
	}
	if query.Limit < 0 || query.Limit > pagination.MaxLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and 100")
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(query.Limit)
	rows, err := s.repo.List(ctx, listFilter{
		orgIDs:   orgIDs,
		statuses: query.Statuses,
		search:   query.Search,
		cursor:   cursor,
		limit:    limit + 1,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list seller items")
	}

	out := &ItemList{Items: make([]SellerOrderItemView, 0, limit)}
	if len(rows) > limit {
		last := rows[limit-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		out.Items = append(out.Items, row.view())
	}
	return out, nil
}

func (s *service) GetItem(ctx context.Context, userID, itemID uuid.UUID) (*SellerOrderItemView, error) {
	orgIDs, err := s.orgIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindView(ctx, itemID, orgIDs)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order item")
	}
	view := row.view()
	return &view, nil
}

func (s *service) AcceptItem(ctx context.Context, userID, itemID uuid.UUID) (*SellerOrderItemView, error) {
	return s.transition(ctx, userID, itemID, enums.FulfillmentActionAccept, orders.TransitionInput{})
}

func (s *service) RejectItem(ctx context.Context, userID, itemID uuid.UUID, input RejectInput) (*SellerOrderItemView, error) {
	return s.transition(ctx, userID, itemID, enums.FulfillmentActionReject, orders.TransitionInput{
		RejectionReason: input.Reason,
	})
}

func (s *service) ShipItem(ctx context.Context, userID, itemID uuid.UUID, input ShipInput) (*SellerOrderItemView, error) {
	return s.transition(ctx, userID, itemID, enums.FulfillmentActionShip, orders.TransitionInput{
		CarrierCode:    input.CarrierCode,
		TrackingNumber: input.TrackingNumber,
		TrackingURL:    input.TrackingURL,
		ShippedAt:      input.ShippedAt,
	})
}

func (s *service) DeliverItem(ctx context.Context, userID, itemID uuid.UUID, input DeliverInput) (*SellerOrderItemView, error) {
	return s.transition(ctx, userID, itemID, enums.FulfillmentActionDeliver, orders.TransitionInput{
		DeliveredAt: input.DeliveredAt,
	})
}

func (s *service) transition(ctx context.Context, userID, itemID uuid.UUID, action enums.FulfillmentAction, in orders.TransitionInput) (*SellerOrderItemView, error) {
	orgIDs, err := s.orgIDs(ctx, userID)
	if err != nil {
		s.metrics.FulfillmentTransition(string(action), metrics.OutcomeRejected)
		return nil, err
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	var (
		from enums.OrderItemStatus
		item *models.OrderItem
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err = s.loadScoped(ctx, repo, itemID, orgIDs)
		if err != nil {
			return err
		}
		from, err = orders.ApplyTransition(item, action, in)
		if err != nil {
			return err
		}
		rows, err := repo.SaveFulfillment(ctx, item, from)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order item")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order item changed concurrently")
		}

		sellerOrg := item.SellerOrgID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderItemStatusChanged,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: userID, OrgID: &sellerOrg, Role: "seller"},
			Data: payloads.OrderItemStatusChangedEvent{
				OrderItemID:     item.ID,
				OrderID:         item.OrderID,
				SellerOrgID:     item.SellerOrgID,
				Action:          action,
				FromStatus:      from,
				ToStatus:        item.Status,
				TotalPrice:      item.TotalPrice,
				CarrierCode:     item.CarrierCode,
				TrackingNumber:  item.TrackingNumber,
				RejectionReason: item.RejectionReason,
				ChangedAt:       in.Now,
			},
			OccurredAt: in.Now,
		})
	})
	if err != nil {
		s.metrics.FulfillmentTransition(string(action), metrics.OutcomeRejected)
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order item transition")
	}
	s.metrics.FulfillmentTransition(string(action), metrics.OutcomeSuccess)

	logCtx := s.logg.WithOrderID(ctx, item.OrderID.String())
	logCtx = s.logg.WithUserID(logCtx, userID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"order_item_id": item.ID.String(),
		"action":        string(action),
		"from_status":   string(from),
		"to_status":     string(item.Status),
	})
	s.logg.Info(logCtx, "order item transitioned")

	return s.GetItem(ctx, userID, itemID)
}

// loadScoped distinguishes an item owned by another organization (Forbidden)
// from one that does not exist (NotFound).
func (s *service) loadScoped(ctx context.Context, repo *Repository, itemID uuid.UUID, orgIDs []uuid.UUID) (*models.OrderItem, error) {
	item, err := repo.FindForUpdate(ctx, itemID, orgIDs)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order item")
	}
	exists, err := repo.Exists(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order item")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order item belongs to another organization")
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
