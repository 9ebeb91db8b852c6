package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

// Service covers user lookups and the mutations that invalidate issued tokens.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, query ListQuery) (*UserList, error)
	BumpAuthVersion(ctx context.Context, id uuid.UUID) (int, error)
	SetGlobalRoles(ctx context.Context, id uuid.UUID, roles []enums.GlobalRole) (int, error)
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo   *Repository
	TX     txRunner
	Logger *logger.Logger
}

type service struct {
	repo *Repository
	tx   txRunner
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repository required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: params.Repo, tx: params.TX, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// List pages through users for the admin console.
func (s *service) List(ctx context.Context, query ListQuery) (*UserList, error) {
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(query.Limit)
	rows, err := s.repo.List(ctx, query.ListFilter, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list users")
	}
	out := &UserList{Items: make([]UserDTO, 0, limit)}
	if len(rows) > limit {
		last := rows[limit-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for i := range rows {
		out.Items = append(out.Items, *FromModel(&rows[i]))
	}
	return out, nil
}

// BumpAuthVersion invalidates every access token and cached role set of the user.
func (s *service) BumpAuthVersion(ctx context.Context, id uuid.UUID) (int, error) {
	version, err := s.repo.BumpAuthVersion(ctx, id)
	if err != nil {
		return 0, s.mapWriteError(err, "bump auth version")
	}
	s.logAuthChange(ctx, id, version, "user auth version bumped")
	return version, nil
}

// SetGlobalRoles replaces the user's global roles and revokes outstanding tokens.
func (s *service) SetGlobalRoles(ctx context.Context, id uuid.UUID, roles []enums.GlobalRole) (int, error) {
	for _, role := range roles {
		if !role.IsValid() {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid global role").
				WithDetails(map[string]any{"role": role})
		}
	}
	var version int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetGlobalRoles(ctx, id, roles); err != nil {
			return err
		}
		v, err := repo.BumpAuthVersion(ctx, id)
		version = v
		return err
	})
	if err != nil {
		return 0, s.mapWriteError(err, "update global roles")
	}
	s.logAuthChange(ctx, id, version, "user global roles updated")
	return version, nil
}

// SetBanned toggles the ban flag and revokes outstanding tokens.
func (s *service) SetBanned(ctx context.Context, id uuid.UUID, banned bool) (int, error) {
	var version int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetBanned(ctx, id, banned); err != nil {
			return err
		}
		v, err := repo.BumpAuthVersion(ctx, id)
		version = v
		return err
	})
	if err != nil {
		return 0, s.mapWriteError(err, "update ban flag")
	}
	s.logAuthChange(ctx, id, version, "user ban flag updated")
	return version, nil
}

func (s *service) mapWriteError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func (s *service) logAuthChange(ctx context.Context, id uuid.UUID, version int, msg string) {
	logCtx := s.logg.WithUserID(ctx, id.String())
	logCtx = s.logg.WithField(logCtx, "auth_version", version)
	s.logg.Info(logCtx, msg)
}
