package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/internal/memberships"
	"github.com/angelmondragon/partsmarket-backend/internal/users"
	"github.com/angelmondragon/partsmarket-backend/pkg/config"
	"github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/security"
)

// RegisterResult identifies what the onboarding transaction created.
type RegisterResult struct {
	User  *users.UserDTO `json:"user"`
	OrgID *uuid.UUID     `json:"organization_id,omitempty"`
}

// RegisterService handles the onboarding transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	TX             txRunner
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type registerService struct {
	tx          txRunner
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &registerService{tx: params.TX, passwordCfg: params.PasswordConfig, logg: logg}, nil
}

// Register creates the user and, when an organization name is supplied, the
// organization with the user as owner. Sellers also receive the merchant role.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	var orgName string
	if req.OrganizationName != nil {
		orgName = strings.TrimSpace(*req.OrganizationName)
		if orgName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization_name cannot be blank")
		}
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	roles := []enums.GlobalRole{enums.GlobalRoleMember}
	if orgName != "" {
		roles = append(roles, enums.GlobalRoleMerchant)
	}

	result := &RegisterResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		membershipRepo := memberships.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			Username:     username,
			PasswordHash: passwordHash,
			GlobalRoles:  roles,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		result.User = users.FromModel(user)

		if orgName == "" {
			return nil
		}
		org, err := membershipRepo.CreateOrganization(ctx, orgName, user.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create organization")
		}
		if _, err := membershipRepo.CreateMembership(ctx, org.ID, user.ID, enums.OrgRoleOwner, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
		}
		result.OrgID = &org.ID
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register user")
	}

	logCtx := s.logg.WithUserID(ctx, result.User.ID.String())
	if result.OrgID != nil {
		logCtx = s.logg.WithOrgID(logCtx, result.OrgID.String())
	}
	s.logg.Info(logCtx, "user registered")
	return result, nil
}
