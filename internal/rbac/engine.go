package rbac

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

const defaultRoleCacheTTL = 15 * time.Minute

type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeOrg    Scope = "org"
)

// Requirement describes one authorization gate. A nil bypass list falls back to
// the defaults ({admin} globally, {owner} in the tenant); an empty non-nil list
// disables the bypass.
type Requirement struct {
	Roles        []string
	Scope        Scope
	OrgID        *uuid.UUID
	BypassGlobal []string
	BypassTenant []string
}

// RequireGlobal builds a global-scope requirement.
func RequireGlobal(roles ...enums.GlobalRole) Requirement {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return Requirement{Roles: out, Scope: ScopeGlobal}
}

// RequireOrg builds an org-scope requirement for orgID.
func RequireOrg(orgID *uuid.UUID, roles ...enums.OrgRole) Requirement {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return Requirement{Roles: out, Scope: ScopeOrg, OrgID: orgID}
}

func (r Requirement) bypassGlobal() RoleSet {
	if r.BypassGlobal == nil {
		return NewRoleSet(string(enums.GlobalRoleAdmin))
	}
	return NewRoleSet(r.BypassGlobal...)
}

func (r Requirement) bypassTenant() RoleSet {
	if r.BypassTenant == nil {
		return NewRoleSet(string(enums.OrgRoleOwner))
	}
	return NewRoleSet(r.BypassTenant...)
}

type membershipLoader interface {
	GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.OrgMembership, error)
}

type EngineParams struct {
	Memberships membershipLoader
	Cache       RoleCache
	CacheTTL    time.Duration
	Logger      *logger.Logger
}

// Engine evaluates authorization gates against expanded role sets.
type Engine struct {
	memberships membershipLoader
	cache       RoleCache
	ttl         time.Duration
	logg        *logger.Logger
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Memberships == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership loader required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultRoleCacheTTL
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Engine{
		memberships: params.Memberships,
		cache:       params.Cache,
		ttl:         ttl,
		logg:        logg,
	}, nil
}

// LoadCachedRoles returns the user's direct global roles through the cache. Cache
// failures degrade to the user record rather than failing the request.
func (e *Engine) LoadCachedRoles(ctx context.Context, user *models.User) ([]string, error) {
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	if e.cache == nil {
		return normalizeRoles(user.GlobalRoles), nil
	}

	key := e.cache.Key(user.ID.String(), user.AuthVersion)
	cached, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "role cache read failed")
	} else if ok {
		return decodeRoles(cached), nil
	}

	roles := normalizeRoles(user.GlobalRoles)
	if err := e.cache.Set(ctx, key, encodeRoles(roles), e.ttl); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "role cache write failed")
	}
	return roles, nil
}

// GlobalRoles returns the expanded global role set of the user.
func (e *Engine) GlobalRoles(ctx context.Context, user *models.User) (RoleSet, error) {
	roles, err := e.LoadCachedRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	return ExpandRoles(roles, GlobalImplications), nil
}

// Authorize returns nil when user satisfies req, otherwise a typed error.
func (e *Engine) Authorize(ctx context.Context, user *models.User, req Requirement) error {
	global, err := e.GlobalRoles(ctx, user)
	if err != nil {
		return err
	}
	if global.Intersects(req.bypassGlobal()) {
		return nil
	}

	required := NewRoleSet(req.Roles...)
	switch req.Scope {
	case ScopeGlobal, "":
		if !global.Contains(required) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role").
				WithDetails(map[string]any{"required": required.Sorted()})
		}
		return nil
	case ScopeOrg:
		return e.authorizeOrg(ctx, user, req, required)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown authorization scope")
	}
}

func (e *Engine) authorizeOrg(ctx context.Context, user *models.User, req Requirement, required RoleSet) error {
	if req.OrgID == nil || *req.OrgID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "organization id is required")
	}
	membership, err := e.memberships.GetMembership(ctx, user.ID, *req.OrgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this organization")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}

	tenant := ExpandRoles([]string{string(membership.Role)}, TenantImplications)
	if tenant.Intersects(req.bypassTenant()) {
		return nil
	}
	if !tenant.Contains(required) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient organization role").
			WithDetails(map[string]any{"required": required.Sorted()})
	}
	return nil
}

func normalizeRoles(raw []string) []string {
	set := RoleSet{}
	for _, role := range raw {
		if parsed, err := enums.ParseGlobalRole(strings.TrimSpace(role)); err == nil {
			set[string(parsed)] = struct{}{}
		}
	}
	return set.Sorted()
}

func encodeRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func decodeRoles(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}
