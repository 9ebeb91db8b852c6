package memberships

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// Repository exposes organization and membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateOrganization persists a new organization owned by ownerID.
func (r *Repository) CreateOrganization(ctx context.Context, name string, ownerID uuid.UUID) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}
	org := &models.Organization{
		ID:      uuid.New(),
		Name:    name,
		OwnerID: ownerID,
	}
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return nil, err
	}
	return org, nil
}

// CreateMembership persists a new membership record. Memberships created without an
// inviter are accepted immediately.
func (r *Repository) CreateMembership(ctx context.Context, orgID, userID uuid.UUID, role enums.OrgRole, invitedBy *uuid.UUID) (*models.OrgMembership, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid org role %q", role)
	}
	now := time.Now().UTC()
	membership := &models.OrgMembership{
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		InvitedBy: invitedBy,
	}
	if invitedBy != nil {
		membership.InvitedAt = &now
	} else {
		membership.AcceptedAt = &now
	}
	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

// GetMembership retrieves a membership by user and organization.
func (r *Repository) GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.OrgMembership, error) {
	var membership models.OrgMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListUserOrgs returns the organizations a user belongs to with membership metadata.
func (r *Repository) ListUserOrgs(ctx context.Context, userID uuid.UUID) ([]MembershipWithOrg, error) {
	var rows []membershipWithOrgRow
	err := r.db.WithContext(ctx).
		Model(&models.OrgMembership{}).
		Select("org_memberships.*, organizations.name AS org_name").
		Joins("JOIN organizations ON organizations.id = org_memberships.org_id").
		Where("org_memberships.user_id = ?", userID).
		Order("organizations.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return membershipRowsToDTO(rows), nil
}

// ListOrgIDs returns every organization id the user is a member of.
func (r *Repository) ListOrgIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.OrgMembership{}).
		Where("user_id = ?", userID).
		Order("org_id").
		Pluck("org_id", &ids).Error
	return ids, err
}
