package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// MembershipWithOrg includes basic organization metadata + membership info.
type MembershipWithOrg struct {
	OrgID     uuid.UUID     `json:"org_id"`
	OrgName   string        `json:"org_name"`
	UserID    uuid.UUID     `json:"user_id"`
	Role      enums.OrgRole `json:"role"`
	CreatedAt time.Time     `json:"created_at"`
}

type membershipWithOrgRow struct {
	models.OrgMembership
	OrgName string `gorm:"column:org_name"`
}

func membershipRowsToDTO(rows []membershipWithOrgRow) []MembershipWithOrg {
	out := make([]MembershipWithOrg, 0, len(rows))
	for _, row := range rows {
		out = append(out, MembershipWithOrg{
			OrgID:     row.OrgID,
			OrgName:   row.OrgName,
			UserID:    row.UserID,
			Role:      row.Role,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}
