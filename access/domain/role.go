package domain

import "strings"

// Role is the account role carried by every admin request.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleMaster    Role = "master"
)

// Roles lists every known role from least to most privileged.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin, RoleMaster}

// ParseRole maps a raw role name onto a Role. Unknown names map to RoleUser.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleModerator:
		return RoleModerator
	case RoleAdmin:
		return RoleAdmin
	case RoleMaster:
		return RoleMaster
	default:
		return RoleUser
	}
}

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Privileged roles are exempt from request quotas.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleMaster
}

// Capability names a single admin permission.
type Capability string

const (
	CapViewAnalytics     Capability = "view_analytics"
	CapViewAlerts        Capability = "view_alerts"
	CapViewLogs          Capability = "view_logs"
	CapViewUsers         Capability = "view_users"
	CapModerateUsers     Capability = "moderate_users"
	CapExportData        Capability = "export_data"
	CapBanUsers          Capability = "ban_users"
	CapBulkUpdate        Capability = "bulk_update"
	CapResetBalances     Capability = "reset_balances"
	CapCleanupExpired    Capability = "cleanup_expired"
	CapSystemMaintenance Capability = "system_maintenance"
	CapFlushCache        Capability = "flush_cache"
	// CapMutateProtected allows touching master accounts.
	CapMutateProtected Capability = "mutate_protected"
)

// Grants is the capability table per role, excluding what a role inherits.
var Grants = map[Role][]Capability{
	RoleModerator: {
		CapViewAnalytics, CapViewAlerts, CapViewLogs, CapViewUsers,
		CapModerateUsers, CapExportData,
	},
	RoleAdmin: {
		CapBanUsers, CapBulkUpdate, CapResetBalances, CapCleanupExpired,
		CapSystemMaintenance, CapFlushCache,
	},
	RoleMaster: {
		CapMutateProtected,
	},
}

// Inherits lists the direct parent each role extends.
var Inherits = map[Role]Role{
	RoleAdmin:  RoleModerator,
	RoleMaster: RoleAdmin,
}

// Actor identifies who performs an admin request.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	IP   string `json:"ip,omitempty"`
	// Set by the REST layer for audit metadata.
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SystemActor performs scheduled maintenance from the CLI.
var SystemActor = Actor{ID: "system", Role: RoleMaster}

// Checker answers capability questions for a role.
type Checker interface {
	HasCapability(role Role, capability Capability) bool
}
