package domain

import (
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	accountsDomain "github.com/AzielCF/az-admin/accounts/domain"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
)

type Action string

const (
	ActionUpdate         Action = "update"
	ActionResetBalances  Action = "reset_balances"
	ActionCleanupExpired Action = "cleanup_expired"
	ActionExport         Action = "export"
	ActionMaintenance    Action = "maintenance"
)

// TargetAll addresses every collection an action supports.
const TargetAll = "all"

// ExportCap bounds the rows returned per collection by an export.
const ExportCap = 1000

// Spec describes what an action may touch and who may run it.
type Spec struct {
	Capability  accessDomain.Capability
	AuditAction auditDomain.Action
	Targets     []string
	// Collections expanded from TargetAll.
	AllTargets []string
	Mutating   bool
	Namespaces []string
	// ProtectsMasters leaves master accounts and their rows untouched unless
	// the actor may mutate protected accounts.
	ProtectsMasters bool
}

var Specs = map[Action]Spec{
	ActionUpdate: {
		Capability:      accessDomain.CapBulkUpdate,
		AuditAction:     auditDomain.ActionBulkUpdate,
		Targets:         []string{accountsDomain.CollectionUsers, accountsDomain.CollectionPendingActions, accountsDomain.CollectionInvitations},
		Mutating:        true,
		Namespaces:      cacheDomain.AllNamespaces,
		ProtectsMasters: true,
	},
	ActionResetBalances: {
		Capability:      accessDomain.CapResetBalances,
		AuditAction:     auditDomain.ActionBulkResetBalances,
		Targets:         []string{accountsDomain.CollectionUsers},
		Mutating:        true,
		Namespaces:      cacheDomain.AllNamespaces,
		ProtectsMasters: true,
	},
	ActionCleanupExpired: {
		Capability:  accessDomain.CapCleanupExpired,
		AuditAction: auditDomain.ActionBulkCleanupExpired,
		Targets:     []string{TargetAll, accountsDomain.CollectionPendingActions, accountsDomain.CollectionInvitations},
		AllTargets:  []string{accountsDomain.CollectionPendingActions, accountsDomain.CollectionInvitations},
		Mutating:    true,
		Namespaces:  cacheDomain.AllNamespaces,
	},
	ActionExport: {
		Capability:  accessDomain.CapExportData,
		AuditAction: auditDomain.ActionBulkExport,
		Targets: []string{
			TargetAll,
			accountsDomain.CollectionUsers, accountsDomain.CollectionPendingActions,
			accountsDomain.CollectionInvitations, accountsDomain.CollectionCoinTransactions,
		},
		AllTargets: []string{
			accountsDomain.CollectionUsers, accountsDomain.CollectionPendingActions,
			accountsDomain.CollectionInvitations, accountsDomain.CollectionCoinTransactions,
		},
		Namespaces: []string{cacheDomain.NamespaceLogs},
	},
	ActionMaintenance: {
		Capability:      accessDomain.CapSystemMaintenance,
		AuditAction:     auditDomain.ActionSystemMaintenance,
		Targets:         []string{TargetAll},
		Mutating:        true,
		Namespaces:      cacheDomain.AllNamespaces,
		ProtectsMasters: true,
	},
}

// Collections resolves target into the concrete collections for spec.
func (s Spec) Collections(target string) []string {
	if target == TargetAll && len(s.AllTargets) > 0 {
		return s.AllTargets
	}
	return []string{target}
}

// FilterKind says how a filter value is applied to its column.
type FilterKind int

const (
	FilterEquals FilterKind = iota
	FilterIn
	FilterBefore
	FilterAfter
	FilterMin
	FilterMax
)

type FilterField struct {
	Column string
	Kind   FilterKind
}

// Filters lists the accepted filter keys per collection.
var Filters = map[string]map[string]FilterField{
	accountsDomain.CollectionUsers: {
		"ids":            {Column: "id", Kind: FilterIn},
		"role":           {Column: "role", Kind: FilterEquals},
		"status":         {Column: "status", Kind: FilterEquals},
		"created_before": {Column: "created_at", Kind: FilterBefore},
		"created_after":  {Column: "created_at", Kind: FilterAfter},
		"min_balance":    {Column: "kidzcoin", Kind: FilterMin},
		"max_balance":    {Column: "kidzcoin", Kind: FilterMax},
	},
	accountsDomain.CollectionPendingActions: {
		"ids":            {Column: "id", Kind: FilterIn},
		"status":         {Column: "status", Kind: FilterEquals},
		"kind":           {Column: "kind", Kind: FilterEquals},
		"user_id":        {Column: "user_id", Kind: FilterEquals},
		"expires_before": {Column: "expires_at", Kind: FilterBefore},
	},
	accountsDomain.CollectionInvitations: {
		"ids":            {Column: "id", Kind: FilterIn},
		"status":         {Column: "status", Kind: FilterEquals},
		"inviter_id":     {Column: "inviter_id", Kind: FilterEquals},
		"expires_before": {Column: "expires_at", Kind: FilterBefore},
	},
	accountsDomain.CollectionCoinTransactions: {
		"user_id":        {Column: "user_id", Kind: FilterEquals},
		"created_before": {Column: "created_at", Kind: FilterBefore},
		"created_after":  {Column: "created_at", Kind: FilterAfter},
	},
}

// Updatable lists the columns a bulk update may set, with allowed values when restricted.
var Updatable = map[string]map[string][]string{
	accountsDomain.CollectionUsers: {
		"status":         {string(accountsDomain.StatusActive), string(accountsDomain.StatusSuspended), string(accountsDomain.StatusBanned)},
		"suspend_reason": nil,
		"display_name":   nil,
	},
	accountsDomain.CollectionPendingActions: {
		"status": {
			string(accountsDomain.PendingStatusPending), string(accountsDomain.PendingStatusApproved),
			string(accountsDomain.PendingStatusRejected), string(accountsDomain.PendingStatusExpired),
		},
	},
	accountsDomain.CollectionInvitations: {
		"status": {string(accountsDomain.InvitationPending), string(accountsDomain.InvitationAccepted), string(accountsDomain.InvitationExpired)},
	},
}

// OwnerColumn links a collection row to the user it belongs to.
var OwnerColumn = map[string]string{
	accountsDomain.CollectionUsers:            "id",
	accountsDomain.CollectionPendingActions:   "user_id",
	accountsDomain.CollectionInvitations:      "inviter_id",
	accountsDomain.CollectionCoinTransactions: "user_id",
}

// BalanceField is the updates key that overrides the reset floor.
const BalanceField = "kidzcoin"

type Request struct {
	Action    Action         `json:"action"`
	Target    string         `json:"target"`
	Filters   map[string]any `json:"filters"`
	Updates   map[string]any `json:"updates"`
	Confirmed bool           `json:"confirmed"`
}

type Result struct {
	Action          Action           `json:"action"`
	Target          string           `json:"target"`
	FiltersApplied  map[string]any   `json:"filters_applied"`
	RecordsAffected int64            `json:"records_affected"`
	SubResults      map[string]int64 `json:"sub_results,omitempty"`
	// Export only.
	Records   map[string][]map[string]any `json:"records,omitempty"`
	Truncated bool                        `json:"truncated,omitempty"`
}

// Response is the envelope returned to API callers.
type Response struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Action      Action    `json:"action"`
	Target      string    `json:"target"`
	Result      Result    `json:"result"`
	PerformedBy string    `json:"performed_by"`
	Timestamp   time.Time `json:"timestamp"`
}
