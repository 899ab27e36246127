package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	accountsDomain "github.com/AzielCF/az-admin/accounts/domain"
	accountsRepo "github.com/AzielCF/az-admin/accounts/repository"
	auditApp "github.com/AzielCF/az-admin/audit/application"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	"github.com/AzielCF/az-admin/bulk/domain"
	"github.com/AzielCF/az-admin/bulk/repository"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/metrics"
	"github.com/AzielCF/az-admin/validations"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// snapshotLimit caps how many rows are copied into previous_values.
const snapshotLimit = 100

// Engine executes confirmed bulk mutations. Each call is one transaction that
// also contains its audit record; cache invalidation follows the commit.
type Engine struct {
	db          *gorm.DB
	collections *repository.CollectionsGormRepository
	accounts    *accountsRepo.AccountsGormRepository
	trail       *auditApp.Trail
	cache       cacheDomain.Invalidator
	access      accessDomain.Checker
	now         func() time.Time

	// afterStep runs after each collection is processed inside the transaction.
	afterStep func(collection string) error
}

func NewEngine(
	db *gorm.DB,
	accounts *accountsRepo.AccountsGormRepository,
	trail *auditApp.Trail,
	cache cacheDomain.Invalidator,
	access accessDomain.Checker,
) *Engine {
	return &Engine{
		db:          db,
		collections: repository.NewCollectionsGormRepository(db),
		accounts:    accounts,
		trail:       trail,
		cache:       cache,
		access:      access,
		now:         time.Now,
	}
}

func (e *Engine) Execute(ctx context.Context, actor accessDomain.Actor, req domain.Request) (domain.Result, error) {
	if err := validations.ValidateBulkAction(ctx, req); err != nil {
		return domain.Result{}, err
	}
	spec := domain.Specs[req.Action]

	if !e.access.HasCapability(actor.Role, spec.Capability) {
		metrics.BulkOperations.WithLabelValues(string(req.Action), "denied").Inc()
		e.trail.RecordDenied(ctx, actor.ID, string(actor.Role), string(spec.AuditAction), auditDomain.RequestMetadata{
			IP:        actor.IP,
			UserAgent: actor.UserAgent,
			RequestID: actor.RequestID,
		})
		return domain.Result{}, pkgError.AuthorizationError(fmt.Sprintf("role %q may not run %s", actor.Role, req.Action))
	}

	if err := validations.ValidateBulkRequest(ctx, req); err != nil {
		metrics.BulkOperations.WithLabelValues(string(req.Action), "invalid").Inc()
		return domain.Result{}, err
	}

	protect := spec.ProtectsMasters && !e.access.HasCapability(actor.Role, accessDomain.CapMutateProtected)

	var result domain.Result
	txCtx := context.WithoutCancel(ctx)
	err := e.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		run := &execution{
			engine:      e,
			ctx:         txCtx,
			tx:          tx,
			collections: e.collections.WithTx(tx),
			spec:        spec,
			req:         req,
			protect:     protect,
		}
		res, previous, err := run.perform()
		if err != nil {
			return err
		}
		result = res

		details := map[string]any{
			"records_affected": res.RecordsAffected,
			"filters_applied":  res.FiltersApplied,
			"target":           res.Target,
		}
		if len(res.SubResults) > 0 {
			details["sub_results"] = res.SubResults
		}
		if res.Truncated {
			details["truncated"] = true
		}

		_, err = e.trail.RecordTx(txCtx, tx, auditDomain.Record{
			ActorID:        actor.ID,
			ActorRole:      string(actor.Role),
			Action:         spec.AuditAction,
			TargetID:       req.Target,
			PreviousValues: previous,
			NewValues:      newValues(req),
			Details:        details,
			Request: auditDomain.RequestMetadata{
				IP:        actor.IP,
				UserAgent: actor.UserAgent,
				RequestID: actor.RequestID,
			},
		})
		return err
	})
	if err != nil {
		metrics.BulkOperations.WithLabelValues(string(req.Action), "failed").Inc()
		logrus.WithError(err).WithFields(logrus.Fields{
			"actor":  actor.ID,
			"action": req.Action,
			"target": req.Target,
		}).Error("[BULK] operation rolled back")

		var generic pkgError.GenericError
		if errors.As(err, &generic) {
			return domain.Result{}, err
		}
		return domain.Result{}, pkgError.NewTransactionError(string(req.Action), err)
	}

	invalidated := e.cache.InvalidateNamespaces(ctx, spec.Namespaces...)
	metrics.BulkOperations.WithLabelValues(string(req.Action), "committed").Inc()
	logrus.WithFields(logrus.Fields{
		"actor":       actor.ID,
		"action":      req.Action,
		"target":      req.Target,
		"affected":    result.RecordsAffected,
		"invalidated": invalidated,
	}).Info("[BULK] operation committed")

	return result, nil
}

// execution holds the state of one Execute call inside its transaction.
type execution struct {
	engine      *Engine
	ctx         context.Context
	tx          *gorm.DB
	collections *repository.CollectionsGormRepository
	spec        domain.Spec
	req         domain.Request
	protect     bool
}

func (x *execution) perform() (domain.Result, map[string]any, error) {
	res := domain.Result{
		Action:         x.req.Action,
		Target:         x.req.Target,
		FiltersApplied: x.filtersApplied(),
		SubResults:     map[string]int64{},
	}

	var previous map[string]any
	var err error
	switch x.req.Action {
	case domain.ActionUpdate:
		previous, err = x.update(&res)
	case domain.ActionResetBalances:
		previous, err = x.resetBalances(&res)
	case domain.ActionCleanupExpired:
		err = x.cleanupExpired(&res)
	case domain.ActionExport:
		err = x.export(&res)
	case domain.ActionMaintenance:
		err = x.maintenance(&res)
	default:
		err = pkgError.ValidationError(fmt.Sprintf("unsupported action %q", x.req.Action))
	}
	if err != nil {
		return domain.Result{}, nil, err
	}

	for _, n := range res.SubResults {
		res.RecordsAffected += n
	}
	if x.req.Action == domain.ActionUpdate || x.req.Action == domain.ActionResetBalances {
		res.SubResults = nil
	}
	return res, previous, nil
}

func (x *execution) step(collection string) error {
	if x.engine.afterStep == nil {
		return nil
	}
	return x.engine.afterStep(collection)
}

func (x *execution) scope(collection string) (repository.Scope, error) {
	scope, err := x.collections.BuildScope(collection, x.req.Filters, x.protect)
	if err != nil {
		return nil, pkgError.ValidationError(err.Error())
	}
	return scope, nil
}

func (x *execution) filtersApplied() map[string]any {
	applied := make(map[string]any, len(x.req.Filters)+1)
	for k, v := range x.req.Filters {
		applied[k] = v
	}
	if x.protect {
		applied["exclude_role"] = string(accessDomain.RoleMaster)
	}
	return applied
}

func (x *execution) update(res *domain.Result) (map[string]any, error) {
	collection := x.req.Target
	scope, err := x.scope(collection)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(x.req.Updates))
	for k := range x.req.Updates {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	previous, err := x.snapshot(collection, scope, columns)
	if err != nil {
		return nil, err
	}

	n, err := x.collections.Update(x.ctx, collection, scope, x.req.Updates)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", collection, err)
	}
	res.SubResults[collection] = n
	return previous, x.step(collection)
}

func (x *execution) resetBalances(res *domain.Result) (map[string]any, error) {
	scope, err := x.scope(accountsDomain.CollectionUsers)
	if err != nil {
		return nil, err
	}

	floor := resetFloor(x.req)

	previous, err := x.snapshot(accountsDomain.CollectionUsers, scope, []string{domain.BalanceField})
	if err != nil {
		return nil, err
	}

	n, err := x.collections.ResetBalances(x.ctx, scope, floor)
	if err != nil {
		return nil, fmt.Errorf("reset balances: %w", err)
	}
	res.SubResults[accountsDomain.CollectionUsers] = n
	return previous, x.step(accountsDomain.CollectionUsers)
}

func (x *execution) cleanupExpired(res *domain.Result) error {
	now := x.engine.now()
	for _, collection := range x.spec.Collections(x.req.Target) {
		scope, err := x.scope(collection)
		if err != nil {
			return err
		}
		n, err := x.collections.ExpireStale(x.ctx, collection, scope, now)
		if err != nil {
			return fmt.Errorf("expire %s: %w", collection, err)
		}
		res.SubResults[collection] = n
		if err := x.step(collection); err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) export(res *domain.Result) error {
	res.Records = make(map[string][]map[string]any)
	for _, collection := range x.spec.Collections(x.req.Target) {
		scope, err := x.scope(collection)
		if err != nil {
			return err
		}
		rows, truncated, err := x.collections.Export(x.ctx, collection, scope, domain.ExportCap)
		if err != nil {
			return fmt.Errorf("export %s: %w", collection, err)
		}
		res.Records[collection] = rows
		res.SubResults[collection] = int64(len(rows))
		res.Truncated = res.Truncated || truncated
		if err := x.step(collection); err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) maintenance(res *domain.Result) error {
	report, err := x.engine.accounts.WithTx(x.tx).RepairIntegrity(x.ctx, x.protect)
	if err != nil {
		return fmt.Errorf("repair references: %w", err)
	}
	res.SubResults["users.parent_id"] = report.DanglingParents
	res.SubResults["users.friend_ids"] = report.DanglingFriendRefs
	res.SubResults[accountsDomain.CollectionPendingActions] = report.OrphanPendingActions
	res.SubResults["coin_transactions.counterparty_id"] = report.DanglingCounterparties
	return x.step(accountsDomain.CollectionUsers)
}

func (x *execution) snapshot(collection string, scope repository.Scope, columns []string) (map[string]any, error) {
	rows, err := x.collections.Snapshot(x.ctx, collection, scope, columns, snapshotLimit+1)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", collection, err)
	}
	sampled := len(rows) > snapshotLimit
	if sampled {
		rows = rows[:snapshotLimit]
	}
	return map[string]any{"rows": rows, "sampled": sampled}, nil
}

func newValues(req domain.Request) map[string]any {
	if req.Action == domain.ActionResetBalances {
		return map[string]any{domain.BalanceField: resetFloor(req)}
	}
	if len(req.Updates) == 0 {
		return nil
	}
	out := make(map[string]any, len(req.Updates))
	for k, v := range req.Updates {
		out[k] = v
	}
	return out
}

// resetFloor is the balance a reset assigns: updates.kidzcoin when given, never below zero.
func resetFloor(req domain.Request) int64 {
	var floor int64
	if v, ok := req.Updates[domain.BalanceField]; ok {
		floor, _ = repository.AsInt64(v)
	}
	if floor < 0 {
		floor = 0
	}
	return floor
}
