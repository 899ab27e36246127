package repository

import (
	"context"
	"fmt"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	accountsDomain "github.com/AzielCF/az-admin/accounts/domain"
	"github.com/AzielCF/az-admin/bulk/domain"
	"gorm.io/gorm"
)

// Scope narrows a query on one collection.
type Scope func(db *gorm.DB) *gorm.DB

// timestamped collections carry an updated_at column.
var timestamped = map[string]bool{
	accountsDomain.CollectionUsers: true,
}

// CollectionsGormRepository runs filtered bulk statements against the account
// collections by table name.
type CollectionsGormRepository struct {
	db *gorm.DB
}

func NewCollectionsGormRepository(db *gorm.DB) *CollectionsGormRepository {
	return &CollectionsGormRepository{db: db}
}

func (r *CollectionsGormRepository) WithTx(tx *gorm.DB) *CollectionsGormRepository {
	return &CollectionsGormRepository{db: tx}
}

// BuildScope turns validated filters into a Scope. When protect is set, rows
// owned by master accounts are excluded.
func (r *CollectionsGormRepository) BuildScope(collection string, filters map[string]any, protect bool) (Scope, error) {
	fields, ok := domain.Filters[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	type clause struct {
		query string
		arg   any
	}
	var clauses []clause
	for key, raw := range filters {
		field, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("filter %q is not supported for %s", key, collection)
		}
		arg, err := filterArg(field.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", key, err)
		}
		clauses = append(clauses, clause{query: condition(field), arg: arg})
	}

	var protectClause *clause
	if protect {
		owner := domain.OwnerColumn[collection]
		if collection == accountsDomain.CollectionUsers {
			protectClause = &clause{query: "role <> ?", arg: string(accessDomain.RoleMaster)}
		} else {
			masters := r.db.Session(&gorm.Session{NewDB: true}).
				Table(accountsDomain.CollectionUsers).Select("id").Where("role = ?", string(accessDomain.RoleMaster))
			protectClause = &clause{query: owner + " NOT IN (?)", arg: masters}
		}
	}

	return func(db *gorm.DB) *gorm.DB {
		for _, c := range clauses {
			db = db.Where(c.query, c.arg)
		}
		if protectClause != nil {
			db = db.Where(protectClause.query, protectClause.arg)
		}
		return db
	}, nil
}

func condition(field domain.FilterField) string {
	switch field.Kind {
	case domain.FilterIn:
		return field.Column + " IN ?"
	case domain.FilterBefore:
		return field.Column + " < ?"
	case domain.FilterAfter:
		return field.Column + " >= ?"
	case domain.FilterMin:
		return field.Column + " >= ?"
	case domain.FilterMax:
		return field.Column + " <= ?"
	default:
		return field.Column + " = ?"
	}
}

func filterArg(kind domain.FilterKind, raw any) (any, error) {
	switch kind {
	case domain.FilterIn:
		switch v := raw.(type) {
		case []string:
			return v, nil
		case []any:
			ids := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected a list of ids")
				}
				ids = append(ids, s)
			}
			return ids, nil
		}
		return nil, fmt.Errorf("expected a list of ids")
	case domain.FilterBefore, domain.FilterAfter:
		s, _ := raw.(string)
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case domain.FilterMin, domain.FilterMax:
		n, ok := AsInt64(raw)
		if !ok {
			return nil, fmt.Errorf("expected a number")
		}
		return n, nil
	default:
		return raw, nil
	}
}

// AsInt64 accepts the numeric types JSON decoding and Go callers produce.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func (r *CollectionsGormRepository) table(ctx context.Context, collection string, scope Scope) *gorm.DB {
	return r.db.WithContext(ctx).Table(collection).Scopes(scope)
}

// Count returns how many rows scope selects.
func (r *CollectionsGormRepository) Count(ctx context.Context, collection string, scope Scope) (int64, error) {
	var n int64
	err := r.table(ctx, collection, scope).Count(&n).Error
	return n, err
}

// Update sets fields on every row scope selects.
func (r *CollectionsGormRepository) Update(ctx context.Context, collection string, scope Scope, fields map[string]any) (int64, error) {
	values := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	if timestamped[collection] {
		values["updated_at"] = time.Now().UTC()
	}
	// An empty filter addresses the whole collection.
	res := r.table(ctx, collection, scope).Session(&gorm.Session{AllowGlobalUpdate: true}).Updates(values)
	return res.RowsAffected, res.Error
}

// ResetBalances sets the balance of every selected user to floor, never below zero.
func (r *CollectionsGormRepository) ResetBalances(ctx context.Context, scope Scope, floor int64) (int64, error) {
	if floor < 0 {
		floor = 0
	}
	return r.Update(ctx, accountsDomain.CollectionUsers, scope, map[string]any{"kidzcoin": floor})
}

// ExpireStale marks pending rows whose expiry has passed as expired.
func (r *CollectionsGormRepository) ExpireStale(ctx context.Context, collection string, scope Scope, now time.Time) (int64, error) {
	var pending, expired string
	switch collection {
	case accountsDomain.CollectionPendingActions:
		pending, expired = string(accountsDomain.PendingStatusPending), string(accountsDomain.PendingStatusExpired)
	case accountsDomain.CollectionInvitations:
		pending, expired = string(accountsDomain.InvitationPending), string(accountsDomain.InvitationExpired)
	default:
		return 0, fmt.Errorf("%s has no expiry", collection)
	}

	res := r.table(ctx, collection, scope).
		Where("status = ? AND expires_at < ?", pending, now.UTC()).
		Updates(map[string]interface{}{"status": expired})
	return res.RowsAffected, res.Error
}

// Export reads up to limit rows. The second result reports whether more rows matched.
func (r *CollectionsGormRepository) Export(ctx context.Context, collection string, scope Scope, limit int) ([]map[string]any, bool, error) {
	var rows []map[string]interface{}
	if err := r.table(ctx, collection, scope).Order("created_at DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, false, err
	}

	truncated := len(rows) > limit
	if truncated {
		rows = rows[:limit]
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, truncated, nil
}

// Snapshot reads the current values of columns for up to limit selected rows.
func (r *CollectionsGormRepository) Snapshot(ctx context.Context, collection string, scope Scope, columns []string, limit int) ([]map[string]any, error) {
	var rows []map[string]interface{}
	cols := append([]string{"id"}, columns...)
	if err := r.table(ctx, collection, scope).Select(cols).Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}
