package repository

import (
	"context"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	json "github.com/goccy/go-json"
	"gorm.io/gorm"
)

// IntegrityReport counts cross-collection references that point at missing users.
type IntegrityReport struct {
	DanglingParents        int64 `json:"dangling_parents"`
	DanglingFriendRefs     int64 `json:"dangling_friend_refs"`
	OrphanPendingActions   int64 `json:"orphan_pending_actions"`
	DanglingCounterparties int64 `json:"dangling_counterparties"`
}

func (r IntegrityReport) Total() int64 {
	return r.DanglingParents + r.DanglingFriendRefs + r.OrphanPendingActions + r.DanglingCounterparties
}

func (r *AccountsGormRepository) userIDs(db *gorm.DB) *gorm.DB {
	return db.Model(&userModel{}).Select("id")
}

func (r *AccountsGormRepository) masterIDs() *gorm.DB {
	return r.userIDs(r.db.Session(&gorm.Session{NewDB: true})).Where("role = ?", string(accessDomain.RoleMaster))
}

func (r *AccountsGormRepository) danglingParents(db *gorm.DB) *gorm.DB {
	return db.Model(&userModel{}).Where("parent_id IS NOT NULL AND parent_id NOT IN (?)", r.userIDs(r.db.Session(&gorm.Session{NewDB: true})))
}

func (r *AccountsGormRepository) orphanPendingActions(db *gorm.DB) *gorm.DB {
	return db.Model(&pendingActionModel{}).Where("user_id NOT IN (?)", r.userIDs(r.db.Session(&gorm.Session{NewDB: true})))
}

func (r *AccountsGormRepository) danglingCounterparties(db *gorm.DB) *gorm.DB {
	return db.Model(&coinTransactionModel{}).Where("counterparty_id IS NOT NULL AND counterparty_id NOT IN (?)", r.userIDs(r.db.Session(&gorm.Session{NewDB: true})))
}

// friendFixes returns, per user, the friend list with unknown ids removed, and
// the number of removed references. Users with clean lists are omitted, and so
// are master accounts when skipMasters is set.
func (r *AccountsGormRepository) friendFixes(ctx context.Context, skipMasters bool) (map[string][]string, int64, error) {
	var rows []struct {
		ID        string `gorm:"column:id"`
		Role      string `gorm:"column:role"`
		FriendIDs string `gorm:"column:friend_ids"`
	}
	if err := r.db.WithContext(ctx).Model(&userModel{}).Select("id, role, friend_ids").Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	known := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		known[row.ID] = struct{}{}
	}

	fixes := make(map[string][]string)
	var removed int64
	for _, row := range rows {
		if skipMasters && row.Role == string(accessDomain.RoleMaster) {
			continue
		}
		ids := decodeIDList(row.FriendIDs)
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, ok := known[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(ids) {
			fixes[row.ID] = kept
			removed += int64(len(ids) - len(kept))
		}
	}
	return fixes, removed, nil
}

// CheckIntegrity counts dangling references without changing anything.
func (r *AccountsGormRepository) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	var rep IntegrityReport
	db := r.db.WithContext(ctx)

	if err := r.danglingParents(db).Count(&rep.DanglingParents).Error; err != nil {
		return rep, err
	}
	if err := r.orphanPendingActions(db).Count(&rep.OrphanPendingActions).Error; err != nil {
		return rep, err
	}
	if err := r.danglingCounterparties(db).Count(&rep.DanglingCounterparties).Error; err != nil {
		return rep, err
	}
	_, removed, err := r.friendFixes(ctx, false)
	if err != nil {
		return rep, err
	}
	rep.DanglingFriendRefs = removed
	return rep, nil
}

// RepairIntegrity fixes every dangling reference CheckIntegrity reports.
// With protect set, master accounts and the rows they own are left as they are.
// Run it on a transaction-bound repository to make the repair atomic.
func (r *AccountsGormRepository) RepairIntegrity(ctx context.Context, protect bool) (IntegrityReport, error) {
	var rep IntegrityReport
	db := r.db.WithContext(ctx)
	now := time.Now().UTC()

	parents := r.danglingParents(db)
	if protect {
		parents = parents.Where("role <> ?", string(accessDomain.RoleMaster))
	}
	res := parents.Updates(map[string]interface{}{
		"parent_id":  nil,
		"updated_at": now,
	})
	if res.Error != nil {
		return rep, res.Error
	}
	rep.DanglingParents = res.RowsAffected

	fixes, removed, err := r.friendFixes(ctx, protect)
	if err != nil {
		return rep, err
	}
	for id, kept := range fixes {
		data, _ := json.Marshal(kept)
		if err := db.Model(&userModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"friend_ids": string(data),
			"updated_at": now,
		}).Error; err != nil {
			return rep, err
		}
	}
	rep.DanglingFriendRefs = removed

	orphans := r.orphanPendingActions(db)
	if protect {
		orphans = orphans.Where("user_id NOT IN (?)", r.masterIDs())
	}
	res = orphans.Delete(&pendingActionModel{})
	if res.Error != nil {
		return rep, res.Error
	}
	rep.OrphanPendingActions = res.RowsAffected

	counterparties := r.danglingCounterparties(db)
	if protect {
		counterparties = counterparties.Where("user_id NOT IN (?)", r.masterIDs())
	}
	res = counterparties.Update("counterparty_id", nil)
	if res.Error != nil {
		return rep, res.Error
	}
	rep.DanglingCounterparties = res.RowsAffected

	return rep, nil
}
