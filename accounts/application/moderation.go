package application

import (
	"context"
	"errors"
	"fmt"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	"github.com/AzielCF/az-admin/accounts/domain"
	"github.com/AzielCF/az-admin/accounts/repository"
	auditApp "github.com/AzielCF/az-admin/audit/application"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
	notifyDomain "github.com/AzielCF/az-admin/notify/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/validations"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ModerationService changes account status. Every change is written together
// with its audit record in one transaction.
type ModerationService struct {
	db       *gorm.DB
	repo     *repository.AccountsGormRepository
	trail    *auditApp.Trail
	cache    cacheDomain.Invalidator
	notifier notifyDomain.Notifier
	access   accessDomain.Checker
}

func NewModerationService(
	db *gorm.DB,
	repo *repository.AccountsGormRepository,
	trail *auditApp.Trail,
	cache cacheDomain.Invalidator,
	notifier notifyDomain.Notifier,
	access accessDomain.Checker,
) *ModerationService {
	return &ModerationService{
		db:       db,
		repo:     repo,
		trail:    trail,
		cache:    cache,
		notifier: notifier,
		access:   access,
	}
}

type transition struct {
	action     auditDomain.Action
	capability accessDomain.Capability
	status     domain.Status
	needReason bool
	message    func(reason string) string
}

var (
	suspendTransition = transition{
		action:     auditDomain.ActionSuspend,
		capability: accessDomain.CapModerateUsers,
		status:     domain.StatusSuspended,
		needReason: true,
		message: func(reason string) string {
			return fmt.Sprintf("Your account has been suspended. Reason: %s", reason)
		},
	}
	activateTransition = transition{
		action:     auditDomain.ActionActivate,
		capability: accessDomain.CapModerateUsers,
		status:     domain.StatusActive,
		message: func(string) string {
			return "Your account has been reactivated."
		},
	}
	banTransition = transition{
		action:     auditDomain.ActionBan,
		capability: accessDomain.CapBanUsers,
		status:     domain.StatusBanned,
		needReason: true,
		message: func(reason string) string {
			return fmt.Sprintf("Your account has been banned. Reason: %s", reason)
		},
	}
)

func (s *ModerationService) Suspend(ctx context.Context, actor accessDomain.Actor, req domain.ModerationRequest) (domain.User, error) {
	return s.apply(ctx, actor, req, suspendTransition)
}

func (s *ModerationService) Activate(ctx context.Context, actor accessDomain.Actor, req domain.ModerationRequest) (domain.User, error) {
	return s.apply(ctx, actor, req, activateTransition)
}

func (s *ModerationService) Ban(ctx context.Context, actor accessDomain.Actor, req domain.ModerationRequest) (domain.User, error) {
	return s.apply(ctx, actor, req, banTransition)
}

func (s *ModerationService) apply(ctx context.Context, actor accessDomain.Actor, req domain.ModerationRequest, t transition) (domain.User, error) {
	if !s.access.HasCapability(actor.Role, t.capability) {
		s.trail.RecordDenied(ctx, actor.ID, string(actor.Role), string(t.action), requestMetadata(actor))
		return domain.User{}, pkgError.AuthorizationError(fmt.Sprintf("role %q may not %s users", actor.Role, t.action))
	}
	if err := validations.ValidateModeration(ctx, req, t.needReason); err != nil {
		return domain.User{}, err
	}

	var updated domain.User
	// The transaction outlives the request context.
	txCtx := context.WithoutCancel(ctx)
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		user, err := repo.GetUser(txCtx, req.UserID)
		if err != nil {
			return err
		}
		if user.Role == accessDomain.RoleMaster && !s.access.HasCapability(actor.Role, accessDomain.CapMutateProtected) {
			return domain.ErrProtectedUser
		}

		previous := user.Snapshot()
		fields := map[string]interface{}{"status": string(t.status)}
		if t.status == domain.StatusActive {
			fields["suspend_reason"] = nil
		} else {
			fields["suspend_reason"] = req.Reason
		}
		if err := repo.UpdateUserFields(txCtx, user.ID, fields); err != nil {
			return err
		}

		updated, err = repo.GetUser(txCtx, user.ID)
		if err != nil {
			return err
		}

		_, err = s.trail.RecordTx(txCtx, tx, auditDomain.Record{
			ActorID:        actor.ID,
			ActorRole:      string(actor.Role),
			Action:         t.action,
			TargetID:       user.ID,
			Reason:         req.Reason,
			PreviousValues: previous,
			NewValues:      updated.Snapshot(),
			Request:        requestMetadata(actor),
		})
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return domain.User{}, pkgError.NotFound("user", req.UserID)
		case errors.Is(err, domain.ErrProtectedUser):
			s.trail.RecordDenied(ctx, actor.ID, string(actor.Role), string(t.action)+":"+req.UserID, requestMetadata(actor))
			return domain.User{}, pkgError.AuthorizationError("only a master account may moderate another master account")
		}
		logrus.WithError(err).WithField("user_id", req.UserID).Errorf("[MODERATION] %s failed", t.action)
		return domain.User{}, pkgError.NewTransactionError(string(t.action), err)
	}

	s.cache.InvalidateNamespaces(ctx, cacheDomain.AllNamespaces...)

	if s.notifier != nil {
		n := notifyDomain.Notification{UserID: updated.ID, Message: t.message(req.Reason), ViaEmail: true}
		if err := s.notifier.Notify(ctx, n); err != nil {
			logrus.WithError(err).WithField("user_id", updated.ID).Warn("[MODERATION] notification failed")
		}
	}

	logrus.WithFields(logrus.Fields{
		"actor":  actor.ID,
		"user":   updated.ID,
		"status": updated.Status,
	}).Infof("[MODERATION] %s applied", t.action)
	return updated, nil
}

// Authorize rejects suspended and banned users.
func (s *ModerationService) Authorize(ctx context.Context, userID string) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return pkgError.NotFound("user", userID)
		}
		return err
	}
	switch user.Status {
	case domain.StatusSuspended:
		return pkgError.AuthorizationError(fmt.Sprintf("account suspended: %s", user.SuspendReason))
	case domain.StatusBanned:
		return pkgError.AuthorizationError("account banned")
	}
	return nil
}

func (s *ModerationService) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, pkgError.NotFound("user", id)
	}
	return user, err
}

func (s *ModerationService) ListUsers(ctx context.Context, filter domain.UserFilter) (domain.UserPage, error) {
	if err := validations.ValidateUserFilter(ctx, filter); err != nil {
		return domain.UserPage{}, err
	}
	return s.repo.ListUsers(ctx, filter)
}

func requestMetadata(actor accessDomain.Actor) auditDomain.RequestMetadata {
	return auditDomain.RequestMetadata{
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		RequestID: actor.RequestID,
	}
}
