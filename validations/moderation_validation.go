package validations

import (
	"context"

	accountsDomain "github.com/AzielCF/az-admin/accounts/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxReasonLength = 500

func ValidateModeration(ctx context.Context, request accountsDomain.ModerationRequest, reasonRequired bool) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.UserID, validation.Required),
		validation.Field(&request.Reason,
			validation.When(reasonRequired, validation.Required),
			validation.Length(0, maxReasonLength),
		),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateUserFilter(ctx context.Context, filter accountsDomain.UserFilter) error {
	err := validation.ValidateStructWithContext(ctx, &filter,
		validation.Field(&filter.Role, validation.In("user", "moderator", "admin", "master")),
		validation.Field(&filter.Status, validation.In(
			string(accountsDomain.StatusActive),
			string(accountsDomain.StatusSuspended),
			string(accountsDomain.StatusBanned),
		)),
		validation.Field(&filter.Page, validation.Min(0)),
		validation.Field(&filter.Limit, validation.Min(0), validation.Max(100)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
