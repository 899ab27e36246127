package validations

import (
	"context"
	"errors"
	"strconv"

	settingsDomain "github.com/AzielCF/az-admin/core/settings/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateSettings checks runtime overrides. An empty value is a reset and always valid.
func ValidateSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return pkgError.ValidationError("at least one setting is required")
	}

	errs := validation.Errors{}
	for key, raw := range values {
		kind, ok := settingsDomain.Known[key]
		if !ok {
			errs[key] = errors.New("unknown setting")
			continue
		}
		if raw == "" {
			continue
		}

		switch kind {
		case settingsDomain.KindInt:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				errs[key] = errors.New("must be an integer")
				continue
			}
			if err := validation.ValidateWithContext(ctx, n, validation.Min(int64(1))); err != nil {
				errs[key] = err
			}
		case settingsDomain.KindRatio:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				errs[key] = errors.New("must be a number")
				continue
			}
			if err := validation.ValidateWithContext(ctx, f, validation.Min(0.01), validation.Max(1.0)); err != nil {
				errs[key] = err
			}
		}
	}

	if err := errs.Filter(); err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
