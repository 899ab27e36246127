package validations

import (
	"context"
	"errors"
	"time"

	analyticsDomain "github.com/AzielCF/az-admin/analytics/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/timeutils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// maxAnalyticsSpan bounds how far back a period may reach.
const maxAnalyticsSpan = 366 * 24 * time.Hour

func ValidateAnalyticsQuery(ctx context.Context, query analyticsDomain.Query) error {
	err := validation.ValidateStructWithContext(ctx, &query,
		validation.Field(&query.Period, validation.Required, validation.By(func(value interface{}) error {
			span, err := timeutils.ParseSpan(value.(string))
			if err != nil {
				return errors.New("must look like 30m, 24h, 7d or 4w")
			}
			if span > maxAnalyticsSpan {
				return errors.New("must not exceed one year")
			}
			return nil
		})),
		validation.Field(&query.Metrics, validation.Each(validation.In(stringsToAny(analyticsDomain.AllMetrics)...))),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
