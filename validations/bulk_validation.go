package validations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	bulkDomain "github.com/AzielCF/az-admin/bulk/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateBulkAction checks only that the action exists, so the caller can
// authorize it before validating the rest of the request.
func ValidateBulkAction(ctx context.Context, request bulkDomain.Request) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Action, validation.Required, validation.By(knownAction)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateBulkRequest(ctx context.Context, request bulkDomain.Request) error {
	spec, ok := bulkDomain.Specs[request.Action]
	if !ok {
		return pkgError.ValidationError(fmt.Sprintf("action: unknown action %q.", request.Action))
	}

	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Target, validation.Required, validation.In(stringsToAny(spec.Targets)...)),
		validation.Field(&request.Confirmed, validation.By(func(value interface{}) error {
			if confirmed, _ := value.(bool); !confirmed {
				return errors.New("bulk operations must be explicitly confirmed")
			}
			return nil
		})),
		validation.Field(&request.Filters, validation.By(func(value interface{}) error {
			return validateFilters(spec.Collections(request.Target), request.Filters)
		})),
		validation.Field(&request.Updates, validation.By(func(value interface{}) error {
			return validateUpdates(request.Action, request.Target, request.Updates)
		})),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func knownAction(value interface{}) error {
	action, _ := value.(bulkDomain.Action)
	if _, ok := bulkDomain.Specs[action]; !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

func validateFilters(collections []string, filters map[string]any) error {
	for _, key := range sortedKeys(filters) {
		for _, collection := range collections {
			field, ok := bulkDomain.Filters[collection][key]
			if !ok {
				return fmt.Errorf("filter %q is not supported for %s", key, collection)
			}
			if err := checkFilterValue(field, filters[key]); err != nil {
				return fmt.Errorf("filter %q: %w", key, err)
			}
		}
	}
	return nil
}

func checkFilterValue(field bulkDomain.FilterField, value any) error {
	switch field.Kind {
	case bulkDomain.FilterIn:
		list, ok := value.([]any)
		if !ok {
			if _, isStrings := value.([]string); isStrings {
				return nil
			}
			return errors.New("must be a list of ids")
		}
		for _, v := range list {
			if _, ok := v.(string); !ok {
				return errors.New("must be a list of ids")
			}
		}
	case bulkDomain.FilterBefore, bulkDomain.FilterAfter:
		s, ok := value.(string)
		if !ok {
			return errors.New("must be an RFC3339 timestamp")
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return errors.New("must be an RFC3339 timestamp")
		}
	case bulkDomain.FilterMin, bulkDomain.FilterMax:
		if _, ok := asInt64(value); !ok {
			return errors.New("must be a number")
		}
	default:
		if s, ok := value.(string); !ok || s == "" {
			return errors.New("must be a non-empty string")
		}
	}
	return nil
}

func validateUpdates(action bulkDomain.Action, target string, updates map[string]any) error {
	switch action {
	case bulkDomain.ActionUpdate:
		if len(updates) == 0 {
			return errors.New("at least one field is required")
		}
		allowed := bulkDomain.Updatable[target]
		for _, key := range sortedKeys(updates) {
			values, ok := allowed[key]
			if !ok {
				return fmt.Errorf("field %q cannot be bulk updated on %s", key, target)
			}
			s, ok := updates[key].(string)
			if !ok {
				return fmt.Errorf("field %q must be a string", key)
			}
			if values != nil && !contains(values, s) {
				return fmt.Errorf("field %q must be one of %v", key, values)
			}
		}
	case bulkDomain.ActionResetBalances:
		for _, key := range sortedKeys(updates) {
			if key != bulkDomain.BalanceField {
				return fmt.Errorf("only %q may be set when resetting balances", bulkDomain.BalanceField)
			}
			if _, ok := asInt64(updates[key]); !ok {
				return fmt.Errorf("%q must be a number", key)
			}
		}
	default:
		if len(updates) > 0 {
			return fmt.Errorf("%s does not accept updates", action)
		}
	}
	return nil
}

// asInt64 accepts the numeric types JSON decoding and Go callers produce.
func asInt64(v any) (int64, bool) {
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

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func stringsToAny(list []string) []interface{} {
	out := make([]interface{}, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}
