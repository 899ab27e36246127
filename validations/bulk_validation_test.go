package validations

import (
	"context"
	"testing"

	bulkDomain "github.com/AzielCF/az-admin/bulk/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/stretchr/testify/assert"
)

func TestValidateBulkRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     bulkDomain.Request
		wantErr string
	}{
		{
			name: "valid reset",
			req:  bulkDomain.Request{Action: bulkDomain.ActionResetBalances, Target: "users", Confirmed: true},
		},
		{
			name: "valid update with filters",
			req: bulkDomain.Request{
				Action:    bulkDomain.ActionUpdate,
				Target:    "users",
				Filters:   map[string]any{"ids": []any{"a", "b"}, "created_after": "2024-01-01T00:00:00Z"},
				Updates:   map[string]any{"status": "suspended"},
				Confirmed: true,
			},
		},
		{
			name:    "unconfirmed",
			req:     bulkDomain.Request{Action: bulkDomain.ActionResetBalances, Target: "users"},
			wantErr: "confirmed",
		},
		{
			name:    "target outside action",
			req:     bulkDomain.Request{Action: bulkDomain.ActionMaintenance, Target: "users", Confirmed: true},
			wantErr: "target",
		},
		{
			name:    "filter unknown to one resolved collection",
			req:     bulkDomain.Request{Action: bulkDomain.ActionCleanupExpired, Target: "all", Filters: map[string]any{"kind": "purchase"}, Confirmed: true},
			wantErr: "invitations",
		},
		{
			name:    "ids must be strings",
			req:     bulkDomain.Request{Action: bulkDomain.ActionExport, Target: "users", Filters: map[string]any{"ids": []any{1, 2}}, Confirmed: true},
			wantErr: "list of ids",
		},
		{
			name:    "reset accepts only kidzcoin",
			req:     bulkDomain.Request{Action: bulkDomain.ActionResetBalances, Target: "users", Updates: map[string]any{"status": "active"}, Confirmed: true},
			wantErr: "kidzcoin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBulkRequest(context.Background(), tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var valErr pkgError.ValidationError
			assert.ErrorAs(t, err, &valErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateBulkAction_UnknownAction(t *testing.T) {
	err := ValidateBulkAction(context.Background(), bulkDomain.Request{Action: "truncate"})
	assert.Error(t, err)
	assert.NoError(t, ValidateBulkAction(context.Background(), bulkDomain.Request{Action: bulkDomain.ActionExport}))
}
