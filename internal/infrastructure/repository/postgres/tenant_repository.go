package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

type TenantRepository struct {
	db querier
}

func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) FindByName(ctx context.Context, companyName string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, company_name, subscription_status, subscribed_modules, created_at
FROM tenants
WHERE company_name = $1
`, companyName)

	var tenant domain.Tenant
	var modulesRaw []byte
	err := row.Scan(&tenant.ID, &tenant.CompanyName, &tenant.SubscriptionActive, &modulesRaw, &tenant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "find tenant", fmt.Errorf("company_name=%s", companyName))
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	if err := json.Unmarshal(modulesRaw, &tenant.SubscribedModules); err != nil {
		return nil, fmt.Errorf("unmarshal subscribed modules: %w", err)
	}
	return &tenant, nil
}

func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	modulesJSON, err := json.Marshal(tenant.SubscribedModules)
	if err != nil {
		return fmt.Errorf("marshal subscribed modules: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
INSERT INTO tenants (company_name, subscription_status, subscribed_modules, created_at)
VALUES ($1,$2,$3,$4)
RETURNING id
`, tenant.CompanyName, tenant.SubscriptionActive, modulesJSON, tenant.CreatedAt).Scan(&tenant.ID)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) FindUserByEmail(ctx context.Context, tenantID int64, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, email, full_name, role, is_active
FROM users
WHERE tenant_id = $1 AND lower(email) = $2
`, tenantID, email)

	var user domain.User
	var role string
	err := row.Scan(&user.ID, &user.TenantID, &user.Email, &user.FullName, &role, &user.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "find user", fmt.Errorf("email=%s", email))
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Role = domain.Role(role)
	return &user, nil
}
