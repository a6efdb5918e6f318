package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

type TenantDirectoryUseCase struct {
	uow ports.UnitOfWork
}

func NewTenantDirectoryUseCase(uow ports.UnitOfWork) *TenantDirectoryUseCase {
	return &TenantDirectoryUseCase{uow: uow}
}

// Resolve finds the tenant by company name, creating it when allowed.
func (uc *TenantDirectoryUseCase) Resolve(ctx context.Context, companyName string, createIfMissing bool) (*domain.Tenant, error) {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve tenant", errors.New("company name is required"))
	}

	repo := uc.uow.Repositories().Tenants
	tenant, err := repo.FindByName(ctx, name)
	if err == nil {
		return tenant, nil
	}
	if !domain.IsKind(err, domain.ErrNotFound) || !createIfMissing {
		return nil, err
	}

	tenant = &domain.Tenant{
		CompanyName:        name,
		SubscriptionActive: true,
		SubscribedModules:  append([]string(nil), domain.DefaultSubscribedModules...),
		CreatedAt:          time.Now().UTC(),
	}
	if err := repo.Create(ctx, tenant); err != nil {
		// A concurrent request may have created it first.
		if found, findErr := repo.FindByName(ctx, name); findErr == nil {
			return found, nil
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return tenant, nil
}

func (uc *TenantDirectoryUseCase) ResolveUser(ctx context.Context, tenantID int64, email string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "resolve user", errors.New("user email is required"))
	}
	user, err := uc.uow.Repositories().Tenants.FindUserByEmail(ctx, tenantID, email)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "resolve user", err)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.WrapError(domain.ErrUnauthorized, "resolve user", fmt.Errorf("user %s is inactive", email))
	}
	return user, nil
}
