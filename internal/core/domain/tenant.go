package domain

import "time"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleEngineer   Role = "engineer"
	RoleLawyer     Role = "lawyer"
	RoleAccountant Role = "accountant"
	RoleHR         Role = "hr"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEngineer, RoleLawyer, RoleAccountant, RoleHR:
		return true
	default:
		return false
	}
}

type Tenant struct {
	ID                 int64     `json:"id"`
	CompanyName        string    `json:"company_name"`
	SubscriptionActive bool      `json:"subscription_status"`
	SubscribedModules  []string  `json:"subscribed_modules"`
	CreatedAt          time.Time `json:"created_at"`
}

// DisplayName falls back to a neutral name for persona prompts.
func (t Tenant) DisplayName() string {
	if t.CompanyName == "" {
		return "Your Company"
	}
	return t.CompanyName
}

type User struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

var DefaultSubscribedModules = []string{"finance", "engineer"}
