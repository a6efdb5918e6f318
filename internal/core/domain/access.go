package domain

import (
	"fmt"
	"strings"
)

type AccessMode string

const (
	// AccessModeTenant grants every document of the tenant regardless of role.
	AccessModeTenant AccessMode = "tenant"
	// AccessModeRole grants general documents plus those tagged with the caller's role.
	AccessModeRole AccessMode = "role"
)

func ParseAccessMode(raw string) (AccessMode, error) {
	switch AccessMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AccessModeTenant:
		return AccessModeTenant, nil
	case AccessModeRole:
		return AccessModeRole, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse access mode", fmt.Errorf("unknown mode %q", raw))
	}
}

// AccessPolicy decides which documents a user may ground a chat answer on.
type AccessPolicy struct {
	Mode AccessMode
}

func (p AccessPolicy) CanRead(user User, doc Document) bool {
	if doc.TenantID != user.TenantID {
		return false
	}
	if p.Mode != AccessModeRole {
		return true
	}
	level := doc.AccessLevel
	if level == "" {
		level = AccessLevelGeneral
	}
	return level == AccessLevelGeneral || level == string(user.Role)
}

func (p AccessPolicy) Filter(user User, docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if p.CanRead(user, d) {
			out = append(out, d)
		}
	}
	return out
}
