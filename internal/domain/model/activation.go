package model

import (
	"strings"

	"activation-service/internal/domain"
)

// ActivationRecord is the single mutable record behind an activation code.
// A code is bound to at most one device; DeviceID is empty while unbound.
type ActivationRecord struct {
	Code       string `json:"code"`
	DeviceID   string `json:"deviceId,omitempty"`
	IsActive   bool   `json:"isActive"`
	ActiveTill Date   `json:"activeTill"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

// NewActivationRecord builds an unbound, active record for provisioning.
func NewActivationRecord(code, name, email string, activeTill Date) (*ActivationRecord, error) {
	c := NormalizeCode(code)
	if c == "" {
		return nil, domain.ErrInvalidArgument
	}
	if activeTill.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	return &ActivationRecord{
		Code:       c,
		IsActive:   true,
		ActiveTill: activeTill,
		Name:       name,
		Email:      email,
	}, nil
}

// NormalizeCode strips hyphens and uppercases, so "abc-123" and "ABC123" are the same key.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", ""))
}

func (r *ActivationRecord) IsBound() bool { return r != nil && r.DeviceID != "" }

// ExpiredOn reports whether the record is past its last valid day.
// ActiveTill itself is still a valid day.
func (r *ActivationRecord) ExpiredOn(today Date) bool {
	return today.After(r.ActiveTill)
}

// ActivationPatch names the fields of a partial update. Nil pointers are left untouched.
type ActivationPatch struct {
	IsActive     *bool
	ActiveTill   *Date
	UnbindDevice bool
}

func (p ActivationPatch) IsEmpty() bool {
	return p.IsActive == nil && p.ActiveTill == nil && !p.UnbindDevice
}

// Apply mutates r in place with the named fields.
func (p ActivationPatch) Apply(r *ActivationRecord) {
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	if p.ActiveTill != nil {
		r.ActiveTill = *p.ActiveTill
	}
	if p.UnbindDevice {
		r.DeviceID = ""
	}
}
