package domain

import (
	"regexp"
	"time"
)

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Account represents one managed social-media identity.
type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Username    string    `json:"username"`
	WANumber    string    `json:"wa_number,omitempty"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	Seq         uint64    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccountPatch carries the fields of a partial update. Nil fields are left untouched.
type AccountPatch struct {
	Name        *string `json:"name,omitempty"`
	Username    *string `json:"username,omitempty"`
	WANumber    *string `json:"wa_number,omitempty"`
	Description *string `json:"description,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Name == nil && p.Username == nil && p.WANumber == nil && p.Description == nil && p.Enabled == nil
}

// Apply merges the provided fields into a.
func (p AccountPatch) Apply(a *Account) {
	if a == nil {
		return
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.WANumber != nil {
		a.WANumber = *p.WANumber
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Enabled != nil {
		a.Enabled = *p.Enabled
	}
}

// ValidateAccountID rejects ids that are not safe as a single path element.
func ValidateAccountID(id string) error {
	if !accountIDPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

func (a *Account) Touch() {
	if a == nil {
		return
	}
	a.UpdatedAt = time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = a.UpdatedAt
	}
}
