// Package password validates vault secrets against a configurable policy
// before they are accepted for keystore creation.
package password

import (
	"fmt"
	"unicode"
)

// Policy defines vault secret requirements.
type Policy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigits    bool
}

// DefaultPolicy returns the default vault secret requirements.
func DefaultPolicy() *Policy {
	return &Policy{
		MinLength:        10,
		MaxLength:        128,
		RequireUppercase: false,
		RequireLowercase: true,
		RequireDigits:    true,
	}
}

// Validator validates secrets against a Policy.
type Validator struct {
	policy *Policy
}

// NewValidator creates a validator, defaulting the policy when nil.
func NewValidator(policy *Policy) *Validator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Validator{policy: policy}
}

// Validate checks whether a secret meets the policy.
func (v *Validator) Validate(secret []byte) error {
	if len(secret) < v.policy.MinLength {
		return fmt.Errorf("secret must be at least %d characters", v.policy.MinLength)
	}
	if len(secret) > v.policy.MaxLength {
		return fmt.Errorf("secret must not exceed %d characters", v.policy.MaxLength)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range string(secret) {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if v.policy.RequireUppercase && !hasUpper {
		return fmt.Errorf("secret must contain an uppercase letter")
	}
	if v.policy.RequireLowercase && !hasLower {
		return fmt.Errorf("secret must contain a lowercase letter")
	}
	if v.policy.RequireDigits && !hasDigit {
		return fmt.Errorf("secret must contain a digit")
	}
	return nil
}
