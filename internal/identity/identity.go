// Package identity is the boundary to the authentication provider. The
// profile snapshot is used only to back-fill empty draft fields on hydration.
package identity

import "context"

// Profile is the account snapshot known to the identity provider.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Provider supplies the owner identity and profile for the current session.
type Provider interface {
	CurrentUser(ctx context.Context) (email, uid string, err error)
	Profile(ctx context.Context, uid string) (*Profile, error)
}

// profileFields maps form field names to profile values.
func (p *Profile) fields() map[string]string {
	if p == nil {
		return nil
	}
	return map[string]string{
		"firstName": firstName(p.Name),
		"lastName":  lastName(p.Name),
		"email":     p.Email,
		"phone":     p.Phone,
	}
}

// MergeForm merges a stored draft snapshot with the account profile. The
// draft value wins whenever it is non-empty; the profile only fills gaps.
// The merge is deterministic: same inputs always give the same output.
func MergeForm(draftForm map[string]string, profile *Profile) map[string]string {
	merged := make(map[string]string, len(draftForm)+4)
	for k, v := range draftForm {
		merged[k] = v
	}
	for k, v := range profile.fields() {
		if v == "" {
			continue
		}
		if existing, ok := merged[k]; !ok || existing == "" {
			merged[k] = v
		}
	}
	return merged
}

func firstName(full string) string {
	for i := 0; i < len(full); i++ {
		if full[i] == ' ' {
			return full[:i]
		}
	}
	return full
}

func lastName(full string) string {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == ' ' {
			return full[i+1:]
		}
	}
	return ""
}
