// Package types contains the shared records exchanged between the login
// flow, the persistence layer, and the CLI.
package types

// Session represents an authenticated user. Email and SessionToken are
// always present on a stored session; AvatarURL may be empty.
type Session struct {
	// DisplayName is the user's human-readable name.
	DisplayName string `json:"displayName"`
	// Email identifies the user account.
	Email string `json:"email"`
	// AvatarURL points to the user's profile picture, if any.
	AvatarURL string `json:"avatarURL,omitempty"`
	// SessionToken is the identity token used for subsequent validation.
	SessionToken string `json:"sessionToken"`
}

// Valid reports whether the session satisfies the stored-session invariant.
func (s *Session) Valid() bool {
	return s != nil && s.Email != "" && s.SessionToken != ""
}

// Profile represents the response of the provider's userinfo endpoint.
type Profile struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Email   string `json:"email"`
}
