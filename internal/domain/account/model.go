package account

import "context"

type User struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	Disabled      bool   `json:"disabled,omitempty"`

	// Set on password sign-in only.
	IDToken      string `json:"idToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Provider is the backing authentication platform.
type Provider interface {
	CreateUser(ctx context.Context, email, password string) (*User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*User, error)
	RevokeSessions(ctx context.Context, uid string) error
	UpdatePassword(ctx context.Context, uid, newPassword string) error
}

type CredentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordInput struct {
	NewPassword string `json:"newPassword"`
}
