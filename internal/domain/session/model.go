package session

import "context"

// Keys under which the indicator is stored.
const (
	KeyLoggedIn = "isLoggedIn"
	KeyEmail    = "userEmail"
	KeyUserID   = "userId"
)

// Indicator is the ephemeral sign-in status mirrored from the auth state.
type Indicator struct {
	LoggedIn bool   `json:"isLoggedIn"`
	Email    string `json:"userEmail,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

func (i Indicator) Fields() map[string]string {
	return map[string]string{
		KeyLoggedIn: "true",
		KeyEmail:    i.Email,
		KeyUserID:   i.UserID,
	}
}

func FromFields(m map[string]string) Indicator {
	if m[KeyLoggedIn] != "true" {
		return Indicator{}
	}
	return Indicator{
		LoggedIn: true,
		Email:    m[KeyEmail],
		UserID:   m[KeyUserID],
	}
}

// Store holds one indicator per user. Put replaces the indicator of
// in.UserID, Clear removes every key of uid. A user with nothing stored
// reads back as the zero Indicator.
type Store interface {
	Put(ctx context.Context, in Indicator) error
	Clear(ctx context.Context, uid string) error
	Get(ctx context.Context, uid string) (Indicator, error)
}
