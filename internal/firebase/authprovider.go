package firebase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"property-registry/backend/internal/domain/account"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/errorutils"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
)

// AuthProvider implements account.Provider with the Admin SDK plus the
// Identity Toolkit password endpoint.
type AuthProvider struct {
	auth     *auth.Client
	identity *identitytoolkit.Service
}

func NewAuthProvider(s *Services) *AuthProvider {
	return &AuthProvider{auth: s.Auth, identity: s.Identity}
}

func (p *AuthProvider) CreateUser(ctx context.Context, email, password string) (*account.User, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	rec, err := p.auth.CreateUser(ctx, params)
	if err != nil {
		return nil, classifyAdmin(err)
	}
	return fromRecord(rec), nil
}

func (p *AuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*account.User, error) {
	req := &identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}
	resp, err := p.identity.Relyingparty.VerifyPassword(req).Context(ctx).Do()
	if err != nil {
		return nil, classifyIdentity(err)
	}

	u := &account.User{
		UID:          resp.LocalId,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}

	// Best effort: the token response does not carry verification state.
	if rec, err := p.auth.GetUser(ctx, resp.LocalId); err == nil {
		u.EmailVerified = rec.EmailVerified
		u.Disabled = rec.Disabled
	} else {
		log.Printf("[auth] get user %s after sign-in: %v", resp.LocalId, err)
	}
	return u, nil
}

func (p *AuthProvider) RevokeSessions(ctx context.Context, uid string) error {
	if err := p.auth.RevokeRefreshTokens(ctx, uid); err != nil {
		return classifyAdmin(err)
	}
	return nil
}

func (p *AuthProvider) UpdatePassword(ctx context.Context, uid, newPassword string) error {
	params := (&auth.UserToUpdate{}).Password(newPassword)
	if _, err := p.auth.UpdateUser(ctx, uid, params); err != nil {
		return classifyAdmin(err)
	}
	return nil
}

func fromRecord(rec *auth.UserRecord) *account.User {
	if rec == nil || rec.UserInfo == nil {
		return &account.User{}
	}
	return &account.User{
		UID:           rec.UID,
		Email:         rec.Email,
		DisplayName:   rec.DisplayName,
		EmailVerified: rec.EmailVerified,
		Disabled:      rec.Disabled,
	}
}

// classifyAdmin maps Admin SDK errors onto account sentinels. The SDK rejects
// malformed arguments (empty email, short password) locally with plain
// errors that carry no HTTP response; those are bad requests.
func classifyAdmin(err error) error {
	switch {
	case err == nil:
		return nil
	case auth.IsEmailAlreadyExists(err):
		return fmt.Errorf("%w: %v", account.ErrEmailExists, err)
	case auth.IsUserNotFound(err):
		return fmt.Errorf("%w: %v", account.ErrNotFound, err)
	case errorutils.IsInvalidArgument(err):
		return fmt.Errorf("%w: %v", account.ErrBadRequest, err)
	case errorutils.IsUnavailable(err), errorutils.IsDeadlineExceeded(err), errorutils.IsResourceExhausted(err):
		return fmt.Errorf("%w: %v", account.ErrUnavailable, err)
	case errorutils.IsUnknown(err), errorutils.IsInternal(err), errorutils.HTTPResponse(err) != nil:
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", account.ErrBadRequest, err)
}

// classifyIdentity maps Identity Toolkit error messages such as
// "INVALID_PASSWORD" or "WEAK_PASSWORD : Password should be at least 6
// characters" onto account sentinels.
func classifyIdentity(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	msg := gerr.Message
	code := msg
	if i := strings.IndexAny(code, " :"); i >= 0 {
		code = code[:i]
	}

	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return fmt.Errorf("%w: %s", account.ErrInvalidCredentials, msg)
	case "INVALID_EMAIL", "MISSING_EMAIL", "MISSING_PASSWORD", "WEAK_PASSWORD":
		return fmt.Errorf("%w: %s", account.ErrBadRequest, msg)
	case "EMAIL_EXISTS":
		return fmt.Errorf("%w: %s", account.ErrEmailExists, msg)
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return fmt.Errorf("%w: %s", account.ErrUnavailable, msg)
	}
	if gerr.Code >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", account.ErrUnavailable, msg)
	}
	return err
}
