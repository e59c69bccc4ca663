package auth

import "errors"

// AuthErrorKind identifies which login step failed.
type AuthErrorKind string

const (
	// TokenExchangeFailed means the authorization code was not exchanged.
	TokenExchangeFailed AuthErrorKind = "token_exchange_failed"
	// ProfileFetchFailed means the user profile lookup failed.
	ProfileFetchFailed AuthErrorKind = "profile_fetch_failed"
	// RoleFetchFailed means the guild member lookup failed, including when
	// the user is not a member of the guild.
	RoleFetchFailed AuthErrorKind = "role_fetch_failed"
)

// AuthError is returned by the identity client and the login pipeline.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// Sentinels for use with errors.Is.
var (
	ErrTokenExchangeFailed = &AuthError{Kind: TokenExchangeFailed}
	ErrProfileFetchFailed  = &AuthError{Kind: ProfileFetchFailed}
	ErrRoleFetchFailed     = &AuthError{Kind: RoleFetchFailed}
)

var (
	// ErrUnauthenticated is returned when a route requires a logged-in user.
	ErrUnauthenticated = errors.New("not logged in")
	// ErrInsufficientPermissions is returned when the user holds no allowed role.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)
