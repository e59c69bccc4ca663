package auth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// DefaultLoginTimeout bounds the three provider calls made on callback.
const DefaultLoginTimeout = 10 * time.Second

// IdentityProvider performs the provider calls needed to establish a session.
type IdentityProvider interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	CurrentUser(ctx context.Context, accessToken string) (*DiscordUser, error)
	GuildMemberRoles(ctx context.Context, userID string) ([]string, error)
}

// LoginPipeline turns an authorization code into an authenticated session.
type LoginPipeline struct {
	provider IdentityProvider
	timeout  time.Duration
	now      func() time.Time
}

// NewLoginPipeline creates a pipeline. A non-positive timeout uses DefaultLoginTimeout.
func NewLoginPipeline(provider IdentityProvider, timeout time.Duration) *LoginPipeline {
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	return &LoginPipeline{
		provider: provider,
		timeout:  timeout,
		now:      time.Now,
	}
}

type loginState struct {
	code  string
	token *oauth2.Token
	user  *DiscordUser
	roles []string
}

type loginStep func(ctx context.Context, st *loginState) error

// Run executes token exchange, profile lookup, and role lookup in order.
// The first failing step aborts the rest. All steps share one deadline.
func (p *LoginPipeline) Run(ctx context.Context, code string) (*Authenticated, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	st := &loginState{code: code}
	for _, step := range []loginStep{p.exchange, p.identify, p.fetchRoles} {
		if err := step(ctx, st); err != nil {
			return nil, err
		}
	}

	avatar := ""
	if st.user.Avatar != nil {
		avatar = *st.user.Avatar
	}

	return &Authenticated{
		AccessToken: st.token.AccessToken,
		User: SessionUser{
			ID:              st.user.ID,
			Username:        st.user.Username,
			Discriminator:   st.user.Discriminator,
			Avatar:          avatar,
			Roles:           st.roles,
			AuthenticatedAt: p.now().UTC(),
		},
	}, nil
}

func (p *LoginPipeline) exchange(ctx context.Context, st *loginState) error {
	token, err := p.provider.Exchange(ctx, st.code)
	if err != nil {
		return asAuthError(TokenExchangeFailed, err)
	}
	st.token = token
	return nil
}

func (p *LoginPipeline) identify(ctx context.Context, st *loginState) error {
	user, err := p.provider.CurrentUser(ctx, st.token.AccessToken)
	if err != nil {
		return asAuthError(ProfileFetchFailed, err)
	}
	st.user = user
	return nil
}

func (p *LoginPipeline) fetchRoles(ctx context.Context, st *loginState) error {
	roles, err := p.provider.GuildMemberRoles(ctx, st.user.ID)
	if err != nil {
		return asAuthError(RoleFetchFailed, err)
	}
	if roles == nil {
		roles = []string{}
	}
	st.roles = roles
	return nil
}

// asAuthError tags err with kind unless it is already an AuthError.
func asAuthError(kind AuthErrorKind, err error) error {
	if _, ok := err.(*AuthError); ok {
		return err
	}
	return &AuthError{Kind: kind, Err: err}
}
