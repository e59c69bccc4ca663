// Package auth provides Discord OAuth2 login, session management, and the
// admin role guard.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// DefaultDiscordAPIBase is the Discord REST API root.
const DefaultDiscordAPIBase = "https://discord.com/api"

// DefaultDiscordScopes are the scopes requested at login.
var DefaultDiscordScopes = []string{"identify", "guilds.members.read"}

// DiscordConfig holds Discord application configuration.
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BotToken     string
	GuildID      string
	APIBase      string
	Scopes       []string
}

// DefaultDiscordConfig returns a DiscordConfig with the standard API root and scopes.
func DefaultDiscordConfig(clientID, clientSecret, redirectURL, botToken, guildID string) DiscordConfig {
	return DiscordConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		BotToken:     botToken,
		GuildID:      guildID,
		APIBase:      DefaultDiscordAPIBase,
		Scopes:       DefaultDiscordScopes,
	}
}

// DiscordUser is the subset of the /users/@me response we keep.
type DiscordUser struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	Avatar        *string `json:"avatar"`
}

type guildMember struct {
	Roles []string `json:"roles"`
}

// Discord talks to the Discord OAuth2 and REST endpoints.
type Discord struct {
	oauth2Config oauth2.Config
	httpClient   *http.Client
	apiBase      string
	botToken     string
	guildID      string
	logger       zerolog.Logger
}

// NewDiscord creates a Discord client. A nil httpClient uses http.DefaultClient.
func NewDiscord(cfg DiscordConfig, httpClient *http.Client, logger zerolog.Logger) *Discord {
	apiBase := strings.TrimSuffix(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = DefaultDiscordAPIBase
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultDiscordScopes
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	d := &Discord{
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   apiBase + "/oauth2/authorize",
				TokenURL:  apiBase + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		apiBase:    apiBase,
		botToken:   cfg.BotToken,
		guildID:    cfg.GuildID,
		logger:     logger.With().Str("component", "discord").Logger(),
	}

	d.logger.Info().Str("api_base", apiBase).Str("guild_id", cfg.GuildID).Msg("discord identity client initialized")
	return d
}

// AuthorizationURL returns the URL users are sent to for consent.
func (d *Discord) AuthorizationURL() string {
	return d.oauth2Config.AuthCodeURL("", oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange exchanges an authorization code for an access token.
func (d *Discord) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)
	token, err := d.oauth2Config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("scope", strings.Join(d.oauth2Config.Scopes, " ")),
	)
	if err != nil {
		return nil, &AuthError{Kind: TokenExchangeFailed, Err: fmt.Errorf("exchange authorization code: %w", err)}
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Kind: TokenExchangeFailed, Err: fmt.Errorf("no access_token in token response")}
	}
	return token, nil
}

// CurrentUser fetches the profile of the user owning accessToken.
func (d *Discord) CurrentUser(ctx context.Context, accessToken string) (*DiscordUser, error) {
	var user DiscordUser
	if err := d.getJSON(ctx, "/users/@me", "Bearer "+accessToken, &user); err != nil {
		return nil, &AuthError{Kind: ProfileFetchFailed, Err: fmt.Errorf("fetch current user: %w", err)}
	}
	if user.ID == "" {
		return nil, &AuthError{Kind: ProfileFetchFailed, Err: fmt.Errorf("user response has no id")}
	}
	return &user, nil
}

// GuildMemberRoles fetches the role ids the user holds in the configured
// guild, authenticating with the bot token. Users who are not members fail
// the same way as an unreachable API.
func (d *Discord) GuildMemberRoles(ctx context.Context, userID string) ([]string, error) {
	path := "/guilds/" + url.PathEscape(d.guildID) + "/members/" + url.PathEscape(userID)

	var member guildMember
	if err := d.getJSON(ctx, path, "Bot "+d.botToken, &member); err != nil {
		return nil, &AuthError{Kind: RoleFetchFailed, Err: fmt.Errorf("fetch guild member: %w", err)}
	}
	if member.Roles == nil {
		member.Roles = []string{}
	}
	return member.Roles, nil
}

func (d *Discord) getJSON(ctx context.Context, path, authorization string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
