// Package oauth implements the narrow authorization-code exchange: given a
// code from the OAuth callback, it resolves the external user id Discord
// associates with that code. It exists so the callback handler has
// something to call; the delta-sync storage engine treats it as an opaque
// upstream collaborator.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Exchanger resolves an authorization code into an external user id.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (userID string, err error)
}

// DiscordExchanger implements Exchanger against Discord's OAuth2 + identity
// endpoints.
type DiscordExchanger struct {
	oauthCfg          *oauth2.Config
	httpClient        *http.Client
	allowedUserIDs    map[string]bool
}

// NewDiscordExchanger builds an Exchanger for the given client credentials
// and redirect URI. allowedUserIDsCSV, a comma-separated list, if non-empty
// restricts which resolved user ids are accepted.
func NewDiscordExchanger(clientID, clientSecret, redirectURI string, allowedUserIDsCSV string) *DiscordExchanger {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"identify"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://discord.com/api/oauth2/authorize",
			TokenURL: "https://discord.com/api/oauth2/token",
		},
	}

	var allowed map[string]bool
	if allowedUserIDsCSV != "" {
		allowed = make(map[string]bool)
		for _, id := range strings.Split(allowedUserIDsCSV, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				allowed[id] = true
			}
		}
	}

	return &DiscordExchanger{oauthCfg: cfg, httpClient: http.DefaultClient, allowedUserIDs: allowed}
}

// Settings returns the {clientId, redirectUri} the client needs to start
// the authorization-code flow.
func (d *DiscordExchanger) Settings() (clientID, redirectURI string) {
	return d.oauthCfg.ClientID, d.oauthCfg.RedirectURL
}

// AuthURL builds the Discord authorization URL for a fresh login.
func (d *DiscordExchanger) AuthURL(state string) string {
	return d.oauthCfg.AuthCodeURL(state)
}

type discordUser struct {
	ID string `json:"id"`
}

// Exchange trades an authorization code for a Discord access token, then
// resolves the caller's Discord user id via the identity endpoint.
func (d *DiscordExchanger) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)
	token, err := d.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("oauth: exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://discord.com/api/users/@me", nil)
	if err != nil {
		return "", fmt.Errorf("oauth: build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth: request user identity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth: identity endpoint returned %d", resp.StatusCode)
	}

	var user discordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("oauth: decode user identity: %w", err)
	}

	if d.allowedUserIDs != nil && !d.allowedUserIDs[user.ID] {
		return "", fmt.Errorf("oauth: user %s is not whitelisted", user.ID)
	}

	return user.ID, nil
}
