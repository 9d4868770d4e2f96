package ecommerce

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

// tokenResponse is the token endpoint answer shared by the OAuth2 platforms.
type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	Scope        string     `json:"scope"`
	UserID       flexString `json:"user_id"`
}

func (r tokenResponse) tokenSet() (*integration.TokenSet, error) {
	if strings.TrimSpace(r.AccessToken) == "" {
		return nil, fmt.Errorf("%w: token response has no access_token", integration.ErrMalformedPayload)
	}
	return &integration.TokenSet{
		AccessToken:       r.AccessToken,
		RefreshToken:      r.RefreshToken,
		ExpiresIn:         time.Duration(r.ExpiresIn) * time.Second,
		ExternalAccountID: r.UserID.String(),
		Scope:             r.Scope,
	}, nil
}

// oauthApp holds the registered application of one platform.
type oauthApp struct {
	cfg config.ProviderConfig
}

func (a oauthApp) configured() error {
	if !a.cfg.IsConfigured() {
		return integration.ErrProviderUnconfigured
	}
	return nil
}

// authorizeURL appends the standard authorization-code parameters to base.
func (a oauthApp) authorizeURL(base string, state string, scopeSep string, extra url.Values) (string, error) {
	if err := a.configured(); err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid authorization url %q: %w", base, err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", a.cfg.ClientID)
	if a.cfg.RedirectURI != "" {
		q.Set("redirect_uri", a.cfg.RedirectURI)
	}
	if len(a.cfg.Scopes) > 0 && scopeSep != "" {
		q.Set("scope", strings.Join(a.cfg.Scopes, scopeSep))
	}
	q.Set("state", state)
	for k, v := range extra {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
