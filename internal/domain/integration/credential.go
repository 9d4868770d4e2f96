package integration

import (
	"strings"
	"time"
)

// DefaultRefreshMargin is how close to expiry a token is refreshed before use.
const DefaultRefreshMargin = 5 * time.Minute

// Credential is the token set stored on a provider link. It is mutated only
// by the OAuth callback and by token refresh.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// IsZero reports whether the link was never authorized.
func (c Credential) IsZero() bool {
	return strings.TrimSpace(c.AccessToken) == "" && strings.TrimSpace(c.RefreshToken) == ""
}

// TokenState is the lifecycle state derived from a credential at a point in
// time.
type TokenState struct {
	HasAccessToken  bool
	HasRefreshToken bool
	// Fresh means the access token can be used as-is: it does not expire
	// within the margin, or it carries no expiry at all.
	Fresh   bool
	Expired bool
}

// ResolveTokenState evaluates cred at now with the given refresh margin.
func ResolveTokenState(now time.Time, cred Credential, margin time.Duration) TokenState {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	state := TokenState{
		HasAccessToken:  strings.TrimSpace(cred.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(cred.RefreshToken) != "",
	}
	if !state.HasAccessToken {
		return state
	}
	if cred.ExpiresAt == nil {
		state.Fresh = true
		return state
	}
	state.Expired = !cred.ExpiresAt.After(now)
	state.Fresh = cred.ExpiresAt.After(now.Add(margin))
	return state
}

// TokenSet is what a provider returns from a code exchange or a refresh.
type TokenSet struct {
	AccessToken       string
	RefreshToken      string
	ExpiresIn         time.Duration
	ExternalAccountID string
	Scope             string
}

// Apply returns the credential resulting from storing ts at now. A refresh
// response without a new refresh token keeps the previous one.
func (ts TokenSet) Apply(prev Credential, now time.Time) Credential {
	next := Credential{
		AccessToken:  ts.AccessToken,
		RefreshToken: ts.RefreshToken,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = prev.RefreshToken
	}
	if ts.ExpiresIn > 0 {
		exp := now.Add(ts.ExpiresIn)
		next.ExpiresAt = &exp
	}
	return next
}
