package federation

import (
	"errors"
	"strings"

	"golang.org/x/oauth2"
)

// Provider describes an OAuth2 identity provider.
type Provider struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	// EmailsURL is queried when the profile carries no email (GitHub).
	EmailsURL string
	Scopes    []string
	AuthStyle oauth2.AuthStyle

	// UsePKCE enables S256 code challenges.
	UsePKCE bool
	// RequireEmail fails the handshake when no email can be resolved.
	RequireEmail bool
	// UsernameFromProfile derives a local username for new accounts.
	UsernameFromProfile func(Profile) string
}

// Google returns the Google OpenID Connect preset with PKCE.
func Google(clientID, clientSecret, redirectURL string) Provider {
	return Provider{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
		Scopes:       []string{"openid", "email", "profile"},
		AuthStyle:    oauth2.AuthStyleInParams,
		UsePKCE:      true,
		RequireEmail: true,
		UsernameFromProfile: func(p Profile) string {
			return "google_" + prefix(p.Subject, 8)
		},
	}
}

// GitHub returns the GitHub OAuth app preset. GitHub does not support PKCE
// for OAuth apps.
func GitHub(clientID, clientSecret, redirectURL string) Provider {
	return Provider{
		Name:         "github",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		AuthURL:      "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		UserInfoURL:  "https://api.github.com/user",
		EmailsURL:    "https://api.github.com/user/emails",
		Scopes:       []string{"user:email", "read:user"},
		AuthStyle:    oauth2.AuthStyleInParams,
		RequireEmail: true,
		UsernameFromProfile: func(p Profile) string {
			if p.Login != "" {
				return p.Login
			}
			return "github_" + prefix(p.Subject, 8)
		},
	}
}

func (p Provider) validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.New("federation: provider name is required")
	case p.ClientID == "":
		return errors.New("federation: client id is required")
	case p.AuthURL == "" || p.TokenURL == "" || p.UserInfoURL == "":
		return errors.New("federation: provider endpoints are required")
	case p.RedirectURL == "":
		return errors.New("federation: redirect url is required")
	}
	return nil
}

func (p Provider) username(profile Profile) string {
	if p.UsernameFromProfile != nil {
		if name := p.UsernameFromProfile(profile); name != "" {
			return name
		}
	}
	return p.Name + "_" + prefix(profile.Subject, 8)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
