package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 1 << 20

// Tokens are the provider-issued credentials from the code exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// Profile is the normalized identity reported by a provider.
type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Login         string
	AvatarURL     string
}

type providerEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (c *Client) fetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var raw map[string]any
	if err := c.getJSON(ctx, c.provider.UserInfoURL, accessToken, &raw); err != nil {
		return nil, err
	}

	profile := &Profile{
		Subject:       stringValue(coalesce(raw["sub"], raw["id"])),
		Email:         stringValue(coalesce(raw["email"], raw["mail"])),
		EmailVerified: boolValue(raw["email_verified"]),
		Name:          stringValue(coalesce(raw["name"], raw["displayName"], raw["login"])),
		Login:         stringValue(coalesce(raw["login"], raw["preferred_username"])),
		AvatarURL:     stringValue(coalesce(raw["picture"], raw["avatar_url"])),
	}
	if profile.Subject == "" {
		return nil, fmt.Errorf("profile has no subject")
	}

	if profile.Email == "" && c.provider.EmailsURL != "" {
		var emails []providerEmail
		if err := c.getJSON(ctx, c.provider.EmailsURL, accessToken, &emails); err != nil {
			return nil, err
		}
		profile.Email, profile.EmailVerified = pickEmail(emails)
	}
	return profile, nil
}

func (c *Client) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("profile request failed: status=%d", resp.StatusCode)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	return nil
}

func pickEmail(emails []providerEmail) (string, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}
	return "", false
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func boolValue(input any) bool {
	switch v := input.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

func coalesce(values ...any) any {
	for _, v := range values {
		switch val := v.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				return v
			}
		case nil:
			continue
		default:
			return v
		}
	}
	return nil
}
