package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MrEthical07/goIdentity/federation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const usernameAttempts = 5

// Providers lists the configured federation provider names.
func (e *Engine) Providers() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.providers))
	for name := range e.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// BeginFederatedLogin starts an authorization-code handshake with
// provider. The state and PKCE verifier are kept server side for
// Config.Federation.StateTTL.
func (e *Engine) BeginFederatedLogin(ctx context.Context, provider string) (*FederatedStart, error) {
	if e == nil || e.states == nil {
		return nil, ErrEngineNotReady
	}
	client, ok := e.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}

	start, err := client.Begin()
	if err != nil {
		return nil, err
	}
	if err := e.states.Save(ctx, federation.PendingAuth{
		Provider:  start.Provider,
		State:     start.State,
		Verifier:  start.Verifier,
		CreatedAt: e.now(),
	}, e.config.Federation.StateTTL); err != nil {
		return nil, unavailable(err)
	}

	return &FederatedStart{Provider: start.Provider, AuthorizeURL: start.AuthorizeURL, State: start.State}, nil
}

// CompleteFederatedLogin finishes a handshake begun by BeginFederatedLogin
// and signs the resolved account in. The state is redeemable once; an
// unknown, expired or reused state fails before any provider call.
//
// The identity resolves to an existing link, else to a verified account
// with the same email (which gets linked), else to a new account.
func (e *Engine) CompleteFederatedLogin(ctx context.Context, cb FederatedCallback) (*FederatedLoginResult, error) {
	if e == nil || e.states == nil || e.links == nil {
		return nil, ErrEngineNotReady
	}
	client, ok := e.providers[cb.Provider]
	if !ok {
		return nil, ErrUnknownProvider
	}

	result, err := e.completeFederatedLogin(ctx, client, cb)
	if err != nil {
		e.metricInc(MetricFederatedLoginFailure)
		e.emitAudit(ctx, auditFederatedLogin, false, "", "", err, func() map[string]string {
			return map[string]string{"provider": cb.Provider}
		})
		return nil, err
	}

	e.metricInc(MetricFederatedLoginSuccess)
	e.emitAudit(ctx, auditFederatedLogin, true, result.AccountID, result.AccountID, nil, func() map[string]string {
		return map[string]string{
			"provider": cb.Provider,
			"created":  fmt.Sprint(result.Created),
			"linked":   fmt.Sprint(result.Linked),
		}
	})
	return result, nil
}

func (e *Engine) completeFederatedLogin(ctx context.Context, client *federation.Client, cb FederatedCallback) (*FederatedLoginResult, error) {
	pending, err := e.states.Take(ctx, cb.State)
	if err != nil {
		return nil, unavailable(err)
	}
	if pending == nil || pending.Provider != client.Name() {
		return nil, federation.ErrStateMismatch
	}

	tokens, profile, err := client.Complete(ctx, federation.Callback{
		Code:             cb.Code,
		ReturnedState:    cb.State,
		ExpectedState:    pending.State,
		Verifier:         pending.Verifier,
		Error:            cb.Error,
		ErrorDescription: cb.ErrorDescription,
	})
	if err != nil {
		return nil, err
	}

	linked := LinkedTokens{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	if !tokens.Expiry.IsZero() {
		exp := tokens.Expiry
		linked.ExpiresAt = &exp
	}

	result := &FederatedLoginResult{}
	acct, err := e.resolveFederatedAccount(ctx, client, profile, linked, result)
	if err != nil {
		return nil, err
	}
	if !acct.Active {
		return nil, ErrAccountDeactivated
	}

	if err := e.directory.RecordLogin(ctx, acct.ID, e.now()); err != nil {
		e.logger.Warn("record federated login failed", zap.String("account_id", acct.ID), zap.Error(err))
	}
	pair, err := e.issuePair(ctx, acct)
	if err != nil {
		return nil, err
	}
	result.AccountID = acct.ID
	result.Tokens = pair
	return result, nil
}

func (e *Engine) resolveFederatedAccount(ctx context.Context, client *federation.Client, profile *federation.Profile, tokens LinkedTokens, result *FederatedLoginResult) (*Account, error) {
	provider := client.Name()

	link, err := e.links.FindBySubject(ctx, provider, profile.Subject)
	switch {
	case err == nil:
		if err := e.links.UpdateTokens(ctx, link.ID, tokens); err != nil {
			return nil, unavailable(err)
		}
		acct, err := e.directory.FindByID(ctx, link.AccountID)
		if err != nil {
			return nil, unavailable(err)
		}
		return acct, nil
	case !errors.Is(err, ErrNotFound):
		return nil, unavailable(err)
	}

	var acct *Account
	if profile.Email != "" {
		acct, err = e.directory.FindByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			if !acct.Verified {
				return nil, ErrAccountUnverifiedLink
			}
		case errors.Is(err, ErrNotFound):
			acct = nil
		default:
			return nil, unavailable(err)
		}
	}

	if acct == nil {
		acct, err = e.createFederatedAccount(ctx, client, profile)
		if err != nil {
			return nil, err
		}
		result.Created = true
	}

	now := e.now()
	if err := e.links.Create(ctx, &LinkedAccount{
		ID:           uuid.NewString(),
		AccountID:    acct.ID,
		Provider:     provider,
		Subject:      profile.Subject,
		Email:        normalizeEmail(profile.Email),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: identity already linked", federation.ErrFederationFailed)
		}
		return nil, unavailable(err)
	}
	result.Linked = true

	e.metricInc(MetricFederatedAccountLinked)
	e.emitAudit(ctx, auditFederatedLinked, true, acct.ID, acct.ID, nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})
	return acct, nil
}

// createFederatedAccount makes a verified, password-less account. The
// provider username gets a random suffix while it collides.
func (e *Engine) createFederatedAccount(ctx context.Context, client *federation.Client, profile *federation.Profile) (*Account, error) {
	base := client.Username(*profile)
	displayName := strings.TrimSpace(profile.Name)
	if displayName == "" {
		displayName = base
	}

	now := e.now()
	acct := &Account{
		ID:          uuid.NewString(),
		TenantID:    tenantIDFromContext(ctx),
		Email:       normalizeEmail(profile.Email),
		DisplayName: displayName,
		Active:      true,
		Verified:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	username := base
	for attempt := 0; ; attempt++ {
		acct.Username = username
		err := e.directory.Create(ctx, acct)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflict) {
			return nil, unavailable(err)
		}
		if attempt+1 >= usernameAttempts {
			return nil, ErrAccountExists
		}
		username = base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}

	if err := e.directory.AssignDefaultRole(ctx, acct.ID); err != nil {
		e.logger.Warn("default role assignment failed", zap.String("account_id", acct.ID), zap.Error(err))
	}
	e.metricInc(MetricFederatedAccountCreated)
	return acct, nil
}
