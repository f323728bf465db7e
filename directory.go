package goIdentity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal/cache"
)

// Directory is the Engine's view of identity storage: account lookups and
// mutations plus role and permission resolution. Permissions are served
// from a read-through cache that every role write invalidates before
// returning.
type Directory struct {
	accounts AccountStore
	roles    RoleStore
	perms    *cache.Permissions
}

// NewDirectory wraps accounts and roles. ttl and maxEntries size the
// permission cache; zero values use the package defaults.
func NewDirectory(accounts AccountStore, roles RoleStore, ttl time.Duration, maxEntries int) *Directory {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = cache.DefaultMaxEntries
	}
	d := &Directory{accounts: accounts, roles: roles}
	d.perms = cache.NewPermissions(roles.Permissions, ttl, maxEntries)
	return d
}

func (d *Directory) FindByID(ctx context.Context, id string) (*Account, error) {
	return d.accounts.FindByID(ctx, id)
}

func (d *Directory) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return d.accounts.FindByUsername(ctx, strings.TrimSpace(username))
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return d.accounts.FindByEmail(ctx, normalizeEmail(email))
}

// FindByLogin resolves identifier as an email first, then as a username.
func (d *Directory) FindByLogin(ctx context.Context, identifier string) (*Account, error) {
	acct, err := d.FindByEmail(ctx, identifier)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return d.FindByUsername(ctx, identifier)
}

func (d *Directory) FindByVerificationToken(ctx context.Context, tokenHash string) (*Account, error) {
	return d.accounts.FindByVerificationToken(ctx, tokenHash)
}

func (d *Directory) FindByResetToken(ctx context.Context, tokenHash string) (*Account, error) {
	return d.accounts.FindByResetToken(ctx, tokenHash)
}

func (d *Directory) Create(ctx context.Context, account *Account) error {
	return d.accounts.Create(ctx, account)
}

func (d *Directory) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	return d.accounts.IncrementFailedLogins(ctx, id)
}

func (d *Directory) ResetFailedLogins(ctx context.Context, id string) error {
	return d.accounts.ResetFailedLogins(ctx, id)
}

func (d *Directory) Lock(ctx context.Context, id string, at time.Time) error {
	return d.accounts.Lock(ctx, id, at)
}

func (d *Directory) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return d.accounts.RecordLogin(ctx, id, at)
}

func (d *Directory) Update(ctx context.Context, id string, u AccountUpdate) error {
	return d.accounts.Update(ctx, id, u)
}

func (d *Directory) ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error) {
	return d.accounts.ConsumeBackupCode(ctx, id, codeHash)
}

// Roles reads role names straight from the store.
func (d *Directory) Roles(ctx context.Context, accountID string) ([]string, error) {
	return d.roles.Roles(ctx, accountID)
}

// Permissions returns the account's permission names through the cache.
// The caller owns the returned slice.
func (d *Directory) Permissions(ctx context.Context, accountID string) ([]string, error) {
	return d.perms.Get(ctx, accountID)
}

// AssignRole adds role to the account. The cached permissions are dropped
// even when the store write fails, since it may have partially applied.
func (d *Directory) AssignRole(ctx context.Context, accountID, role string) error {
	defer d.perms.Invalidate(accountID)
	return d.roles.AssignRole(ctx, accountID, role)
}

// RemoveRole removes role from the account, invalidating like AssignRole.
func (d *Directory) RemoveRole(ctx context.Context, accountID, role string) error {
	defer d.perms.Invalidate(accountID)
	return d.roles.RemoveRole(ctx, accountID, role)
}

// AssignDefaultRole gives a new account the store's default role.
func (d *Directory) AssignDefaultRole(ctx context.Context, accountID string) error {
	defer d.perms.Invalidate(accountID)
	return d.roles.AssignDefaultRole(ctx, accountID)
}

// InvalidatePermissions drops the cached entry for accountID. Use it when
// role membership changed outside this Directory.
func (d *Directory) InvalidatePermissions(accountID string) {
	d.perms.Invalidate(accountID)
}

// CacheStats reports permission cache hits and misses.
func (d *Directory) CacheStats() (hits, misses uint64) {
	return d.perms.Stats()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
