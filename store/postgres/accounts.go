package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

const accountColumns = `id, tenant_id, username, email, display_name, password_hash, active, verified,
	verification_token_hash, verification_expires_at, reset_token_hash, reset_expires_at,
	failed_login_attempts, locked_at, totp_secret, totp_enabled, array_to_string(backup_codes, ','),
	last_login_at, created_at, updated_at`

// Accounts is a goIdentity.AccountStore over the accounts table.
type Accounts struct {
	db DBTX
}

func NewAccounts(db DBTX) *Accounts {
	return &Accounts{db: db}
}

func (r *Accounts) Create(ctx context.Context, a *goIdentity.Account) error {
	query := `
		INSERT INTO accounts (id, tenant_id, username, email, display_name, password_hash, active, verified,
			verification_token_hash, verification_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.TenantID, a.Username, nullString(a.Email), a.DisplayName, nullString(a.PasswordHash),
		a.Active, a.Verified, nullString(a.VerificationTokenHash), nullTime(a.VerificationExpiresAt),
		a.CreatedAt, a.UpdatedAt,
	)
	return mapError(err)
}

func (r *Accounts) FindByID(ctx context.Context, id string) (*goIdentity.Account, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *Accounts) FindByUsername(ctx context.Context, username string) (*goIdentity.Account, error) {
	return r.findOne(ctx, "username = $1", username)
}

func (r *Accounts) FindByEmail(ctx context.Context, email string) (*goIdentity.Account, error) {
	if email == "" {
		return nil, goIdentity.ErrNotFound
	}
	return r.findOne(ctx, "email = $1", email)
}

func (r *Accounts) FindByVerificationToken(ctx context.Context, tokenHash string) (*goIdentity.Account, error) {
	if tokenHash == "" {
		return nil, goIdentity.ErrNotFound
	}
	return r.findOne(ctx, "verification_token_hash = $1", tokenHash)
}

func (r *Accounts) FindByResetToken(ctx context.Context, tokenHash string) (*goIdentity.Account, error) {
	if tokenHash == "" {
		return nil, goIdentity.ErrNotFound
	}
	return r.findOne(ctx, "reset_token_hash = $1", tokenHash)
}

func (r *Accounts) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts SET failed_login_attempts = failed_login_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (r *Accounts) ResetFailedLogins(ctx context.Context, id string) error {
	query := `
		UPDATE accounts SET failed_login_attempts = 0, locked_at = NULL, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

func (r *Accounts) Lock(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE accounts SET locked_at = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, at)
}

func (r *Accounts) RecordLogin(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE accounts SET last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, at)
}

// Update writes every set field of u in a single statement.
func (r *Accounts) Update(ctx context.Context, id string, u goIdentity.AccountUpdate) error {
	var (
		sets []string
		args = []any{id}
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if u.DisplayName != nil {
		set("display_name", *u.DisplayName)
	}
	if u.PasswordHash != nil {
		set("password_hash", nullString(*u.PasswordHash))
	}
	if u.Active != nil {
		set("active", *u.Active)
	}
	if u.Verified != nil {
		set("verified", *u.Verified)
	}
	if u.Verification != nil {
		hash, exp := tokenColumns(u.Verification)
		set("verification_token_hash", hash)
		set("verification_expires_at", exp)
	}
	if u.Reset != nil {
		hash, exp := tokenColumns(u.Reset)
		set("reset_token_hash", hash)
		set("reset_expires_at", exp)
	}
	if u.TwoFactor != nil {
		set("totp_secret", nullString(u.TwoFactor.Secret))
		set("totp_enabled", u.TwoFactor.Enabled)
		args = append(args, joinCodes(u.TwoFactor.BackupCodes))
		sets = append(sets, "backup_codes = string_to_array($"+strconv.Itoa(len(args))+", ',')")
	}
	if u.ClearLockout {
		sets = append(sets, "failed_login_attempts = 0", "locked_at = NULL")
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf("UPDATE accounts SET %s WHERE id = $1", strings.Join(sets, ", "))
	return r.exec(ctx, query, args...)
}

// ConsumeBackupCode removes codeHash in one conditional update, so only
// one of several concurrent callers sees true.
func (r *Accounts) ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error) {
	query := `
		UPDATE accounts SET backup_codes = array_remove(backup_codes, $2), updated_at = now()
		WHERE id = $1 AND $2 = ANY(backup_codes)
	`
	res, err := r.db.ExecContext(ctx, query, id, codeHash)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *Accounts) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(res)
}

func (r *Accounts) findOne(ctx context.Context, where string, arg any) (*goIdentity.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE " + where
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func scanAccount(row *sql.Row) (*goIdentity.Account, error) {
	var (
		a                                          goIdentity.Account
		email, passwordHash, verifyHash, resetHash sql.NullString
		totpSecret                                 sql.NullString
		verifyExp, resetExp, lockedAt, lastLogin   sql.NullTime
		codes                                      string
	)
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Username, &email, &a.DisplayName, &passwordHash, &a.Active, &a.Verified,
		&verifyHash, &verifyExp, &resetHash, &resetExp,
		&a.FailedLoginAttempts, &lockedAt, &totpSecret, &a.TwoFactorEnabled, &codes,
		&lastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Email = email.String
	a.PasswordHash = passwordHash.String
	a.VerificationTokenHash = verifyHash.String
	a.VerificationExpiresAt = timePtr(verifyExp)
	a.ResetTokenHash = resetHash.String
	a.ResetExpiresAt = timePtr(resetExp)
	a.LockedAt = timePtr(lockedAt)
	a.TwoFactorSecret = totpSecret.String
	a.BackupCodes = splitCodes(codes)
	a.LastLoginAt = timePtr(lastLogin)
	return &a, nil
}

func tokenColumns(t *goIdentity.TokenUpdate) (sql.NullString, sql.NullTime) {
	if t.Hash == "" {
		return sql.NullString{}, sql.NullTime{}
	}
	return nullString(t.Hash), sql.NullTime{Time: t.ExpiresAt, Valid: true}
}
