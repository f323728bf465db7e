package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var accountRowColumns = []string{
	"id", "tenant_id", "username", "email", "display_name", "password_hash", "active", "verified",
	"verification_token_hash", "verification_expires_at", "reset_token_hash", "reset_expires_at",
	"failed_login_attempts", "locked_at", "totp_secret", "totp_enabled", "backup_codes",
	"last_login_at", "created_at", "updated_at",
}

func TestAccountsCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+accounts\b`).
		WithArgs("a1", "0", "octo", nil, "Octo", nil, true, true, nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &goIdentity.Account{
		ID: "a1", TenantID: "0", Username: "octo", DisplayName: "Octo",
		Active: true, Verified: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestAccountsCreateConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)

	mock.ExpectExec(`INSERT\s+INTO\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := repo.Create(context.Background(), &goIdentity.Account{ID: "a1", Username: "alice", Email: "alice@example.com"})
	require.ErrorIs(t, err, goIdentity.ErrConflict)
}

func TestAccountsFindByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locked := created.Add(time.Hour)

	rows := sqlmock.NewRows(accountRowColumns).AddRow(
		"a1", "0", "alice", "alice@example.com", "Alice", "$argon2id$hash", true, true,
		nil, nil, nil, nil,
		5, locked, "JBSWY3DPEHPK3PXP", true, "h1,h2",
		nil, created, created,
	)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	a, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, 5, a.FailedLoginAttempts)
	require.NotNil(t, a.LockedAt)
	assert.True(t, a.LockedAt.Equal(locked))
	assert.Equal(t, []string{"h1", "h2"}, a.BackupCodes)
	assert.Nil(t, a.LastLoginAt)
	assert.Empty(t, a.VerificationTokenHash)
}

func TestAccountsFindNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)

	mock.ExpectQuery(`FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, goIdentity.ErrNotFound)

	_, err = repo.FindByEmail(context.Background(), "")
	require.ErrorIs(t, err, goIdentity.ErrNotFound)
}

func TestAccountsIncrementFailedLogins(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)

	mock.ExpectQuery(`(?s)UPDATE\s+accounts\s+SET\s+failed_login_attempts\s*=\s*failed_login_attempts\s*\+\s*1.*RETURNING\s+failed_login_attempts`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts"}).AddRow(3))

	n, err := repo.IncrementFailedLogins(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAccountsUpdateBuildsSingleStatement(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)
	hash := "new-hash"

	mock.ExpectExec(`^UPDATE accounts SET password_hash = \$2, reset_token_hash = \$3, reset_expires_at = \$4, failed_login_attempts = 0, locked_at = NULL, updated_at = now\(\) WHERE id = \$1$`).
		WithArgs("a1", "new-hash", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "a1", goIdentity.AccountUpdate{
		PasswordHash: &hash,
		Reset:        &goIdentity.TokenUpdate{},
		ClearLockout: true,
	})
	require.NoError(t, err)
}

func TestAccountsUpdateTwoFactor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)

	mock.ExpectExec(`^UPDATE accounts SET totp_secret = \$2, totp_enabled = \$3, backup_codes = string_to_array\(\$4, ','\), updated_at = now\(\) WHERE id = \$1$`).
		WithArgs("a1", "SECRET", true, "h1,h2,h3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "a1", goIdentity.AccountUpdate{
		TwoFactor: &goIdentity.TwoFactorUpdate{Secret: "SECRET", Enabled: true, BackupCodes: []string{"h1", "h2", "h3"}},
	})
	require.NoError(t, err)
}

func TestAccountsUpdateMissingAccount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)
	verified := true

	mock.ExpectExec(`UPDATE accounts SET verified = \$2`).
		WithArgs("missing", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "missing", goIdentity.AccountUpdate{Verified: &verified})
	require.ErrorIs(t, err, goIdentity.ErrNotFound)

	// An empty update touches nothing.
	require.NoError(t, repo.Update(context.Background(), "a1", goIdentity.AccountUpdate{}))
}

func TestAccountsConsumeBackupCode(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccounts(db)
	q := `(?s)UPDATE\s+accounts\s+SET\s+backup_codes\s*=\s*array_remove\(backup_codes,\s*\$2\).*WHERE\s+id\s*=\s*\$1\s+AND\s+\$2\s*=\s*ANY\(backup_codes\)`

	mock.ExpectExec(q).WithArgs("a1", "h1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("a1", "h1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ConsumeBackupCode(context.Background(), "a1", "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeBackupCode(context.Background(), "a1", "h1")
	require.NoError(t, err)
	assert.False(t, ok, "second consume of the same code must fail")
}

func TestRolesPermissions(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRoles(db, "user")

	mock.ExpectQuery(`(?s)SELECT\s+DISTINCT\s+rp\.permission.*WHERE\s+ar\.account_id\s*=\s*\$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"permission"}).AddRow("profile:read").AddRow("users:write"))

	perms, err := repo.Permissions(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"profile:read", "users:write"}, perms)
}

func TestRolesAssign(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRoles(db, "user")
	q := `(?s)INSERT\s+INTO\s+account_roles.*ON\s+CONFLICT\s+DO\s+NOTHING`

	mock.ExpectExec(q).WithArgs("a1", "user").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("a1", "ghost").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "account_roles_role_fkey"})

	require.NoError(t, repo.AssignDefaultRole(context.Background(), "a1"))
	err := repo.AssignRole(context.Background(), "a1", "ghost")
	require.ErrorIs(t, err, goIdentity.ErrNotFound)

	require.NoError(t, NewRoles(db, "").AssignDefaultRole(context.Background(), "a2"))
}

func TestLinksFindBySubject(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLinks(db)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM\s+linked_accounts\s+WHERE\s+provider\s*=\s*\$1\s+AND\s+subject\s*=\s*\$2`).
		WithArgs("github", "42").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "provider", "subject", "email", "access_token", "refresh_token", "expires_at", "created_at", "updated_at",
		}).AddRow("l1", "a1", "github", "42", nil, "at", nil, nil, now, now))

	l, err := repo.FindBySubject(context.Background(), "github", "42")
	require.NoError(t, err)
	assert.Equal(t, "a1", l.AccountID)
	assert.Equal(t, "at", l.AccessToken)
	assert.Empty(t, l.RefreshToken)
	assert.Nil(t, l.ExpiresAt)
}

func TestLinksCreateConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLinks(db)

	mock.ExpectExec(`INSERT\s+INTO\s+linked_accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "linked_accounts_provider_subject_key"})

	err := repo.Create(context.Background(), &goIdentity.LinkedAccount{ID: "l2", AccountID: "a2", Provider: "github", Subject: "42"})
	require.ErrorIs(t, err, goIdentity.ErrConflict)
}

func TestRevocations(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRevocations(db)
	exp := time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+revoked_tokens.*ON\s+CONFLICT`).
		WithArgs("jti-1", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`DELETE\s+FROM\s+revoked_tokens\s+WHERE\s+expires_at\s*<\s*\$1`).
		WithArgs(exp.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, "jti-1", exp))
	ok, err := repo.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)
	n, err := repo.DeleteExpired(ctx, exp.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestMapErrorWrapsUnknown(t *testing.T) {
	err := mapError(errors.New("connection reset"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, goIdentity.ErrNotFound))
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mapError(nil))
}
