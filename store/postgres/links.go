package postgres

import (
	"context"
	"database/sql"

	goIdentity "github.com/MrEthical07/goIdentity"
)

const linkColumns = `id, account_id, provider, subject, email, access_token, refresh_token, expires_at, created_at, updated_at`

// Links is a goIdentity.LinkedAccountStore over linked_accounts.
type Links struct {
	db DBTX
}

func NewLinks(db DBTX) *Links {
	return &Links{db: db}
}

func (r *Links) Create(ctx context.Context, l *goIdentity.LinkedAccount) error {
	query := `
		INSERT INTO linked_accounts (id, account_id, provider, subject, email, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.AccountID, l.Provider, l.Subject, nullString(l.Email),
		nullString(l.AccessToken), nullString(l.RefreshToken), nullTime(l.ExpiresAt),
		l.CreatedAt, l.UpdatedAt,
	)
	return mapError(err)
}

func (r *Links) FindByID(ctx context.Context, id string) (*goIdentity.LinkedAccount, error) {
	query := "SELECT " + linkColumns + " FROM linked_accounts WHERE id = $1"
	return r.findOne(ctx, query, id)
}

func (r *Links) FindBySubject(ctx context.Context, provider, subject string) (*goIdentity.LinkedAccount, error) {
	query := "SELECT " + linkColumns + " FROM linked_accounts WHERE provider = $1 AND subject = $2"
	return r.findOne(ctx, query, provider, subject)
}

func (r *Links) FindByAccount(ctx context.Context, accountID, provider string) (*goIdentity.LinkedAccount, error) {
	query := "SELECT " + linkColumns + " FROM linked_accounts WHERE account_id = $1 AND provider = $2"
	return r.findOne(ctx, query, accountID, provider)
}

func (r *Links) UpdateTokens(ctx context.Context, id string, tokens goIdentity.LinkedTokens) error {
	query := `
		UPDATE linked_accounts SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id,
		nullString(tokens.AccessToken), nullString(tokens.RefreshToken), nullTime(tokens.ExpiresAt))
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(res)
}

func (r *Links) findOne(ctx context.Context, query string, args ...any) (*goIdentity.LinkedAccount, error) {
	var (
		l                      goIdentity.LinkedAccount
		email, access, refresh sql.NullString
		expires                sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&l.ID, &l.AccountID, &l.Provider, &l.Subject, &email, &access, &refresh, &expires, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	l.Email = email.String
	l.AccessToken = access.String
	l.RefreshToken = refresh.String
	l.ExpiresAt = timePtr(expires)
	return &l, nil
}
