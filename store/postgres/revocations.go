package postgres

import (
	"context"
	"time"
)

// Revocations is a revocation.Store over the revoked_tokens table.
type Revocations struct {
	db DBTX
}

func NewRevocations(db DBTX) *Revocations {
	return &Revocations{db: db}
}

// Add records jti. Re-adding keeps the later expiry.
func (r *Revocations) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET expires_at = GREATEST(revoked_tokens.expires_at, EXCLUDED.expires_at)
	`
	_, err := r.db.ExecContext(ctx, query, jti, expiresAt)
	return mapError(err)
}

func (r *Revocations) Contains(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, jti).Scan(&ok); err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (r *Revocations) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM revoked_tokens WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
