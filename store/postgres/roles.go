package postgres

import (
	"context"
	"fmt"
)

// Roles is a goIdentity.RoleStore over account_roles and role_permissions.
// Role definitions are managed with SQL or migrations.
type Roles struct {
	db          DBTX
	defaultRole string
}

// NewRoles returns a role store whose AssignDefaultRole grants
// defaultRole. An empty defaultRole disables it.
func NewRoles(db DBTX, defaultRole string) *Roles {
	return &Roles{db: db, defaultRole: defaultRole}
}

func (r *Roles) Roles(ctx context.Context, accountID string) ([]string, error) {
	query := `
		SELECT role FROM account_roles
		WHERE account_id = $1
		ORDER BY role
	`
	return r.strings(ctx, query, accountID)
}

func (r *Roles) Permissions(ctx context.Context, accountID string) ([]string, error) {
	query := `
		SELECT DISTINCT rp.permission
		FROM account_roles ar
		JOIN role_permissions rp ON rp.role = ar.role
		WHERE ar.account_id = $1
		ORDER BY rp.permission
	`
	return r.strings(ctx, query, accountID)
}

// AssignRole grants role. An unknown role or account fails with
// goIdentity.ErrNotFound.
func (r *Roles) AssignRole(ctx context.Context, accountID, role string) error {
	query := `
		INSERT INTO account_roles (account_id, role)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, accountID, role)
	return mapError(err)
}

func (r *Roles) RemoveRole(ctx context.Context, accountID, role string) error {
	query := `
		DELETE FROM account_roles
		WHERE account_id = $1 AND role = $2
	`
	_, err := r.db.ExecContext(ctx, query, accountID, role)
	return mapError(err)
}

func (r *Roles) AssignDefaultRole(ctx context.Context, accountID string) error {
	if r.defaultRole == "" {
		return nil
	}
	return r.AssignRole(ctx, accountID, r.defaultRole)
}

func (r *Roles) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
