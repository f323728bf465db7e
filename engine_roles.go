package goIdentity

import (
	"context"
	"strings"
)

// AssignRole adds role to the account. The account's cached permissions
// are invalidated before this returns; tokens already issued keep their
// old claims until they are refreshed.
func (e *Engine) AssignRole(ctx context.Context, accountID, role string) error {
	return e.changeRole(ctx, auditRoleAssigned, accountID, role, e.directory.AssignRole)
}

// RemoveRole removes role from the account, invalidating like AssignRole.
func (e *Engine) RemoveRole(ctx context.Context, accountID, role string) error {
	return e.changeRole(ctx, auditRoleRemoved, accountID, role, e.directory.RemoveRole)
}

// Permissions returns the account's current permission names.
func (e *Engine) Permissions(ctx context.Context, accountID string) ([]string, error) {
	if e == nil || e.directory == nil {
		return nil, ErrEngineNotReady
	}
	perms, err := e.directory.Permissions(ctx, accountID)
	if err != nil {
		return nil, unavailable(err)
	}
	return perms, nil
}

func (e *Engine) changeRole(
	ctx context.Context,
	a auditAction,
	accountID, role string,
	apply func(ctx context.Context, accountID, role string) error,
) error {
	if e == nil || e.directory == nil {
		return ErrEngineNotReady
	}
	role = strings.TrimSpace(role)
	if strings.TrimSpace(accountID) == "" {
		return errInvalidField("account id")
	}
	if role == "" {
		return errInvalidField("role")
	}

	if err := apply(ctx, accountID, role); err != nil {
		err = e.storeError(err)
		e.emitAudit(ctx, a, false, "", accountID, err, func() map[string]string {
			return map[string]string{"role": role}
		})
		return err
	}

	e.metricInc(MetricRoleChanged)
	e.emitAudit(ctx, a, true, "", accountID, nil, func() map[string]string {
		return map[string]string{"role": role}
	})
	return nil
}
