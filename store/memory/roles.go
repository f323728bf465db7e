package memory

import (
	"context"
	"sort"
	"sync"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Roles is a goIdentity.RoleStore over role definitions registered with
// Define.
type Roles struct {
	mu          sync.RWMutex
	defaultRole string
	definitions map[string][]string
	members     map[string]map[string]struct{}
}

// NewRoles returns a store whose AssignDefaultRole grants defaultRole. An
// empty defaultRole makes AssignDefaultRole a no-op.
func NewRoles(defaultRole string) *Roles {
	return &Roles{
		defaultRole: defaultRole,
		definitions: make(map[string][]string),
		members:     make(map[string]map[string]struct{}),
	}
}

// Define sets the permissions granted by role, replacing earlier ones.
func (s *Roles) Define(role string, permissions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[role] = append([]string(nil), permissions...)
}

// Roles returns the account's role names, sorted.
func (s *Roles) Roles(_ context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members[accountID]))
	for role := range s.members[accountID] {
		out = append(out, role)
	}
	sort.Strings(out)
	return out, nil
}

// Permissions returns the union of the permissions of the account's roles,
// sorted and deduplicated.
func (s *Roles) Permissions(_ context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := []string{}
	for role := range s.members[accountID] {
		for _, p := range s.definitions[role] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AssignRole grants a defined role. Assigning a held role is a no-op.
func (s *Roles) AssignRole(_ context.Context, accountID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[role]; !ok {
		return goIdentity.ErrNotFound
	}
	set, ok := s.members[accountID]
	if !ok {
		set = make(map[string]struct{})
		s.members[accountID] = set
	}
	set[role] = struct{}{}
	return nil
}

// RemoveRole revokes role. Removing a role the account lacks is a no-op.
func (s *Roles) RemoveRole(_ context.Context, accountID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[accountID], role)
	return nil
}

func (s *Roles) AssignDefaultRole(ctx context.Context, accountID string) error {
	if s.defaultRole == "" {
		return nil
	}
	return s.AssignRole(ctx, accountID, s.defaultRole)
}
