package memory

import (
	"context"
	"sync"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Links is a goIdentity.LinkedAccountStore keyed by id with a
// (provider, subject) index.
type Links struct {
	mu        sync.RWMutex
	byID      map[string]*goIdentity.LinkedAccount
	bySubject map[string]string
}

func NewLinks() *Links {
	return &Links{
		byID:      make(map[string]*goIdentity.LinkedAccount),
		bySubject: make(map[string]string),
	}
}

func (s *Links) Create(_ context.Context, link *goIdentity.LinkedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subjectKey(link.Provider, link.Subject)
	if _, ok := s.bySubject[key]; ok {
		return goIdentity.ErrConflict
	}
	if _, ok := s.byID[link.ID]; ok {
		return goIdentity.ErrConflict
	}
	cp := *link
	s.byID[link.ID] = &cp
	s.bySubject[key] = link.ID
	return nil
}

func (s *Links) FindByID(_ context.Context, id string) (*goIdentity.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byID[id]
	if !ok {
		return nil, goIdentity.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Links) FindBySubject(ctx context.Context, provider, subject string) (*goIdentity.LinkedAccount, error) {
	s.mu.RLock()
	id, ok := s.bySubject[subjectKey(provider, subject)]
	s.mu.RUnlock()
	if !ok {
		return nil, goIdentity.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *Links) FindByAccount(_ context.Context, accountID, provider string) (*goIdentity.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.byID {
		if l.AccountID == accountID && l.Provider == provider {
			cp := *l
			return &cp, nil
		}
	}
	return nil, goIdentity.ErrNotFound
}

func (s *Links) UpdateTokens(_ context.Context, id string, tokens goIdentity.LinkedTokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byID[id]
	if !ok {
		return goIdentity.ErrNotFound
	}
	l.AccessToken = tokens.AccessToken
	l.RefreshToken = tokens.RefreshToken
	l.ExpiresAt = tokens.ExpiresAt
	return nil
}

func subjectKey(provider, subject string) string {
	return provider + "\x00" + subject
}
