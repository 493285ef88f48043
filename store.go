package authflow

import (
	"context"
	"sync"
)

// MemorySessionStore keeps the session record in process memory. It backs
// tests and ephemeral profiles where nothing should outlive the process.
type MemorySessionStore struct {
	mu    sync.Mutex
	token string
	user  *User
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Save(_ context.Context, token string, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user.Clone()
	return nil
}

func (s *MemorySessionStore) Load(_ context.Context) (string, *User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.user.Clone(), nil
}

func (s *MemorySessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return nil
}

// MemoryCredentialStore is the in-process counterpart for the remembered
// login pair.
type MemoryCredentialStore struct {
	mu       sync.Mutex
	email    string
	password string
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) Save(_ context.Context, email, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	s.password = password
	return nil
}

func (s *MemoryCredentialStore) Load(_ context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email, s.password, nil
}

func (s *MemoryCredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = ""
	s.password = ""
	return nil
}
