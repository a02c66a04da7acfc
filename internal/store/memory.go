package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naruebet/tmwatch/internal/models"
)

// DefaultEphemeralCap bounds the in-process buffer when no capacity is
// configured. The historical floor was 50.
const DefaultEphemeralCap = 500

// Ephemeral is the bounded in-process transaction buffer used while no durable
// backend is reachable. Records are kept newest-first (Put prepends) and the
// oldest entry is evicted once the ceiling is exceeded. All mutations hold the
// lock for the whole prepend-and-trim sequence.
type Ephemeral struct {
	mu    sync.Mutex
	cap   int
	items []models.Transaction
}

func NewEphemeral(capacity int) *Ephemeral {
	if capacity <= 0 {
		capacity = DefaultEphemeralCap
	}
	return &Ephemeral{cap: capacity}
}

func (e *Ephemeral) Put(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range e.items {
		if it.ID == tx.ID {
			return it, nil
		}
	}
	e.items = append([]models.Transaction{tx}, e.items...)
	if len(e.items) > e.cap {
		e.items = e.items[:e.cap]
	}
	return tx, nil
}

func (e *Ephemeral) Get(_ context.Context, id string) (models.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range e.items {
		if it.ID == id {
			return it, nil
		}
	}
	return models.Transaction{}, ErrNotFound
}

// List returns the newest records in insertion order. The buffer is already
// reverse-chronological because Put prepends; no re-sort happens here.
func (e *Ephemeral) List(_ context.Context, limit int) ([]models.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Transaction, n)
	copy(out, e.items[:n])
	return out, nil
}

func (e *Ephemeral) UpdateStatus(_ context.Context, id string, status models.TransactionStatus) (models.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.items {
		if e.items[i].ID == id {
			e.items[i].Status = status
			return e.items[i], nil
		}
	}
	return models.Transaction{}, ErrNotFound
}

func (e *Ephemeral) DeleteOne(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.items {
		if e.items[i].ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (e *Ephemeral) DeleteAll(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = nil
	return nil
}

func (e *Ephemeral) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// MemoryUsers backs the operator accounts when no database is configured,
// mirroring the seed-user setup the provider dashboard shipped with.
type MemoryUsers struct {
	mu    sync.Mutex
	users []models.User
}

func NewMemoryUsers() *MemoryUsers { return &MemoryUsers{} }

func (m *MemoryUsers) Create(_ context.Context, username, passwordHash string, role models.Role) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return models.User{}, ErrUsernameTaken
		}
	}
	now := time.Now().UTC()
	u := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users = append(m.users, u)
	return u, nil
}

func (m *MemoryUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MemoryUsers) GetByUsername(_ context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MemoryUsers) List(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, len(m.users))
	copy(out, m.users)
	return out, nil
}

func (m *MemoryUsers) Update(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID != u.ID && strings.EqualFold(m.users[i].Username, u.Username) {
			return models.User{}, ErrUsernameTaken
		}
	}
	for i := range m.users {
		if m.users[i].ID == u.ID {
			u.CreatedAt = m.users[i].CreatedAt
			u.UpdatedAt = time.Now().UTC()
			m.users[i] = u
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MemoryUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// MemorySettings is the fallback key/value store.
type MemorySettings struct {
	mu sync.Mutex
	kv map[string]string
}

func NewMemorySettings() *MemorySettings { return &MemorySettings{kv: map[string]string{}} }

func (m *MemorySettings) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemorySettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}
