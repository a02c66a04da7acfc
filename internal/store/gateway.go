package store

import (
	"context"
	"errors"

	"github.com/naruebet/tmwatch/internal/models"
)

// ErrNotFound is returned when an id references no stored record.
var ErrNotFound = errors.New("record not found")

// ErrUsernameTaken is returned when a create or update would violate the
// case-insensitive username uniqueness rule.
var ErrUsernameTaken = errors.New("username already taken")

// Gateway is the capability set every transaction store must provide. The
// selector routes each call to the durable or the ephemeral implementation;
// handlers depend on this interface only, never on connectivity state.
type Gateway interface {
	// Put stores tx. Idempotent on id: putting the same id twice never
	// yields two records.
	Put(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (models.Transaction, error)
	// List returns up to limit records, most recent first.
	List(ctx context.Context, limit int) ([]models.Transaction, error)
	// UpdateStatus sets the status field of an existing record.
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) (models.Transaction, error)
	DeleteOne(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// Users holds the operator accounts consulted for roles. Usernames are unique
// case-insensitively.
type Users interface {
	Create(ctx context.Context, username, passwordHash string, role models.Role) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, u models.User) (models.User, error)
	Delete(ctx context.Context, id string) error
}

// AuditLogs records what happened to which entity, for operators.
type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

// Settings is the key/value store for collaborator configuration such as the
// upstream provider's bearer token.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
