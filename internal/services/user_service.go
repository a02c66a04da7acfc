package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/naruebet/tmwatch/internal/auth"
	"github.com/naruebet/tmwatch/internal/models"
	"github.com/naruebet/tmwatch/internal/store"
)

// seedAdmin is the bootstrap account; it can never be deleted.
const seedAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProtectedUser      = errors.New("cannot delete main admin")
)

type UserService struct {
	users store.Users
	tm    *auth.TokenManager
}

func NewUserService(users store.Users, tm *auth.TokenManager) *UserService {
	return &UserService{users: users, tm: tm}
}

// EnsureAdmin creates the seed admin account when it does not exist yet.
func (s *UserService) EnsureAdmin(ctx context.Context, password string) error {
	if _, err := s.users.GetByUsername(ctx, seedAdmin); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.users.Create(ctx, seedAdmin, hash, models.RoleAdmin)
	return err
}

type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

func (s *UserService) Login(ctx context.Context, username, password string) (models.User, TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return models.User{}, TokenPair{}, err
	}
	if auth.VerifyPassword(password, u.PasswordHash) != nil {
		return models.User{}, TokenPair{}, ErrInvalidCredentials
	}
	access, refresh, exp, err := s.tm.GeneratePair(u.ID, u.Role)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	pair := TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    time.Until(exp).Truncate(time.Second),
	}
	return u, pair, nil
}

func (s *UserService) Create(ctx context.Context, username, password string, role models.Role) (models.User, error) {
	u := models.User{Username: strings.TrimSpace(username), Role: role}
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.users.Create(ctx, u.Username, hash, u.Role)
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// Update changes username, role, and optionally the password.
func (s *UserService) Update(ctx context.Context, id, username, password string, role models.Role) (models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if username != "" {
		u.Username = strings.TrimSpace(username)
	}
	if role != "" {
		u.Role = role
	}
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return models.User{}, err
		}
		u.PasswordHash = hash
	}
	return s.users.Update(ctx, u)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if strings.EqualFold(u.Username, seedAdmin) {
		return ErrProtectedUser
	}
	return s.users.Delete(ctx, id)
}
