package models

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleDev   Role = "dev"
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleDev, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if len(strings.TrimSpace(u.Username)) < 3 {
		return errors.New("username too short")
	}
	if u.Role == "" {
		u.Role = RoleStaff
	}
	if !ValidRole(u.Role) {
		return errors.New("unknown role")
	}
	return nil
}
