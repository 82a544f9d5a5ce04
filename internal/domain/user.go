package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleCompliance UserRole = "COMPLIANCE"
	RoleManager    UserRole = "MANAGER"
)

// ParseUserRole only grants MANAGER when asked for explicitly.
func ParseUserRole(s string) UserRole {
	if UserRole(strings.ToUpper(strings.TrimSpace(s))) == RoleManager {
		return RoleManager
	}
	return RoleCompliance
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Role         UserRole  `json:"role"`
	Image        string    `json:"image,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is the user shape returned over the API.
type PublicUser struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
	Image string   `json:"image,omitempty"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NewUser(name, email string, role UserRole) *User {
	return &User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		Role:      role,
		CreatedAt: time.Now(),
	}
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Image: u.Image}
}
