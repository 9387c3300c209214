package models

import (
	"time"
)

type User struct {
	ID             string
	Email          string
	FullName       string
	HashedPassword string
	IsActive       bool
	IsSuperuser    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserCreate carries the fields accepted at registration.
type UserCreate struct {
	Email       string
	Password    string
	FullName    string
	IsActive    bool
	IsSuperuser bool
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Email       *string
	FullName    *string
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
}

// Deactivates reports whether applying the update turns the account inactive.
func (u UserUpdate) Deactivates() bool {
	return u.IsActive != nil && !*u.IsActive
}

// Demotes reports whether applying the update removes superuser status.
func (u UserUpdate) Demotes() bool {
	return u.IsSuperuser != nil && !*u.IsSuperuser
}

// TouchesPrivileges reports whether the update sets any admin-only field.
func (u UserUpdate) TouchesPrivileges() bool {
	return u.IsActive != nil || u.IsSuperuser != nil
}
