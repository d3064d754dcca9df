package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWorker Role = "worker"
	RoleClient Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWorker, RoleClient:
		return true
	}
	return false
}

// LandingPath is where a freshly logged in user of this role is sent.
func (r Role) LandingPath() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleWorker:
		return "/worker"
	case RoleClient:
		return "/client"
	default:
		return "/"
	}
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Username     string    `bun:"username,unique,notnull" json:"username"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         Role      `bun:"role,notnull" json:"role"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
