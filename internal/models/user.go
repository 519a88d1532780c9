package models

import (
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:user"`

	ID           string `bun:"id,pk"`
	Email        string `bun:"email,unique,notnull"`
	Name         string `bun:"name,notnull"`
	PasswordHash string `bun:"password_hash,notnull"`
	Confirmed    bool   `bun:"confirmed"`
}
