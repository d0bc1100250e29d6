package models

import (
	"time"

	"github.com/fatflowers/repairdesk/pkg/types"
)

type User struct {
	ID           string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Email        string         `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Name         string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Role         types.UserRole `gorm:"column:role;type:varchar(32);not null;default:STAFF" json:"role"`
	PasswordHash string         `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (User) TableName() string { return "users" }
