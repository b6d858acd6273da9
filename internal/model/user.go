// internal/model/user.go
package model

import (
	"strings"
	"time"
)

type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	LastName       string    `gorm:"size:100" json:"last_name"`
	SecondLastName string    `gorm:"size:100" json:"second_last_name"`
	Email          string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FullName joins the non-empty name parts.
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.Name, u.LastName, u.SecondLastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceWeb     DeviceType = "web"
	DeviceDesktop DeviceType = "desktop"
)

// DeviceToken is a push notification target registered by a user.
type DeviceToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_device_tokens_user_token,priority:1" json:"user_id"`
	Token      string     `gorm:"size:512;not null;uniqueIndex:idx_device_tokens_user_token,priority:2" json:"device_token"`
	DeviceType DeviceType `gorm:"size:20;not null" json:"device_type"`
	Platform   string     `gorm:"size:20" json:"platform"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
