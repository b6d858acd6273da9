// internal/model/organization.go
package model

import "time"

type Organization struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedByID uint      `gorm:"not null;index" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Areas []Area `gorm:"foreignKey:OrganizationID" json:"areas,omitempty"`
}

// Area names are unique within their organization.
type Area struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null;uniqueIndex:idx_areas_organization_name,priority:2" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	OrganizationID uint      `gorm:"not null;uniqueIndex:idx_areas_organization_name,priority:1" json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
