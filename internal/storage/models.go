package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Script is a stored script body registered with the engine on startup
type Script struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	Name                  string         `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Description           string         `gorm:"type:text" json:"description"`
	Content               string         `gorm:"type:text;not null" json:"content"`
	Enabled               bool           `gorm:"not null" json:"enabled"`
	Metadata              datatypes.JSON `json:"metadata,omitempty"`
	ProvisionedFromConfig bool           `gorm:"default:false" json:"provisioned_from_config"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// TableName specifies the table name for Script model
func (Script) TableName() string {
	return "scripts"
}
