package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Supplier represents a medicine vendor orders are placed against.
type Supplier struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	ContactPerson string         `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         string         `gorm:"type:varchar(50)" json:"phone"`
	Email         string         `gorm:"type:varchar(255)" json:"email"`
	Address       string         `gorm:"type:text" json:"address"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
