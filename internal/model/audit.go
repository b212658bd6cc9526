package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateMedicine = "CREATE_MEDICINE"
	ActionUpdateMedicine = "UPDATE_MEDICINE"
	ActionDeleteMedicine = "DELETE_MEDICINE"
	ActionCreateSupplier = "CREATE_SUPPLIER"
	ActionUpdateSupplier = "UPDATE_SUPPLIER"
	ActionDeleteSupplier = "DELETE_SUPPLIER"

	// Stock movement actions
	ActionStockIn      = "STOCK_IN"
	ActionDispense     = "DISPENSE"
	ActionClearHistory = "CLEAR_HISTORY"

	// Order lifecycle actions
	ActionCreateOrder  = "CREATE_ORDER"
	ActionFulfillOrder = "FULFILL_ORDER"
	ActionCancelOrder  = "CANCEL_ORDER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated job
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
