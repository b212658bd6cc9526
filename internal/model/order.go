package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus constants
const (
	OrderStatusPending   = "pending"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is a purchase order placed against one supplier. Fulfilling a
// pending order is the trigger for the stock-in path; delivered and
// cancelled are terminal states.
type Order struct {
	ID         uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SupplierID uuid.UUID   `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier   *Supplier   `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Status     string      `gorm:"type:varchar(20);default:'pending';not null" json:"status"`
	CreatedBy  *uuid.UUID  `gorm:"type:uuid" json:"created_by"`
	Creator    *User       `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Items      []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TotalAmount sums unit price times quantity over the order's line items.
func (o *Order) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// TotalItems sums the requested quantity over the order's line items.
func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// OrderItem is one requested medicine line within an order.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	MedicineID uuid.UUID       `gorm:"type:uuid;not null;index" json:"medicine_id"`
	Medicine   *Medicine       `gorm:"foreignKey:MedicineID" json:"medicine,omitempty"`
	Quantity   int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}
