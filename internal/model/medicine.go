package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Medicine represents a tracked pharmaceutical item. Quantities are never
// stored on the medicine itself; they are derived from its batches.
type Medicine struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null;index" json:"name"`
	GenericName string         `gorm:"type:varchar(255)" json:"generic_name"`
	Category    string         `gorm:"type:varchar(100)" json:"category"`
	Unit        string         `gorm:"type:varchar(20);not null" json:"unit"` // tablets, bottles, vials...
	SupplierID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier    *Supplier      `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Batches     []Batch        `gorm:"foreignKey:MedicineID;constraint:OnDelete:CASCADE" json:"batches,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TotalQuantity sums quantity across a snapshot of the medicine's batches,
// including batches already at zero.
func TotalQuantity(batches []Batch) int {
	total := 0
	for _, b := range batches {
		total += b.Quantity
	}
	return total
}

// AvailableBatches filters a batch snapshot down to batches with usable stock.
func AvailableBatches(batches []Batch) []Batch {
	available := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.Quantity > 0 {
			available = append(available, b)
		}
	}
	return available
}

// Batch is one received lot of a medicine with its own expiration date and
// price. Quantity never goes negative; a batch drained to zero stays around
// for audit and is never refilled.
type Batch struct {
	ID                uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MedicineID        uuid.UUID          `gorm:"type:uuid;not null;index" json:"medicine_id"`
	Medicine          *Medicine          `gorm:"foreignKey:MedicineID" json:"medicine,omitempty"`
	BatchNumber       string             `gorm:"type:varchar(50);not null" json:"batch_number"`
	Quantity          int                `gorm:"type:int;not null;check:quantity >= 0" json:"quantity"`
	ExpirationDate    time.Time          `gorm:"type:date;not null;index" json:"expiration_date"`
	ManufacturingDate time.Time          `gorm:"type:date" json:"manufacturing_date"`
	UnitPrice         decimal.Decimal    `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Transactions      []StockTransaction `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsExpired reports whether the batch's expiration date is in the past.
func (b *Batch) IsExpired() bool {
	return b.ExpirationDate.Before(truncateToDay(time.Now()))
}

// DaysUntilExpiration returns the number of whole days until the batch
// expires. Negative for already-expired batches.
func (b *Batch) DaysUntilExpiration() int {
	return int(b.ExpirationDate.Sub(truncateToDay(time.Now())).Hours() / 24)
}

// IsExpiringSoon reports whether the batch is not yet expired but will be
// within the given number of days.
func (b *Batch) IsExpiringSoon(windowDays int) bool {
	days := b.DaysUntilExpiration()
	return days >= 0 && days <= windowDays
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TransactionType enum
const (
	TxTypeIn  = "in"
	TxTypeOut = "out"
)

// StockTransaction is the append-only audit ledger entry for a single stock
// movement against one batch. Rows are created exactly once and never
// updated; the only delete path is the admin clear-history action.
type StockTransaction struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"batch_id"`
	Batch       *Batch     `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
	Type        string     `gorm:"type:varchar(10);not null" json:"type"` // in, out
	Quantity    int        `gorm:"type:int;not null;check:quantity > 0" json:"quantity"`
	PerformedBy *uuid.UUID `gorm:"type:uuid;index" json:"performed_by"`
	User        *User      `gorm:"foreignKey:PerformedBy" json:"user,omitempty"`
	Note        string     `gorm:"type:varchar(200)" json:"note"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}
