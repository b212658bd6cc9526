package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"
	"pharmatrack/internal/repository"

	"github.com/google/uuid"
)

// In-memory repository stubs. They mirror the ordering and invariant rules of
// the real Postgres-backed implementations so the services under test see the
// same behavior without a database.

type stubTxManager struct {
	calls int
}

func (m *stubTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type memMedicineRepo struct {
	medicines map[uuid.UUID]*model.Medicine
}

func newMemMedicineRepo() *memMedicineRepo {
	return &memMedicineRepo{medicines: make(map[uuid.UUID]*model.Medicine)}
}

func (r *memMedicineRepo) Create(ctx context.Context, medicine *model.Medicine) error {
	if medicine.ID == uuid.Nil {
		medicine.ID = uuid.New()
	}
	medicine.CreatedAt = time.Now()
	r.medicines[medicine.ID] = medicine
	return nil
}

func (r *memMedicineRepo) Update(ctx context.Context, medicine *model.Medicine) error {
	if _, ok := r.medicines[medicine.ID]; !ok {
		return ledger.ErrNotFound
	}
	r.medicines[medicine.ID] = medicine
	return nil
}

func (r *memMedicineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.medicines, id)
	return nil
}

func (r *memMedicineRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	medicine, ok := r.medicines[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return medicine, nil
}

func (r *memMedicineRepo) List(ctx context.Context, page, limit int, search string) ([]model.Medicine, int64, error) {
	all := make([]model.Medicine, 0, len(r.medicines))
	for _, m := range r.medicines {
		if search != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(search)) {
			continue
		}
		all = append(all, *m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memMedicineRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.medicines)), nil
}

type memBatchRepo struct {
	batches []*model.Batch
	clock   time.Time
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{clock: time.Now()}
}

// tick returns strictly increasing creation timestamps so the
// creation-order tie-break is deterministic.
func (r *memBatchRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memBatchRepo) Create(ctx context.Context, batch *model.Batch) error {
	if batch.Quantity < 0 {
		return fmt.Errorf("create batch %q: %w", batch.BatchNumber, ledger.ErrInvalidQuantity)
	}
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	batch.CreatedAt = r.tick()
	r.batches = append(r.batches, batch)
	return nil
}

func (r *memBatchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	for _, b := range r.batches {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (r *memBatchRepo) sortedByExpiration(medicineID uuid.UUID) []model.Batch {
	filtered := make([]model.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		if b.MedicineID == medicineID {
			filtered = append(filtered, *b)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].ExpirationDate.Equal(filtered[j].ExpirationDate) {
			return filtered[i].ExpirationDate.Before(filtered[j].ExpirationDate)
		}
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered
}

func (r *memBatchRepo) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]model.Batch, error) {
	return r.sortedByExpiration(medicineID), nil
}

func (r *memBatchRepo) ListByMedicineForUpdate(ctx context.Context, medicineID uuid.UUID) ([]model.Batch, error) {
	return r.sortedByExpiration(medicineID), nil
}

func (r *memBatchRepo) LatestNonExpiredForUpdate(ctx context.Context, medicineID uuid.UUID, asOf time.Time) (*model.Batch, error) {
	var latest *model.Batch
	for _, b := range r.batches {
		if b.MedicineID != medicineID || b.ExpirationDate.Before(asOf) {
			continue
		}
		if latest == nil || b.ExpirationDate.After(latest.ExpirationDate) ||
			(b.ExpirationDate.Equal(latest.ExpirationDate) && b.CreatedAt.After(latest.CreatedAt)) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (r *memBatchRepo) ApplyQuantityDelta(ctx context.Context, id uuid.UUID, delta int) error {
	for _, b := range r.batches {
		if b.ID != id {
			continue
		}
		if b.Quantity+delta < 0 {
			return fmt.Errorf("batch %s: delta %d: %w", id, delta, ledger.ErrInsufficientStock)
		}
		b.Quantity += delta
		return nil
	}
	return fmt.Errorf("batch %s: %w", id, ledger.ErrNotFound)
}

func (r *memBatchRepo) ExpiringWithin(ctx context.Context, days int) ([]model.Batch, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	deadline := today.AddDate(0, 0, days)

	var out []model.Batch
	for _, b := range r.batches {
		if b.Quantity > 0 && b.ExpirationDate.After(today) && !b.ExpirationDate.After(deadline) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBatchRepo) LowStock(ctx context.Context, threshold int) ([]model.Batch, error) {
	var out []model.Batch
	for _, b := range r.batches {
		if b.Quantity > 0 && b.Quantity <= threshold {
			out = append(out, *b)
		}
	}
	return out, nil
}

type memStockTxRepo struct {
	transactions []model.StockTransaction
}

func (r *memStockTxRepo) Create(ctx context.Context, tx *model.StockTransaction) error {
	if tx.Quantity <= 0 {
		return fmt.Errorf("record transaction: %w", ledger.ErrInvalidQuantity)
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.CreatedAt = time.Now()
	r.transactions = append(r.transactions, *tx)
	return nil
}

func (r *memStockTxRepo) List(ctx context.Context, filter repository.TransactionFilter) ([]model.StockTransaction, int64, error) {
	var out []model.StockTransaction
	for _, tx := range r.transactions {
		if filter.BatchID != uuid.Nil && tx.BatchID != filter.BatchID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		out = append(out, tx)
	}
	return out, int64(len(out)), nil
}

func (r *memStockTxRepo) DeleteAll(ctx context.Context) (int64, error) {
	n := int64(len(r.transactions))
	r.transactions = nil
	return n, nil
}

type memOrderRepo struct {
	orders map[uuid.UUID]*model.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (r *memOrderRepo) Create(ctx context.Context, order *model.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now()
	r.orders[order.ID] = order
	return nil
}

func (r *memOrderRepo) CreateItem(ctx context.Context, item *model.OrderItem) error {
	order, ok := r.orders[item.OrderID]
	if !ok {
		return ledger.ErrNotFound
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	order.Items = append(order.Items, *item)
	return nil
}

func (r *memOrderRepo) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return order, nil
}

func (r *memOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.FindByIDWithItems(ctx, id)
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	order, ok := r.orders[id]
	if !ok {
		return ledger.ErrNotFound
	}
	order.Status = status
	return nil
}

func (r *memOrderRepo) List(ctx context.Context, page, limit int, status string) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range r.orders {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

type memSupplierRepo struct {
	suppliers map[uuid.UUID]*model.Supplier
}

func newMemSupplierRepo() *memSupplierRepo {
	return &memSupplierRepo{suppliers: make(map[uuid.UUID]*model.Supplier)}
}

func (r *memSupplierRepo) Create(ctx context.Context, supplier *model.Supplier) error {
	if supplier.ID == uuid.Nil {
		supplier.ID = uuid.New()
	}
	r.suppliers[supplier.ID] = supplier
	return nil
}

func (r *memSupplierRepo) Update(ctx context.Context, supplier *model.Supplier) error {
	r.suppliers[supplier.ID] = supplier
	return nil
}

func (r *memSupplierRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.suppliers, id)
	return nil
}

func (r *memSupplierRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	supplier, ok := r.suppliers[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return supplier, nil
}

func (r *memSupplierRepo) List(ctx context.Context, page, limit int, search string) ([]model.Supplier, int64, error) {
	var out []model.Supplier
	for _, s := range r.suppliers {
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

type memAuditRepo struct {
	entries []model.AuditLog
}

func (r *memAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) List(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	return r.entries, int64(len(r.entries)), nil
}

func (r *memAuditRepo) lastAction() string {
	if len(r.entries) == 0 {
		return ""
	}
	return r.entries[len(r.entries)-1].Action
}
