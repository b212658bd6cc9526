package service

import (
	"context"
	"encoding/json"
	"fmt"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"
	"pharmatrack/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type OrderItemRequest struct {
	MedicineID string `json:"medicine_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice  string `json:"unit_price" binding:"required"`
}

type CreateOrderRequest struct {
	SupplierID string             `json:"supplier_id" binding:"required"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type OrderItemResponse struct {
	ID           string `json:"id"`
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
}

type OrderResponse struct {
	ID           string              `json:"id"`
	SupplierID   string              `json:"supplier_id"`
	SupplierName string              `json:"supplier_name"`
	Status       string              `json:"status"`
	TotalAmount  string              `json:"total_amount"`
	TotalItems   int                 `json:"total_items"`
	Items        []OrderItemResponse `json:"items"`
	CreatedAt    string              `json:"created_at"`
}

// OrderService owns the purchase order lifecycle up to the point where
// fulfillment hands over to the allocation engine. Cancellation follows the
// same pending-only rule as fulfillment.
type OrderService interface {
	CreateOrder(ctx context.Context, actorID string, req CreateOrderRequest) (OrderResponse, error)
	GetOrder(ctx context.Context, id string) (OrderResponse, error)
	ListOrders(ctx context.Context, page, limit int, status string) ([]OrderResponse, int64, error)
	CancelOrder(ctx context.Context, actorID string, id string) (OrderResponse, error)
}

type orderService struct {
	orderRepo    repository.OrderRepository
	medicineRepo repository.MedicineRepository
	supplierRepo repository.SupplierRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	medicineRepo repository.MedicineRepository,
	supplierRepo repository.SupplierRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		medicineRepo: medicineRepo,
		supplierRepo: supplierRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

func toOrderResponse(order *model.Order) OrderResponse {
	res := OrderResponse{
		ID:          order.ID.String(),
		SupplierID:  order.SupplierID.String(),
		Status:      order.Status,
		TotalAmount: order.TotalAmount().StringFixed(2),
		TotalItems:  order.TotalItems(),
		Items:       make([]OrderItemResponse, 0, len(order.Items)),
		CreatedAt:   order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if order.Supplier != nil {
		res.SupplierName = order.Supplier.Name
	}
	for _, item := range order.Items {
		itemRes := OrderItemResponse{
			ID:         item.ID.String(),
			MedicineID: item.MedicineID.String(),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.StringFixed(2),
		}
		if item.Medicine != nil {
			itemRes.MedicineName = item.Medicine.Name
		}
		res.Items = append(res.Items, itemRes)
	}
	return res
}

func (s *orderService) CreateOrder(ctx context.Context, actorID string, req CreateOrderRequest) (OrderResponse, error) {
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("invalid supplier_id: %w", ledger.ErrNotFound)
	}

	actor := parseActor(actorID)
	var order model.Order

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		supplier, findErr := s.supplierRepo.FindByID(txCtx, supplierID)
		if findErr != nil {
			return findErr
		}

		// Validate every line item before creating anything.
		type parsedItem struct {
			medicineID uuid.UUID
			quantity   int
			unitPrice  decimal.Decimal
			name       string
		}
		parsed := make([]parsedItem, 0, len(req.Items))
		for _, itemReq := range req.Items {
			if itemReq.Quantity <= 0 {
				return ledger.ErrInvalidQuantity
			}
			mid, parseErr := uuid.Parse(itemReq.MedicineID)
			if parseErr != nil {
				return fmt.Errorf("invalid medicine_id %q: %w", itemReq.MedicineID, ledger.ErrNotFound)
			}
			medicine, medErr := s.medicineRepo.FindByID(txCtx, mid)
			if medErr != nil {
				return medErr
			}
			price, priceErr := decimal.NewFromString(itemReq.UnitPrice)
			if priceErr != nil {
				return fmt.Errorf("invalid unit_price %q: %w", itemReq.UnitPrice, priceErr)
			}
			parsed = append(parsed, parsedItem{
				medicineID: mid,
				quantity:   itemReq.Quantity,
				unitPrice:  price,
				name:       medicine.Name,
			})
		}

		order = model.Order{
			SupplierID: supplierID,
			Status:     model.OrderStatusPending,
			CreatedBy:  actor,
		}
		if createErr := s.orderRepo.Create(txCtx, &order); createErr != nil {
			return fmt.Errorf("failed to create order: %w", createErr)
		}

		for _, p := range parsed {
			item := &model.OrderItem{
				OrderID:    order.ID,
				MedicineID: p.medicineID,
				Quantity:   p.quantity,
				UnitPrice:  p.unitPrice,
			}
			if itemErr := s.orderRepo.CreateItem(txCtx, item); itemErr != nil {
				return fmt.Errorf("failed to create order item: %w", itemErr)
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"supplier": supplier.Name,
			"items":    len(parsed),
		})
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionCreateOrder,
			EntityID:   order.ID.String(),
			EntityName: supplier.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return OrderResponse{}, err
	}

	loaded, err := s.orderRepo.FindByIDWithItems(ctx, order.ID)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("failed to reload order: %w", err)
	}
	return toOrderResponse(loaded), nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (OrderResponse, error) {
	oid, err := uuid.Parse(id)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("invalid order id: %w", ledger.ErrNotFound)
	}
	order, err := s.orderRepo.FindByIDWithItems(ctx, oid)
	if err != nil {
		return OrderResponse{}, err
	}
	return toOrderResponse(order), nil
}

func (s *orderService) ListOrders(ctx context.Context, page, limit int, status string) ([]OrderResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	orders, total, err := s.orderRepo.List(ctx, page, limit, status)
	if err != nil {
		return nil, 0, err
	}

	res := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		res = append(res, toOrderResponse(&orders[i]))
	}
	return res, total, nil
}

func (s *orderService) CancelOrder(ctx context.Context, actorID string, id string) (OrderResponse, error) {
	oid, err := uuid.Parse(id)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("invalid order id: %w", ledger.ErrNotFound)
	}

	actor := parseActor(actorID)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, findErr := s.orderRepo.FindByIDForUpdate(txCtx, oid)
		if findErr != nil {
			return findErr
		}

		if order.Status != model.OrderStatusPending {
			return fmt.Errorf("order %s is %s: %w", id, order.Status, ledger.ErrAlreadyFinalized)
		}

		if updateErr := s.orderRepo.UpdateStatus(txCtx, oid, model.OrderStatusCancelled); updateErr != nil {
			return fmt.Errorf("failed to update order status: %w", updateErr)
		}

		details, _ := json.Marshal(map[string]interface{}{"previous_status": order.Status})
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionCancelOrder,
			EntityID:   order.ID.String(),
			EntityName: model.OrderStatusCancelled,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return OrderResponse{}, err
	}

	loaded, err := s.orderRepo.FindByIDWithItems(ctx, oid)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("failed to reload order: %w", err)
	}
	return toOrderResponse(loaded), nil
}
