package service

import (
	"context"
	"encoding/json"
	"fmt"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"
	"pharmatrack/internal/repository"

	"github.com/google/uuid"
)

type CreateSupplierRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" binding:"omitempty,email"`
	Address       string `json:"address"`
}

type UpdateSupplierRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" binding:"omitempty,email"`
	Address       string `json:"address"`
}

type SupplierResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
}

type SupplierService interface {
	CreateSupplier(ctx context.Context, actorID string, req CreateSupplierRequest) (SupplierResponse, error)
	UpdateSupplier(ctx context.Context, actorID string, id string, req UpdateSupplierRequest) (SupplierResponse, error)
	DeleteSupplier(ctx context.Context, actorID string, id string) error
	GetSupplier(ctx context.Context, id string) (SupplierResponse, error)
	ListSuppliers(ctx context.Context, page, limit int, search string) ([]SupplierResponse, int64, error)
}

type supplierService struct {
	supplierRepo repository.SupplierRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewSupplierService(
	supplierRepo repository.SupplierRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) SupplierService {
	return &supplierService{
		supplierRepo: supplierRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

func toSupplierResponse(s *model.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:            s.ID.String(),
		Name:          s.Name,
		ContactPerson: s.ContactPerson,
		Phone:         s.Phone,
		Email:         s.Email,
		Address:       s.Address,
	}
}

func (s *supplierService) CreateSupplier(ctx context.Context, actorID string, req CreateSupplierRequest) (SupplierResponse, error) {
	supplier := model.Supplier{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
	}

	actor := parseActor(actorID)

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.supplierRepo.Create(txCtx, &supplier); createErr != nil {
			return fmt.Errorf("failed to create supplier: %w", createErr)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionCreateSupplier,
			EntityID:   supplier.ID.String(),
			EntityName: supplier.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return SupplierResponse{}, err
	}

	return toSupplierResponse(&supplier), nil
}

func (s *supplierService) UpdateSupplier(ctx context.Context, actorID string, id string, req UpdateSupplierRequest) (SupplierResponse, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return SupplierResponse{}, fmt.Errorf("invalid supplier id: %w", ledger.ErrNotFound)
	}

	supplier, err := s.supplierRepo.FindByID(ctx, sid)
	if err != nil {
		return SupplierResponse{}, err
	}

	if req.Name != "" {
		supplier.Name = req.Name
	}
	if req.ContactPerson != "" {
		supplier.ContactPerson = req.ContactPerson
	}
	if req.Phone != "" {
		supplier.Phone = req.Phone
	}
	if req.Email != "" {
		supplier.Email = req.Email
	}
	if req.Address != "" {
		supplier.Address = req.Address
	}

	actor := parseActor(actorID)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.supplierRepo.Update(txCtx, supplier); updateErr != nil {
			return fmt.Errorf("failed to update supplier: %w", updateErr)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionUpdateSupplier,
			EntityID:   supplier.ID.String(),
			EntityName: supplier.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return SupplierResponse{}, err
	}

	return toSupplierResponse(supplier), nil
}

func (s *supplierService) DeleteSupplier(ctx context.Context, actorID string, id string) error {
	sid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid supplier id: %w", ledger.ErrNotFound)
	}

	supplier, err := s.supplierRepo.FindByID(ctx, sid)
	if err != nil {
		return err
	}

	actor := parseActor(actorID)

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if delErr := s.supplierRepo.Delete(txCtx, sid); delErr != nil {
			return fmt.Errorf("failed to delete supplier: %w", delErr)
		}

		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionDeleteSupplier,
			EntityID:   supplier.ID.String(),
			EntityName: supplier.Name,
			Details:    `{"deleted": true}`,
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
}

func (s *supplierService) GetSupplier(ctx context.Context, id string) (SupplierResponse, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return SupplierResponse{}, fmt.Errorf("invalid supplier id: %w", ledger.ErrNotFound)
	}

	supplier, err := s.supplierRepo.FindByID(ctx, sid)
	if err != nil {
		return SupplierResponse{}, err
	}
	return toSupplierResponse(supplier), nil
}

func (s *supplierService) ListSuppliers(ctx context.Context, page, limit int, search string) ([]SupplierResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	suppliers, total, err := s.supplierRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]SupplierResponse, 0, len(suppliers))
	for i := range suppliers {
		res = append(res, toSupplierResponse(&suppliers[i]))
	}
	return res, total, nil
}
