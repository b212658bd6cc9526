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

// DTOs
type CreateMedicineRequest struct {
	Name        string `json:"name" binding:"required"`
	GenericName string `json:"generic_name"`
	Category    string `json:"category"`
	Unit        string `json:"unit" binding:"required"`
	SupplierID  string `json:"supplier_id" binding:"required"`
}

type UpdateMedicineRequest struct {
	Name        string `json:"name"`
	GenericName string `json:"generic_name"`
	Category    string `json:"category"`
	Unit        string `json:"unit"`
	SupplierID  string `json:"supplier_id"`
}

type MedicineResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	GenericName   string `json:"generic_name"`
	Category      string `json:"category"`
	Unit          string `json:"unit"`
	SupplierID    string `json:"supplier_id"`
	SupplierName  string `json:"supplier_name,omitempty"`
	TotalQuantity int    `json:"total_quantity"`
	BatchCount    int    `json:"batch_count"`
}

type MedicineService interface {
	CreateMedicine(ctx context.Context, actorID string, req CreateMedicineRequest) (MedicineResponse, error)
	UpdateMedicine(ctx context.Context, actorID string, id string, req UpdateMedicineRequest) (MedicineResponse, error)
	// DeleteMedicine removes the medicine together with its batches and
	// their transaction history.
	DeleteMedicine(ctx context.Context, actorID string, id string) error
	GetMedicine(ctx context.Context, id string) (MedicineResponse, error)
	ListMedicines(ctx context.Context, page, limit int, search string) ([]MedicineResponse, int64, error)
}

type medicineService struct {
	medicineRepo repository.MedicineRepository
	batchRepo    repository.BatchRepository
	supplierRepo repository.SupplierRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewMedicineService(
	medicineRepo repository.MedicineRepository,
	batchRepo repository.BatchRepository,
	supplierRepo repository.SupplierRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) MedicineService {
	return &medicineService{
		medicineRepo: medicineRepo,
		batchRepo:    batchRepo,
		supplierRepo: supplierRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

func toMedicineResponse(m *model.Medicine, batches []model.Batch) MedicineResponse {
	res := MedicineResponse{
		ID:            m.ID.String(),
		Name:          m.Name,
		GenericName:   m.GenericName,
		Category:      m.Category,
		Unit:          m.Unit,
		SupplierID:    m.SupplierID.String(),
		TotalQuantity: model.TotalQuantity(batches),
		BatchCount:    len(batches),
	}
	if m.Supplier != nil {
		res.SupplierName = m.Supplier.Name
	}
	return res
}

func (s *medicineService) CreateMedicine(ctx context.Context, actorID string, req CreateMedicineRequest) (MedicineResponse, error) {
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return MedicineResponse{}, fmt.Errorf("invalid supplier_id: %w", ledger.ErrNotFound)
	}

	medicine := model.Medicine{
		Name:        req.Name,
		GenericName: req.GenericName,
		Category:    req.Category,
		Unit:        req.Unit,
		SupplierID:  supplierID,
	}

	actor := parseActor(actorID)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, findErr := s.supplierRepo.FindByID(txCtx, supplierID); findErr != nil {
			return findErr
		}

		if createErr := s.medicineRepo.Create(txCtx, &medicine); createErr != nil {
			return fmt.Errorf("failed to create medicine: %w", createErr)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionCreateMedicine,
			EntityID:   medicine.ID.String(),
			EntityName: medicine.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return MedicineResponse{}, err
	}

	return toMedicineResponse(&medicine, nil), nil
}

func (s *medicineService) UpdateMedicine(ctx context.Context, actorID string, id string, req UpdateMedicineRequest) (MedicineResponse, error) {
	mid, err := uuid.Parse(id)
	if err != nil {
		return MedicineResponse{}, fmt.Errorf("invalid medicine id: %w", ledger.ErrNotFound)
	}

	medicine, err := s.medicineRepo.FindByID(ctx, mid)
	if err != nil {
		return MedicineResponse{}, err
	}

	if req.Name != "" {
		medicine.Name = req.Name
	}
	if req.GenericName != "" {
		medicine.GenericName = req.GenericName
	}
	if req.Category != "" {
		medicine.Category = req.Category
	}
	if req.Unit != "" {
		medicine.Unit = req.Unit
	}
	if req.SupplierID != "" {
		supplierID, parseErr := uuid.Parse(req.SupplierID)
		if parseErr != nil {
			return MedicineResponse{}, fmt.Errorf("invalid supplier_id: %w", ledger.ErrNotFound)
		}
		medicine.SupplierID = supplierID
	}

	actor := parseActor(actorID)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if req.SupplierID != "" {
			if _, findErr := s.supplierRepo.FindByID(txCtx, medicine.SupplierID); findErr != nil {
				return findErr
			}
		}

		if updateErr := s.medicineRepo.Update(txCtx, medicine); updateErr != nil {
			return fmt.Errorf("failed to update medicine: %w", updateErr)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionUpdateMedicine,
			EntityID:   medicine.ID.String(),
			EntityName: medicine.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return MedicineResponse{}, err
	}

	batches, err := s.batchRepo.ListByMedicine(ctx, mid)
	if err != nil {
		return MedicineResponse{}, err
	}
	return toMedicineResponse(medicine, batches), nil
}

func (s *medicineService) DeleteMedicine(ctx context.Context, actorID string, id string) error {
	mid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid medicine id: %w", ledger.ErrNotFound)
	}

	medicine, err := s.medicineRepo.FindByID(ctx, mid)
	if err != nil {
		return err
	}

	actor := parseActor(actorID)

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if delErr := s.medicineRepo.Delete(txCtx, mid); delErr != nil {
			return fmt.Errorf("failed to delete medicine: %w", delErr)
		}

		// The batches and their ledger entries go with the medicine. This is
		// deliberate, documented behavior, not an accident.
		details, _ := json.Marshal(map[string]interface{}{"deleted": true, "cascade": "batches, transactions"})
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionDeleteMedicine,
			EntityID:   medicine.ID.String(),
			EntityName: medicine.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
}

func (s *medicineService) GetMedicine(ctx context.Context, id string) (MedicineResponse, error) {
	mid, err := uuid.Parse(id)
	if err != nil {
		return MedicineResponse{}, fmt.Errorf("invalid medicine id: %w", ledger.ErrNotFound)
	}

	medicine, err := s.medicineRepo.FindByID(ctx, mid)
	if err != nil {
		return MedicineResponse{}, err
	}

	batches, err := s.batchRepo.ListByMedicine(ctx, mid)
	if err != nil {
		return MedicineResponse{}, err
	}
	return toMedicineResponse(medicine, batches), nil
}

func (s *medicineService) ListMedicines(ctx context.Context, page, limit int, search string) ([]MedicineResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	medicines, total, err := s.medicineRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]MedicineResponse, 0, len(medicines))
	for i := range medicines {
		res = append(res, toMedicineResponse(&medicines[i], medicines[i].Batches))
	}
	return res, total, nil
}
