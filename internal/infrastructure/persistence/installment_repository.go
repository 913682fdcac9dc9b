package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInstallmentRepository implements reconciliation.InstallmentRepository
type GormInstallmentRepository struct {
	db *gorm.DB
}

// NewGormInstallmentRepository creates a new installment repository
func NewGormInstallmentRepository(db *gorm.DB) *GormInstallmentRepository {
	return &GormInstallmentRepository{db: db}
}

// ListAwaitingLink returns released installments that are unlinked or linked to
// an order without an ERP identifier, with their proposal, customer and current order.
func (r *GormInstallmentRepository) ListAwaitingLink(ctx context.Context) ([]reconciliation.InstallmentContext, error) {
	provisional := r.db.Model(&SalesOrderModel{}).
		Select("id").
		Where("bling_pedido_id IS NULL OR bling_pedido_id = ''")

	var models []InstallmentModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(reconciliation.StatusReleased)).
		Where("pedido_venda_id IS NULL OR pedido_venda_id IN (?)", provisional).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list installments awaiting link: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}

	proposals, err := r.loadProposals(ctx, models)
	if err != nil {
		return nil, err
	}
	customers, err := r.loadCustomerNames(ctx, proposals)
	if err != nil {
		return nil, err
	}
	orders, err := r.loadLinkedOrders(ctx, models)
	if err != nil {
		return nil, err
	}

	result := make([]reconciliation.InstallmentContext, 0, len(models))
	for i := range models {
		ic := reconciliation.InstallmentContext{Installment: models[i].ToEntity()}
		if p, ok := proposals[models[i].ProposalID]; ok {
			ic.Proposal = p
			if p.CustomerID != nil {
				ic.CustomerName = customers[*p.CustomerID]
			}
		}
		if models[i].SalesOrderID != nil {
			if o, ok := orders[*models[i].SalesOrderID]; ok {
				ic.LinkedOrder = &o
			}
		}
		result = append(result, ic)
	}
	return result, nil
}

// ListAwaitingInvoice returns linked installments without a document link
func (r *GormInstallmentRepository) ListAwaitingInvoice(ctx context.Context) ([]reconciliation.Installment, error) {
	var models []InstallmentModel
	err := r.db.WithContext(ctx).
		Where("pedido_venda_id IS NOT NULL").
		Where("link_danfe IS NULL OR link_danfe = ''").
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list installments awaiting invoice: %w", err)
	}

	result := make([]reconciliation.Installment, len(models))
	for i := range models {
		result[i] = models[i].ToEntity()
	}
	return result, nil
}

// LinkSalesOrder sets pedido_venda_id only if it still equals previous
func (r *GormInstallmentRepository) LinkSalesOrder(ctx context.Context, installmentID uuid.UUID, previous *uuid.UUID, orderID uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&InstallmentModel{}).Where("id = ?", installmentID)
	if previous == nil {
		q = q.Where("pedido_venda_id IS NULL")
	} else {
		q = q.Where("pedido_venda_id = ?", *previous)
	}

	res := q.Updates(map[string]any{
		"pedido_venda_id": orderID,
		"updated_at":      time.Now(),
	})
	if res.Error != nil {
		return false, fmt.Errorf("link installment %s: %w", installmentID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FillInvoice sets link_danfe and numero_nfe only where link_danfe is empty
func (r *GormInstallmentRepository) FillInvoice(ctx context.Context, installmentID uuid.UUID, doc reconciliation.InvoiceDocument) (bool, error) {
	res := r.db.WithContext(ctx).Model(&InstallmentModel{}).
		Where("id = ?", installmentID).
		Where("link_danfe IS NULL OR link_danfe = ''").
		Updates(map[string]any{
			"link_danfe": doc.Link,
			"numero_nfe": nullable(doc.Number),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("fill installment invoice %s: %w", installmentID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormInstallmentRepository) loadProposals(ctx context.Context, models []InstallmentModel) (map[uuid.UUID]*reconciliation.Proposal, error) {
	ids := make([]uuid.UUID, 0, len(models))
	seen := make(map[uuid.UUID]struct{}, len(models))
	for i := range models {
		if _, ok := seen[models[i].ProposalID]; ok {
			continue
		}
		seen[models[i].ProposalID] = struct{}{}
		ids = append(ids, models[i].ProposalID)
	}

	var proposals []ProposalModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("load proposals: %w", err)
	}

	result := make(map[uuid.UUID]*reconciliation.Proposal, len(proposals))
	for i := range proposals {
		result[proposals[i].ID] = proposals[i].ToEntity()
	}
	return result, nil
}

func (r *GormInstallmentRepository) loadCustomerNames(ctx context.Context, proposals map[uuid.UUID]*reconciliation.Proposal) (map[uuid.UUID]string, error) {
	ids := make([]uuid.UUID, 0, len(proposals))
	for _, p := range proposals {
		if p.CustomerID != nil {
			ids = append(ids, *p.CustomerID)
		}
	}
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	var customers []CustomerModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}

	names := make(map[uuid.UUID]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (r *GormInstallmentRepository) loadLinkedOrders(ctx context.Context, models []InstallmentModel) (map[uuid.UUID]reconciliation.SalesOrder, error) {
	ids := make([]uuid.UUID, 0)
	for i := range models {
		if models[i].SalesOrderID != nil {
			ids = append(ids, *models[i].SalesOrderID)
		}
	}
	if len(ids) == 0 {
		return map[uuid.UUID]reconciliation.SalesOrder{}, nil
	}

	var orders []SalesOrderModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("load linked orders: %w", err)
	}

	result := make(map[uuid.UUID]reconciliation.SalesOrder, len(orders))
	for i := range orders {
		result[orders[i].ID] = orders[i].ToEntity()
	}
	return result, nil
}

var _ reconciliation.InstallmentRepository = (*GormInstallmentRepository)(nil)
