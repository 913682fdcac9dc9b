package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSalesOrderRepository implements reconciliation.SalesOrderRepository
type GormSalesOrderRepository struct {
	db *gorm.DB
}

// NewGormSalesOrderRepository creates a new sales order repository
func NewGormSalesOrderRepository(db *gorm.DB) *GormSalesOrderRepository {
	return &GormSalesOrderRepository{db: db}
}

// ListEligibleByCustomer returns the customer's orders with an ERP identifier
func (r *GormSalesOrderRepository) ListEligibleByCustomer(ctx context.Context, customerID uuid.UUID) ([]reconciliation.SalesOrder, error) {
	var models []SalesOrderModel
	err := r.db.WithContext(ctx).
		Where("cliente_id = ?", customerID).
		Where("bling_pedido_id IS NOT NULL AND bling_pedido_id <> ''").
		Order("data_pedido ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list orders for customer %s: %w", customerID, err)
	}
	return toSalesOrders(models), nil
}

// ListAwaitingInvoice returns orders with an ERP identifier and no document link
func (r *GormSalesOrderRepository) ListAwaitingInvoice(ctx context.Context) ([]reconciliation.SalesOrder, error) {
	var models []SalesOrderModel
	err := r.db.WithContext(ctx).
		Where("bling_pedido_id IS NOT NULL AND bling_pedido_id <> ''").
		Where("link_danfe IS NULL OR link_danfe = ''").
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list orders awaiting invoice: %w", err)
	}
	return toSalesOrders(models), nil
}

// FindByIDs loads orders by id; unknown ids are skipped
func (r *GormSalesOrderRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]reconciliation.SalesOrder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []SalesOrderModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find orders by id: %w", err)
	}
	return toSalesOrders(models), nil
}

// FillInvoice sets link_danfe and numero_nfe only where link_danfe is empty
func (r *GormSalesOrderRepository) FillInvoice(ctx context.Context, orderID uuid.UUID, doc reconciliation.InvoiceDocument) (bool, error) {
	res := r.db.WithContext(ctx).Model(&SalesOrderModel{}).
		Where("id = ?", orderID).
		Where("link_danfe IS NULL OR link_danfe = ''").
		Updates(map[string]any{
			"link_danfe": doc.Link,
			"numero_nfe": nullable(doc.Number),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("fill order invoice %s: %w", orderID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func toSalesOrders(models []SalesOrderModel) []reconciliation.SalesOrder {
	result := make([]reconciliation.SalesOrder, len(models))
	for i := range models {
		result[i] = models[i].ToEntity()
	}
	return result
}

var _ reconciliation.SalesOrderRepository = (*GormSalesOrderRepository)(nil)
