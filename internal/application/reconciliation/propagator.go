package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// propagateDocuments copies the order's document link onto each linked
// installment that has none. It never calls the ERP.
func (s *Service) propagateDocuments(ctx context.Context, r *run) error {
	stored, err := s.installments.ListAwaitingInvoice(ctx)
	if err != nil {
		return fmt.Errorf("list installments awaiting invoice: %w", err)
	}
	pending := r.state.installmentsAwaitingInvoice(stored)
	if len(pending) == 0 {
		return nil
	}

	documents, err := s.orderDocuments(ctx, r, pending)
	if err != nil {
		return err
	}

	for _, inst := range pending {
		orderID := *inst.SalesOrderID
		doc, ok := documents[orderID]
		if !ok {
			continue
		}

		if !r.dryRun {
			changed, err := s.installments.FillInvoice(ctx, inst.ID, doc)
			if err != nil {
				return fmt.Errorf("fill invoice of installment %s: %w", inst.ID, err)
			}
			if !changed {
				r.log.Warn("Installment document link already set, skipping",
					zap.String("parcela_id", inst.ID.String()),
				)
				continue
			}
		}

		r.report.Propagated = append(r.report.Propagated, PropagatedItem{
			InstallmentID: inst.ID,
			OrderID:       orderID,
			DocumentLink:  doc.Link,
			InvoiceNumber: doc.Number,
		})
		r.log.Debug("Document link propagated",
			zap.String("parcela_id", inst.ID.String()),
			zap.String("pedido_id", orderID.String()),
		)
	}

	r.report.Summary.DocumentsPropagated = len(r.report.Propagated)
	return nil
}

// orderDocuments returns the document of every order referenced by pending,
// preferring what this run resolved over what the store holds.
func (s *Service) orderDocuments(ctx context.Context, r *run, pending []reconciliation.Installment) (map[uuid.UUID]reconciliation.InvoiceDocument, error) {
	documents := make(map[uuid.UUID]reconciliation.InvoiceDocument)
	var missing []uuid.UUID
	for _, inst := range pending {
		orderID := *inst.SalesOrderID
		if _, ok := documents[orderID]; ok {
			continue
		}
		if doc, ok := r.state.invoiceFor(orderID); ok {
			documents[orderID] = doc
			continue
		}
		missing = append(missing, orderID)
	}
	if len(missing) == 0 {
		return documents, nil
	}

	orders, err := s.orders.FindByIDs(ctx, uniqueIDs(missing))
	if err != nil {
		return nil, fmt.Errorf("load linked orders: %w", err)
	}
	for _, order := range orders {
		if order.HasInvoice() {
			documents[order.ID] = order.Invoice
		}
	}
	return documents, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
