package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// linkInstallments matches every installment awaiting a link against the
// orders of its customer and links the unique matches.
func (s *Service) linkInstallments(ctx context.Context, r *run) error {
	subjects, err := s.installments.ListAwaitingLink(ctx)
	if err != nil {
		return fmt.Errorf("list installments awaiting link: %w", err)
	}

	ordersByCustomer := make(map[uuid.UUID][]reconciliation.SalesOrder)
	for _, subject := range subjects {
		if !subject.NeedsLink() {
			continue
		}
		r.report.Summary.InstallmentsProcessed++

		var orders []reconciliation.SalesOrder
		if customerID := subject.CustomerID(); customerID != nil {
			cached, ok := ordersByCustomer[*customerID]
			if !ok {
				cached, err = s.orders.ListEligibleByCustomer(ctx, *customerID)
				if err != nil {
					return fmt.Errorf("list orders for customer %s: %w", *customerID, err)
				}
				ordersByCustomer[*customerID] = cached
			}
			orders = cached
		}

		result := r.matcher.Resolve(subject, orders)
		for _, c := range result.Candidates {
			r.log.Debug("Scored candidate order",
				zap.String("parcela_id", subject.Installment.ID.String()),
				zap.String("pedido_id", c.Order.ID.String()),
				zap.String("diff_valor", c.DiffValue.String()),
				zap.Int("diff_dias", c.DiffDays),
				zap.String("motivo_rejeicao", string(c.Rejection)),
			)
		}

		switch result.Outcome {
		case reconciliation.OutcomeUnique:
			if err := s.link(ctx, r, subject, *result.Match); err != nil {
				return err
			}
		case reconciliation.OutcomeAmbiguous:
			r.report.Ambiguous = append(r.report.Ambiguous, toUnmatchedItem(subject, result))
			r.log.Warn("Installment matches several orders",
				zap.String("parcela_id", subject.Installment.ID.String()),
				zap.Int("candidatos", len(result.Candidates)),
			)
		default:
			r.report.NotFound = append(r.report.NotFound, toUnmatchedItem(subject, result))
			r.log.Warn("No order found for installment",
				zap.String("parcela_id", subject.Installment.ID.String()),
				zap.String("motivo", string(result.Reason)),
			)
		}
	}

	r.report.Summary.Ambiguous = len(r.report.Ambiguous)
	r.report.Summary.NotFound = len(r.report.NotFound)
	return nil
}

func (s *Service) link(ctx context.Context, r *run, subject reconciliation.InstallmentContext, match reconciliation.MatchCandidate) error {
	inst := subject.Installment
	if !r.dryRun {
		changed, err := s.installments.LinkSalesOrder(ctx, inst.ID, inst.SalesOrderID, match.Order.ID)
		if err != nil {
			return fmt.Errorf("link installment %s: %w", inst.ID, err)
		}
		if !changed {
			r.log.Warn("Installment link changed concurrently, skipping",
				zap.String("parcela_id", inst.ID.String()),
				zap.String("pedido_id", match.Order.ID.String()),
			)
			return nil
		}
	}

	r.state.recordLink(inst, match.Order.ID)
	r.report.Linked = append(r.report.Linked, LinkedItem{
		InstallmentID:     inst.ID,
		InstallmentNumber: inst.Sequence,
		Customer:          subject.CustomerName,
		OrderID:           match.Order.ID,
		OrderNumber:       match.Order.Number,
		ERPOrderID:        match.Order.ERPOrderID,
		DiffValue:         match.DiffValue,
		DiffDays:          match.DiffDays,
	})
	r.report.Summary.LinksCreated++

	r.log.Info("Installment linked to sales order",
		zap.String("parcela_id", inst.ID.String()),
		zap.String("pedido_id", match.Order.ID.String()),
		zap.String("bling_pedido_id", match.Order.ERPOrderID),
	)
	return nil
}
