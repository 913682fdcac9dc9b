package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/reconciler/internal/domain/integration"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"go.uber.org/zap"
)

// Invoice resolution error codes reported per order
const (
	ErrorOrderNotFound        = "order_not_found_in_bling"
	ErrorInvoiceIDMissing     = "invoice_id_missing"
	ErrorInvoiceNotFound      = "invoice_not_found"
	ErrorInvoiceNotAuthorized = "invoice_not_authorized"
	ErrorDocumentLinkMissing  = "document_link_missing"
	errorAPIPrefix            = "api_error: "
)

// resolveInvoices looks up the authorized invoice of every order that has an
// ERP identifier and no document link. Failures are recorded per order; only
// run-fatal errors abort the stage.
func (s *Service) resolveInvoices(ctx context.Context, r *run) error {
	orders, err := s.orders.ListAwaitingInvoice(ctx)
	if err != nil {
		return fmt.Errorf("list orders awaiting invoice: %w", err)
	}

	for _, order := range orders {
		if !order.HasERPID() || order.HasInvoice() {
			continue
		}
		r.report.Summary.InvoicesFetched++

		doc, failure, err := s.resolveInvoice(ctx, order)
		if err != nil {
			return err
		}
		if failure != nil {
			r.report.InvoiceErrors = append(r.report.InvoiceErrors, *failure)
			r.log.Warn("Invoice not resolved for order",
				zap.String("pedido_id", order.ID.String()),
				zap.String("bling_pedido_id", order.ERPOrderID),
				zap.String("erro", failure.Error),
			)
			continue
		}
		r.report.Summary.InvoicesFound++

		if !r.dryRun {
			changed, err := s.orders.FillInvoice(ctx, order.ID, doc)
			if err != nil {
				return fmt.Errorf("fill invoice of order %s: %w", order.ID, err)
			}
			if !changed {
				r.log.Warn("Order document link already set, skipping",
					zap.String("pedido_id", order.ID.String()),
				)
				continue
			}
		}
		r.state.recordInvoice(order.ID, doc)
	}

	r.report.Summary.InvoiceErrors = len(r.report.InvoiceErrors)
	return nil
}

// resolveInvoice returns the document of order, or a failure item when the
// order cannot be resolved. err is set only for run-fatal conditions.
func (s *Service) resolveInvoice(ctx context.Context, order reconciliation.SalesOrder) (reconciliation.InvoiceDocument, *InvoiceErrorItem, error) {
	fail := func(code string) *InvoiceErrorItem {
		return &InvoiceErrorItem{
			OrderID:     order.ID,
			OrderNumber: order.Number,
			ERPOrderID:  order.ERPOrderID,
			Error:       code,
		}
	}

	erpOrder, err := s.erp.GetOrder(ctx, order.ERPOrderID)
	if err != nil {
		if fatalErr := runFatal(err); fatalErr != nil {
			return reconciliation.InvoiceDocument{}, nil, fatalErr
		}
		if errors.Is(err, integration.ErrPlatformNotFound) {
			return reconciliation.InvoiceDocument{}, fail(ErrorOrderNotFound), nil
		}
		return reconciliation.InvoiceDocument{}, fail(errorAPIPrefix + err.Error()), nil
	}

	invoiceID := strings.TrimSpace(erpOrder.InvoiceID)
	if invoiceID == "" {
		return reconciliation.InvoiceDocument{}, fail(ErrorInvoiceIDMissing), nil
	}

	invoice, err := s.erp.GetInvoice(ctx, invoiceID)
	if err != nil {
		if fatalErr := runFatal(err); fatalErr != nil {
			return reconciliation.InvoiceDocument{}, nil, fatalErr
		}
		if errors.Is(err, integration.ErrPlatformNotFound) {
			return reconciliation.InvoiceDocument{}, fail(ErrorInvoiceNotFound), nil
		}
		return reconciliation.InvoiceDocument{}, fail(errorAPIPrefix + err.Error()), nil
	}

	if !invoice.Authorized() {
		item := fail(ErrorInvoiceNotAuthorized)
		status := invoice.StatusCode
		item.StatusCode = &status
		return reconciliation.InvoiceDocument{}, item, nil
	}

	doc := reconciliation.InvoiceDocument{
		Link:   strings.TrimSpace(invoice.DocumentLink),
		Number: strings.TrimSpace(invoice.Number),
	}
	if doc.IsZero() {
		return reconciliation.InvoiceDocument{}, fail(ErrorDocumentLinkMissing), nil
	}
	return doc, nil, nil
}

// runFatal returns a non-nil error when err must abort the run
func runFatal(err error) error {
	if integration.IsRunFatal(err) {
		return fmt.Errorf("erp request: %w", err)
	}
	return nil
}
