package reconciliation

import (
	"sort"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
)

// overlay holds what the current run has written, or would have written in a
// dry run. Later stages read the store through it, so both modes see the same state.
type overlay struct {
	links     map[uuid.UUID]reconciliation.Installment
	linkOrder []uuid.UUID
	invoices  map[uuid.UUID]reconciliation.InvoiceDocument
}

func newOverlay() *overlay {
	return &overlay{
		links:    make(map[uuid.UUID]reconciliation.Installment),
		invoices: make(map[uuid.UUID]reconciliation.InvoiceDocument),
	}
}

// recordLink remembers installment as linked to orderID
func (o *overlay) recordLink(installment reconciliation.Installment, orderID uuid.UUID) {
	id := orderID
	installment.SalesOrderID = &id
	if _, seen := o.links[installment.ID]; !seen {
		o.linkOrder = append(o.linkOrder, installment.ID)
	}
	o.links[installment.ID] = installment
}

// recordInvoice remembers the document resolved for orderID
func (o *overlay) recordInvoice(orderID uuid.UUID, doc reconciliation.InvoiceDocument) {
	o.invoices[orderID] = doc
}

// invoiceFor returns the document resolved for orderID in this run
func (o *overlay) invoiceFor(orderID uuid.UUID) (reconciliation.InvoiceDocument, bool) {
	doc, ok := o.invoices[orderID]
	return doc, ok
}

// installmentsAwaitingInvoice merges the stored installments with the links made
// in this run. Run links win over stored ones. The result is sorted by order,
// then installment sequence, so the report does not depend on write visibility.
func (o *overlay) installmentsAwaitingInvoice(stored []reconciliation.Installment) []reconciliation.Installment {
	merged := make([]reconciliation.Installment, 0, len(stored)+len(o.linkOrder))
	seen := make(map[uuid.UUID]struct{}, len(stored))
	for _, inst := range stored {
		if linked, ok := o.links[inst.ID]; ok {
			inst = linked
		}
		seen[inst.ID] = struct{}{}
		merged = append(merged, inst)
	}
	for _, id := range o.linkOrder {
		if _, ok := seen[id]; ok {
			continue
		}
		merged = append(merged, o.links[id])
	}

	filtered := merged[:0]
	for _, inst := range merged {
		if inst.IsLinked() && !inst.HasInvoice() {
			filtered = append(filtered, inst)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if *a.SalesOrderID != *b.SalesOrderID {
			return a.SalesOrderID.String() < b.SalesOrderID.String()
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.ID.String() < b.ID.String()
	})
	return filtered
}
