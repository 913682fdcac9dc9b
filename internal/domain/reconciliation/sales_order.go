package reconciliation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesOrder is an order mirrored locally from the external ERP
type SalesOrder struct {
	ID         uuid.UUID
	Number     string
	CustomerID *uuid.UUID
	Total      decimal.Decimal
	OrderDate  time.Time
	ERPOrderID string
	Invoice    InvoiceDocument
}

// HasERPID returns true once the ERP order identifier is known
func (o *SalesOrder) HasERPID() bool {
	return strings.TrimSpace(o.ERPOrderID) != ""
}

// HasInvoice returns true if the order already carries a document link
func (o *SalesOrder) HasInvoice() bool {
	return !o.Invoice.IsZero()
}
