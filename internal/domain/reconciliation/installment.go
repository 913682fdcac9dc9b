package reconciliation

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidTolerance = errors.New("reconciliation: tolerance must not be negative")
	ErrRunInProgress    = errors.New("reconciliation: another run is in progress")
	ErrLockUnavailable  = errors.New("reconciliation: run lock unavailable")
)

// ---------------------------------------------------------------------------
// CommissionStatus
// ---------------------------------------------------------------------------

// CommissionStatus is the release status of a commission installment
type CommissionStatus string

const (
	// StatusPending is an installment whose commission has not been released yet
	StatusPending CommissionStatus = "pendente"
	// StatusReleased is a released installment waiting for its sales order link
	StatusReleased CommissionStatus = "liberada"
	// StatusPaid is a paid installment
	StatusPaid CommissionStatus = "paga"
	// StatusCancelled is a cancelled installment
	StatusCancelled CommissionStatus = "cancelada"
)

// IsValid returns true if the status is known
func (s CommissionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusReleased, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// InvoiceDocument
// ---------------------------------------------------------------------------

// InvoiceDocument is the DANFE link and NF-e number attached to an order or installment
type InvoiceDocument struct {
	Link   string
	Number string
}

// IsZero returns true when no document link is present
func (d InvoiceDocument) IsZero() bool {
	return strings.TrimSpace(d.Link) == ""
}

// ---------------------------------------------------------------------------
// Installment
// ---------------------------------------------------------------------------

// Installment is one scheduled commission payment belonging to a proposal
type Installment struct {
	ID           uuid.UUID
	ProposalID   uuid.UUID
	Sequence     int
	Amount       decimal.Decimal
	DueDate      time.Time
	Status       CommissionStatus
	SalesOrderID *uuid.UUID
	Invoice      InvoiceDocument
	CreatedAt    time.Time
}

// IsLinked returns true if the installment points at a sales order
func (i *Installment) IsLinked() bool {
	return i.SalesOrderID != nil && *i.SalesOrderID != uuid.Nil
}

// HasInvoice returns true if the installment already carries a document link
func (i *Installment) HasInvoice() bool {
	return !i.Invoice.IsZero()
}

// Proposal is the sales agreement that generated the installments
type Proposal struct {
	ID         uuid.UUID
	CustomerID *uuid.UUID
	TotalValue decimal.Decimal
	CreatedAt  time.Time
}

// Customer scopes the candidate search and labels diagnostics
type Customer struct {
	ID   uuid.UUID
	Name string
}

// InstallmentContext is an installment together with everything the matcher reads
type InstallmentContext struct {
	Installment  Installment
	Proposal     *Proposal
	CustomerName string
	// LinkedOrder is the order the installment currently points at, if any
	LinkedOrder *SalesOrder
}

// CustomerID returns the owning proposal's customer, or nil when unresolved
func (c *InstallmentContext) CustomerID() *uuid.UUID {
	if c.Proposal == nil || c.Proposal.CustomerID == nil || *c.Proposal.CustomerID == uuid.Nil {
		return nil
	}
	return c.Proposal.CustomerID
}

// ReferenceDate prefers the proposal creation date over the installment's own
func (c *InstallmentContext) ReferenceDate() time.Time {
	if c.Proposal != nil && !c.Proposal.CreatedAt.IsZero() {
		return c.Proposal.CreatedAt
	}
	return c.Installment.CreatedAt
}

// NeedsLink reports whether the installment still has to be matched.
// A link to an order without an ERP identifier is provisional and is re-evaluated.
func (c *InstallmentContext) NeedsLink() bool {
	if c.Installment.Status != StatusReleased {
		return false
	}
	if !c.Installment.IsLinked() {
		return true
	}
	return c.LinkedOrder == nil || !c.LinkedOrder.HasERPID()
}
