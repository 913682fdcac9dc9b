package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InstallmentRepository is the store port for installments.
// Every mutation is conditional and reports whether a row was changed.
type InstallmentRepository interface {
	// ListAwaitingLink returns released installments that are unlinked or
	// provisionally linked to an order without an ERP identifier.
	ListAwaitingLink(ctx context.Context) ([]InstallmentContext, error)

	// ListAwaitingInvoice returns linked installments still missing a document link.
	ListAwaitingInvoice(ctx context.Context) ([]Installment, error)

	// LinkSalesOrder sets the order link only if the current link still equals previous
	// (nil meaning unlinked).
	LinkSalesOrder(ctx context.Context, installmentID uuid.UUID, previous *uuid.UUID, orderID uuid.UUID) (bool, error)

	// FillInvoice sets the document link and number only where the link is null.
	FillInvoice(ctx context.Context, installmentID uuid.UUID, doc InvoiceDocument) (bool, error)
}

// SalesOrderRepository is the store port for mirrored sales orders.
type SalesOrderRepository interface {
	// ListEligibleByCustomer returns the customer's orders that carry an ERP identifier.
	ListEligibleByCustomer(ctx context.Context, customerID uuid.UUID) ([]SalesOrder, error)

	// ListAwaitingInvoice returns orders with an ERP identifier and no document link.
	ListAwaitingInvoice(ctx context.Context) ([]SalesOrder, error)

	// FindByIDs loads orders by id; missing ids are skipped.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]SalesOrder, error)

	// FillInvoice sets the document link and number only where the link is null.
	FillInvoice(ctx context.Context, orderID uuid.UUID, doc InvoiceDocument) (bool, error)
}

// RunLock is an advisory lock making the single-writer precondition explicit.
type RunLock interface {
	// TryLock acquires key for ttl and returns an owner token; ok is false when held elsewhere.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Unlock releases key if it is still owned by token.
	Unlock(ctx context.Context, key, token string) error
}
