// Package reconciliation contains the Reconciliation bounded context.
// It links released commission installments to mirrored sales orders and
// carries the invoice (NF-e) document reference from orders back to installments.
//
// Key concepts:
//   - Installment: one scheduled commission payment ("parcela")
//   - SalesOrder: an order mirrored from the external ERP
//   - Matcher: pure tolerance-based classifier (unique / ambiguous / not found)
//   - RunLock: advisory single-writer lock held for the duration of a run
//
// Design Pattern: Ports & Adapters
//   - Repository and lock ports are defined here
//   - Adapters live in the infrastructure layer
//
// Every write the context issues is a fill-if-null update, so runs are idempotent.
package reconciliation
