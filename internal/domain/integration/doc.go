// Package integration contains the Integration bounded context.
// This context describes the external ERP the reconciliation engine reads from.
//
// Key concepts:
//   - ERPGateway: Port interface for reading orders and fiscal invoices from the ERP
//   - ERPOrder / ERPInvoice: Value objects decoded from ERP payloads
//   - OAuthCredentials: Entity holding the rotating access/refresh token pair
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
