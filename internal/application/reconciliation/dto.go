package reconciliation

import (
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Run request
// ---------------------------------------------------------------------------

// RunRequest holds the parameters of one reconciliation run
type RunRequest struct {
	DryRun    bool
	Tolerance reconciliation.Tolerance
}

// DefaultRunRequest returns a dry run with the default tolerance
func DefaultRunRequest() RunRequest {
	return RunRequest{
		DryRun:    true,
		Tolerance: reconciliation.DefaultTolerance(),
	}
}

// ---------------------------------------------------------------------------
// Report
// ---------------------------------------------------------------------------

// Summary holds the aggregate counts of a run
type Summary struct {
	InstallmentsProcessed int `json:"parcelas_processadas"`
	LinksCreated          int `json:"vinculos_criados"`
	InvoicesFetched       int `json:"nfes_buscadas"`
	InvoicesFound         int `json:"nfes_encontradas"`
	DocumentsPropagated   int `json:"danfes_propagados"`
	Ambiguous             int `json:"ambiguous"`
	NotFound              int `json:"not_found"`
	InvoiceErrors         int `json:"nfe_errors"`
}

// LinkedItem is an installment linked to its unique matching order
type LinkedItem struct {
	InstallmentID     uuid.UUID       `json:"parcela_id"`
	InstallmentNumber int             `json:"numero_parcela"`
	Customer          string          `json:"cliente"`
	OrderID           uuid.UUID       `json:"pedido_id"`
	OrderNumber       string          `json:"numero_pedido"`
	ERPOrderID        string          `json:"bling_pedido_id"`
	DiffValue         decimal.Decimal `json:"diff_valor"`
	DiffDays          int             `json:"diff_dias"`
}

// CandidateItem is one order scored against an installment
type CandidateItem struct {
	OrderID     uuid.UUID       `json:"pedido_id"`
	OrderNumber string          `json:"numero_pedido"`
	ERPOrderID  string          `json:"bling_pedido_id"`
	Value       decimal.Decimal `json:"valor"`
	OrderDate   time.Time       `json:"data_pedido"`
	DiffValue   decimal.Decimal `json:"diff_valor"`
	DiffDays    int             `json:"diff_dias"`
	Rejection   string          `json:"motivo_rejeicao,omitempty"`
}

// UnmatchedItem is an installment left unlinked, either ambiguous or not found.
// Reason is empty for ambiguous items.
type UnmatchedItem struct {
	InstallmentID     uuid.UUID       `json:"parcela_id"`
	InstallmentNumber int             `json:"numero_parcela"`
	Customer          string          `json:"cliente"`
	Value             decimal.Decimal `json:"valor"`
	Reason            string          `json:"motivo,omitempty"`
	Candidates        []CandidateItem `json:"candidatos"`
}

// InvoiceErrorItem is an order whose invoice could not be resolved
type InvoiceErrorItem struct {
	OrderID     uuid.UUID `json:"pedido_id"`
	OrderNumber string    `json:"numero_pedido"`
	ERPOrderID  string    `json:"bling_pedido_id"`
	Error       string    `json:"erro"`
	StatusCode  *int      `json:"situacao,omitempty"`
}

// PropagatedItem is an installment that received its order's document link
type PropagatedItem struct {
	InstallmentID uuid.UUID `json:"parcela_id"`
	OrderID       uuid.UUID `json:"pedido_id"`
	DocumentLink  string    `json:"link_danfe"`
	InvoiceNumber string    `json:"numero_nfe"`
}

// Report is the outcome of a run. It has the same content whether or not
// the run was a dry run.
type Report struct {
	RunID         string             `json:"run_id"`
	DryRun        bool               `json:"dry_run"`
	Summary       Summary            `json:"summary"`
	Linked        []LinkedItem       `json:"vinculados"`
	Ambiguous     []UnmatchedItem    `json:"ambiguous"`
	NotFound      []UnmatchedItem    `json:"not_found"`
	InvoiceErrors []InvoiceErrorItem `json:"nfe_errors"`
	Propagated    []PropagatedItem   `json:"danfes_propagados"`
}

func newReport(runID string, dryRun bool) *Report {
	return &Report{
		RunID:         runID,
		DryRun:        dryRun,
		Linked:        []LinkedItem{},
		Ambiguous:     []UnmatchedItem{},
		NotFound:      []UnmatchedItem{},
		InvoiceErrors: []InvoiceErrorItem{},
		Propagated:    []PropagatedItem{},
	}
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func toCandidateItems(candidates []reconciliation.MatchCandidate) []CandidateItem {
	items := make([]CandidateItem, len(candidates))
	for i, c := range candidates {
		items[i] = CandidateItem{
			OrderID:     c.Order.ID,
			OrderNumber: c.Order.Number,
			ERPOrderID:  c.Order.ERPOrderID,
			Value:       c.Order.Total,
			OrderDate:   c.Order.OrderDate,
			DiffValue:   c.DiffValue,
			DiffDays:    c.DiffDays,
			Rejection:   string(c.Rejection),
		}
	}
	return items
}

func toUnmatchedItem(subject reconciliation.InstallmentContext, result reconciliation.MatchResult) UnmatchedItem {
	return UnmatchedItem{
		InstallmentID:     subject.Installment.ID,
		InstallmentNumber: subject.Installment.Sequence,
		Customer:          subject.CustomerName,
		Value:             subject.Installment.Amount,
		Reason:            string(result.Reason),
		Candidates:        toCandidateItems(result.Candidates),
	}
}
