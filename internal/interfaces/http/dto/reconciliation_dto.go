package dto

import (
	"math"

	"github.com/shopspring/decimal"

	app "github.com/erp/reconciler/internal/application/reconciliation"
)

// dateLayout formats order dates in reports
const dateLayout = "2006-01-02"

var maxToleranceDays = decimal.NewFromInt(math.MaxInt32)

// RunReconciliationRequest is the body of POST /reconciliation/run.
// Every field is optional; an empty body is a dry run with the default tolerance.
type RunReconciliationRequest struct {
	DryRun         *bool            `json:"dry_run"`
	ToleranceValue *decimal.Decimal `json:"tolerance_value"`
	ToleranceDays  *decimal.Decimal `json:"tolerance_days"`
}

// ToRunRequest applies the defaults to the missing fields
func (r RunReconciliationRequest) ToRunRequest(defaults app.RunRequest) app.RunRequest {
	req := defaults
	if r.DryRun != nil {
		req.DryRun = *r.DryRun
	}
	if r.ToleranceValue != nil {
		req.Tolerance.Value = *r.ToleranceValue
	}
	if r.ToleranceDays != nil {
		req.Tolerance.Days = toleranceDays(*r.ToleranceDays)
	}
	return req
}

// toleranceDays floors a fractional day bound. Day differences are whole
// numbers, so diff <= 7.5 accepts exactly what diff <= 7 accepts.
func toleranceDays(d decimal.Decimal) int {
	if d.GreaterThan(maxToleranceDays) {
		return math.MaxInt32
	}
	return int(d.Floor().IntPart())
}

// ---------------------------------------------------------------------------
// Report response
// ---------------------------------------------------------------------------

// RunReconciliationResponse is the report of a finished run
type RunReconciliationResponse struct {
	Success       bool                   `json:"success"`
	DryRun        bool                   `json:"dry_run"`
	Summary       app.Summary            `json:"summary"`
	Linked        []LinkedItemResponse   `json:"vinculados"`
	Ambiguous     []UnmatchedResponse    `json:"ambiguous"`
	NotFound      []UnmatchedResponse    `json:"not_found"`
	InvoiceErrors []app.InvoiceErrorItem `json:"nfe_errors"`
	Propagated    []app.PropagatedItem   `json:"danfes_propagados"`
}

// LinkedItemResponse is an installment linked during the run
type LinkedItemResponse struct {
	InstallmentID     string  `json:"parcela_id"`
	InstallmentNumber int     `json:"numero_parcela"`
	Customer          string  `json:"cliente"`
	OrderID           string  `json:"pedido_id"`
	OrderNumber       string  `json:"numero_pedido"`
	ERPOrderID        string  `json:"bling_pedido_id"`
	DiffValue         float64 `json:"diff_valor"`
	DiffDays          int     `json:"diff_dias"`
}

// UnmatchedResponse is an ambiguous or not found installment
type UnmatchedResponse struct {
	InstallmentID     string              `json:"parcela_id"`
	InstallmentNumber int                 `json:"numero_parcela"`
	Customer          string              `json:"cliente"`
	Value             float64             `json:"valor"`
	Reason            string              `json:"motivo,omitempty"`
	Candidates        []CandidateResponse `json:"candidatos"`
}

// CandidateResponse is one scored order
type CandidateResponse struct {
	OrderID     string  `json:"pedido_id"`
	OrderNumber string  `json:"numero_pedido"`
	ERPOrderID  string  `json:"bling_pedido_id"`
	Value       float64 `json:"valor"`
	OrderDate   string  `json:"data_pedido"`
	DiffValue   float64 `json:"diff_valor"`
	DiffDays    int     `json:"diff_dias"`
	Rejection   string  `json:"motivo_rejeicao,omitempty"`
}

// NewRunReconciliationResponse converts a run report to its JSON shape
func NewRunReconciliationResponse(report *app.Report) RunReconciliationResponse {
	resp := RunReconciliationResponse{
		Success:       true,
		DryRun:        report.DryRun,
		Summary:       report.Summary,
		Linked:        make([]LinkedItemResponse, len(report.Linked)),
		Ambiguous:     toUnmatchedResponses(report.Ambiguous),
		NotFound:      toUnmatchedResponses(report.NotFound),
		InvoiceErrors: report.InvoiceErrors,
		Propagated:    report.Propagated,
	}
	for i, item := range report.Linked {
		resp.Linked[i] = LinkedItemResponse{
			InstallmentID:     item.InstallmentID.String(),
			InstallmentNumber: item.InstallmentNumber,
			Customer:          item.Customer,
			OrderID:           item.OrderID.String(),
			OrderNumber:       item.OrderNumber,
			ERPOrderID:        item.ERPOrderID,
			DiffValue:         item.DiffValue.InexactFloat64(),
			DiffDays:          item.DiffDays,
		}
	}
	if resp.InvoiceErrors == nil {
		resp.InvoiceErrors = []app.InvoiceErrorItem{}
	}
	if resp.Propagated == nil {
		resp.Propagated = []app.PropagatedItem{}
	}
	return resp
}

func toUnmatchedResponses(items []app.UnmatchedItem) []UnmatchedResponse {
	out := make([]UnmatchedResponse, len(items))
	for i, item := range items {
		candidates := make([]CandidateResponse, len(item.Candidates))
		for j, c := range item.Candidates {
			candidates[j] = CandidateResponse{
				OrderID:     c.OrderID.String(),
				OrderNumber: c.OrderNumber,
				ERPOrderID:  c.ERPOrderID,
				Value:       c.Value.InexactFloat64(),
				OrderDate:   c.OrderDate.UTC().Format(dateLayout),
				DiffValue:   c.DiffValue.InexactFloat64(),
				DiffDays:    c.DiffDays,
				Rejection:   c.Rejection,
			}
		}
		out[i] = UnmatchedResponse{
			InstallmentID:     item.InstallmentID.String(),
			InstallmentNumber: item.InstallmentNumber,
			Customer:          item.Customer,
			Value:             item.Value.InexactFloat64(),
			Reason:            item.Reason,
			Candidates:        candidates,
		}
	}
	return out
}
