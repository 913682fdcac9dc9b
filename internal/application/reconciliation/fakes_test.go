package reconciliation

import (
	"context"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/erp/reconciler/internal/domain/integration"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

// memoryStore backs both repository ports with the same conditional-write
// semantics as the gorm repositories.
type memoryStore struct {
	mu           sync.Mutex
	customers    map[uuid.UUID]string
	proposals    map[uuid.UUID]reconciliation.Proposal
	installments []*reconciliation.Installment
	orders       []*reconciliation.SalesOrder
	writes       int
	listErr      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		customers: make(map[uuid.UUID]string),
		proposals: make(map[uuid.UUID]reconciliation.Proposal),
	}
}

func (m *memoryStore) addCustomer(name string) uuid.UUID {
	id := uuid.New()
	m.customers[id] = name
	return id
}

func (m *memoryStore) addProposal(customerID *uuid.UUID, createdAt time.Time) uuid.UUID {
	id := uuid.New()
	m.proposals[id] = reconciliation.Proposal{ID: id, CustomerID: customerID, CreatedAt: createdAt}
	return id
}

func (m *memoryStore) addInstallment(proposalID uuid.UUID, seq int, amount string, linkedTo *uuid.UUID) *reconciliation.Installment {
	inst := &reconciliation.Installment{
		ID:           uuid.New(),
		ProposalID:   proposalID,
		Sequence:     seq,
		Amount:       decimal.RequireFromString(amount),
		Status:       reconciliation.StatusReleased,
		SalesOrderID: linkedTo,
		CreatedAt:    time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
	}
	m.installments = append(m.installments, inst)
	return inst
}

func (m *memoryStore) addOrder(customerID uuid.UUID, number, total, erpID string, date time.Time) *reconciliation.SalesOrder {
	cid := customerID
	order := &reconciliation.SalesOrder{
		ID:         uuid.New(),
		Number:     number,
		CustomerID: &cid,
		Total:      decimal.RequireFromString(total),
		OrderDate:  date,
		ERPOrderID: erpID,
	}
	m.orders = append(m.orders, order)
	return order
}

func (m *memoryStore) order(id uuid.UUID) *reconciliation.SalesOrder {
	for _, o := range m.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (m *memoryStore) installment(id uuid.UUID) *reconciliation.Installment {
	for _, i := range m.installments {
		if i.ID == id {
			return i
		}
	}
	return nil
}

func (m *memoryStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type memoryInstallmentRepo struct{ *memoryStore }

func (r memoryInstallmentRepo) ListAwaitingLink(context.Context) ([]reconciliation.InstallmentContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}

	var out []reconciliation.InstallmentContext
	for _, inst := range r.installments {
		if inst.Status != reconciliation.StatusReleased {
			continue
		}
		var linked *reconciliation.SalesOrder
		if inst.IsLinked() {
			if o := r.order(*inst.SalesOrderID); o != nil {
				if o.HasERPID() {
					continue
				}
				c := *o
				linked = &c
			}
		}
		subject := reconciliation.InstallmentContext{Installment: copyInstallment(inst), LinkedOrder: linked}
		if p, ok := r.proposals[inst.ProposalID]; ok {
			p := p
			subject.Proposal = &p
			if p.CustomerID != nil {
				subject.CustomerName = r.customers[*p.CustomerID]
			}
		}
		out = append(out, subject)
	}
	return out, nil
}

func (r memoryInstallmentRepo) ListAwaitingInvoice(context.Context) ([]reconciliation.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reconciliation.Installment
	for _, inst := range r.installments {
		if inst.IsLinked() && !inst.HasInvoice() {
			out = append(out, copyInstallment(inst))
		}
	}
	return out, nil
}

func (r memoryInstallmentRepo) LinkSalesOrder(_ context.Context, id uuid.UUID, previous *uuid.UUID, orderID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := r.installment(id)
	if inst == nil {
		return false, nil
	}
	switch {
	case previous == nil && inst.SalesOrderID != nil:
		return false, nil
	case previous != nil && (inst.SalesOrderID == nil || *inst.SalesOrderID != *previous):
		return false, nil
	}
	oid := orderID
	inst.SalesOrderID = &oid
	r.writes++
	return true, nil
}

func (r memoryInstallmentRepo) FillInvoice(_ context.Context, id uuid.UUID, doc reconciliation.InvoiceDocument) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := r.installment(id)
	if inst == nil || inst.HasInvoice() {
		return false, nil
	}
	inst.Invoice = doc
	r.writes++
	return true, nil
}

type memoryOrderRepo struct{ *memoryStore }

func (r memoryOrderRepo) ListEligibleByCustomer(_ context.Context, customerID uuid.UUID) ([]reconciliation.SalesOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reconciliation.SalesOrder
	for _, o := range r.orders {
		if o.CustomerID != nil && *o.CustomerID == customerID && o.HasERPID() {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r memoryOrderRepo) ListAwaitingInvoice(context.Context) ([]reconciliation.SalesOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reconciliation.SalesOrder
	for _, o := range r.orders {
		if o.HasERPID() && !o.HasInvoice() {
			out = append(out, *o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r memoryOrderRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]reconciliation.SalesOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reconciliation.SalesOrder
	for _, id := range ids {
		if o := r.order(id); o != nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r memoryOrderRepo) FillInvoice(_ context.Context, id uuid.UUID, doc reconciliation.InvoiceDocument) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.order(id)
	if o == nil || o.HasInvoice() {
		return false, nil
	}
	o.Invoice = doc
	r.writes++
	return true, nil
}

func copyInstallment(inst *reconciliation.Installment) reconciliation.Installment {
	c := *inst
	if inst.SalesOrderID != nil {
		id := *inst.SalesOrderID
		c.SalesOrderID = &id
	}
	return c
}

// ---------------------------------------------------------------------------
// ERP gateway mock
// ---------------------------------------------------------------------------

// MockERPGateway is a mock implementation of integration.ERPGateway
type MockERPGateway struct {
	mock.Mock
	runsBegun int
}

func (m *MockERPGateway) BeginRun() {
	m.runsBegun++
}

func (m *MockERPGateway) GetOrder(ctx context.Context, erpOrderID string) (*integration.ERPOrder, error) {
	args := m.Called(ctx, erpOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ERPOrder), args.Error(1)
}

func (m *MockERPGateway) GetInvoice(ctx context.Context, invoiceID string) (*integration.ERPInvoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ERPInvoice), args.Error(1)
}

// expectAuthorized scripts erpOrderID -> invoiceID -> authorized invoice
func (m *MockERPGateway) expectAuthorized(erpOrderID, invoiceID, link, number string) {
	m.On("GetOrder", mock.Anything, erpOrderID).
		Return(&integration.ERPOrder{ID: erpOrderID, InvoiceID: invoiceID}, nil)
	m.On("GetInvoice", mock.Anything, invoiceID).
		Return(&integration.ERPInvoice{
			ID:           invoiceID,
			StatusCode:   integration.InvoiceStatusAuthorized,
			DocumentLink: link,
			Number:       number,
		}, nil)
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

type recordingRecorder struct {
	mu    sync.Mutex
	runs  []string
	items map[string]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{items: make(map[string]int)}
}

func (r *recordingRecorder) RecordRun(outcome string, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, outcome)
}

func (r *recordingRecorder) AddItems(bucket string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[bucket] += n
}

// newDeterministicReader makes uuid generation repeatable across fixtures
func newDeterministicReader() io.Reader {
	return rand.New(rand.NewSource(42))
}
