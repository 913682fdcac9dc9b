package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/integration"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/metrics"
	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RunLockKey serializes runs across processes
	RunLockKey = "reconciliation:run"
	// DefaultLockTTL bounds how long a crashed run can hold the lock
	DefaultLockTTL = 30 * time.Minute

	spanService = "reconciliation"
)

// Report buckets as exported in metrics
const (
	BucketLinked        = "vinculados"
	BucketAmbiguous     = "ambiguous"
	BucketNotFound      = "not_found"
	BucketInvoiceErrors = "nfe_errors"
	BucketPropagated    = "danfes_propagados"
)

// RunRecorder receives run metrics
type RunRecorder interface {
	RecordRun(outcome string, dryRun bool, duration time.Duration)
	AddItems(bucket string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(string, bool, time.Duration) {}
func (nopRecorder) AddItems(string, int)                  {}

// Service runs the three reconciliation stages: link installments to orders,
// resolve order invoices from the ERP, and propagate document links.
//
// Precondition: one run at a time. Service enforces it with RunLock.
type Service struct {
	installments reconciliation.InstallmentRepository
	orders       reconciliation.SalesOrderRepository
	erp          integration.ERPGateway
	lock         reconciliation.RunLock
	recorder     RunRecorder
	logger       *zap.Logger
	lockTTL      time.Duration
	now          func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithRecorder records run metrics
func WithRecorder(r RunRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLockTTL overrides the run lock TTL
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithClock overrides the time source used for run durations
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a reconciliation service
func NewService(
	installments reconciliation.InstallmentRepository,
	orders reconciliation.SalesOrderRepository,
	erp integration.ERPGateway,
	lock reconciliation.RunLock,
	log *zap.Logger,
	opts ...Option,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		installments: installments,
		orders:       orders,
		erp:          erp,
		lock:         lock,
		recorder:     nopRecorder{},
		logger:       log,
		lockTTL:      DefaultLockTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run is the state of one execution
type run struct {
	id      string
	dryRun  bool
	matcher *reconciliation.Matcher
	report  *Report
	state   *overlay
	log     *zap.Logger
}

type stage struct {
	name string
	fn   func(context.Context, *run) error
}

// Run executes one reconciliation. A dry run computes the same report as a
// real run without writing to the store.
//
// Errors returned abort the whole run: invalid tolerance, a held lock
// (reconciliation.ErrRunInProgress), store failures and run-fatal ERP errors
// (see integration.IsRunFatal). Per-item failures are reported, not returned.
//
// A started run is not cancelled by ctx: it keeps ctx's values and trace but
// runs every stage to completion or to a fatal error.
func (s *Service) Run(ctx context.Context, req RunRequest) (*Report, error) {
	if err := req.Tolerance.Validate(); err != nil {
		return nil, shared.WrapDomainError(shared.CodeValidation, "Tolerance values must not be negative", err)
	}
	ctx = context.WithoutCancel(ctx)

	start := s.now()
	runID := uuid.NewString()
	ctx, log := logger.WithRunID(ctx, s.logger, runID)

	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "run",
		"run_id", runID,
		"dry_run", req.DryRun,
		"tolerance_value", req.Tolerance.Value.String(),
		"tolerance_days", req.Tolerance.Days,
	)
	defer span.End()

	token, acquired, err := s.lock.TryLock(ctx, RunLockKey, s.lockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordRun(metrics.OutcomeFailed, req.DryRun, start)
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		telemetry.RecordError(span, reconciliation.ErrRunInProgress)
		s.recordRun(metrics.OutcomeConflict, req.DryRun, start)
		log.Warn("Reconciliation run rejected, another run holds the lock")
		return nil, reconciliation.ErrRunInProgress
	}
	defer func() {
		if err := s.lock.Unlock(ctx, RunLockKey, token); err != nil {
			log.Warn("Failed to release run lock", zap.Error(err))
		}
	}()

	if scoped, ok := s.erp.(integration.RunScoped); ok {
		scoped.BeginRun()
	}

	r := &run{
		id:      runID,
		dryRun:  req.DryRun,
		matcher: reconciliation.NewMatcher(req.Tolerance),
		report:  newReport(runID, req.DryRun),
		state:   newOverlay(),
		log:     log,
	}

	log.Info("Reconciliation run started",
		zap.Bool("dry_run", req.DryRun),
		zap.String("tolerance_value", req.Tolerance.Value.String()),
		zap.Int("tolerance_days", req.Tolerance.Days),
	)

	stages := []stage{
		{name: "link", fn: s.linkInstallments},
		{name: "resolve_invoices", fn: s.resolveInvoices},
		{name: "propagate", fn: s.propagateDocuments},
	}
	for _, st := range stages {
		if err := s.runStage(ctx, r, st); err != nil {
			telemetry.RecordError(span, err)
			s.recordRun(metrics.OutcomeFailed, req.DryRun, start)
			log.Error("Reconciliation run aborted", zap.String("stage", st.name), zap.Error(err))
			return nil, fmt.Errorf("reconciliation %s stage: %w", st.name, err)
		}
	}

	s.recordItems(r.report)
	s.recordRun(metrics.OutcomeSuccess, req.DryRun, start)

	sum := r.report.Summary
	telemetry.SetAttributes(span,
		"parcelas_processadas", sum.InstallmentsProcessed,
		"vinculos_criados", sum.LinksCreated,
		"nfes_encontradas", sum.InvoicesFound,
		"danfes_propagados", sum.DocumentsPropagated,
	)
	log.Info("Reconciliation run finished",
		zap.Bool("dry_run", req.DryRun),
		zap.Int("parcelas_processadas", sum.InstallmentsProcessed),
		zap.Int("vinculos_criados", sum.LinksCreated),
		zap.Int("ambiguous", sum.Ambiguous),
		zap.Int("not_found", sum.NotFound),
		zap.Int("nfes_buscadas", sum.InvoicesFetched),
		zap.Int("nfes_encontradas", sum.InvoicesFound),
		zap.Int("nfe_errors", sum.InvoiceErrors),
		zap.Int("danfes_propagados", sum.DocumentsPropagated),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return r.report, nil
}

func (s *Service) runStage(ctx context.Context, r *run, st stage) error {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, st.name, "dry_run", r.dryRun)
	defer span.End()

	if err := st.fn(ctx, r); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

func (s *Service) recordRun(outcome string, dryRun bool, start time.Time) {
	s.recorder.RecordRun(outcome, dryRun, s.now().Sub(start))
}

func (s *Service) recordItems(report *Report) {
	s.recorder.AddItems(BucketLinked, len(report.Linked))
	s.recorder.AddItems(BucketAmbiguous, len(report.Ambiguous))
	s.recorder.AddItems(BucketNotFound, len(report.NotFound))
	s.recorder.AddItems(BucketInvoiceErrors, len(report.InvoiceErrors))
	s.recorder.AddItems(BucketPropagated, len(report.Propagated))
}
