package escalation

import (
	"context"
	"fmt"
	"sync"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/config"
	"go-cats/internal/features/audit"
	"go-cats/internal/features/cases"
	"go-cats/internal/metrics"
	"go-cats/pkg/sla"

	"go.uber.org/zap"
)

type EscalationService interface {
	RunEvaluation(ctx context.Context, trigger string) (*EvaluationRun, error)
	ListRuns(ctx context.Context, limit int64) ([]EvaluationRun, error)
	EvaluateCase(ctx context.Context, id string) (*sla.Evaluation, error)
}

type EscalationServiceImpl struct {
	engine       *sla.Engine
	caseRepo     cases.CaseRepository
	caseService  cases.CaseService
	sink         sla.EventSink
	runRepo      RunRepository
	auditService audit.AuditService
	metrics      *metrics.Metrics
	logger       *zap.Logger
	options      sla.BatchOptions

	running sync.Mutex
}

func NewEscalationService(
	engine *sla.Engine,
	caseRepo cases.CaseRepository,
	caseService cases.CaseService,
	sink sla.EventSink,
	runRepo RunRepository,
	auditService audit.AuditService,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg *config.Config,
) EscalationService {
	return &EscalationServiceImpl{
		engine:       engine,
		caseRepo:     caseRepo,
		caseService:  caseService,
		sink:         sink,
		runRepo:      runRepo,
		auditService: auditService,
		metrics:      m,
		logger:       logger,
		options: sla.BatchOptions{
			Workers:    cfg.EvaluationWorkers,
			MaxRetries: cfg.MaxRetries,
		},
	}
}

// RunEvaluation evaluates every open case once. Only one pass runs at a time; a second
// caller gets ErrConflict instead of queueing behind the first.
func (s *EscalationServiceImpl) RunEvaluation(ctx context.Context, trigger string) (*EvaluationRun, error) {
	if !s.running.TryLock() {
		return nil, fmt.Errorf("an SLA evaluation pass is already running: %w", common_models.ErrConflict)
	}
	defer s.running.Unlock()

	report, err := s.engine.EvaluateOpenCases(ctx, s.caseRepo, s.sink, s.options)
	s.metrics.ObserveBatch(trigger, report, err)

	run := &EvaluationRun{
		Trigger:     trigger,
		Status:      "success",
		TriggeredBy: audit.ActorFromContext(ctx),
	}
	if report != nil {
		run.BatchReport = *report
	}
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		s.logger.Error("SLA evaluation pass failed", zap.String("trigger", trigger), zap.Error(err))
	}

	for _, f := range run.Failures {
		s.logger.Warn("SLA case evaluation failed",
			zap.String("case_id", f.CaseID),
			zap.String("kind", f.Kind),
			zap.String("error", f.Error))
	}
	s.logger.Info("SLA evaluation pass finished",
		zap.String("trigger", trigger),
		zap.Int("evaluated", run.Evaluated),
		zap.Int("changed", run.Changed),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed))

	if counts, cerr := s.caseService.CountOpenByState(ctx); cerr == nil {
		s.metrics.ObserveOpenStates(counts)
	} else {
		s.logger.Warn("Failed to count open cases by SLA state", zap.Error(cerr))
	}

	if serr := s.runRepo.Create(ctx, run); serr != nil {
		s.logger.Error("Failed to store SLA evaluation run", zap.Error(serr))
	}

	_ = s.auditService.LogChange(ctx, common_models.AuditActionEvaluation, "sla_evaluation", run.ID.Hex(), map[string]common_models.Change{
		"evaluated": {New: run.Evaluated},
		"changed":   {New: run.Changed},
		"failed":    {New: run.Failed},
	})

	return run, err
}

func (s *EscalationServiceImpl) ListRuns(ctx context.Context, limit int64) ([]EvaluationRun, error) {
	_, limit = common_models.NormalizePage(1, limit)
	runs, err := s.runRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []EvaluationRun{}
	}
	return runs, nil
}

// EvaluateCase runs one evaluation tick for a single case outside the scheduled pass
func (s *EscalationServiceImpl) EvaluateCase(ctx context.Context, id string) (*sla.Evaluation, error) {
	c, err := s.caseRepo.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	ev, err := s.engine.EvaluateAndSave(ctx, s.caseRepo, s.sink, *c, s.engine.Now(), s.options.MaxRetries)
	s.metrics.ObserveEvaluation(ev, err)
	if err != nil {
		s.logger.Warn("SLA case evaluation failed", zap.String("case_id", id), zap.Error(err))
		return ev, err
	}
	return ev, nil
}
