package cron_feature

import (
	"context"
	"fmt"
	"sync"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/config"
	"go-cats/internal/features/audit"
	"go-cats/internal/features/escalation"
	"go-cats/internal/features/report"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const auditModule = "cron"

type CronService interface {
	ListJobs(ctx context.Context) ([]CronJob, error)
	ExecuteJob(ctx context.Context, name string) (*CronJobLog, error)
	SetJobActive(ctx context.Context, name string, active bool) (*CronJob, error)
	GetJobLogs(ctx context.Context, name string, limit int) ([]CronJobLog, error)
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
}

type job struct {
	name        string
	description string
	schedule    string
	run         JobFunc
}

type CronServiceImpl struct {
	repo         CronRepository
	auditService audit.AuditService
	logger       *zap.Logger

	jobs  map[string]job
	order []string

	scheduler  *cron.Cron
	jobEntries map[string]cron.EntryID
	mu         sync.RWMutex
}

func NewCronService(
	repo CronRepository,
	escalationService escalation.EscalationService,
	reportService report.ReportService,
	auditService audit.AuditService,
	logger *zap.Logger,
	cfg *config.Config,
) CronService {
	s := &CronServiceImpl{
		repo:         repo,
		auditService: auditService,
		logger:       logger,
		jobs:         make(map[string]job),
		jobEntries:   make(map[string]cron.EntryID),
	}

	s.addJob(job{
		name:        JobSLAEvaluation,
		description: "Evaluate every open case for warnings, escalations and breaches",
		schedule:    cfg.EvaluationSchedule,
		run: func(ctx context.Context) (JobResult, error) {
			run, err := escalationService.RunEvaluation(ctx, escalation.TriggerScheduled)
			if run == nil {
				return JobResult{}, err
			}
			return JobResult{
				RecordsProcessed: run.Evaluated,
				RecordsAffected:  run.Changed,
				Output: fmt.Sprintf("evaluated=%d changed=%d skipped=%d failed=%d",
					run.Evaluated, run.Changed, run.Skipped, run.Failed),
			}, err
		},
	})
	s.addJob(job{
		name:        JobSLAStatistics,
		description: "Recompute per-rule SLA compliance statistics",
		schedule:    cfg.StatisticsSchedule,
		run: func(ctx context.Context) (JobResult, error) {
			stats, err := reportService.RecomputeStatistics(ctx)
			if err != nil {
				return JobResult{}, err
			}
			return JobResult{
				RecordsProcessed: len(stats),
				RecordsAffected:  len(stats),
				Output:           fmt.Sprintf("rules=%d", len(stats)),
			}, nil
		},
	})

	return s
}

func (s *CronServiceImpl) addJob(j job) {
	s.jobs[j.name] = j
	s.order = append(s.order, j.name)
}

func (s *CronServiceImpl) lookup(name string) (job, error) {
	j, ok := s.jobs[name]
	if !ok {
		return job{}, fmt.Errorf("cron job %q: %w", name, common_models.ErrNotFound)
	}
	return j, nil
}

func (s *CronServiceImpl) ListJobs(ctx context.Context) ([]CronJob, error) {
	return s.repo.List(ctx)
}

// ExecuteJob runs a job immediately, whether or not it is active
func (s *CronServiceImpl) ExecuteJob(ctx context.Context, name string) (*CronJobLog, error) {
	j, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, j, "manual")
}

func (s *CronServiceImpl) execute(ctx context.Context, j job, trigger string) (*CronJobLog, error) {
	startTime := time.Now()

	logEntry := &CronJobLog{
		CronJobName: j.name,
		Trigger:     trigger,
		StartTime:   startTime,
		Status:      "running",
	}

	if err := s.repo.CreateLog(ctx, logEntry); err != nil {
		s.logger.Warn("Failed to create cron job log entry", zap.String("job", j.name), zap.Error(err))
	}

	result, execError := j.run(ctx)

	endTime := time.Now()
	logEntry.EndTime = &endTime
	logEntry.RecordsProcessed = result.RecordsProcessed
	logEntry.RecordsAffected = result.RecordsAffected
	logEntry.Output = result.Output

	if execError != nil {
		logEntry.Status = "failed"
		logEntry.Error = execError.Error()
		s.logger.Error("Cron job failed", zap.String("job", j.name), zap.String("trigger", trigger), zap.Error(execError))
	} else {
		logEntry.Status = "success"
		s.logger.Info("Cron job finished",
			zap.String("job", j.name),
			zap.String("trigger", trigger),
			zap.Duration("duration", endTime.Sub(startTime)),
			zap.String("output", result.Output))
	}

	if err := s.repo.UpdateLog(ctx, logEntry); err != nil {
		s.logger.Warn("Failed to update cron job log entry", zap.String("job", j.name), zap.Error(err))
	}

	_ = s.auditService.LogChange(ctx, common_models.AuditActionCron, auditModule, j.name, map[string]common_models.Change{
		"status":   {New: logEntry.Status},
		"affected": {New: result.RecordsAffected},
		"error":    {New: logEntry.Error},
	})

	var nextRun *time.Time
	if schedule, err := cron.ParseStandard(j.schedule); err == nil {
		next := schedule.Next(time.Now())
		nextRun = &next
	}
	if err := s.repo.UpdateLastRun(ctx, j.name, startTime, nextRun); err != nil {
		s.logger.Warn("Failed to update cron job last run", zap.String("job", j.name), zap.Error(err))
	}

	return logEntry, execError
}

// SetJobActive pauses or resumes a job's schedule
func (s *CronServiceImpl) SetJobActive(ctx context.Context, name string, active bool) (*CronJob, error) {
	j, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, name, active); err != nil {
		return nil, err
	}

	s.UnregisterJob(name)
	if active && s.scheduler != nil {
		if err := s.RegisterJob(j); err != nil {
			return nil, err
		}
	}

	_ = s.auditService.LogChange(ctx, common_models.AuditActionUpdate, auditModule, name, map[string]common_models.Change{
		"active": {Old: !active, New: active},
	})

	return s.repo.GetByName(ctx, name)
}

func (s *CronServiceImpl) GetJobLogs(ctx context.Context, name string, limit int) ([]CronJobLog, error) {
	if _, err := s.lookup(name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetLogs(ctx, name, limit)
}

// InitializeScheduler stores every built-in job and schedules the active ones. An invalid
// schedule fails startup.
func (s *CronServiceImpl) InitializeScheduler(ctx context.Context) error {
	s.logger.Info("Initializing cron scheduler")

	cronLogger := zapCronLogger{s.logger.Sugar()}
	s.scheduler = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	for _, name := range s.order {
		j := s.jobs[name]

		schedule, err := cron.ParseStandard(j.schedule)
		if err != nil {
			return fmt.Errorf("invalid schedule %q for cron job %s: %w", j.schedule, name, err)
		}
		next := schedule.Next(time.Now())

		state, err := s.repo.Register(ctx, &CronJob{
			Name:        name,
			Description: j.description,
			Schedule:    j.schedule,
			NextRun:     &next,
		})
		if err != nil {
			return fmt.Errorf("failed to register cron job %s: %w", name, err)
		}
		if !state.Active {
			s.logger.Info("Cron job is paused", zap.String("job", name))
			continue
		}
		if err := s.RegisterJob(j); err != nil {
			return err
		}
	}

	s.scheduler.Start()
	return nil
}

func (s *CronServiceImpl) StopScheduler() error {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}

func (s *CronServiceImpl) RegisterJob(j job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return fmt.Errorf("scheduler not initialized")
	}

	jobFunc := func() {
		ctx := context.Background()
		state, err := s.repo.GetByName(ctx, j.name)
		if err != nil || !state.Active {
			return
		}
		s.execute(ctx, j, "scheduled")
	}

	entryID, err := s.scheduler.AddFunc(j.schedule, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add cron job %s to scheduler: %w", j.name, err)
	}

	s.jobEntries[j.name] = entryID
	return nil
}

func (s *CronServiceImpl) UnregisterJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobEntries[name]; exists {
		s.scheduler.Remove(entryID)
		delete(s.jobEntries, name)
	}
}

// zapCronLogger routes the scheduler's own messages through zap
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
