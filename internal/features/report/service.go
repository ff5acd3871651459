package report

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/features/audit"
	"go-cats/internal/features/cases"
	"go-cats/internal/metrics"
	"go-cats/pkg/sla"

	"github.com/xuri/excelize/v2"
)

const auditModule = "sla_statistics"

type ReportService interface {
	RecomputeStatistics(ctx context.Context) ([]RuleStatistics, error)
	LatestStatistics(ctx context.Context) ([]RuleStatistics, error)
	StatisticsHistory(ctx context.Context, ruleID string, limit int64) ([]RuleStatistics, error)
	ExportCompliance(ctx context.Context) ([]byte, string, error)
}

type ReportServiceImpl struct {
	Repo         StatisticsRepository
	CaseService  cases.CaseService
	AuditService audit.AuditService
	Metrics      *metrics.Metrics
	Clock        sla.Clock

	// serializes recomputes so snapshot sequences stay gapless per rule
	mu sync.Mutex
}

func NewReportService(
	repo StatisticsRepository,
	caseService cases.CaseService,
	auditService audit.AuditService,
	m *metrics.Metrics,
	engine *sla.Engine,
) ReportService {
	return &ReportServiceImpl{
		Repo:         repo,
		CaseService:  caseService,
		AuditService: auditService,
		Metrics:      m,
		Clock:        engine,
	}
}

// RecomputeStatistics aggregates cases per rule and appends a new snapshot for each rule
func (s *ReportServiceImpl) RecomputeStatistics(ctx context.Context) ([]RuleStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Clock.Now()

	rows, err := s.Repo.AggregateByRule(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate cases by rule: %w", err)
	}

	previous, err := s.Repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	sequences := make(map[string]int64, len(previous))
	for _, p := range previous {
		sequences[p.RuleID] = p.Sequence
	}

	stats := make([]RuleStatistics, 0, len(rows))
	for _, row := range rows {
		st := RuleStatistics{
			RuleID:         row.RuleID,
			RuleName:       row.RuleName,
			RuleRevision:   row.RuleRevision,
			Sequence:       sequences[row.RuleID] + 1,
			TotalCases:     row.Total,
			OpenCases:      row.Total - row.Closed,
			ClosedCases:    row.Closed,
			BreachedCases:  row.Breached,
			ComplianceRate: round2(ComplianceRate(row.Total, row.Breached)),
			ComputedAt:     now,
		}
		if row.AvgResolutionHours != nil {
			st.AverageResolutionHours = round2(*row.AvgResolutionHours)
		}
		stats = append(stats, st)
	}

	if err := s.Repo.InsertSnapshots(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to store statistics snapshots: %w", err)
	}
	s.Metrics.StatisticsRecomputed.Inc()

	if counts, err := s.CaseService.CountOpenByState(ctx); err == nil {
		s.Metrics.ObserveOpenStates(counts)
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionReport, auditModule, now.Format(time.RFC3339), map[string]common_models.Change{
		"rules": {New: len(stats)},
	})

	return stats, nil
}

func (s *ReportServiceImpl) LatestStatistics(ctx context.Context) ([]RuleStatistics, error) {
	stats, err := s.Repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []RuleStatistics{}
	}
	return stats, nil
}

func (s *ReportServiceImpl) StatisticsHistory(ctx context.Context, ruleID string, limit int64) ([]RuleStatistics, error) {
	if ruleID == "" {
		return nil, common_models.Invalid("rule_id is required")
	}
	_, limit = common_models.NormalizePage(1, limit)

	stats, err := s.Repo.History(ctx, ruleID, limit)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []RuleStatistics{}
	}
	return stats, nil
}

var (
	complianceColumns = []string{"Rule ID", "Rule", "Revision", "Snapshot", "Total", "Open", "Closed", "Breached", "Compliance %", "Avg resolution (h)", "Computed at"}
	overdueColumns    = []string{"Case number", "Kind", "Type", "Priority", "Status", "Assigned to", "Rule", "Deadline", "Hours overdue", "Escalation level"}
)

// ExportCompliance builds a workbook with the latest per-rule compliance and the current
// overdue case list
func (s *ReportServiceImpl) ExportCompliance(ctx context.Context) ([]byte, string, error) {
	stats, err := s.LatestStatistics(ctx)
	if err != nil {
		return nil, "", err
	}
	overdue, err := s.CaseService.ListOverdue(ctx)
	if err != nil {
		return nil, "", err
	}
	now := s.Clock.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Compliance"); err != nil {
		return nil, "", err
	}
	if _, err := f.NewSheet("Overdue"); err != nil {
		return nil, "", err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	complianceRows := make([][]interface{}, 0, len(stats))
	for _, st := range stats {
		complianceRows = append(complianceRows, []interface{}{
			st.RuleID, st.RuleName, st.RuleRevision, st.Sequence,
			st.TotalCases, st.OpenCases, st.ClosedCases, st.BreachedCases,
			st.ComplianceRate, st.AverageResolutionHours,
			st.ComputedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	if err := writeSheet(f, "Compliance", complianceColumns, complianceRows, headerStyle); err != nil {
		return nil, "", err
	}

	overdueRows := make([][]interface{}, 0, len(overdue))
	for _, v := range overdue {
		c := v.Case
		var deadline string
		var hours float64
		if c.SLADeadline != nil {
			deadline = c.SLADeadline.UTC().Format("2006-01-02 15:04:05")
			hours = round2(now.Sub(*c.SLADeadline).Hours())
		}
		ruleName := ""
		if c.SLARule != nil {
			ruleName = c.SLARule.Name
		}
		assignee := c.AssignedTo
		if assignee == "" {
			assignee = c.AssignedRole
		}
		overdueRows = append(overdueRows, []interface{}{
			c.CaseNumber, string(c.Kind), c.CaseType, c.Priority, string(c.Status),
			assignee, ruleName, deadline, hours, c.EscalationLevel,
		})
	}
	if err := writeSheet(f, "Overdue", overdueColumns, overdueRows, headerStyle); err != nil {
		return nil, "", err
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("sla_compliance_%s.xlsx", now.UTC().Format("20060102_150405"))
	return buffer.Bytes(), filename, nil
}

func writeSheet(f *excelize.File, sheet string, columns []string, rows [][]interface{}, headerStyle int) error {
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	last, _ := excelize.ColumnNumberToName(len(columns))
	return f.SetColWidth(sheet, "A", last, 18)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
