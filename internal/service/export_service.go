package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/damp-platform/damp-api/internal/analytics"
	"github.com/damp-platform/damp-api/internal/models"
	"github.com/damp-platform/damp-api/pkg/export"
	"github.com/damp-platform/damp-api/pkg/storage"
)

type snapshotSource interface {
	Snapshot(ctx context.Context) (*analytics.Snapshot, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	ObjectName string
	Token      string
	URL        string
	Format     models.ReportFormat
	ExpiresAt  time.Time
}

// ExportService computes report content from one snapshot and persists the rendered file.
type ExportService struct {
	source  snapshotSource
	storage storage.Store
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	json    *export.JSONExporter
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(source snapshotSource, store storage.Store, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		source:  source,
		storage: store,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		json:    export.NewJSONExporter(),
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// ContentType maps an export format to its MIME type.
func ContentType(format models.ReportFormat) string {
	switch format {
	case models.ReportFormatCSV:
		return "text/csv"
	case models.ReportFormatPDF:
		return "application/pdf"
	case models.ReportFormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Generate renders the job's report and stores it under a signed download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	content, err := buildReportContent(ctx, snap, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(content.report)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(content.report)
	case models.ReportFormatJSON:
		payload, err = s.json.Render(content.report.Title, content.report.GeneratedAt, content.data)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	name, err := s.storage.Save(ctx, s.buildFilename(job), payload, ContentType(job.Params.Format))
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, name)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("report rendered",
		zap.String("job_id", job.ID),
		zap.String("object", name),
		zap.Int("bytes", len(payload)))
	return &ExportResult{
		ObjectName: name,
		Token:      token,
		URL:        fmt.Sprintf("%s/export/%s", prefix, token),
		Format:     job.Params.Format,
		ExpiresAt:  expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, name string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a reader for the stored export.
func (s *ExportService) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.storage.Open(ctx, name)
}

// Delete removes a stored export.
func (s *ExportService) Delete(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, name)
}

// Cleanup removes exports older than ttl, or the configured result TTL when ttl <= 0.
func (s *ExportService) Cleanup(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ctx, ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(reportScope(job.Params).Key())
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

type reportContent struct {
	report export.Report
	data   interface{}
}

func reportScope(params models.ReportJobParams) analytics.Scope {
	return analytics.Scope{CourseID: params.CourseID, MentorID: params.MentorID}
}

func reportParams(params models.ReportJobParams) analytics.DashboardParams {
	p := analytics.DefaultDashboardParams()
	p.Scope = reportScope(params)
	if params.Bucketing != "" {
		p.Bucketing = analytics.Bucketing(params.Bucketing)
	}
	if params.Months > 0 {
		p.TrendMonths = params.Months
		p.GrowthMonths = params.Months
	}
	if params.WindowDays > 0 {
		p.EngagementDays = params.WindowDays
	}
	if params.Limit > 0 {
		p.PopularityLimit = params.Limit
	}
	return p
}

func buildReportContent(ctx context.Context, snap *analytics.Snapshot, job *models.ReportJob) (reportContent, error) {
	params := reportParams(job.Params)
	now := snap.AsOf
	if now.IsZero() {
		now = time.Now()
	}
	scopeLabel := params.Scope.Key()

	content := reportContent{report: export.Report{GeneratedAt: now.UTC()}}
	switch job.Type {
	case models.ReportTypeCompletion:
		rate, err := analytics.ComputeCompletionRate(snap, params.Scope)
		if err != nil {
			return reportContent{}, err
		}
		content.data = rate
		content.report.Title = "Completion Report " + scopeLabel
		content.report.Sections = []export.Dataset{completionDataset(rate)}
	case models.ReportTypeGrades:
		buckets, err := analytics.ComputeGradeDistribution(snap, params.Scope, params.Bucketing)
		if err != nil {
			return reportContent{}, err
		}
		content.data = buckets
		content.report.Title = "Grade Distribution " + scopeLabel
		content.report.Sections = []export.Dataset{gradesDataset(buckets)}
	case models.ReportTypeTrend:
		points, err := analytics.ComputeEnrollmentTrend(snap, now, params.TrendMonths)
		if err != nil {
			return reportContent{}, err
		}
		content.data = points
		content.report.Title = fmt.Sprintf("Enrollment Trend (%d months)", params.TrendMonths)
		content.report.Sections = []export.Dataset{trendDataset(points)}
	case models.ReportTypeMentors:
		stats := analytics.ComputeMentorEffectiveness(snap)
		content.data = stats
		content.report.Title = "Mentor Effectiveness"
		content.report.Sections = []export.Dataset{mentorsDataset(stats)}
	case models.ReportTypePopularity:
		courses, err := analytics.ComputeCoursePopularity(snap, params.PopularityLimit)
		if err != nil {
			return reportContent{}, err
		}
		content.data = courses
		content.report.Title = fmt.Sprintf("Top %d Courses", params.PopularityLimit)
		content.report.Sections = []export.Dataset{popularityDataset(courses)}
	case models.ReportTypeEngagement:
		roles, err := analytics.ComputeEngagementByRole(snap, now, params.EngagementDays)
		if err != nil {
			return reportContent{}, err
		}
		content.data = roles
		content.report.Title = fmt.Sprintf("Engagement by Role (%d days)", params.EngagementDays)
		content.report.Sections = []export.Dataset{engagementDataset(roles)}
	case models.ReportTypeSummary:
		dash, err := analytics.BuildDashboard(ctx, snap, now, params)
		if err != nil {
			return reportContent{}, err
		}
		content.data = dash
		content.report.Title = "Platform Summary " + scopeLabel
		content.report.Sections = []export.Dataset{
			completionDataset(dash.Completion),
			gradesDataset(dash.Grades),
			trendDataset(dash.EnrollmentTrend),
			mentorsDataset(dash.Mentors),
			popularityDataset(dash.PopularCourses),
			engagementDataset(dash.Engagement),
		}
	default:
		return reportContent{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
	return content, nil
}

func completionDataset(rate analytics.CompletionRate) export.Dataset {
	return export.Dataset{
		Name:    "completion",
		Headers: []string{"Total", "Completed", "Completion (%)"},
		Rows: []map[string]string{{
			"Total":          strconv.Itoa(rate.Total),
			"Completed":      strconv.Itoa(rate.Completed),
			"Completion (%)": formatFloat(rate.Percentage),
		}},
	}
}

func gradesDataset(buckets []analytics.GradeBucket) export.Dataset {
	rows := make([]map[string]string, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, map[string]string{
			"Grade":     b.Label,
			"Range":     b.Range,
			"Count":     strconv.Itoa(b.Count),
			"Share (%)": formatFloat(b.Percentage),
		})
	}
	return export.Dataset{Name: "grades", Headers: []string{"Grade", "Range", "Count", "Share (%)"}, Rows: rows}
}

func trendDataset(points []analytics.TrendPoint) export.Dataset {
	rows := make([]map[string]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, map[string]string{
			"Month":           p.Month,
			"Enrollments":     strconv.Itoa(p.Enrollments),
			"Unique Courses":  strconv.Itoa(p.UniqueCourses),
			"Unique Students": strconv.Itoa(p.UniqueStudents),
		})
	}
	return export.Dataset{Name: "enrollment_trend", Headers: []string{"Month", "Enrollments", "Unique Courses", "Unique Students"}, Rows: rows}
}

func mentorsDataset(stats []analytics.MentorStats) export.Dataset {
	rows := make([]map[string]string, 0, len(stats))
	for _, m := range stats {
		tier := ""
		if m.Tier != nil {
			tier = string(*m.Tier)
		}
		rows = append(rows, map[string]string{
			"Mentor ID":      strconv.FormatInt(m.MentorID, 10),
			"Mentor":         m.MentorName,
			"Courses":        strconv.Itoa(m.CoursesCreated),
			"Students":       strconv.Itoa(m.StudentsTaught),
			"Enrollments":    strconv.Itoa(m.TotalEnrollments),
			"Completion (%)": formatFloat(m.CompletionRate),
			"Avg Rating":     formatOptional(m.AverageRating),
			"Reviews":        strconv.Itoa(m.ReviewCount),
			"Avg Score":      formatOptional(m.AverageAssignmentScore),
			"Effectiveness":  formatOptional(m.EffectivenessScore),
			"Tier":           tier,
		})
	}
	return export.Dataset{
		Name:    "mentors",
		Headers: []string{"Mentor ID", "Mentor", "Courses", "Students", "Enrollments", "Completion (%)", "Avg Rating", "Reviews", "Avg Score", "Effectiveness", "Tier"},
		Rows:    rows,
	}
}

func popularityDataset(courses []analytics.CoursePopularity) export.Dataset {
	rows := make([]map[string]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, map[string]string{
			"Course ID":   strconv.FormatInt(c.CourseID, 10),
			"Title":       c.Title,
			"Category":    c.Category,
			"Difficulty":  c.DifficultyLevel,
			"Enrollments": strconv.Itoa(c.Enrollments),
			"Completions": strconv.Itoa(c.Completions),
			"Avg Rating":  formatOptional(c.AverageRating),
		})
	}
	return export.Dataset{
		Name:    "popular_courses",
		Headers: []string{"Course ID", "Title", "Category", "Difficulty", "Enrollments", "Completions", "Avg Rating"},
		Rows:    rows,
	}
}

func engagementDataset(roles []analytics.RoleEngagement) export.Dataset {
	rows := make([]map[string]string, 0, len(roles))
	for _, r := range roles {
		rows = append(rows, map[string]string{
			"Role":            string(r.Role),
			"Active Users":    strconv.Itoa(r.ActiveUsers),
			"Events":          strconv.Itoa(r.TotalEvents),
			"Active Days":     strconv.Itoa(r.ActiveDays),
			"Events per User": formatFloat(r.AvgEventsPerUser),
		})
	}
	return export.Dataset{Name: "engagement", Headers: []string{"Role", "Active Users", "Events", "Active Days", "Events per User"}, Rows: rows}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
