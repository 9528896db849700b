package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/pkg/config"
)

type reportStore interface {
	CountOnDate(ctx context.Context, date string) (int, error)
	CountAll(ctx context.Context) (int, error)
	CountOpen(ctx context.Context, date string) (int, error)
	CountByYear(ctx context.Context, date string) ([]models.YearCount, error)
	CountByDateAndYear(ctx context.Context, from, to string) ([]models.DayYearCount, error)
}

type rosterCounter interface {
	Count(ctx context.Context) (int, error)
}

// ReportServiceConfig tunes the dashboard aggregates.
type ReportServiceConfig struct {
	Location    *time.Location
	InsideScope string
	Metrics     *MetricsService
}

// ReportService computes read-only dashboard aggregates over the ledger.
type ReportService struct {
	repo     reportStore
	students rosterCounter
	cache    *CacheService
	logger   *zap.Logger
	cfg      ReportServiceConfig
	now      func() time.Time
}

// NewReportService constructs the report service. A nil cache disables caching.
func NewReportService(repo reportStore, students rosterCounter, cache *CacheService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.InsideScope != config.InsideScopeToday {
		cfg.InsideScope = config.InsideScopeAll
	}
	return &ReportService{repo: repo, students: students, cache: cache, logger: logger, cfg: cfg, now: time.Now}
}

func (s *ReportService) today() time.Time {
	return s.now().In(s.cfg.Location)
}

// CountToday counts visits recorded on the current date.
func (s *ReportService) CountToday(ctx context.Context) (*dto.VisitorCount, error) {
	total, err := s.repo.CountOnDate(ctx, s.today().Format(models.DateLayout))
	if err != nil {
		return nil, internalError(err, "failed to count visitors today")
	}
	return &dto.VisitorCount{VisitorCount: total}, nil
}

// CountAllTime counts every recorded visit.
func (s *ReportService) CountAllTime(ctx context.Context) (*dto.TotalVisitors, error) {
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, internalError(err, "failed to count visitors")
	}
	return &dto.TotalVisitors{TotalVisitors: total}, nil
}

// CountCurrentlyInside counts open visits, across all dates or only today
// depending on the configured scope.
func (s *ReportService) CountCurrentlyInside(ctx context.Context) (*dto.CurrentlyInside, error) {
	var date string
	if s.cfg.InsideScope == config.InsideScopeToday {
		date = s.today().Format(models.DateLayout)
	}
	total, err := s.repo.CountOpen(ctx, date)
	if err != nil {
		return nil, internalError(err, "failed to count visitors inside")
	}
	return &dto.CurrentlyInside{CurrentlyInside: total}, nil
}

// CountByLevel partitions visits into college and jhs buckets. The boolean
// reports whether the result came from cache.
func (s *ReportService) CountByLevel(ctx context.Context, scope dto.LevelScope) (*models.LevelTotals, bool, error) {
	key := reportKeyLevelsAll
	var date string
	if scope == dto.LevelScopeToday {
		date = s.today().Format(models.DateLayout)
		key = reportKeyLevelsToday + date
	}

	var totals models.LevelTotals
	hit, err := s.cache.Remember(ctx, key, &totals, func() error {
		start := time.Now()
		counts, err := s.repo.CountByYear(ctx, date)
		s.cfg.Metrics.ObserveDBQuery("report_levels", time.Since(start))
		if err != nil {
			return err
		}
		totals = models.TallyLevels(counts)
		return nil
	})
	if err != nil {
		return nil, false, internalError(err, "failed to count visitors by level")
	}
	return &totals, hit, nil
}

// WeeklyBreakdown returns per-weekday level totals for the current Monday-to-Sunday week.
func (s *ReportService) WeeklyBreakdown(ctx context.Context) (*models.WeeklyBreakdown, bool, error) {
	monday, sunday := weekBounds(s.today())
	from := monday.Format(models.DateLayout)
	to := sunday.Format(models.DateLayout)

	var breakdown models.WeeklyBreakdown
	hit, err := s.cache.Remember(ctx, reportKeyWeekly+from, &breakdown, func() error {
		start := time.Now()
		counts, err := s.repo.CountByDateAndYear(ctx, from, to)
		s.cfg.Metrics.ObserveDBQuery("report_weekly", time.Since(start))
		if err != nil {
			return err
		}
		breakdown = models.WeeklyBreakdown{}
		for _, c := range counts {
			day, err := time.Parse(models.DateLayout, c.Date)
			if err != nil {
				s.logger.Warn("skipping malformed attendance date", zap.String("date", c.Date))
				continue
			}
			breakdown.Add(day.Weekday(), c.Year, c.Total)
		}
		return nil
	})
	if err != nil {
		return nil, false, internalError(err, "failed to build weekly attendance")
	}
	return &breakdown, hit, nil
}

// CountStudents returns the roster size.
func (s *ReportService) CountStudents(ctx context.Context) (*dto.TotalStudents, error) {
	total, err := s.students.Count(ctx)
	if err != nil {
		return nil, internalError(err, "failed to count students")
	}
	return &dto.TotalStudents{TotalStudents: total}, nil
}

// weekBounds returns the Monday and Sunday of the week containing t.
func weekBounds(t time.Time) (time.Time, time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	monday := day.AddDate(0, 0, -models.WeekdayIndex(day.Weekday()))
	return monday, monday.AddDate(0, 0, 6)
}
