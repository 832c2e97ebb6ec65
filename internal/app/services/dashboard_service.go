package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/pkg/helpers"
)

const (
	dashboardRecentLimit = 5
	dashboardTrendDays   = 7
)

// DashboardService builds the staff overview
type DashboardService interface {
	Overview(ctx context.Context, actor models.Actor) (*dto.StaffDashboard, error)
}

type dashboardServiceImpl struct {
	studentRepo    repositories.IStudentRepository
	batchRepo      repositories.IBatchRepository
	userRepo       repositories.IUserRepository
	attendanceRepo repositories.IAttendanceRepository
	feeTxRepo      repositories.IFeeTransactionRepository
	now            Clock
	logger         zerolog.Logger
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(
	studentRepo repositories.IStudentRepository,
	batchRepo repositories.IBatchRepository,
	userRepo repositories.IUserRepository,
	attendanceRepo repositories.IAttendanceRepository,
	feeTxRepo repositories.IFeeTransactionRepository,
	logger zerolog.Logger,
) DashboardService {
	return &dashboardServiceImpl{
		studentRepo:    studentRepo,
		batchRepo:      batchRepo,
		userRepo:       userRepo,
		attendanceRepo: attendanceRepo,
		feeTxRepo:      feeTxRepo,
		now:            time.Now,
		logger:         logger,
	}
}

// Overview collects head counts, today's attendance, this month's collection,
// the latest enrollments and payments and a week of attendance.
func (s *dashboardServiceImpl) Overview(ctx context.Context, actor models.Actor) (*dto.StaffDashboard, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	today := helpers.DateOnly(s.now())
	out := &dto.StaffDashboard{Date: today}

	// head counts
	active := models.StudentActive
	_, total, err := s.studentRepo.List(ctx, models.StudentFilter{Status: &active, Limit: 1})
	if err != nil {
		return nil, err
	}
	out.ActiveStudents = total

	batches, err := s.batchRepo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	out.ActiveBatches = len(batches)
	out.Batches = make([]dto.BatchHeadcount, 0, len(batches))
	for _, b := range batches {
		out.Batches = append(out.Batches, dto.BatchHeadcount{BatchID: b.ID, BatchName: b.Name, Students: b.StudentCount})
	}

	teachers, err := s.userRepo.ListByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, err
	}
	for _, t := range teachers {
		if t.IsActive {
			out.ActiveTeachers++
		}
	}

	monthStart, _ := helpers.MonthBounds(today.Year(), today.Month())
	collected, err := s.feeTxRepo.SumBetween(ctx, monthStart, today)
	if err != nil {
		return nil, err
	}
	out.MonthCollection = helpers.Round2(collected)

	weekAgo := today.AddDate(0, 0, -dashboardTrendDays)
	out.RecentEnrollments, _, err = s.studentRepo.List(ctx, models.StudentFilter{EnrolledSince: &weekAgo, Limit: dashboardRecentLimit})
	if err != nil {
		return nil, err
	}
	out.RecentTransactions, _, err = s.feeTxRepo.List(ctx, models.TransactionFilter{Limit: dashboardRecentLimit})
	if err != nil {
		return nil, err
	}

	// oldest day first, today last
	out.AttendanceTrend = make([]dto.AttendanceDay, 0, dashboardTrendDays)
	for i := dashboardTrendDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		counts, err := s.attendanceRepo.DailyCounts(ctx, day)
		if err != nil {
			return nil, err
		}
		point := dto.AttendanceDay{Date: day}
		for _, c := range counts {
			point.Present += c.Present
			point.Total += c.Marked
		}
		out.AttendanceTrend = append(out.AttendanceTrend, point)
	}
	last := out.AttendanceTrend[len(out.AttendanceTrend)-1]
	out.TodayMarked, out.TodayPresent = last.Total, last.Present

	return out, nil
}
