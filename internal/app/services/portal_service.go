package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/helpers"
)

const (
	portalRecentAttendance = 7
	portalAnnouncements    = 10
)

// PortalService serves a student their own records
type PortalService interface {
	Dashboard(ctx context.Context, actor models.Actor) (*dto.PortalDashboard, error)
	Profile(ctx context.Context, actor models.Actor) (*models.Student, error)
	UpdateProfile(ctx context.Context, actor models.Actor, req *dto.StudentProfile) (*models.Student, error)
	Attendance(ctx context.Context, actor models.Actor) (*dto.StudentAttendanceResponse, error)
	Fees(ctx context.Context, actor models.Actor) (*dto.PortalFeesResponse, error)
	Announcements(ctx context.Context, actor models.Actor) ([]*models.Announcement, error)
}

type portalServiceImpl struct {
	studentRepo    repositories.IStudentRepository
	attendanceRepo repositories.IAttendanceRepository
	feeTxRepo      repositories.IFeeTransactionRepository
	announcements  AnnouncementService
	settings       SchoolSettings
	now            Clock
	logger         zerolog.Logger
}

// NewPortalService creates a new PortalService
func NewPortalService(
	studentRepo repositories.IStudentRepository,
	attendanceRepo repositories.IAttendanceRepository,
	feeTxRepo repositories.IFeeTransactionRepository,
	announcements AnnouncementService,
	settings SchoolSettings,
	logger zerolog.Logger,
) PortalService {
	return &portalServiceImpl{
		studentRepo:    studentRepo,
		attendanceRepo: attendanceRepo,
		feeTxRepo:      feeTxRepo,
		announcements:  announcements,
		settings:       settings,
		now:            time.Now,
		logger:         logger,
	}
}

// self resolves the student record linked to the calling account
func (s *portalServiceImpl) self(ctx context.Context, actor models.Actor) (*models.Student, error) {
	if !actor.Role.IsStudent() {
		return nil, apperrors.NewForbiddenError("The student portal is for student accounts")
	}
	student, err := s.studentRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Wrap(apperrors.ErrStudentNotFound, "No student record is linked to this account")
		}
		return nil, err
	}
	return student, nil
}

// Dashboard combines this month's attendance, the latest records and the announcement feed
func (s *portalServiceImpl) Dashboard(ctx context.Context, actor models.Actor) (*dto.PortalDashboard, error) {
	student, err := s.self(ctx, actor)
	if err != nil {
		return nil, err
	}
	today := helpers.DateOnly(s.now())
	monthStart, _ := helpers.MonthBounds(today.Year(), today.Month())

	month, err := s.attendanceRepo.ListByStudent(ctx, student.ID, monthStart, today)
	if err != nil {
		return nil, err
	}
	summary := summarizeAttendance(student.ID, month)

	history, err := s.attendanceRepo.ListByStudent(ctx, student.ID, historyStart, today)
	if err != nil {
		return nil, err
	}
	if len(history) > portalRecentAttendance {
		history = history[:portalRecentAttendance]
	}

	feed, err := s.announcements.VisibleToStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	if len(feed) > portalAnnouncements {
		feed = feed[:portalAnnouncements]
	}

	return &dto.PortalDashboard{
		Student:          student,
		MonthTotalDays:   summary.TotalDays,
		MonthPresentDays: summary.PresentDays,
		MonthPercentage:  summary.Percentage,
		RecentAttendance: history,
		Announcements:    feed,
	}, nil
}

func (s *portalServiceImpl) Profile(ctx context.Context, actor models.Actor) (*models.Student, error) {
	return s.self(ctx, actor)
}

// UpdateProfile lets a student edit personal, address, parent and school details.
// Email and phone stay as the school recorded them.
func (s *portalServiceImpl) UpdateProfile(ctx context.Context, actor models.Actor, req *dto.StudentProfile) (*models.Student, error) {
	student, err := s.self(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	email, phone := student.Email, student.Phone
	if err := applyProfile(student, req); err != nil {
		return nil, err
	}
	student.Email, student.Phone = email, phone

	if err := s.studentRepo.Update(ctx, student); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("studentID", student.ID).Msg("Student updated own profile")
	return student, nil
}

// Attendance returns the student's full history with percentage
func (s *portalServiceImpl) Attendance(ctx context.Context, actor models.Actor) (*dto.StudentAttendanceResponse, error) {
	student, err := s.self(ctx, actor)
	if err != nil {
		return nil, err
	}
	records, err := s.attendanceRepo.ListByStudent(ctx, student.ID, historyStart, helpers.DateOnly(s.now()))
	if err != nil {
		return nil, err
	}
	return summarizeAttendance(student.ID, records), nil
}

// Fees returns the student's payments, total paid and payment window status
func (s *portalServiceImpl) Fees(ctx context.Context, actor models.Actor) (*dto.PortalFeesResponse, error) {
	student, err := s.self(ctx, actor)
	if err != nil {
		return nil, err
	}
	transactions, err := s.feeTxRepo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	resp := &dto.PortalFeesResponse{Transactions: transactions}
	var last *time.Time
	for _, t := range transactions {
		resp.TotalPaid += t.Amount
		if last == nil || t.PaymentDate.After(*last) {
			d := t.PaymentDate
			last = &d
		}
	}
	resp.TotalPaid = helpers.Round2(resp.TotalPaid)
	resp.Status = feeStatus(student, last, helpers.DateOnly(s.now()), s.settings.FeeWindowDays)
	return resp, nil
}

// Announcements returns the student's announcement feed
func (s *portalServiceImpl) Announcements(ctx context.Context, actor models.Actor) ([]*models.Announcement, error) {
	student, err := s.self(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.announcements.VisibleToStudent(ctx, student)
}
