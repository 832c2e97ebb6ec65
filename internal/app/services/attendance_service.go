package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/helpers"
)

// historyStart bounds a student's attendance history when no start date is given
var historyStart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// AttendanceService records and aggregates daily attendance
type AttendanceService interface {
	MarkBatchAttendance(ctx context.Context, actor models.Actor, req *dto.MarkAttendanceRequest) (*dto.MarkAttendanceResponse, error)
	BatchAttendance(ctx context.Context, actor models.Actor, batchID int64, date string) ([]dto.BatchAttendanceRow, error)
	MonthlyReport(ctx context.Context, actor models.Actor, batchID int64, year, month int) (*dto.MonthlyAttendanceReport, error)
	StudentAttendance(ctx context.Context, actor models.Actor, studentID int64, from, to string) (*dto.StudentAttendanceResponse, error)
	DailyOverview(ctx context.Context, actor models.Actor, date string) ([]dto.BatchOverview, error)
}

type attendanceServiceImpl struct {
	attendanceRepo repositories.IAttendanceRepository
	studentRepo    repositories.IStudentRepository
	batchRepo      repositories.IBatchRepository
	tx             db.Transactor
	now            Clock
	logger         zerolog.Logger
}

// NewAttendanceService creates a new AttendanceService
func NewAttendanceService(
	attendanceRepo repositories.IAttendanceRepository,
	studentRepo repositories.IStudentRepository,
	batchRepo repositories.IBatchRepository,
	tx db.Transactor,
	logger zerolog.Logger,
) AttendanceService {
	return &attendanceServiceImpl{
		attendanceRepo: attendanceRepo,
		studentRepo:    studentRepo,
		batchRepo:      batchRepo,
		tx:             tx,
		now:            time.Now,
		logger:         logger,
	}
}

// MarkBatchAttendance upserts one record per active student of the batch.
// Students without a submitted entry are recorded ABSENT.
func (s *attendanceServiceImpl) MarkBatchAttendance(ctx context.Context, actor models.Actor, req *dto.MarkAttendanceRequest) (*dto.MarkAttendanceResponse, error) {
	if !actor.Role.CanMarkAttendance() {
		return nil, apperrors.NewForbiddenError("Only staff can mark attendance")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		return nil, err
	}

	submitted := make(map[int64]dto.AttendanceEntry, len(req.Entries))
	for _, e := range req.Entries {
		submitted[e.StudentID] = e
	}

	marked := 0
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.batchRepo.GetByID(ctx, req.BatchID); err != nil {
			return err
		}
		students, err := s.studentRepo.ListActiveByBatch(ctx, req.BatchID)
		if err != nil {
			return err
		}

		markedBy := actor.UserID
		for _, st := range students {
			record := &models.Attendance{
				StudentID: st.ID,
				Date:      date,
				Status:    models.AttendanceAbsent,
				MarkedBy:  &markedBy,
			}
			if e, ok := submitted[st.ID]; ok {
				record.Status = e.Status
				record.Remarks = helpers.NullIfEmpty(e.Remarks)
			}
			if err := s.attendanceRepo.Upsert(ctx, record); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("batchID", req.BatchID).Str("date", req.Date).Int("marked", marked).
		Int64("by", actor.UserID).Msg("Attendance marked")
	return &dto.MarkAttendanceResponse{BatchID: req.BatchID, Date: req.Date, Marked: marked}, nil
}

// BatchAttendance pairs every active student with their record for the date.
// Missing records stay nil.
func (s *attendanceServiceImpl) BatchAttendance(ctx context.Context, actor models.Actor, batchID int64, date string) ([]dto.BatchAttendanceRow, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	day, err := parseOptionalDateField("date", date, s.now())
	if err != nil {
		return nil, err
	}
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}

	students, err := s.studentRepo.ListActiveByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	records, err := s.attendanceRepo.ListByBatchAndDate(ctx, batchID, day)
	if err != nil {
		return nil, err
	}

	rows := make([]dto.BatchAttendanceRow, 0, len(students))
	for _, st := range students {
		rows = append(rows, dto.BatchAttendanceRow{Student: st, Record: records[st.ID]})
	}
	return rows, nil
}

// MonthlyReport aggregates marked and present days per active student for a calendar month
func (s *attendanceServiceImpl) MonthlyReport(ctx context.Context, actor models.Actor, batchID int64, year, month int) (*dto.MonthlyAttendanceReport, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, apperrors.NewValidationError("month", "Month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return nil, apperrors.NewValidationError("year", "Year is out of range")
	}

	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	students, err := s.studentRepo.ListActiveByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	start, next := helpers.MonthBounds(year, time.Month(month))
	tallies, err := s.attendanceRepo.MonthlyCounts(ctx, batchID, start, next.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}

	report := &dto.MonthlyAttendanceReport{
		BatchID:   batch.ID,
		BatchName: batch.Name,
		Year:      year,
		Month:     month,
		Rows:      make([]dto.MonthlyAttendanceRow, 0, len(students)),
	}
	for _, st := range students {
		tally := tallies[st.ID]
		report.Rows = append(report.Rows, dto.MonthlyAttendanceRow{
			Student:     st,
			TotalDays:   tally.Total,
			PresentDays: tally.Present,
			Percentage:  helpers.Percentage(tally.Present, tally.Total),
		})
	}
	return report, nil
}

// StudentAttendance returns a student's records, newest first, with totals.
// Students may only read their own history.
func (s *attendanceServiceImpl) StudentAttendance(ctx context.Context, actor models.Actor, studentID int64, from, to string) (*dto.StudentAttendanceResponse, error) {
	if err := requireStaffOrOwner(ctx, s.studentRepo, actor, studentID, "attendance"); err != nil {
		return nil, err
	}
	if _, err := s.studentRepo.GetByID(ctx, studentID); err != nil {
		return nil, err
	}

	start, err := parseOptionalDateField("from", from, historyStart)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDateField("to", to, s.now())
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, apperrors.NewValidationError("to", "End date cannot be before start date")
	}

	records, err := s.attendanceRepo.ListByStudent(ctx, studentID, start, end)
	if err != nil {
		return nil, err
	}
	return summarizeAttendance(studentID, records), nil
}

func summarizeAttendance(studentID int64, records []*models.Attendance) *dto.StudentAttendanceResponse {
	present := 0
	for _, r := range records {
		if r.Status.CountsAsPresent() {
			present++
		}
	}
	return &dto.StudentAttendanceResponse{
		StudentID:   studentID,
		Records:     records,
		TotalDays:   len(records),
		PresentDays: present,
		Percentage:  helpers.Percentage(present, len(records)),
	}
}

// DailyOverview summarises every active batch for one date
func (s *attendanceServiceImpl) DailyOverview(ctx context.Context, actor models.Actor, date string) ([]dto.BatchOverview, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	day, err := parseOptionalDateField("date", strings.TrimSpace(date), s.now())
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	counts, err := s.attendanceRepo.DailyCounts(ctx, day)
	if err != nil {
		return nil, err
	}

	out := make([]dto.BatchOverview, 0, len(batches))
	for _, b := range batches {
		c := counts[b.ID]
		out = append(out, dto.BatchOverview{
			BatchID:       b.ID,
			BatchName:     b.Name,
			TotalStudents: b.StudentCount,
			Marked:        c.Marked,
			Present:       c.Present,
			Absent:        c.Absent,
		})
	}
	return out, nil
}
