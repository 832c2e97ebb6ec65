package services

import (
	"context"
	"testing"

	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkBatchAttendanceDefaultsToAbsent(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	batch := f.m.addBatch("Morning", 30)
	present := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	missing := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	dropped := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	dropped.Status = models.StudentDropped

	resp, err := f.attendanceService().MarkBatchAttendance(ctx, teacherActor, &dto.MarkAttendanceRequest{
		BatchID: batch.ID,
		Date:    "2025-03-14",
		Entries: []dto.AttendanceEntry{{StudentID: present.ID, Status: models.AttendancePresent}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Marked)

	day := date(2025, 3, 14)
	require.Contains(t, f.m.attendance, attendanceKey(present.ID, day))
	assert.Equal(t, models.AttendancePresent, f.m.attendance[attendanceKey(present.ID, day)].Status)
	assert.Equal(t, models.AttendanceAbsent, f.m.attendance[attendanceKey(missing.ID, day)].Status)
	assert.Equal(t, teacherActor.UserID, *f.m.attendance[attendanceKey(missing.ID, day)].MarkedBy)
	assert.NotContains(t, f.m.attendance, attendanceKey(dropped.ID, day))
}

func TestMarkBatchAttendanceOverwritesSameDay(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	svc := f.attendanceService()
	batch := f.m.addBatch("Morning", 30)
	st := f.m.addStudent(&batch.ID, date(2025, 1, 1))

	req := &dto.MarkAttendanceRequest{BatchID: batch.ID, Date: "2025-03-14"}
	_, err := svc.MarkBatchAttendance(ctx, teacherActor, req)
	require.NoError(t, err)

	req.Entries = []dto.AttendanceEntry{{StudentID: st.ID, Status: models.AttendanceLate}}
	_, err = svc.MarkBatchAttendance(ctx, teacherActor, req)
	require.NoError(t, err)

	assert.Len(t, f.m.attendance, 1)
	assert.Equal(t, models.AttendanceLate, f.m.attendance[attendanceKey(st.ID, date(2025, 3, 14))].Status)
}

func TestMarkBatchAttendanceRejects(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	svc := f.attendanceService()
	batch := f.m.addBatch("Morning", 30)

	_, err := svc.MarkBatchAttendance(ctx, parentActor, &dto.MarkAttendanceRequest{BatchID: batch.ID, Date: "2025-03-14"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = svc.MarkBatchAttendance(ctx, teacherActor, &dto.MarkAttendanceRequest{BatchID: batch.ID, Date: "14-03-2025"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.MarkBatchAttendance(ctx, teacherActor, &dto.MarkAttendanceRequest{BatchID: 999, Date: "2025-03-14"})
	assert.ErrorIs(t, err, apperrors.ErrBatchNotFound)
	assert.Empty(t, f.m.attendance)
}

func TestMonthlyReportPercentages(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	batch := f.m.addBatch("Morning", 30)
	regular := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	unmarked := f.m.addStudent(&batch.ID, date(2025, 1, 1))

	for day, status := range map[int]models.AttendanceStatus{
		3: models.AttendancePresent,
		4: models.AttendanceLate,
		5: models.AttendanceAbsent,
	} {
		require.NoError(t, f.attendance.Upsert(ctx, &models.Attendance{StudentID: regular.ID, Date: date(2025, 2, day), Status: status}))
	}
	// outside the month
	require.NoError(t, f.attendance.Upsert(ctx, &models.Attendance{StudentID: regular.ID, Date: date(2025, 3, 1), Status: models.AttendanceAbsent}))

	report, err := f.attendanceService().MonthlyReport(ctx, teacherActor, batch.ID, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, "Morning", report.BatchName)
	require.Len(t, report.Rows, 2)

	assert.Equal(t, regular.ID, report.Rows[0].Student.ID)
	assert.Equal(t, 3, report.Rows[0].TotalDays)
	assert.Equal(t, 2, report.Rows[0].PresentDays)
	assert.Equal(t, 66.67, report.Rows[0].Percentage)

	assert.Equal(t, unmarked.ID, report.Rows[1].Student.ID)
	assert.Equal(t, 0, report.Rows[1].TotalDays)
	assert.Equal(t, 0.0, report.Rows[1].Percentage)

	_, err = f.attendanceService().MonthlyReport(ctx, teacherActor, batch.ID, 2025, 13)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "month", apperrors.Field(err))
}

func TestStudentAttendanceOwnHistoryOnly(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	svc := f.attendanceService()
	batch := f.m.addBatch("Morning", 30)
	own := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	other := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	actor := f.linkStudentLogin(own)

	require.NoError(t, f.attendance.Upsert(ctx, &models.Attendance{StudentID: own.ID, Date: date(2025, 3, 10), Status: models.AttendancePresent}))
	require.NoError(t, f.attendance.Upsert(ctx, &models.Attendance{StudentID: own.ID, Date: date(2025, 3, 12), Status: models.AttendanceExcused}))

	resp, err := svc.StudentAttendance(ctx, actor, own.ID, "", "")
	require.NoError(t, err)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, date(2025, 3, 12), resp.Records[0].Date)
	assert.Equal(t, 1, resp.PresentDays)
	assert.Equal(t, 50.0, resp.Percentage)

	_, err = svc.StudentAttendance(ctx, actor, other.ID, "", "")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = svc.StudentAttendance(ctx, teacherActor, own.ID, "2025-03-12", "2025-03-01")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "to", apperrors.Field(err))
}

func TestDailyOverview(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	batch := f.m.addBatch("Morning", 30)
	a := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	b := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	f.m.addStudent(&batch.ID, date(2025, 1, 1))
	empty := f.m.addBatch("Evening", 30)

	require.NoError(t, f.attendance.Upsert(ctx, &models.Attendance{StudentID: a.ID, Date: date(2025, 3, 15), Status: models.AttendancePresent}))
	require.NoError(t, f.attendance.Upsert(ctx, &models.Attendance{StudentID: b.ID, Date: date(2025, 3, 15), Status: models.AttendanceAbsent}))

	overview, err := f.attendanceService().DailyOverview(ctx, adminActor, "")
	require.NoError(t, err)
	require.Len(t, overview, 2)
	assert.Equal(t, dto.BatchOverview{BatchID: batch.ID, BatchName: "Morning", TotalStudents: 3, Marked: 2, Present: 1, Absent: 1}, overview[0])
	assert.Equal(t, dto.BatchOverview{BatchID: empty.ID, BatchName: "Evening"}, overview[1])
}
