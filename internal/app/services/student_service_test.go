package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStudentRequest(first, phone string, batchID *int64) *dto.CreateStudentRequest {
	req := &dto.CreateStudentRequest{FirstName: first, LastName: "Kumar", BatchID: batchID}
	if phone != "" {
		req.Phone = ptr(phone)
	}
	return req
}

func TestCreateStudentAssignsSequentialCodes(t *testing.T) {
	f := newFixture(time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))
	svc := f.studentService()
	ctx := context.Background()

	first, err := svc.CreateStudent(ctx, teacherActor, newStudentRequest("Asha", "", nil))
	require.NoError(t, err)
	second, err := svc.CreateStudent(ctx, teacherActor, newStudentRequest("Ravi", "", nil))
	require.NoError(t, err)

	assert.Equal(t, "SGA20250001", first.Student.Code)
	assert.Equal(t, "SGA20250002", second.Student.Code)
	assert.Equal(t, []string{"SGA2025", "SGA2025"}, f.m.lockedPrefixes)
	assert.Equal(t, date(2025, 3, 15), *first.Student.EnrollmentDate)
	assert.Equal(t, models.StudentActive, first.Student.Status)
	assert.Nil(t, first.Credentials)
}

func TestGenerateStudentIDContinuesYearSequence(t *testing.T) {
	f := newFixture(time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))
	old := f.m.addStudent(nil, date(2024, 5, 1))
	old.Code = "SGA20240031"
	current := f.m.addStudent(nil, date(2025, 1, 9))
	current.Code = "SGA20250007"

	code, err := f.studentService().GenerateStudentID(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Equal(t, "SGA20250008", code)
}

func TestCreateStudentWithLogin(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.studentService()
	ctx := context.Background()

	req := newStudentRequest("Asha Rani", "98765-43210", nil)
	req.CreateLogin = true
	resp, err := svc.CreateStudent(ctx, adminActor, req)
	require.NoError(t, err)

	require.NotNil(t, resp.Credentials)
	assert.Equal(t, "asharani10@sga", resp.Credentials.Username)
	assert.Equal(t, "asharani@43210", resp.Credentials.Password)

	require.NotNil(t, resp.Student.UserID)
	user := f.m.users[*resp.Student.UserID]
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "asharani10@sga", user.Username)
	assert.Equal(t, "asharani10@sga", user.Email)
	assert.Equal(t, "hashed:asharani@43210", user.PasswordHash)

	// a namesake with the same phone falls back to three digits, a third collides
	again, err := svc.CreateStudent(ctx, adminActor, req)
	require.NoError(t, err)
	assert.Equal(t, "asharani210@sga", again.Credentials.Username)

	_, err = svc.CreateStudent(ctx, adminActor, req)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCreateStudentLoginNeedsPhoneDigits(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	req := newStudentRequest("Asha", "12-34", nil)
	req.CreateLogin = true

	_, err := f.studentService().CreateStudent(context.Background(), adminActor, req)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "phone", apperrors.Field(err))
}

func TestCreateStudentIntoFullBatch(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	batch := f.m.addBatch("Tiny", 1)
	f.m.addStudent(&batch.ID, date(2025, 1, 1))
	before := len(f.m.students)

	_, err := f.studentService().CreateStudent(context.Background(), adminActor, newStudentRequest("Asha", "", &batch.ID))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "batchId", apperrors.Field(err))
	assert.Len(t, f.m.students, before)
}

func TestCreateStudentUnknownBatch(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	_, err := f.studentService().CreateStudent(context.Background(), adminActor, newStudentRequest("Asha", "", ptr(int64(404))))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateStudentRequiresStaff(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	_, err := f.studentService().CreateStudent(context.Background(), parentActor, newStudentRequest("Asha", "", nil))
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestSetStatusReactivationTakesSeat(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.studentService()
	batch := f.m.addBatch("Tiny", 1)
	f.m.addStudent(&batch.ID, date(2025, 1, 1))
	dropped := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	dropped.Status = models.StudentDropped

	_, err := svc.SetStatus(context.Background(), adminActor, dropped.ID, models.StudentActive)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, models.StudentDropped, f.m.students[dropped.ID].Status)

	_, err = svc.SetStatus(context.Background(), adminActor, dropped.ID, "EXPELLED")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMoveStudentsCountsOnlyIncomingActiveStudents(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.studentService()
	from := f.m.addBatch("From", 10)
	to := f.m.addBatch("To", 2)
	already := f.m.addStudent(&to.ID, date(2025, 1, 1))
	a := f.m.addStudent(&from.ID, date(2025, 1, 1))
	b := f.m.addStudent(&from.ID, date(2025, 1, 1))

	res, err := svc.MoveStudents(context.Background(), adminActor, &dto.BulkMoveRequest{
		StudentIDs: []int64{already.ID, a.ID}, BatchID: to.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	assert.Equal(t, to.ID, *f.m.students[a.ID].BatchID)

	_, err = svc.MoveStudents(context.Background(), adminActor, &dto.BulkMoveRequest{
		StudentIDs: []int64{b.ID}, BatchID: to.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, from.ID, *f.m.students[b.ID].BatchID)
}

func TestDeleteStudentCascadesInDependencyOrder(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	svc := f.studentService()

	batch := f.m.addBatch("Morning", 30)
	st := f.m.addStudent(&batch.ID, date(2025, 1, 1))
	actor := f.linkStudentLogin(st)
	require.NoError(t, f.attendance.Upsert(ctx, &models.Attendance{StudentID: st.ID, Date: date(2025, 3, 1), Status: models.AttendancePresent}))
	require.NoError(t, f.transactions.Create(ctx, &models.FeeTransaction{StudentID: st.ID, ReceiptNumber: "REC202503010001", Amount: 500}))
	require.NoError(t, f.dues.Create(ctx, &models.FeeDue{StudentID: st.ID, Amount: 500, Status: models.DuePending}))

	require.NoError(t, svc.DeleteStudent(ctx, adminActor, st.ID))

	assert.Equal(t, []string{
		fmt.Sprintf("attendance:%d", st.ID),
		fmt.Sprintf("dues:%d", st.ID),
		fmt.Sprintf("transactions:%d", st.ID),
		fmt.Sprintf("student:%d", st.ID),
		fmt.Sprintf("tokens:%d", actor.UserID),
		fmt.Sprintf("user:%d", actor.UserID),
	}, f.m.deletions)
	assert.Empty(t, f.m.attendance)
	assert.Empty(t, f.m.transactions)
	assert.Empty(t, f.m.dues)
	assert.NotContains(t, f.m.users, actor.UserID)
}

func TestDeleteStudentsStopsAtMissingStudent(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	st := f.m.addStudent(nil, date(2025, 1, 1))

	_, err := f.studentService().DeleteStudents(context.Background(), adminActor, &dto.BulkDeleteRequest{
		StudentIDs: []int64{st.ID, 999},
	})
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
	assert.Equal(t, 1, f.tx.calls)
}

func TestBulkRequestsRejectRepeatedIDs(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	svc := f.studentService()
	batch := f.m.addBatch("Morning", 30)
	st := f.m.addStudent(nil, date(2025, 1, 1))

	_, err := svc.DeleteStudents(ctx, adminActor, &dto.BulkDeleteRequest{StudentIDs: []int64{st.ID, st.ID}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "studentIds", apperrors.Field(err))
	assert.Contains(t, f.m.students, st.ID)

	_, err = svc.MoveStudents(ctx, adminActor, &dto.BulkMoveRequest{StudentIDs: []int64{st.ID, st.ID}, BatchID: batch.ID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Nil(t, f.m.students[st.ID].BatchID)
	assert.Zero(t, f.tx.calls)
}

func TestCreateLoginForExistingStudent(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.studentService()
	st := f.m.addStudent(nil, date(2025, 1, 1))
	st.FirstName = "Zoya"
	st.Phone = ptr("+91 99887 76655")

	creds, err := svc.CreateLogin(context.Background(), adminActor, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "zoya55@sga", creds.Username)
	assert.Equal(t, "zoya@76655", creds.Password)
	require.NotNil(t, f.m.students[st.ID].UserID)

	_, err = svc.CreateLogin(context.Background(), adminActor, st.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
