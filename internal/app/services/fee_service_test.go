package services

import (
	"context"
	"testing"
	"time"

	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteMonths(t *testing.T) {
	cases := []struct {
		name     string
		enrolled time.Time
		today    time.Time
		want     int
	}{
		{"same month", date(2024, 3, 1), date(2024, 3, 31), 0},
		{"due day reached", date(2024, 1, 2), date(2024, 3, 5), 2},
		{"due day not reached", date(2024, 1, 10), date(2024, 3, 5), 1},
		{"due day on the day", date(2024, 1, 10), date(2024, 3, 10), 2},
		{"across year end", date(2023, 11, 15), date(2024, 2, 20), 3},
		{"late enrollment capped at 28", date(2024, 1, 31), date(2024, 2, 28), 1},
		{"enrolled in the future", date(2024, 5, 1), date(2024, 3, 1), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, completeMonths(tc.enrolled, tc.today))
		})
	}
}

func seedMonthlyFee(t *testing.T, f *fixture, batchID int64, amount float64) *models.FeeStructure {
	t.Helper()
	fs := &models.FeeStructure{BatchID: &batchID, Name: "Tuition", Amount: amount, Frequency: models.FrequencyMonthly, IsActive: true}
	require.NoError(t, f.structures.Create(context.Background(), fs))
	return fs
}

func pay(t *testing.T, f *fixture, studentID int64, amount float64, receipt string) {
	t.Helper()
	require.NoError(t, f.transactions.Create(context.Background(), &models.FeeTransaction{
		StudentID: studentID, ReceiptNumber: receipt, Amount: amount, PaymentDate: date(2024, 2, 1), PaymentMode: models.PaymentCash,
	}))
}

func TestPendingDuesFollowsEnrollmentMonths(t *testing.T) {
	f := newFixture(date(2024, 3, 5))
	ctx := context.Background()
	batch := f.m.addBatch("Morning", 30)
	seedMonthlyFee(t, f, batch.ID, 1000)
	st := f.m.addStudent(&batch.ID, date(2024, 1, 2))

	dues, err := f.feeService().PendingDues(ctx, adminActor, nil)
	require.NoError(t, err)
	require.Len(t, dues, 1)
	assert.Equal(t, st.ID, dues[0].Student.ID)
	assert.Equal(t, 2000.0, dues[0].Expected)
	assert.Equal(t, 2000.0, dues[0].Pending)
	assert.Equal(t, 2, dues[0].MonthsOverdue)

	pay(t, f, st.ID, 2000, "REC202402010001")
	dues, err = f.feeService().PendingDues(ctx, adminActor, nil)
	require.NoError(t, err)
	assert.Empty(t, dues)
}

func TestPendingDuesToleranceAndOrder(t *testing.T) {
	f := newFixture(date(2024, 3, 5))
	ctx := context.Background()
	batch := f.m.addBatch("Morning", 30)
	seedMonthlyFee(t, f, batch.ID, 1000)
	withinTolerance := f.m.addStudent(&batch.ID, date(2024, 1, 2))
	small := f.m.addStudent(&batch.ID, date(2024, 1, 2))
	large := f.m.addStudent(&batch.ID, date(2024, 1, 2))
	f.m.addStudent(&batch.ID, date(2024, 3, 1))
	inactive := f.m.addStudent(&batch.ID, date(2024, 1, 2))
	inactive.Status = models.StudentInactive
	f.m.addStudent(&f.m.addBatch("No fee", 30).ID, date(2024, 1, 2))

	pay(t, f, withinTolerance.ID, 1999, "REC202402010001")
	pay(t, f, small.ID, 1500, "REC202402010002")

	dues, err := f.feeService().PendingDues(ctx, teacherActor, nil)
	require.NoError(t, err)
	require.Len(t, dues, 2)
	assert.Equal(t, large.ID, dues[0].Student.ID)
	assert.Equal(t, small.ID, dues[1].Student.ID)
	assert.Equal(t, 500.0, dues[1].Pending)

	_, err = f.feeService().PendingDues(ctx, parentActor, nil)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestCollectFeeIssuesSequentialReceipts(t *testing.T) {
	f := newFixture(time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC))
	ctx := context.Background()
	svc := f.feeService()
	st := f.m.addStudent(nil, date(2024, 6, 1))

	req := &dto.CollectFeeRequest{StudentID: st.ID, Amount: 1200, PaymentMode: models.PaymentCash}
	first, err := svc.CollectFee(ctx, adminActor, req)
	require.NoError(t, err)
	second, err := svc.CollectFee(ctx, adminActor, req)
	require.NoError(t, err)

	assert.Equal(t, "REC202501010001", first.ReceiptNumber)
	assert.Equal(t, "REC202501010002", second.ReceiptNumber)
	assert.Equal(t, date(2025, 1, 1), first.PaymentDate)
	assert.Equal(t, adminActor.UserID, *first.CollectedBy)
	assert.Equal(t, []string{"REC20250101", "REC20250101"}, f.m.lockedPrefixes)

	next, err := svc.GenerateReceiptNumber(ctx, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "REC202501010003", next)
}

func TestCollectFeeKeepsModeSpecificFields(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	ctx := context.Background()
	svc := f.feeService()
	st := f.m.addStudent(nil, date(2024, 6, 1))

	cash, err := svc.CollectFee(ctx, adminActor, &dto.CollectFeeRequest{
		StudentID: st.ID, Amount: 500, PaymentMode: models.PaymentCash,
		ChequeNumber: ptr("000123"), BankName: ptr("SBI"), TransactionReference: ptr("UTR1"),
	})
	require.NoError(t, err)
	assert.Nil(t, cash.ChequeNumber)
	assert.Nil(t, cash.BankName)
	assert.Nil(t, cash.TransactionReference)

	cheque, err := svc.CollectFee(ctx, adminActor, &dto.CollectFeeRequest{
		StudentID: st.ID, Amount: 500, PaymentMode: models.PaymentCheque,
		ChequeNumber: ptr("000123"), ChequeDate: "2024-12-30", BankName: ptr("SBI"),
	})
	require.NoError(t, err)
	assert.Equal(t, "000123", *cheque.ChequeNumber)
	assert.Equal(t, date(2024, 12, 30), *cheque.ChequeDate)

	upi, err := svc.CollectFee(ctx, adminActor, &dto.CollectFeeRequest{
		StudentID: st.ID, Amount: 500, PaymentMode: models.PaymentUPI, TransactionReference: ptr("UTR1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "UTR1", *upi.TransactionReference)
}

func TestCollectFeeRejects(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	ctx := context.Background()
	svc := f.feeService()
	st := f.m.addStudent(nil, date(2024, 6, 1))

	_, err := svc.CollectFee(ctx, adminActor, &dto.CollectFeeRequest{StudentID: st.ID, Amount: 0, PaymentMode: models.PaymentCash})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CollectFee(ctx, adminActor, &dto.CollectFeeRequest{StudentID: 999, Amount: 10, PaymentMode: models.PaymentCash})
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)

	_, err = svc.CollectFee(ctx, adminActor, &dto.CollectFeeRequest{StudentID: st.ID, Amount: 10, PaymentMode: models.PaymentCash, FeeStructureID: ptr(int64(999))})
	assert.ErrorIs(t, err, apperrors.ErrFeeStructureNotFound)
	assert.Empty(t, f.m.transactions)
}

func TestFeeStatusWindow(t *testing.T) {
	today := date(2025, 3, 15)
	student := &models.Student{ID: 7, EnrollmentDate: ptr(date(2025, 3, 1))}

	fresh := feeStatus(student, nil, today, 30)
	assert.Equal(t, 16, fresh.DaysLeft)
	assert.False(t, fresh.IsOverdue)
	assert.Equal(t, date(2025, 3, 1), fresh.ReferenceDate)

	lastPaid := date(2025, 1, 10)
	late := feeStatus(student, &lastPaid, today, 30)
	assert.True(t, late.IsOverdue)
	assert.Equal(t, 34, late.OverdueDays)
	assert.Equal(t, -34, late.DaysLeft)
}

func TestStudentFeeStatusForOwner(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	own := f.m.addStudent(nil, date(2025, 3, 1))
	other := f.m.addStudent(nil, date(2025, 3, 1))
	actor := f.linkStudentLogin(own)

	status, err := f.feeService().StudentFeeStatus(context.Background(), actor, own.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, status.DaysLeft)

	_, err = f.feeService().StudentFeeStatus(context.Background(), actor, other.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestStudentFeeDetails(t *testing.T) {
	f := newFixture(date(2024, 3, 5))
	batch := f.m.addBatch("Morning", 30)
	fs := seedMonthlyFee(t, f, batch.ID, 1000)
	st := f.m.addStudent(&batch.ID, date(2024, 1, 2))
	pay(t, f, st.ID, 500, "REC202402010001")
	pay(t, f, st.ID, 250.5, "REC202402010002")

	details, err := f.feeService().StudentFeeDetails(context.Background(), adminActor, st.ID)
	require.NoError(t, err)
	assert.Equal(t, fs.ID, details.FeeStructure.ID)
	assert.Len(t, details.Transactions, 2)
	assert.Equal(t, 750.5, details.TotalPaid)
	assert.Equal(t, 2000.0, details.Expected)
	assert.Equal(t, 1249.5, details.Pending)
}

func TestCollectionReport(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	add := func(day int, amount float64, mode models.PaymentMode, receipt string) {
		require.NoError(t, f.transactions.Create(ctx, &models.FeeTransaction{
			StudentID: 1, ReceiptNumber: receipt, Amount: amount, PaymentDate: date(2025, 2, day), PaymentMode: mode,
		}))
	}
	add(3, 1000, models.PaymentUPI, "R1")
	add(3, 500, models.PaymentCash, "R2")
	add(1, 250, models.PaymentCash, "R3")
	require.NoError(t, f.transactions.Create(ctx, &models.FeeTransaction{
		StudentID: 1, ReceiptNumber: "R4", Amount: 900, PaymentDate: date(2025, 3, 1), PaymentMode: models.PaymentCash,
	}))

	report, err := f.feeService().CollectionReport(ctx, adminActor, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, 1750.0, report.Total)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, []dto.ModeTotal{
		{Mode: models.PaymentCash, Total: 750, Count: 2},
		{Mode: models.PaymentUPI, Total: 1000, Count: 1},
	}, report.ByMode)
	assert.Equal(t, []dto.DailyTotal{
		{Date: date(2025, 2, 1), Total: 250},
		{Date: date(2025, 2, 3), Total: 1500},
	}, report.Daily)

	_, err = f.feeService().CollectionReport(ctx, adminActor, 2025, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPayDueCapsAtAmount(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	svc := f.feeService()
	st := f.m.addStudent(nil, date(2025, 1, 1))

	due, err := svc.CreateDue(ctx, adminActor, &dto.CreateFeeDueRequest{StudentID: st.ID, Amount: 1000, DueDate: "2025-03-10"})
	require.NoError(t, err)
	assert.Equal(t, models.DuePending, due.Status)

	due, err = svc.PayDue(ctx, adminActor, due.ID, &dto.DuePaymentRequest{Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, models.DuePartial, due.Status)
	assert.Equal(t, 400.0, due.PaidAmount)

	due, err = svc.PayDue(ctx, adminActor, due.ID, &dto.DuePaymentRequest{Amount: 900})
	require.NoError(t, err)
	assert.Equal(t, models.DuePaid, due.Status)
	assert.Equal(t, 1000.0, f.m.dues[due.ID].PaidAmount)

	_, err = svc.PayDue(ctx, adminActor, due.ID, &dto.DuePaymentRequest{Amount: 1})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.PayDue(ctx, adminActor, 999, &dto.DuePaymentRequest{Amount: 1})
	assert.ErrorIs(t, err, apperrors.ErrFeeDueNotFound)
}

func TestDefaultersAndRefreshOverdue(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	svc := f.feeService()
	st := f.m.addStudent(nil, date(2025, 1, 1))
	newDue := func(amount float64, due time.Time, status models.FeeDueStatus) *models.FeeDue {
		d := &models.FeeDue{StudentID: st.ID, Amount: amount, DueDate: due, Status: status}
		require.NoError(t, f.dues.Create(ctx, d))
		return d
	}
	partial := newDue(300, date(2025, 3, 1), models.DuePartial)
	oldest := newDue(100, date(2025, 2, 1), models.DuePending)
	newDue(200, date(2025, 2, 15), models.DuePaid)
	newDue(400, date(2025, 3, 15), models.DuePending)

	list, err := svc.Defaulters(ctx, adminActor)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, oldest.ID, list[0].ID)
	assert.Equal(t, partial.ID, list[1].ID)

	resp, err := svc.RefreshOverdue(ctx, adminActor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Updated)
	assert.Equal(t, models.DueOverdue, f.m.dues[partial.ID].Status)

	resp, err = svc.RefreshOverdue(ctx, adminActor)
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Updated)
}

func TestDeleteStructureReferencedByPayment(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	ctx := context.Background()
	svc := f.feeService()
	batch := f.m.addBatch("Morning", 30)
	fs := seedMonthlyFee(t, f, batch.ID, 1000)
	st := f.m.addStudent(&batch.ID, date(2025, 1, 1))

	_, err := svc.CollectFee(ctx, adminActor, &dto.CollectFeeRequest{
		StudentID: st.ID, FeeStructureID: &fs.ID, Amount: 1000, PaymentMode: models.PaymentCash,
	})
	require.NoError(t, err)

	err = svc.DeleteStructure(ctx, adminActor, fs.ID)
	assert.ErrorIs(t, err, apperrors.ErrIntegrity)
	assert.Contains(t, f.m.structures, fs.ID)
}

func TestCreateStructureDefaultsToMonthly(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	fs, err := f.feeService().CreateStructure(context.Background(), teacherActor, &dto.FeeStructureRequest{Name: " Tuition ", Amount: 1500})
	require.NoError(t, err)
	assert.Equal(t, "Tuition", fs.Name)
	assert.Equal(t, models.FrequencyMonthly, fs.Frequency)
	assert.True(t, fs.IsActive)
}
