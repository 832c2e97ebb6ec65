package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/helpers"
	"github.com/sga/schoolhub/internal/pkg/sequence"
)

// maxDueDay keeps monthly due days valid in February
const maxDueDay = 28

// FeeService covers fee structures, payments, derived pending dues and the explicit due schedule
type FeeService interface {
	CreateStructure(ctx context.Context, actor models.Actor, req *dto.FeeStructureRequest) (*models.FeeStructure, error)
	GetStructure(ctx context.Context, actor models.Actor, id int64) (*models.FeeStructure, error)
	ListStructures(ctx context.Context, actor models.Actor, batchID *int64, activeOnly bool) ([]*models.FeeStructure, error)
	UpdateStructure(ctx context.Context, actor models.Actor, id int64, req *dto.FeeStructureRequest) (*models.FeeStructure, error)
	DeleteStructure(ctx context.Context, actor models.Actor, id int64) error

	CollectFee(ctx context.Context, actor models.Actor, req *dto.CollectFeeRequest) (*models.FeeTransaction, error)
	GetTransaction(ctx context.Context, actor models.Actor, id int64) (*models.FeeTransaction, error)
	ListTransactions(ctx context.Context, actor models.Actor, filter models.TransactionFilter, page, size int) (*dto.TransactionListResponse, error)
	GenerateReceiptNumber(ctx context.Context, actor models.Actor) (string, error)

	PendingDues(ctx context.Context, actor models.Actor, batchID *int64) ([]models.PendingDue, error)
	StudentFeeStatus(ctx context.Context, actor models.Actor, studentID int64) (*dto.FeeStatusResponse, error)
	StudentFeeDetails(ctx context.Context, actor models.Actor, studentID int64) (*dto.StudentFeeDetails, error)
	CollectionReport(ctx context.Context, actor models.Actor, year, month int) (*dto.CollectionReport, error)
	Summary(ctx context.Context, actor models.Actor) (*dto.FeeSummary, error)

	CreateDue(ctx context.Context, actor models.Actor, req *dto.CreateFeeDueRequest) (*models.FeeDue, error)
	PayDue(ctx context.Context, actor models.Actor, id int64, req *dto.DuePaymentRequest) (*models.FeeDue, error)
	StudentDues(ctx context.Context, actor models.Actor, studentID int64) ([]*models.FeeDue, error)
	Defaulters(ctx context.Context, actor models.Actor) ([]*models.FeeDue, error)
	RefreshOverdue(ctx context.Context, actor models.Actor) (*dto.RefreshOverdueResponse, error)
}

type feeServiceImpl struct {
	structureRepo repositories.IFeeStructureRepository
	txRepo        repositories.IFeeTransactionRepository
	dueRepo       repositories.IFeeDueRepository
	studentRepo   repositories.IStudentRepository
	sequenceRepo  repositories.ISequenceRepository
	tx            db.Transactor
	settings      SchoolSettings
	now           Clock
	logger        zerolog.Logger
}

// NewFeeService creates a new FeeService
func NewFeeService(
	structureRepo repositories.IFeeStructureRepository,
	txRepo repositories.IFeeTransactionRepository,
	dueRepo repositories.IFeeDueRepository,
	studentRepo repositories.IStudentRepository,
	sequenceRepo repositories.ISequenceRepository,
	tx db.Transactor,
	settings SchoolSettings,
	logger zerolog.Logger,
) FeeService {
	return &feeServiceImpl{
		structureRepo: structureRepo,
		txRepo:        txRepo,
		dueRepo:       dueRepo,
		studentRepo:   studentRepo,
		sequenceRepo:  sequenceRepo,
		tx:            tx,
		settings:      settings,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *feeServiceImpl) today() time.Time {
	return helpers.DateOnly(s.now())
}

func requireFeeStaff(actor models.Actor) error {
	if !actor.Role.CanManageFees() {
		return apperrors.NewForbiddenError("Only staff can manage fees")
	}
	return nil
}

// --- Fee structures ---

func applyStructureRequest(fs *models.FeeStructure, req *dto.FeeStructureRequest) {
	fs.BatchID = req.BatchID
	fs.Name = strings.TrimSpace(req.Name)
	fs.Amount = req.Amount
	fs.Frequency = req.Frequency
	if fs.Frequency == "" {
		fs.Frequency = models.FrequencyMonthly
	}
	fs.Description = helpers.NullIfEmpty(req.Description)
	if req.IsActive != nil {
		fs.IsActive = *req.IsActive
	}
}

// CreateStructure defines a new charge. Frequency defaults to MONTHLY.
func (s *feeServiceImpl) CreateStructure(ctx context.Context, actor models.Actor, req *dto.FeeStructureRequest) (*models.FeeStructure, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	fs := &models.FeeStructure{IsActive: true}
	applyStructureRequest(fs, req)
	if err := s.structureRepo.Create(ctx, fs); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("feeStructureID", fs.ID).Float64("amount", fs.Amount).Msg("Fee structure created")
	return fs, nil
}

func (s *feeServiceImpl) GetStructure(ctx context.Context, actor models.Actor, id int64) (*models.FeeStructure, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	return s.structureRepo.GetByID(ctx, id)
}

func (s *feeServiceImpl) ListStructures(ctx context.Context, actor models.Actor, batchID *int64, activeOnly bool) ([]*models.FeeStructure, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	return s.structureRepo.List(ctx, batchID, activeOnly)
}

func (s *feeServiceImpl) UpdateStructure(ctx context.Context, actor models.Actor, id int64, req *dto.FeeStructureRequest) (*models.FeeStructure, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	fs, err := s.structureRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyStructureRequest(fs, req)
	if err := s.structureRepo.Update(ctx, fs); err != nil {
		return nil, err
	}
	return fs, nil
}

// DeleteStructure fails with an integrity error while payments reference the structure
func (s *feeServiceImpl) DeleteStructure(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireFeeStaff(actor); err != nil {
		return err
	}
	if err := s.structureRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("feeStructureID", id).Msg("Fee structure deleted")
	return nil
}

// --- Payments ---

// nextReceiptNumber must run inside a transaction
func (s *feeServiceImpl) nextReceiptNumber(ctx context.Context) (string, error) {
	prefix := sequence.ReceiptPrefix(s.settings.ReceiptPrefix, s.now())
	if err := s.sequenceRepo.LockPrefix(ctx, prefix); err != nil {
		return "", err
	}
	last, err := s.txRepo.LatestReceiptWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return sequence.Next(prefix, last, sequence.SuffixWidth)
}

// GenerateReceiptNumber returns the receipt number the next payment would receive
func (s *feeServiceImpl) GenerateReceiptNumber(ctx context.Context, actor models.Actor) (string, error) {
	if err := requireFeeStaff(actor); err != nil {
		return "", err
	}
	var receipt string
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		receipt, err = s.nextReceiptNumber(ctx)
		return err
	})
	return receipt, err
}

// CollectFee records a payment under the next receipt number of the day.
// The per-prefix lock is held until the insert commits.
func (s *feeServiceImpl) CollectFee(ctx context.Context, actor models.Actor, req *dto.CollectFeeRequest) (*models.FeeTransaction, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	paid, err := parseOptionalDateField("paymentDate", req.PaymentDate, s.now())
	if err != nil {
		return nil, err
	}
	collector := actor.UserID
	t := &models.FeeTransaction{
		StudentID:      req.StudentID,
		FeeStructureID: req.FeeStructureID,
		Amount:         req.Amount,
		PaymentDate:    paid,
		PaymentMode:    req.PaymentMode,
		Description:    helpers.NullIfEmpty(req.Description),
		MonthFor:       helpers.NullIfEmpty(req.MonthFor),
		Discount:       req.Discount,
		Fine:           req.Fine,
		CollectedBy:    &collector,
	}
	// cheque and reference details only apply to their own modes
	if req.PaymentMode == models.PaymentCheque {
		chequeDate, err := parseDatePtrField("chequeDate", req.ChequeDate)
		if err != nil {
			return nil, err
		}
		t.ChequeNumber = helpers.NullIfEmpty(req.ChequeNumber)
		t.ChequeDate = chequeDate
		t.BankName = helpers.NullIfEmpty(req.BankName)
	}
	if req.PaymentMode.TakesReference() {
		t.TransactionReference = helpers.NullIfEmpty(req.TransactionReference)
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// student and fee structure must still exist at commit
		if _, err := s.studentRepo.GetByID(ctx, req.StudentID); err != nil {
			return err
		}
		if req.FeeStructureID != nil {
			if _, err := s.structureRepo.GetByID(ctx, *req.FeeStructureID); err != nil {
				return err
			}
		}
		receipt, err := s.nextReceiptNumber(ctx)
		if err != nil {
			return err
		}
		t.ReceiptNumber = receipt
		return s.txRepo.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("receipt", t.ReceiptNumber).Int64("studentID", t.StudentID).
		Float64("amount", t.Amount).Str("mode", string(t.PaymentMode)).Msg("Fee collected")
	return t, nil
}

// GetTransaction returns a receipt. Students may read their own.
func (s *feeServiceImpl) GetTransaction(ctx context.Context, actor models.Actor, id int64) (*models.FeeTransaction, error) {
	t, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStaffOrOwner(ctx, s.studentRepo, actor, t.StudentID, "receipts"); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions returns one page of payments, newest first, with the page sum
func (s *feeServiceImpl) ListTransactions(ctx context.Context, actor models.Actor, filter models.TransactionFilter, page, size int) (*dto.TransactionListResponse, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	if filter.PaymentMode != nil && !filter.PaymentMode.Valid() {
		return nil, apperrors.NewValidationError("paymentMode", "Unknown payment mode")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperrors.NewValidationError("to", "End date cannot be before start date")
	}
	filter.Offset, filter.Limit = helpers.CalculateOffsetLimit(page, size)

	list, total, err := s.txRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	pageTotal := 0.0
	for _, t := range list {
		pageTotal += t.Amount
	}
	return &dto.TransactionListResponse{
		Transactions: list,
		PageTotal:    helpers.Round2(pageTotal),
		Pagination:   helpers.NewPaginationInfo(total, page, size),
	}, nil
}

// --- Derived dues ---

// completeMonths counts the whole billing months between enrollment and today.
// A month completes on the enrollment day of month, capped at 28.
func completeMonths(enrolled, today time.Time) int {
	total := (today.Year()-enrolled.Year())*12 + int(today.Month()-enrolled.Month())
	if total <= 0 {
		return 0
	}
	dueDay := enrolled.Day()
	if dueDay > maxDueDay {
		dueDay = maxDueDay
	}
	if today.Day() >= dueDay {
		return total
	}
	return total - 1
}

// derivePendingDue computes what a student owes from elapsed months and all-time payments.
// ok is false when the student is not behind by more than tolerance.
func derivePendingDue(student *models.Student, monthlyFee, paid float64, today time.Time, tolerance float64) (models.PendingDue, bool) {
	months := completeMonths(helpers.DateOnly(student.EffectiveEnrollmentDate()), today)
	expected := monthlyFee * float64(months)
	due := models.PendingDue{
		Student:       student,
		MonthlyFee:    monthlyFee,
		Expected:      helpers.Round2(expected),
		Paid:          helpers.Round2(paid),
		Pending:       helpers.Round2(expected - paid),
		MonthsOverdue: months,
	}
	return due, months > 0 && expected-paid > tolerance
}

// PendingDues lists active students who are behind on their batch's first active
// fee structure, highest pending amount first.
func (s *feeServiceImpl) PendingDues(ctx context.Context, actor models.Actor, batchID *int64) ([]models.PendingDue, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}

	students, err := s.studentRepo.ListActiveWithBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	structures, err := s.structureRepo.FirstActiveByBatch(ctx)
	if err != nil {
		return nil, err
	}

	// one query for everything paid so far
	ids := make([]int64, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	paid, err := s.txRepo.TotalPaidByStudents(ctx, ids)
	if err != nil {
		return nil, err
	}

	today := s.today()
	out := make([]models.PendingDue, 0)
	for _, st := range students {
		fs, ok := structures[*st.BatchID]
		if !ok {
			// batch has no active fee structure
			continue
		}
		if due, behind := derivePendingDue(st, fs.Amount, paid[st.ID], today, s.settings.PendingTolerance); behind {
			out = append(out, due)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pending > out[j].Pending })

	s.logger.Debug().Int("students", len(students)).Int("pending", len(out)).Msg("Computed pending dues")
	return out, nil
}

// StudentFeeStatus reports days left in the payment window counted from the
// last payment, or from enrollment when nothing was paid yet.
func (s *feeServiceImpl) StudentFeeStatus(ctx context.Context, actor models.Actor, studentID int64) (*dto.FeeStatusResponse, error) {
	if err := requireStaffOrOwner(ctx, s.studentRepo, actor, studentID, "fees"); err != nil {
		return nil, err
	}
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	last, err := s.txRepo.LastPaymentDate(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return feeStatus(student, last, s.today(), s.settings.FeeWindowDays), nil
}

func feeStatus(student *models.Student, lastPayment *time.Time, today time.Time, window int) *dto.FeeStatusResponse {
	ref := student.EffectiveEnrollmentDate()
	if lastPayment != nil {
		ref = *lastPayment
	}
	ref = helpers.DateOnly(ref)
	daysLeft := window - helpers.DaysBetween(ref, today)

	status := &dto.FeeStatusResponse{
		StudentID:       student.ID,
		LastPaymentDate: lastPayment,
		ReferenceDate:   ref,
		DaysLeft:        daysLeft,
	}
	if daysLeft < 0 {
		status.IsOverdue = true
		status.OverdueDays = -daysLeft
	}
	return status
}

// StudentFeeDetails returns the batch structure, payments and derived pending amount of a student
func (s *feeServiceImpl) StudentFeeDetails(ctx context.Context, actor models.Actor, studentID int64) (*dto.StudentFeeDetails, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.txRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	details := &dto.StudentFeeDetails{Student: student, Transactions: transactions}
	for _, t := range transactions {
		details.TotalPaid += t.Amount
	}
	details.TotalPaid = helpers.Round2(details.TotalPaid)

	if student.BatchID == nil {
		return details, nil
	}
	fs, err := s.structureRepo.FirstActiveForBatch(ctx, *student.BatchID)
	if err != nil {
		return nil, err
	}
	if fs == nil {
		return details, nil
	}
	details.FeeStructure = fs
	due, _ := derivePendingDue(student, fs.Amount, details.TotalPaid, s.today(), s.settings.PendingTolerance)
	details.Expected = due.Expected
	if due.Pending > 0 {
		details.Pending = due.Pending
	}
	return details, nil
}

// CollectionReport aggregates a calendar month of payments by mode and by day
func (s *feeServiceImpl) CollectionReport(ctx context.Context, actor models.Actor, year, month int) (*dto.CollectionReport, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, apperrors.NewValidationError("month", "Month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return nil, apperrors.NewValidationError("year", "Year is out of range")
	}

	start, next := helpers.MonthBounds(year, time.Month(month))
	list, err := s.txRepo.ListBetween(ctx, start, next.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	return buildCollectionReport(year, month, list), nil
}

func buildCollectionReport(year, month int, list []*models.FeeTransaction) *dto.CollectionReport {
	report := &dto.CollectionReport{
		Year:         year,
		Month:        month,
		Count:        len(list),
		ByMode:       make([]dto.ModeTotal, 0),
		Daily:        make([]dto.DailyTotal, 0),
		Transactions: list,
	}

	byMode := make(map[models.PaymentMode]*dto.ModeTotal)
	byDay := make(map[time.Time]float64)
	for _, t := range list {
		report.Total += t.Amount
		m, ok := byMode[t.PaymentMode]
		if !ok {
			m = &dto.ModeTotal{Mode: t.PaymentMode}
			byMode[t.PaymentMode] = m
		}
		m.Total += t.Amount
		m.Count++
		byDay[helpers.DateOnly(t.PaymentDate)] += t.Amount
	}
	report.Total = helpers.Round2(report.Total)

	for _, mode := range models.PaymentModes {
		if m, ok := byMode[mode]; ok {
			m.Total = helpers.Round2(m.Total)
			report.ByMode = append(report.ByMode, *m)
		}
	}
	for day, total := range byDay {
		report.Daily = append(report.Daily, dto.DailyTotal{Date: day, Total: helpers.Round2(total)})
	}
	sort.Slice(report.Daily, func(i, j int) bool { return report.Daily[i].Date.Before(report.Daily[j].Date) })
	return report
}

// Summary is the fee dashboard: today's and month-to-date collection and the open explicit dues
func (s *feeServiceImpl) Summary(ctx context.Context, actor models.Actor) (*dto.FeeSummary, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	today := s.today()
	monthStart, _ := helpers.MonthBounds(today.Year(), today.Month())

	todayTotal, err := s.txRepo.SumBetween(ctx, today, today)
	if err != nil {
		return nil, err
	}
	monthTotal, err := s.txRepo.SumBetween(ctx, monthStart, today)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.dueRepo.OutstandingTotal(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.FeeSummary{
		Date:            today,
		TodayCollection: helpers.Round2(todayTotal),
		MonthCollection: helpers.Round2(monthTotal),
		OutstandingDues: helpers.Round2(outstanding),
	}, nil
}

// --- Explicit due schedule ---

// CreateDue schedules an obligation for a student
func (s *feeServiceImpl) CreateDue(ctx context.Context, actor models.Actor, req *dto.CreateFeeDueRequest) (*models.FeeDue, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	dueDate, err := parseDateField("dueDate", req.DueDate)
	if err != nil {
		return nil, err
	}
	if _, err := s.studentRepo.GetByID(ctx, req.StudentID); err != nil {
		return nil, err
	}
	if req.FeeStructureID != nil {
		if _, err := s.structureRepo.GetByID(ctx, *req.FeeStructureID); err != nil {
			return nil, err
		}
	}

	due := &models.FeeDue{
		StudentID:      req.StudentID,
		FeeStructureID: req.FeeStructureID,
		Amount:         req.Amount,
		DueDate:        dueDate,
		Status:         models.DuePending,
	}
	if err := s.dueRepo.Create(ctx, due); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("dueID", due.ID).Int64("studentID", due.StudentID).Float64("amount", due.Amount).Msg("Fee due created")
	return due, nil
}

// PayDue applies a payment to a due under a row lock. The paid amount never exceeds the due.
func (s *feeServiceImpl) PayDue(ctx context.Context, actor models.Actor, id int64, req *dto.DuePaymentRequest) (*models.FeeDue, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var due *models.FeeDue
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		due, err = s.dueRepo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if due.Status == models.DuePaid {
			return apperrors.NewValidationError("amount", "This due is already paid")
		}
		applied := due.ApplyPayment(req.Amount)
		s.logger.Debug().Int64("dueID", id).Float64("applied", applied).Msg("Applying due payment")
		return s.dueRepo.Update(ctx, due)
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// StudentDues lists the explicit dues of one student
func (s *feeServiceImpl) StudentDues(ctx context.Context, actor models.Actor, studentID int64) ([]*models.FeeDue, error) {
	if err := requireStaffOrOwner(ctx, s.studentRepo, actor, studentID, "fees"); err != nil {
		return nil, err
	}
	if _, err := s.studentRepo.GetByID(ctx, studentID); err != nil {
		return nil, err
	}
	return s.dueRepo.ListByStudent(ctx, studentID)
}

// Defaulters lists unpaid dues whose date has passed, oldest first
func (s *feeServiceImpl) Defaulters(ctx context.Context, actor models.Actor) ([]*models.FeeDue, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	return s.dueRepo.ListOverdue(ctx, s.today())
}

// RefreshOverdue marks PENDING and PARTIAL dues past their date as OVERDUE
func (s *feeServiceImpl) RefreshOverdue(ctx context.Context, actor models.Actor) (*dto.RefreshOverdueResponse, error) {
	if err := requireFeeStaff(actor); err != nil {
		return nil, err
	}
	n, err := s.dueRepo.MarkOverdue(ctx, s.today())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("updated", n).Msg("Overdue dues refreshed")
	return &dto.RefreshOverdueResponse{Updated: n}, nil
}
