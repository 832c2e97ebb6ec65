package services

import (
	"context"
	"fmt"
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

// minCredentialPhoneDigits is the shortest phone number login credentials can be built from
const minCredentialPhoneDigits = 5

// StudentService manages enrollment
type StudentService interface {
	CreateStudent(ctx context.Context, actor models.Actor, req *dto.CreateStudentRequest) (*dto.StudentCreatedResponse, error)
	GetStudent(ctx context.Context, actor models.Actor, id int64) (*models.Student, error)
	ListStudents(ctx context.Context, actor models.Actor, filter models.StudentFilter, page, size int) (*dto.StudentListResponse, error)
	UpdateStudent(ctx context.Context, actor models.Actor, id int64, req *dto.UpdateStudentRequest) (*models.Student, error)
	SetStatus(ctx context.Context, actor models.Actor, id int64, status models.StudentStatus) (*models.Student, error)
	MoveStudents(ctx context.Context, actor models.Actor, req *dto.BulkMoveRequest) (*dto.BulkResult, error)
	DeleteStudent(ctx context.Context, actor models.Actor, id int64) error
	DeleteStudents(ctx context.Context, actor models.Actor, req *dto.BulkDeleteRequest) (*dto.BulkResult, error)
	CreateLogin(ctx context.Context, actor models.Actor, id int64) (*dto.LoginCredentials, error)
	GenerateStudentID(ctx context.Context, actor models.Actor) (string, error)
}

type studentServiceImpl struct {
	studentRepo    repositories.IStudentRepository
	batchRepo      repositories.IBatchRepository
	userRepo       repositories.IUserRepository
	attendanceRepo repositories.IAttendanceRepository
	feeTxRepo      repositories.IFeeTransactionRepository
	feeDueRepo     repositories.IFeeDueRepository
	sequenceRepo   repositories.ISequenceRepository
	purger         AccountPurger
	tx             db.Transactor
	settings       SchoolSettings
	hash           PasswordHasher
	now            Clock
	logger         zerolog.Logger
}

// NewStudentService creates a new StudentService
func NewStudentService(
	studentRepo repositories.IStudentRepository,
	batchRepo repositories.IBatchRepository,
	attendanceRepo repositories.IAttendanceRepository,
	feeTxRepo repositories.IFeeTransactionRepository,
	feeDueRepo repositories.IFeeDueRepository,
	sequenceRepo repositories.ISequenceRepository,
	purger AccountPurger,
	tx db.Transactor,
	settings SchoolSettings,
	logger zerolog.Logger,
) StudentService {
	return &studentServiceImpl{
		studentRepo:    studentRepo,
		batchRepo:      batchRepo,
		userRepo:       purger.userRepo,
		attendanceRepo: attendanceRepo,
		feeTxRepo:      feeTxRepo,
		feeDueRepo:     feeDueRepo,
		sequenceRepo:   sequenceRepo,
		purger:         purger,
		tx:             tx,
		settings:       settings,
		hash:           defaultHasher,
		now:            time.Now,
		logger:         logger,
	}
}

// applyProfile copies the self-editable fields onto a student
func applyProfile(s *models.Student, p *dto.StudentProfile) error {
	dob, err := parseDatePtrField("dateOfBirth", p.DateOfBirth)
	if err != nil {
		return err
	}
	s.DateOfBirth = dob
	s.Gender = helpers.NullIfEmpty(p.Gender)
	s.Email = helpers.NullIfEmpty(p.Email)
	s.Phone = helpers.NullIfEmpty(p.Phone)
	s.Address = helpers.NullIfEmpty(p.Address)
	s.City = helpers.NullIfEmpty(p.City)
	s.State = helpers.NullIfEmpty(p.State)
	s.Pincode = helpers.NullIfEmpty(p.Pincode)
	s.ParentName = helpers.NullIfEmpty(p.ParentName)
	s.ParentPhone = helpers.NullIfEmpty(p.ParentPhone)
	s.ParentEmail = helpers.NullIfEmpty(p.ParentEmail)
	s.ParentOccupation = helpers.NullIfEmpty(p.ParentOccupation)
	s.BloodGroup = helpers.NullIfEmpty(p.BloodGroup)
	s.MedicalConditions = helpers.NullIfEmpty(p.MedicalConditions)
	s.PreviousSchool = helpers.NullIfEmpty(p.PreviousSchool)
	return nil
}

// reserveSeat locks the batch and fails when it has no room left
func (s *studentServiceImpl) reserveSeat(ctx context.Context, batchID int64, incoming int) error {
	batch, err := s.batchRepo.LockByID(ctx, batchID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewValidationError("batchId", "Batch does not exist")
		}
		return err
	}
	if batch.AvailableSeats() < incoming {
		s.logger.Warn().Int64("batchID", batchID).Int("capacity", batch.Capacity).
			Int("students", batch.StudentCount).Int("incoming", incoming).Msg("Batch is full")
		return apperrors.NewValidationError("batchId",
			fmt.Sprintf("Batch %s has %d seat(s) available", batch.Name, batch.AvailableSeats()))
	}
	return nil
}

// nextStudentCode must run inside a transaction
func (s *studentServiceImpl) nextStudentCode(ctx context.Context) (string, error) {
	prefix := sequence.StudentCodePrefix(s.settings.StudentIDPrefix, s.now())
	if err := s.sequenceRepo.LockPrefix(ctx, prefix); err != nil {
		return "", err
	}
	last, err := s.studentRepo.LatestCodeWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return sequence.Next(prefix, last, sequence.SuffixWidth)
}

// GenerateStudentID returns the code the next enrolled student would receive
func (s *studentServiceImpl) GenerateStudentID(ctx context.Context, actor models.Actor) (string, error) {
	if err := requireStaff(actor); err != nil {
		return "", err
	}
	var code string
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		code, err = s.nextStudentCode(ctx)
		return err
	})
	return code, err
}

// credentialsFor builds a login from the first name and phone digits:
// username <first><last 2 digits>@<domain>, falling back to the last 3 digits
// when taken; password <first>@<last 5 digits>.
func (s *studentServiceImpl) credentialsFor(ctx context.Context, firstName string, phone *string) (*dto.LoginCredentials, error) {
	digits := ""
	if phone != nil {
		digits = helpers.Digits(*phone)
	}
	if len(digits) < minCredentialPhoneDigits {
		return nil, apperrors.NewValidationError("phone", "Phone number must have at least 5 digits to generate a login")
	}
	name := strings.ToLower(strings.Join(strings.Fields(firstName), ""))

	for _, n := range []int{2, 3} {
		username := fmt.Sprintf("%s%s@%s", name, digits[len(digits)-n:], s.settings.UsernameDomain)
		taken, err := s.loginTaken(ctx, username)
		if err != nil {
			return nil, err
		}
		if !taken {
			return &dto.LoginCredentials{
				Username: username,
				Password: fmt.Sprintf("%s@%s", name, digits[len(digits)-minCredentialPhoneDigits:]),
			}, nil
		}
	}
	return nil, apperrors.NewConflictError("Generated username is already taken")
}

func (s *studentServiceImpl) loginTaken(ctx context.Context, login string) (bool, error) {
	taken, err := s.userRepo.UsernameExists(ctx, login)
	if err != nil || taken {
		return taken, err
	}
	return s.userRepo.EmailExists(ctx, login, 0)
}

// createLoginUser stores a STUDENT account. The generated login doubles as username and email.
func (s *studentServiceImpl) createLoginUser(ctx context.Context, creds *dto.LoginCredentials) (*models.User, error) {
	hash, err := s.hash(creds.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     creds.Username,
		Email:        creds.Username,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateStudent enrolls a student. Code generation, the seat check, the optional
// login account and the insert share one transaction.
func (s *studentServiceImpl) CreateStudent(ctx context.Context, actor models.Actor, req *dto.CreateStudentRequest) (*dto.StudentCreatedResponse, error) {
	if !actor.Role.CanManageEnrollment() {
		return nil, apperrors.NewForbiddenError("Staff access required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	enrolled, err := parseOptionalDateField("enrollmentDate", req.EnrollmentDate, s.now())
	if err != nil {
		return nil, err
	}
	student := &models.Student{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		BatchID:        req.BatchID,
		Remarks:        helpers.NullIfEmpty(req.Remarks),
		EnrollmentDate: &enrolled,
		Status:         models.StudentActive,
	}
	if err := applyProfile(student, &req.StudentProfile); err != nil {
		return nil, err
	}

	var creds *dto.LoginCredentials
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if student.BatchID != nil {
			if err := s.reserveSeat(ctx, *student.BatchID, 1); err != nil {
				return err
			}
		}

		code, err := s.nextStudentCode(ctx)
		if err != nil {
			return err
		}
		student.Code = code

		if req.CreateLogin {
			creds, err = s.credentialsFor(ctx, student.FirstName, student.Phone)
			if err != nil {
				return err
			}
			user, err := s.createLoginUser(ctx, creds)
			if err != nil {
				return err
			}
			student.UserID = &user.ID
		}

		return s.studentRepo.Create(ctx, student)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("studentID", student.ID).Str("code", student.Code).
		Bool("login", creds != nil).Int64("by", actor.UserID).Msg("Student enrolled")
	return &dto.StudentCreatedResponse{Student: student, Credentials: creds}, nil
}

// GetStudent returns a student
func (s *studentServiceImpl) GetStudent(ctx context.Context, actor models.Actor, id int64) (*models.Student, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.studentRepo.GetByID(ctx, id)
}

// ListStudents returns one page of students matching the filter
func (s *studentServiceImpl) ListStudents(ctx context.Context, actor models.Actor, filter models.StudentFilter, page, size int) (*dto.StudentListResponse, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("status", "Unknown student status")
	}
	filter.Offset, filter.Limit = helpers.CalculateOffsetLimit(page, size)

	students, total, err := s.studentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.StudentListResponse{
		Students:   students,
		Pagination: helpers.NewPaginationInfo(total, page, size),
	}, nil
}

// UpdateStudent replaces a student's record. Moving an ACTIVE student into
// another batch takes a seat there.
func (s *studentServiceImpl) UpdateStudent(ctx context.Context, actor models.Actor, id int64, req *dto.UpdateStudentRequest) (*models.Student, error) {
	if !actor.Role.CanManageEnrollment() {
		return nil, apperrors.NewForbiddenError("Staff access required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var student *models.Student
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		student, err = s.studentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		status := req.Status
		if status == "" {
			status = student.Status
		}
		if req.BatchID != nil && status == models.StudentActive && !sameBatch(student, *req.BatchID) {
			if err := s.reserveSeat(ctx, *req.BatchID, 1); err != nil {
				return err
			}
		}

		if req.EnrollmentDate != "" {
			enrolled, err := parseDateField("enrollmentDate", req.EnrollmentDate)
			if err != nil {
				return err
			}
			student.EnrollmentDate = &enrolled
		}
		student.FirstName = strings.TrimSpace(req.FirstName)
		student.LastName = strings.TrimSpace(req.LastName)
		student.BatchID = req.BatchID
		student.Status = status
		student.Remarks = helpers.NullIfEmpty(req.Remarks)
		if err := applyProfile(student, &req.StudentProfile); err != nil {
			return err
		}
		return s.studentRepo.Update(ctx, student)
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

func sameBatch(student *models.Student, batchID int64) bool {
	return student.BatchID != nil && *student.BatchID == batchID && student.Status == models.StudentActive
}

// SetStatus changes the enrollment status of a student
func (s *studentServiceImpl) SetStatus(ctx context.Context, actor models.Actor, id int64, status models.StudentStatus) (*models.Student, error) {
	if !actor.Role.CanManageEnrollment() {
		return nil, apperrors.NewForbiddenError("Staff access required")
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status", "Unknown student status")
	}

	var student *models.Student
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		student, err = s.studentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if status == models.StudentActive && student.Status != models.StudentActive && student.BatchID != nil {
			if err := s.reserveSeat(ctx, *student.BatchID, 1); err != nil {
				return err
			}
		}
		student.Status = status
		return s.studentRepo.Update(ctx, student)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("studentID", id).Str("status", string(status)).Msg("Student status changed")
	return student, nil
}

// MoveStudents assigns several students to one batch
func (s *studentServiceImpl) MoveStudents(ctx context.Context, actor models.Actor, req *dto.BulkMoveRequest) (*dto.BulkResult, error) {
	if !actor.Role.CanManageEnrollment() {
		return nil, apperrors.NewForbiddenError("Staff access required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var moved int64
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		incoming := 0
		for _, id := range req.StudentIDs {
			student, err := s.studentRepo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if student.Status == models.StudentActive && !sameBatch(student, req.BatchID) {
				incoming++
			}
		}
		if err := s.reserveSeat(ctx, req.BatchID, incoming); err != nil {
			return err
		}

		var err error
		moved, err = s.studentRepo.MoveToBatch(ctx, req.StudentIDs, req.BatchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("batchID", req.BatchID).Int64("moved", moved).Msg("Students moved")
	return &dto.BulkResult{Affected: int(moved)}, nil
}

// deleteCascade removes a student and everything that depends on it.
// Must run inside a transaction.
func (s *studentServiceImpl) deleteCascade(ctx context.Context, id int64) error {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	// dependent rows first, then the student
	if err := s.attendanceRepo.DeleteByStudent(ctx, id); err != nil {
		return err
	}
	if err := s.feeDueRepo.DeleteByStudent(ctx, id); err != nil {
		return err
	}
	if err := s.feeTxRepo.DeleteByStudent(ctx, id); err != nil {
		return err
	}
	if err := s.studentRepo.Delete(ctx, id); err != nil {
		return err
	}
	// the login account goes last, together with its tokens and chats
	if student.UserID != nil {
		return s.purger.purge(ctx, *student.UserID)
	}
	return nil
}

// DeleteStudent removes a student with attendance, fees, dues and login account
func (s *studentServiceImpl) DeleteStudent(ctx context.Context, actor models.Actor, id int64) error {
	if !actor.Role.CanManageEnrollment() {
		return apperrors.NewForbiddenError("Staff access required")
	}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.deleteCascade(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info().Int64("studentID", id).Int64("by", actor.UserID).Msg("Student deleted")
	return nil
}

// DeleteStudents deletes every listed student or none of them
func (s *studentServiceImpl) DeleteStudents(ctx context.Context, actor models.Actor, req *dto.BulkDeleteRequest) (*dto.BulkResult, error) {
	if !actor.Role.CanManageEnrollment() {
		return nil, apperrors.NewForbiddenError("Staff access required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, id := range req.StudentIDs {
			if err := s.deleteCascade(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("count", len(req.StudentIDs)).Int64("by", actor.UserID).Msg("Students deleted")
	return &dto.BulkResult{Affected: len(req.StudentIDs)}, nil
}

// CreateLogin generates credentials for a student enrolled without a login
func (s *studentServiceImpl) CreateLogin(ctx context.Context, actor models.Actor, id int64) (*dto.LoginCredentials, error) {
	if !actor.Role.CanManageEnrollment() {
		return nil, apperrors.NewForbiddenError("Staff access required")
	}

	var creds *dto.LoginCredentials
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		student, err := s.studentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if student.UserID != nil {
			return apperrors.NewConflictError("Student already has a login")
		}
		creds, err = s.credentialsFor(ctx, student.FirstName, student.Phone)
		if err != nil {
			return err
		}
		user, err := s.createLoginUser(ctx, creds)
		if err != nil {
			return err
		}
		student.UserID = &user.ID
		return s.studentRepo.Update(ctx, student)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("studentID", id).Str("username", creds.Username).Msg("Student login created")
	return creds, nil
}
