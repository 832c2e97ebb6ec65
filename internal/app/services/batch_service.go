package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/helpers"
)

// BatchService manages cohorts
type BatchService interface {
	CreateBatch(ctx context.Context, actor models.Actor, req *dto.BatchRequest) (*dto.BatchResponse, error)
	GetBatch(ctx context.Context, actor models.Actor, id int64) (*dto.BatchResponse, error)
	ListBatches(ctx context.Context, actor models.Actor, activeOnly bool) ([]dto.BatchResponse, error)
	UpdateBatch(ctx context.Context, actor models.Actor, id int64, req *dto.BatchRequest) (*dto.BatchResponse, error)
	DeleteBatch(ctx context.Context, actor models.Actor, id int64) error
}

type batchServiceImpl struct {
	batchRepo        repositories.IBatchRepository
	studentRepo      repositories.IStudentRepository
	feeStructureRepo repositories.IFeeStructureRepository
	userRepo         repositories.IUserRepository
	tx               db.Transactor
	logger           zerolog.Logger
}

// NewBatchService creates a new BatchService
func NewBatchService(
	batchRepo repositories.IBatchRepository,
	studentRepo repositories.IStudentRepository,
	feeStructureRepo repositories.IFeeStructureRepository,
	userRepo repositories.IUserRepository,
	tx db.Transactor,
	logger zerolog.Logger,
) BatchService {
	return &batchServiceImpl{
		batchRepo:        batchRepo,
		studentRepo:      studentRepo,
		feeStructureRepo: feeStructureRepo,
		userRepo:         userRepo,
		tx:               tx,
		logger:           logger,
	}
}

// checkTeacher verifies an optional teacher id points at a TEACHER account
func (s *batchServiceImpl) checkTeacher(ctx context.Context, teacherID *int64) error {
	if teacherID == nil {
		return nil
	}
	user, err := s.userRepo.GetByID(ctx, *teacherID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewValidationError("teacherId", "Teacher does not exist")
		}
		return err
	}
	if user.Role != models.RoleTeacher {
		return apperrors.NewValidationError("teacherId", "Assigned user is not a teacher")
	}
	return nil
}

func applyBatchRequest(b *models.Batch, req *dto.BatchRequest) {
	b.Name = strings.TrimSpace(req.Name)
	b.ClassName = helpers.NullIfEmpty(req.ClassName)
	b.Capacity = req.Capacity
	if b.Capacity == 0 {
		b.Capacity = models.DefaultBatchCapacity
	}
	b.TeacherID = req.TeacherID
	b.Description = helpers.NullIfEmpty(req.Description)
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
}

// CreateBatch creates a batch. Capacity defaults to DefaultBatchCapacity.
func (s *batchServiceImpl) CreateBatch(ctx context.Context, actor models.Actor, req *dto.BatchRequest) (*dto.BatchResponse, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.checkTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	batch := &models.Batch{IsActive: true}
	applyBatchRequest(batch, req)
	if err := s.batchRepo.Create(ctx, batch); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("batchID", batch.ID).Str("name", batch.Name).Msg("Batch created")
	resp := dto.ToBatchResponse(batch)
	return &resp, nil
}

// GetBatch returns a batch with its seat count
func (s *batchServiceImpl) GetBatch(ctx context.Context, actor models.Actor, id int64) (*dto.BatchResponse, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.ToBatchResponse(batch)
	return &resp, nil
}

// ListBatches lists batches ordered by name
func (s *batchServiceImpl) ListBatches(ctx context.Context, actor models.Actor, activeOnly bool) ([]dto.BatchResponse, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return dto.ToBatchResponses(batches), nil
}

// UpdateBatch replaces the editable fields of a batch
func (s *batchServiceImpl) UpdateBatch(ctx context.Context, actor models.Actor, id int64, req *dto.BatchRequest) (*dto.BatchResponse, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.checkTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyBatchRequest(batch, req)
	if err := s.batchRepo.Update(ctx, batch); err != nil {
		return nil, err
	}
	resp := dto.ToBatchResponse(batch)
	return &resp, nil
}

// DeleteBatch removes a batch that no student or fee structure references.
// The batch is locked first so no enrollment can slip in between the check and the delete.
func (s *batchServiceImpl) DeleteBatch(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.batchRepo.LockByID(ctx, id); err != nil {
			return err
		}

		students, err := s.studentRepo.CountByBatch(ctx, id)
		if err != nil {
			return err
		}
		if students > 0 {
			s.logger.Warn().Int64("batchID", id).Int("students", students).Msg("Refusing to delete batch with students")
			return apperrors.NewIntegrityError("Cannot delete a batch that still has students")
		}

		structures, err := s.feeStructureRepo.List(ctx, &id, false)
		if err != nil {
			return err
		}
		if len(structures) > 0 {
			return apperrors.NewIntegrityError("Cannot delete a batch that has fee structures")
		}

		if err := s.batchRepo.Delete(ctx, id); err != nil {
			return err
		}
		s.logger.Info().Int64("batchID", id).Msg("Batch deleted")
		return nil
	})
}
