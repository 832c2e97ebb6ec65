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
)

const (
	// searchListLimit applies when the recipient search has no term
	searchListLimit = 20
	// searchMatchLimit applies when a term is given
	searchMatchLimit = 15
)

// UserService manages staff accounts and user lookups
type UserService interface {
	CreateTeacher(ctx context.Context, actor models.Actor, req *dto.CreateTeacherRequest) (*dto.TeacherResponse, error)
	UpdateTeacher(ctx context.Context, actor models.Actor, id int64, req *dto.UpdateTeacherRequest) (*dto.TeacherResponse, error)
	GetTeacher(ctx context.Context, actor models.Actor, id int64) (*dto.TeacherResponse, error)
	ListTeachers(ctx context.Context, actor models.Actor) ([]dto.TeacherResponse, error)
	SetActive(ctx context.Context, actor models.Actor, id int64, active bool) (*dto.UserResponse, error)
	DeleteTeacher(ctx context.Context, actor models.Actor, id int64) error
	SearchUsers(ctx context.Context, actor models.Actor, term string) ([]*dto.UserBasicResponse, error)
}

type userServiceImpl struct {
	userRepo  repositories.IUserRepository
	batchRepo repositories.IBatchRepository
	purger    AccountPurger
	tx        db.Transactor
	hash      PasswordHasher
	logger    zerolog.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	userRepo repositories.IUserRepository,
	batchRepo repositories.IBatchRepository,
	purger AccountPurger,
	tx db.Transactor,
	logger zerolog.Logger,
) UserService {
	return &userServiceImpl{
		userRepo:  userRepo,
		batchRepo: batchRepo,
		purger:    purger,
		tx:        tx,
		hash:      defaultHasher,
		logger:    logger,
	}
}

func (s *userServiceImpl) loadTeacher(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleTeacher {
		return nil, apperrors.Wrap(apperrors.ErrUserNotFound, "Teacher not found")
	}
	return user, nil
}

func (s *userServiceImpl) teacherResponse(ctx context.Context, user *models.User) (*dto.TeacherResponse, error) {
	batches, err := s.batchRepo.ListByTeacher(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &dto.TeacherResponse{UserResponse: dto.ToUserResponse(user), Batches: batches}, nil
}

// CreateTeacher creates an active TEACHER account
func (s *userServiceImpl) CreateTeacher(ctx context.Context, actor models.Actor, req *dto.CreateTeacherRequest) (*dto.TeacherResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.EmailExists(ctx, req.Email, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrEmailAlreadyExists
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         models.RoleTeacher,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("teacherID", user.ID).Int64("by", actor.UserID).Msg("Teacher created")
	return &dto.TeacherResponse{UserResponse: dto.ToUserResponse(user), Batches: []*models.Batch{}}, nil
}

// UpdateTeacher changes username and email, and resets the password when one is given
func (s *userServiceImpl) UpdateTeacher(ctx context.Context, actor models.Actor, id int64, req *dto.UpdateTeacherRequest) (*dto.TeacherResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	user, err := s.loadTeacher(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.userRepo.EmailExists(ctx, req.Email, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrEmailAlreadyExists
	}

	user.Username = strings.TrimSpace(req.Username)
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Password != nil && *req.Password != "" {
		hash, err := s.hash(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.teacherResponse(ctx, user)
}

// GetTeacher returns a teacher with their batches
func (s *userServiceImpl) GetTeacher(ctx context.Context, actor models.Actor, id int64) (*dto.TeacherResponse, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	user, err := s.loadTeacher(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.teacherResponse(ctx, user)
}

// ListTeachers returns all teachers with their batches
func (s *userServiceImpl) ListTeachers(ctx context.Context, actor models.Actor) ([]dto.TeacherResponse, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TeacherResponse, 0, len(users))
	for _, u := range users {
		resp, err := s.teacherResponse(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// SetActive enables or disables any account except the caller's own
func (s *userServiceImpl) SetActive(ctx context.Context, actor models.Actor, id int64, active bool) (*dto.UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if id == actor.UserID {
		return nil, apperrors.NewValidationError("id", "You cannot change your own account status")
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("userID", id).Bool("active", active).Msg("Account status changed")
	resp := dto.ToUserResponse(user)
	return &resp, nil
}

// DeleteTeacher unassigns the teacher's batches, removes their tokens and
// conversations, and deletes the account, all in one transaction.
func (s *userServiceImpl) DeleteTeacher(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.loadTeacher(ctx, id); err != nil {
			return err
		}
		unassigned, err := s.batchRepo.UnassignTeacher(ctx, id)
		if err != nil {
			return err
		}
		if err := s.purger.purge(ctx, id); err != nil {
			return err
		}
		s.logger.Info().Int64("teacherID", id).Int64("batchesUnassigned", unassigned).Msg("Teacher deleted")
		return nil
	})
}

// SearchUsers finds message recipients. "*" or an empty term lists users by username.
func (s *userServiceImpl) SearchUsers(ctx context.Context, actor models.Actor, term string) ([]*dto.UserBasicResponse, error) {
	term = strings.TrimSpace(term)
	limit := searchMatchLimit
	if term == "" || term == "*" {
		term = ""
		limit = searchListLimit
	}

	users, err := s.userRepo.Search(ctx, actor.UserID, term, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("term", term).Msg("User search failed")
		return nil, err
	}

	out := make([]*dto.UserBasicResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.ToUserBasicResponse(u))
	}
	return out, nil
}
