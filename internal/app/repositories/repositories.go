package repositories

import (
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/logger"
)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository           *UserRepository
	TokenRepository          *TokenRepository
	BatchRepository          *BatchRepository
	StudentRepository        *StudentRepository
	AttendanceRepository     *AttendanceRepository
	FeeStructureRepository   *FeeStructureRepository
	FeeTransactionRepository *FeeTransactionRepository
	FeeDueRepository         *FeeDueRepository
	ChatRepository           *ChatRepository
	AnnouncementRepository   *AnnouncementRepository
	SequenceRepository       *SequenceRepository
}

// NewRepositories initializes all repositories
func NewRepositories(pg *db.PostgresDB) *Repositories {
	return &Repositories{
		UserRepository:           NewUserRepository(pg),
		TokenRepository:          NewTokenRepository(pg),
		BatchRepository:          NewBatchRepository(pg),
		StudentRepository:        NewStudentRepository(pg),
		AttendanceRepository:     NewAttendanceRepository(pg),
		FeeStructureRepository:   NewFeeStructureRepository(pg),
		FeeTransactionRepository: NewFeeTransactionRepository(pg),
		FeeDueRepository:         NewFeeDueRepository(pg),
		ChatRepository:           NewChatRepository(pg),
		AnnouncementRepository:   NewAnnouncementRepository(pg),
		SequenceRepository:       NewSequenceRepository(pg),
	}
}

// psql is the statement builder shared by all repositories
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// buildSQL renders a squirrel statement, logging build failures the same way everywhere.
func buildSQL(q squirrel.Sqlizer, op string) (string, []interface{}, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error building SQL")
		return "", nil, fmt.Errorf("failed to build %s query: %w", op, err)
	}
	return sql, args, nil
}

// notFound maps pgx.ErrNoRows to sentinel and wraps anything else.
func notFound(err error, sentinel error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("error %s: %w", op, err)
}
