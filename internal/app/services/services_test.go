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

// fixture wires every service to one memStore. The admin, teacher and parent
// accounts get ids 1, 2 and 3 to match the package-level actors.
type fixture struct {
	m       *memStore
	tx      *passThroughTx
	now     time.Time
	storage *fakeStorage

	users         fakeUserRepo
	tokens        fakeTokenRepo
	batches       fakeBatchRepo
	students      fakeStudentRepo
	attendance    fakeAttendanceRepo
	structures    fakeFeeStructureRepo
	transactions  fakeFeeTxRepo
	dues          fakeFeeDueRepo
	chat          fakeChatRepo
	announcements fakeAnnouncementRepo
	sequences     fakeSequenceRepo
}

func newFixture(now time.Time) *fixture {
	m := newMemStore()
	m.addUser(models.RoleAdmin, "admin")
	m.addUser(models.RoleTeacher, "teacher")
	m.addUser(models.RoleParent, "parent")
	return &fixture{
		m:             m,
		tx:            &passThroughTx{},
		now:           now,
		storage:       &fakeStorage{},
		users:         fakeUserRepo{m: m},
		tokens:        fakeTokenRepo{m: m},
		batches:       fakeBatchRepo{m: m},
		students:      fakeStudentRepo{m: m},
		attendance:    fakeAttendanceRepo{m: m},
		structures:    fakeFeeStructureRepo{m: m},
		transactions:  fakeFeeTxRepo{m: m},
		dues:          fakeFeeDueRepo{m: m},
		chat:          fakeChatRepo{m: m},
		announcements: fakeAnnouncementRepo{m: m},
		sequences:     fakeSequenceRepo{m: m},
	}
}

func (f *fixture) purger() AccountPurger {
	return NewAccountPurger(f.users, f.tokens, f.chat)
}

func (f *fixture) studentService() *studentServiceImpl {
	svc := NewStudentService(f.students, f.batches, f.attendance, f.transactions, f.dues, f.sequences,
		f.purger(), f.tx, testSettings(), nopLogger()).(*studentServiceImpl)
	svc.now = fixedClock(f.now)
	svc.hash = plainHasher
	return svc
}

func (f *fixture) batchService() BatchService {
	return NewBatchService(f.batches, f.students, f.structures, f.users, f.tx, nopLogger())
}

func (f *fixture) userService() *userServiceImpl {
	svc := NewUserService(f.users, f.batches, f.purger(), f.tx, nopLogger()).(*userServiceImpl)
	svc.hash = plainHasher
	return svc
}

func (f *fixture) attendanceService() *attendanceServiceImpl {
	svc := NewAttendanceService(f.attendance, f.students, f.batches, f.tx, nopLogger()).(*attendanceServiceImpl)
	svc.now = fixedClock(f.now)
	return svc
}

func (f *fixture) feeService() *feeServiceImpl {
	svc := NewFeeService(f.structures, f.transactions, f.dues, f.students, f.sequences,
		f.tx, testSettings(), nopLogger()).(*feeServiceImpl)
	svc.now = fixedClock(f.now)
	return svc
}

func (f *fixture) chatService() ChatService {
	return NewChatService(f.chat, f.users, f.tx, nopLogger())
}

func (f *fixture) announcementService() *announcementServiceImpl {
	svc := NewAnnouncementService(f.announcements, f.students, f.storage, nopLogger()).(*announcementServiceImpl)
	svc.now = fixedClock(f.now)
	return svc
}

func (f *fixture) portalService() *portalServiceImpl {
	svc := NewPortalService(f.students, f.attendance, f.transactions, f.announcementService(),
		testSettings(), nopLogger()).(*portalServiceImpl)
	svc.now = fixedClock(f.now)
	return svc
}

func (f *fixture) dashboardService() *dashboardServiceImpl {
	svc := NewDashboardService(f.students, f.batches, f.users, f.attendance, f.transactions, nopLogger()).(*dashboardServiceImpl)
	svc.now = fixedClock(f.now)
	return svc
}

// linkStudentLogin gives a student a STUDENT account and returns the actor for it
func (f *fixture) linkStudentLogin(s *models.Student) models.Actor {
	u := f.m.addUser(models.RoleStudent, "student"+s.LastName)
	s.UserID = &u.ID
	return models.NewActor(u)
}

func TestValidateRequestReturnsFirstFieldError(t *testing.T) {
	err := validateRequest(&dto.DuePaymentRequest{Amount: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "amount", apperrors.Field(err))

	assert.NoError(t, validateRequest(&dto.DuePaymentRequest{Amount: 10}))
}

func TestRequireStaffOrOwner(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	ctx := context.Background()
	own := f.m.addStudent(nil, date(2024, 6, 1))
	other := f.m.addStudent(nil, date(2024, 6, 1))
	actor := f.linkStudentLogin(own)

	assert.NoError(t, requireStaffOrOwner(ctx, f.students, teacherActor, other.ID, "fees"))
	assert.NoError(t, requireStaffOrOwner(ctx, f.students, actor, own.ID, "fees"))

	err := requireStaffOrOwner(ctx, f.students, actor, other.ID, "fees")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	err = requireStaffOrOwner(ctx, f.students, parentActor, own.ID, "fees")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestAccountPurgerRemovesTokensAndConversationsFirst(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	ctx := context.Background()

	require.NoError(t, f.tokens.CreateToken(ctx, "tok", teacherActor.UserID, f.now.Add(time.Hour)))
	conv, err := f.chat.CreateConversation(ctx, adminActor.UserID, teacherActor.UserID)
	require.NoError(t, err)
	require.NoError(t, f.chat.CreateMessage(ctx, &models.Message{ConversationID: conv.ID, SenderID: 1, Content: "hi"}))

	require.NoError(t, f.purger().purge(ctx, teacherActor.UserID))

	assert.Equal(t, []string{"tokens:2", fmt.Sprintf("conversation:%d", conv.ID), "user:2"}, f.m.deletions)
	assert.Empty(t, f.m.messages)
	assert.Empty(t, f.m.tokens)
}

func TestParseOptionalDateFieldFallsBackToDay(t *testing.T) {
	got, err := parseOptionalDateField("date", " ", time.Date(2025, 3, 4, 17, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, date(2025, 3, 4), got)

	_, err = parseOptionalDateField("date", "04/03/2025", time.Now())
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "date", apperrors.Field(err))
}
