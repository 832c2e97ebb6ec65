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

func TestCreateTeacher(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	svc := f.userService()
	ctx := context.Background()
	req := &dto.CreateTeacherRequest{Username: "meera", Email: "Meera@School.test", Password: "longenough"}

	_, err := svc.CreateTeacher(ctx, teacherActor, req)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	resp, err := svc.CreateTeacher(ctx, adminActor, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, resp.Role)
	assert.Equal(t, "meera@school.test", resp.Email)
	assert.Equal(t, "hashed:longenough", f.m.users[resp.ID].PasswordHash)

	_, err = svc.CreateTeacher(ctx, adminActor, req)
	assert.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)

	_, err = svc.CreateTeacher(ctx, adminActor, &dto.CreateTeacherRequest{Username: "x", Email: "bad", Password: "short"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSetActiveRefusesOwnAccount(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	svc := f.userService()
	ctx := context.Background()

	_, err := svc.SetActive(ctx, adminActor, adminActor.UserID, false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	resp, err := svc.SetActive(ctx, adminActor, teacherActor.UserID, false)
	require.NoError(t, err)
	assert.False(t, resp.IsActive)
	assert.False(t, f.m.users[teacherActor.UserID].IsActive)
}

func TestDeleteTeacherUnassignsBatchesAndPurgesAccount(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	svc := f.userService()
	ctx := context.Background()

	batch := f.m.addBatch("Morning", 30)
	batch.TeacherID = ptr(teacherActor.UserID)
	conv, err := f.chat.CreateConversation(ctx, adminActor.UserID, teacherActor.UserID)
	require.NoError(t, err)
	require.NoError(t, f.chat.CreateMessage(ctx, &models.Message{ConversationID: conv.ID, SenderID: teacherActor.UserID, Content: "hello"}))

	require.NoError(t, svc.DeleteTeacher(ctx, adminActor, teacherActor.UserID))

	assert.Nil(t, f.m.batches[batch.ID].TeacherID)
	assert.NotContains(t, f.m.users, teacherActor.UserID)
	assert.Empty(t, f.m.conversations)
	assert.Empty(t, f.m.messages)
	assert.Equal(t, 1, f.tx.calls)
}

func TestDeleteTeacherRejectsNonTeacher(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	err := f.userService().DeleteTeacher(context.Background(), adminActor, parentActor.UserID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.Contains(t, f.m.users, parentActor.UserID)
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	svc := f.userService()
	ctx := context.Background()
	for _, name := range []string{"ravi", "rahul", "zoya"} {
		f.m.addUser(models.RoleTeacher, name)
	}
	f.m.addUser(models.RoleTeacher, "rana").IsActive = false

	got, err := svc.SearchUsers(ctx, adminActor, "ra")
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, u := range got {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"rahul", "ravi"}, names)

	all, err := svc.SearchUsers(ctx, adminActor, "*")
	require.NoError(t, err)
	assert.Len(t, all, 5)
	for _, u := range all {
		assert.NotEqual(t, adminActor.UserID, u.ID)
	}
}
