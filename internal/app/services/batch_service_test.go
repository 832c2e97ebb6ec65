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

func TestCreateBatchDefaultsCapacity(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	svc := f.batchService()

	resp, err := svc.CreateBatch(context.Background(), teacherActor, &dto.BatchRequest{Name: " Evening "})
	require.NoError(t, err)
	assert.Equal(t, "Evening", resp.Name)
	assert.Equal(t, models.DefaultBatchCapacity, resp.Capacity)
	assert.Equal(t, models.DefaultBatchCapacity, resp.AvailableSeats)
	assert.True(t, resp.IsActive)
}

func TestCreateBatchChecksTeacher(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	svc := f.batchService()
	ctx := context.Background()

	_, err := svc.CreateBatch(ctx, adminActor, &dto.BatchRequest{Name: "A", TeacherID: ptr(parentActor.UserID)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "teacherId", apperrors.Field(err))

	_, err = svc.CreateBatch(ctx, adminActor, &dto.BatchRequest{Name: "A", TeacherID: ptr(int64(999))})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	resp, err := svc.CreateBatch(ctx, adminActor, &dto.BatchRequest{Name: "A", TeacherID: ptr(teacherActor.UserID)})
	require.NoError(t, err)
	assert.Equal(t, teacherActor.UserID, *resp.TeacherID)
}

func TestCreateBatchRequiresStaff(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	_, err := f.batchService().CreateBatch(context.Background(), parentActor, &dto.BatchRequest{Name: "A"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Empty(t, f.m.batches)
}

func TestDeleteBatchWithStudentsIsRejected(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	batch := f.m.addBatch("Morning", 30)
	f.m.addStudent(&batch.ID, date(2024, 6, 1))

	err := f.batchService().DeleteBatch(context.Background(), adminActor, batch.ID)
	assert.ErrorIs(t, err, apperrors.ErrIntegrity)
	assert.Contains(t, f.m.batches, batch.ID)
}

func TestDeleteBatchWithFeeStructureIsRejected(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	batch := f.m.addBatch("Morning", 30)
	require.NoError(t, f.structures.Create(context.Background(),
		&models.FeeStructure{BatchID: &batch.ID, Name: "Tuition", Amount: 1000, IsActive: true}))

	err := f.batchService().DeleteBatch(context.Background(), adminActor, batch.ID)
	assert.ErrorIs(t, err, apperrors.ErrIntegrity)
	assert.Contains(t, f.m.batches, batch.ID)
}

func TestDeleteEmptyBatch(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	batch := f.m.addBatch("Morning", 30)
	svc := f.batchService()

	require.NoError(t, svc.DeleteBatch(context.Background(), adminActor, batch.ID))
	assert.NotContains(t, f.m.batches, batch.ID)

	err := svc.DeleteBatch(context.Background(), adminActor, batch.ID)
	assert.ErrorIs(t, err, apperrors.ErrBatchNotFound)
}

func TestListBatchesReportsSeats(t *testing.T) {
	f := newFixture(date(2025, 1, 1))
	batch := f.m.addBatch("Morning", 2)
	f.m.addStudent(&batch.ID, date(2024, 6, 1))
	dropped := f.m.addStudent(&batch.ID, date(2024, 6, 1))
	dropped.Status = models.StudentDropped
	f.m.addBatch("Closed", 10).IsActive = false

	list, err := f.batchService().ListBatches(context.Background(), teacherActor, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].StudentCount)
	assert.Equal(t, 1, list[0].AvailableSeats)
}
