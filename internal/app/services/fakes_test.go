package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
)

// memStore backs every fake repository in this package's tests. Reads hand out
// copies so a service that fails half way does not leak edits into the store.
type memStore struct {
	nextID        int64
	users         map[int64]*models.User
	tokens        map[string]*models.RefreshToken
	batches       map[int64]*models.Batch
	students      map[int64]*models.Student
	attendance    map[string]*models.Attendance
	structures    map[int64]*models.FeeStructure
	transactions  []*models.FeeTransaction
	dues          map[int64]*models.FeeDue
	conversations map[int64]*models.Conversation
	messages      []*models.Message
	announcements map[int64]*models.Announcement

	lockedPrefixes []string
	deletions      []string
	msgClock       time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int64]*models.User),
		tokens:        make(map[string]*models.RefreshToken),
		batches:       make(map[int64]*models.Batch),
		students:      make(map[int64]*models.Student),
		attendance:    make(map[string]*models.Attendance),
		structures:    make(map[int64]*models.FeeStructure),
		dues:          make(map[int64]*models.FeeDue),
		conversations: make(map[int64]*models.Conversation),
		announcements: make(map[int64]*models.Announcement),
		msgClock:      time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) deleted(what string, id int64) {
	m.deletions = append(m.deletions, fmt.Sprintf("%s:%d", what, id))
}

func sortedIDs[T any](items map[int64]T) []int64 {
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// passThroughTx runs the function without a database
type passThroughTx struct {
	calls int
}

func (t *passThroughTx) WithTransaction(ctx context.Context, fn db.TransactionFn) error {
	t.calls++
	return fn(ctx)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func plainHasher(password string) (string, error) {
	return "hashed:" + password, nil
}

func testSettings() SchoolSettings {
	return SchoolSettings{
		ReceiptPrefix:    "REC",
		StudentIDPrefix:  "SGA",
		PendingTolerance: 1,
		FeeWindowDays:    30,
		UsernameDomain:   "sga",
	}
}

var (
	adminActor   = models.Actor{UserID: 1, Role: models.RoleAdmin}
	teacherActor = models.Actor{UserID: 2, Role: models.RoleTeacher}
	parentActor  = models.Actor{UserID: 3, Role: models.RoleParent}
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// --- users and tokens ---

type fakeUserRepo struct {
	repositories.IUserRepository
	m *memStore
}

func (r fakeUserRepo) Create(_ context.Context, u *models.User) error {
	for _, other := range r.m.users {
		if strings.EqualFold(other.Email, u.Email) {
			return apperrors.ErrEmailAlreadyExists
		}
		if other.Username == u.Username {
			return apperrors.NewConflictError("Username already exists")
		}
	}
	u.ID = r.m.id()
	cp := *u
	r.m.users[u.ID] = &cp
	return nil
}

func (r fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := r.m.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]*models.User, error) {
	out := make(map[int64]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (r fakeUserRepo) Update(_ context.Context, u *models.User) error {
	if _, ok := r.m.users[u.ID]; !ok {
		return apperrors.ErrUserNotFound
	}
	cp := *u
	r.m.users[u.ID] = &cp
	return nil
}

func (r fakeUserRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.users[id]; !ok {
		return apperrors.ErrUserNotFound
	}
	delete(r.m.users, id)
	r.m.deleted("user", id)
	return nil
}

func (r fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, id := range sortedIDs(r.m.users) {
		if u := r.m.users[id]; strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, id := range sortedIDs(r.m.users) {
		if u := r.m.users[id]; u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r fakeUserRepo) EmailExists(_ context.Context, email string, excludeID int64) (bool, error) {
	for _, u := range r.m.users {
		if u.ID != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	for _, u := range r.m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeUserRepo) UpdateLastLogin(_ context.Context, userID int64, at time.Time) error {
	u, ok := r.m.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r fakeUserRepo) ListByRole(_ context.Context, role models.Role) ([]*models.User, error) {
	var out []*models.User
	for _, id := range sortedIDs(r.m.users) {
		if u := r.m.users[id]; u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeUserRepo) Search(_ context.Context, excludeID int64, term string, limit int) ([]*models.User, error) {
	var out []*models.User
	for _, id := range sortedIDs(r.m.users) {
		u := r.m.users[id]
		if !u.IsActive || u.ID == excludeID {
			continue
		}
		t := strings.ToLower(term)
		if t != "" && !strings.Contains(strings.ToLower(u.Username), t) && !strings.Contains(strings.ToLower(u.Email), t) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeTokenRepo struct {
	repositories.ITokenRepository
	m *memStore
}

func (r fakeTokenRepo) CreateToken(_ context.Context, token string, userID int64, expiresAt time.Time) error {
	r.m.tokens[token] = &models.RefreshToken{ID: r.m.id(), UserID: userID, Token: token, ExpiresAt: expiresAt}
	return nil
}

func (r fakeTokenRepo) GetToken(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := r.m.tokens[token]
	if !ok {
		return nil, apperrors.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r fakeTokenRepo) RevokeToken(_ context.Context, token string) error {
	t, ok := r.m.tokens[token]
	if !ok {
		return apperrors.ErrTokenNotFound
	}
	t.IsRevoked = true
	return nil
}

func (r fakeTokenRepo) RevokeAllUserTokens(_ context.Context, userID int64) error {
	for _, t := range r.m.tokens {
		if t.UserID == userID {
			t.IsRevoked = true
		}
	}
	return nil
}

func (r fakeTokenRepo) DeleteUserTokens(_ context.Context, userID int64) error {
	for k, t := range r.m.tokens {
		if t.UserID == userID {
			delete(r.m.tokens, k)
		}
	}
	r.m.deleted("tokens", userID)
	return nil
}

// --- enrollment ---

type fakeBatchRepo struct {
	repositories.IBatchRepository
	m *memStore
}

func (r fakeBatchRepo) withCount(b *models.Batch) *models.Batch {
	cp := *b
	cp.StudentCount = 0
	for _, s := range r.m.students {
		if s.BatchID != nil && *s.BatchID == b.ID && s.Status == models.StudentActive {
			cp.StudentCount++
		}
	}
	return &cp
}

func (r fakeBatchRepo) Create(_ context.Context, b *models.Batch) error {
	b.ID = r.m.id()
	cp := *b
	r.m.batches[b.ID] = &cp
	return nil
}

func (r fakeBatchRepo) GetByID(_ context.Context, id int64) (*models.Batch, error) {
	b, ok := r.m.batches[id]
	if !ok {
		return nil, apperrors.ErrBatchNotFound
	}
	return r.withCount(b), nil
}

func (r fakeBatchRepo) LockByID(ctx context.Context, id int64) (*models.Batch, error) {
	return r.GetByID(ctx, id)
}

func (r fakeBatchRepo) List(_ context.Context, activeOnly bool) ([]*models.Batch, error) {
	var out []*models.Batch
	for _, id := range sortedIDs(r.m.batches) {
		if b := r.m.batches[id]; !activeOnly || b.IsActive {
			out = append(out, r.withCount(b))
		}
	}
	return out, nil
}

func (r fakeBatchRepo) ListByTeacher(_ context.Context, teacherID int64) ([]*models.Batch, error) {
	out := []*models.Batch{}
	for _, id := range sortedIDs(r.m.batches) {
		if b := r.m.batches[id]; b.TeacherID != nil && *b.TeacherID == teacherID {
			out = append(out, r.withCount(b))
		}
	}
	return out, nil
}

func (r fakeBatchRepo) Update(_ context.Context, b *models.Batch) error {
	if _, ok := r.m.batches[b.ID]; !ok {
		return apperrors.ErrBatchNotFound
	}
	cp := *b
	r.m.batches[b.ID] = &cp
	return nil
}

func (r fakeBatchRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.batches[id]; !ok {
		return apperrors.ErrBatchNotFound
	}
	delete(r.m.batches, id)
	r.m.deleted("batch", id)
	return nil
}

func (r fakeBatchRepo) UnassignTeacher(_ context.Context, teacherID int64) (int64, error) {
	var n int64
	for _, b := range r.m.batches {
		if b.TeacherID != nil && *b.TeacherID == teacherID {
			b.TeacherID = nil
			n++
		}
	}
	return n, nil
}

type fakeStudentRepo struct {
	repositories.IStudentRepository
	m *memStore
}

func (r fakeStudentRepo) Create(_ context.Context, s *models.Student) error {
	s.ID = r.m.id()
	cp := *s
	r.m.students[s.ID] = &cp
	return nil
}

func (r fakeStudentRepo) GetByID(_ context.Context, id int64) (*models.Student, error) {
	s, ok := r.m.students[id]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	cp := *s
	return &cp, nil
}

func (r fakeStudentRepo) GetByUserID(_ context.Context, userID int64) (*models.Student, error) {
	for _, id := range sortedIDs(r.m.students) {
		if s := r.m.students[id]; s.UserID != nil && *s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperrors.ErrStudentNotFound
}

func (r fakeStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]*models.Student, int64, error) {
	var all []*models.Student
	for _, id := range sortedIDs(r.m.students) {
		s := r.m.students[id]
		if filter.BatchID != nil && (s.BatchID == nil || *s.BatchID != *filter.BatchID) {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.EnrolledSince != nil && (s.EnrollmentDate == nil || s.EnrollmentDate.Before(*filter.EnrolledSince)) {
			continue
		}
		cp := *s
		all = append(all, &cp)
	}
	total := int64(len(all))
	start := int(filter.Offset)
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r fakeStudentRepo) ListActiveByBatch(_ context.Context, batchID int64) ([]*models.Student, error) {
	id := batchID
	return r.ListActiveWithBatch(context.Background(), &id)
}

func (r fakeStudentRepo) ListActiveWithBatch(_ context.Context, batchID *int64) ([]*models.Student, error) {
	var out []*models.Student
	for _, id := range sortedIDs(r.m.students) {
		s := r.m.students[id]
		if s.Status != models.StudentActive || s.BatchID == nil {
			continue
		}
		if batchID != nil && *s.BatchID != *batchID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeStudentRepo) Update(_ context.Context, s *models.Student) error {
	if _, ok := r.m.students[s.ID]; !ok {
		return apperrors.ErrStudentNotFound
	}
	cp := *s
	r.m.students[s.ID] = &cp
	return nil
}

func (r fakeStudentRepo) MoveToBatch(_ context.Context, ids []int64, batchID int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if s, ok := r.m.students[id]; ok {
			b := batchID
			s.BatchID = &b
			n++
		}
	}
	return n, nil
}

func (r fakeStudentRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.students[id]; !ok {
		return apperrors.ErrStudentNotFound
	}
	delete(r.m.students, id)
	r.m.deleted("student", id)
	return nil
}

func (r fakeStudentRepo) CountByBatch(_ context.Context, batchID int64) (int, error) {
	n := 0
	for _, s := range r.m.students {
		if s.BatchID != nil && *s.BatchID == batchID {
			n++
		}
	}
	return n, nil
}

func (r fakeStudentRepo) LatestCodeWithPrefix(_ context.Context, prefix string) (string, error) {
	ids := sortedIDs(r.m.students)
	for i := len(ids) - 1; i >= 0; i-- {
		if code := r.m.students[ids[i]].Code; strings.HasPrefix(code, prefix) {
			return code, nil
		}
	}
	return "", nil
}

type fakeSequenceRepo struct {
	m *memStore
}

func (r fakeSequenceRepo) LockPrefix(_ context.Context, prefix string) error {
	r.m.lockedPrefixes = append(r.m.lockedPrefixes, prefix)
	return nil
}

// --- attendance ---

type fakeAttendanceRepo struct {
	repositories.IAttendanceRepository
	m *memStore
}

func attendanceKey(studentID int64, day time.Time) string {
	return fmt.Sprintf("%d/%s", studentID, day.Format("2006-01-02"))
}

func (r fakeAttendanceRepo) Upsert(_ context.Context, rec *models.Attendance) error {
	key := attendanceKey(rec.StudentID, rec.Date)
	if existing, ok := r.m.attendance[key]; ok {
		rec.ID = existing.ID
	} else {
		rec.ID = r.m.id()
	}
	cp := *rec
	r.m.attendance[key] = &cp
	return nil
}

func (r fakeAttendanceRepo) ListByBatchAndDate(_ context.Context, batchID int64, day time.Time) (map[int64]*models.Attendance, error) {
	out := make(map[int64]*models.Attendance)
	for _, rec := range r.m.attendance {
		s, ok := r.m.students[rec.StudentID]
		if ok && s.BatchID != nil && *s.BatchID == batchID && rec.Date.Equal(day) {
			cp := *rec
			out[rec.StudentID] = &cp
		}
	}
	return out, nil
}

func (r fakeAttendanceRepo) ListByStudent(_ context.Context, studentID int64, from, to time.Time) ([]*models.Attendance, error) {
	var out []*models.Attendance
	for _, rec := range r.m.attendance {
		if rec.StudentID == studentID && !rec.Date.Before(from) && !rec.Date.After(to) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r fakeAttendanceRepo) MonthlyCounts(_ context.Context, batchID int64, from, to time.Time) (map[int64]models.AttendanceTally, error) {
	out := make(map[int64]models.AttendanceTally)
	for _, rec := range r.m.attendance {
		s, ok := r.m.students[rec.StudentID]
		if !ok || s.BatchID == nil || *s.BatchID != batchID || rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		t := out[rec.StudentID]
		t.Total++
		if rec.Status.CountsAsPresent() {
			t.Present++
		}
		out[rec.StudentID] = t
	}
	return out, nil
}

func (r fakeAttendanceRepo) DailyCounts(_ context.Context, day time.Time) (map[int64]models.DayCounts, error) {
	out := make(map[int64]models.DayCounts)
	for _, rec := range r.m.attendance {
		s, ok := r.m.students[rec.StudentID]
		if !ok || s.BatchID == nil || !rec.Date.Equal(day) {
			continue
		}
		c := out[*s.BatchID]
		c.Marked++
		switch {
		case rec.Status.CountsAsPresent():
			c.Present++
		case rec.Status == models.AttendanceAbsent:
			c.Absent++
		}
		out[*s.BatchID] = c
	}
	return out, nil
}

func (r fakeAttendanceRepo) DeleteByStudent(_ context.Context, studentID int64) error {
	for k, rec := range r.m.attendance {
		if rec.StudentID == studentID {
			delete(r.m.attendance, k)
		}
	}
	r.m.deleted("attendance", studentID)
	return nil
}

// --- fees ---

type fakeFeeStructureRepo struct {
	repositories.IFeeStructureRepository
	m *memStore
}

func (r fakeFeeStructureRepo) Create(_ context.Context, fs *models.FeeStructure) error {
	fs.ID = r.m.id()
	cp := *fs
	r.m.structures[fs.ID] = &cp
	return nil
}

func (r fakeFeeStructureRepo) GetByID(_ context.Context, id int64) (*models.FeeStructure, error) {
	fs, ok := r.m.structures[id]
	if !ok {
		return nil, apperrors.ErrFeeStructureNotFound
	}
	cp := *fs
	return &cp, nil
}

func (r fakeFeeStructureRepo) List(_ context.Context, batchID *int64, activeOnly bool) ([]*models.FeeStructure, error) {
	var out []*models.FeeStructure
	for _, id := range sortedIDs(r.m.structures) {
		fs := r.m.structures[id]
		if batchID != nil && (fs.BatchID == nil || *fs.BatchID != *batchID) {
			continue
		}
		if activeOnly && !fs.IsActive {
			continue
		}
		cp := *fs
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeFeeStructureRepo) FirstActiveForBatch(ctx context.Context, batchID int64) (*models.FeeStructure, error) {
	list, _ := r.List(ctx, &batchID, true)
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r fakeFeeStructureRepo) FirstActiveByBatch(_ context.Context) (map[int64]*models.FeeStructure, error) {
	out := make(map[int64]*models.FeeStructure)
	for _, id := range sortedIDs(r.m.structures) {
		fs := r.m.structures[id]
		if !fs.IsActive || fs.BatchID == nil {
			continue
		}
		if _, seen := out[*fs.BatchID]; !seen {
			cp := *fs
			out[*fs.BatchID] = &cp
		}
	}
	return out, nil
}

func (r fakeFeeStructureRepo) Delete(_ context.Context, id int64) error {
	for _, t := range r.m.transactions {
		if t.FeeStructureID != nil && *t.FeeStructureID == id {
			return apperrors.NewIntegrityError("Fee structure is referenced by payments")
		}
	}
	if _, ok := r.m.structures[id]; !ok {
		return apperrors.ErrFeeStructureNotFound
	}
	delete(r.m.structures, id)
	return nil
}

type fakeFeeTxRepo struct {
	repositories.IFeeTransactionRepository
	m *memStore
}

func (r fakeFeeTxRepo) Create(_ context.Context, t *models.FeeTransaction) error {
	for _, other := range r.m.transactions {
		if other.ReceiptNumber == t.ReceiptNumber {
			return apperrors.NewConflictError("Receipt number already exists")
		}
	}
	t.ID = r.m.id()
	cp := *t
	r.m.transactions = append(r.m.transactions, &cp)
	return nil
}

func (r fakeFeeTxRepo) GetByID(_ context.Context, id int64) (*models.FeeTransaction, error) {
	for _, t := range r.m.transactions {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperrors.ErrFeeTransactionNotFound
}

func (r fakeFeeTxRepo) List(_ context.Context, filter models.TransactionFilter) ([]*models.FeeTransaction, int64, error) {
	var all []*models.FeeTransaction
	for _, t := range r.m.transactions {
		if filter.StudentID != nil && t.StudentID != *filter.StudentID {
			continue
		}
		cp := *t
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PaymentDate.Equal(all[j].PaymentDate) {
			return all[i].PaymentDate.After(all[j].PaymentDate)
		}
		return all[i].ID > all[j].ID
	})
	total := int64(len(all))
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (r fakeFeeTxRepo) ListByStudent(_ context.Context, studentID int64) ([]*models.FeeTransaction, error) {
	var out []*models.FeeTransaction
	for i := len(r.m.transactions) - 1; i >= 0; i-- {
		if t := r.m.transactions[i]; t.StudentID == studentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeFeeTxRepo) ListBetween(_ context.Context, from, to time.Time) ([]*models.FeeTransaction, error) {
	var out []*models.FeeTransaction
	for _, t := range r.m.transactions {
		if !t.PaymentDate.Before(from) && !t.PaymentDate.After(to) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeFeeTxRepo) SumBetween(ctx context.Context, from, to time.Time) (float64, error) {
	list, _ := r.ListBetween(ctx, from, to)
	total := 0.0
	for _, t := range list {
		total += t.Amount
	}
	return total, nil
}

func (r fakeFeeTxRepo) LatestReceiptWithPrefix(_ context.Context, prefix string) (string, error) {
	for i := len(r.m.transactions) - 1; i >= 0; i-- {
		if n := r.m.transactions[i].ReceiptNumber; strings.HasPrefix(n, prefix) {
			return n, nil
		}
	}
	return "", nil
}

func (r fakeFeeTxRepo) TotalPaidByStudents(_ context.Context, ids []int64) (map[int64]float64, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[int64]float64)
	for _, t := range r.m.transactions {
		if want[t.StudentID] {
			out[t.StudentID] += t.Amount
		}
	}
	return out, nil
}

func (r fakeFeeTxRepo) LastPaymentDate(_ context.Context, studentID int64) (*time.Time, error) {
	var last *time.Time
	for _, t := range r.m.transactions {
		if t.StudentID == studentID && (last == nil || t.PaymentDate.After(*last)) {
			d := t.PaymentDate
			last = &d
		}
	}
	return last, nil
}

func (r fakeFeeTxRepo) DeleteByStudent(_ context.Context, studentID int64) error {
	kept := r.m.transactions[:0]
	for _, t := range r.m.transactions {
		if t.StudentID != studentID {
			kept = append(kept, t)
		}
	}
	r.m.transactions = kept
	r.m.deleted("transactions", studentID)
	return nil
}

type fakeFeeDueRepo struct {
	repositories.IFeeDueRepository
	m *memStore
}

func (r fakeFeeDueRepo) Create(_ context.Context, d *models.FeeDue) error {
	d.ID = r.m.id()
	cp := *d
	r.m.dues[d.ID] = &cp
	return nil
}

func (r fakeFeeDueRepo) LockByID(_ context.Context, id int64) (*models.FeeDue, error) {
	d, ok := r.m.dues[id]
	if !ok {
		return nil, apperrors.ErrFeeDueNotFound
	}
	cp := *d
	return &cp, nil
}

func (r fakeFeeDueRepo) Update(_ context.Context, d *models.FeeDue) error {
	cp := *d
	r.m.dues[d.ID] = &cp
	return nil
}

func (r fakeFeeDueRepo) ListByStudent(_ context.Context, studentID int64) ([]*models.FeeDue, error) {
	var out []*models.FeeDue
	for _, id := range sortedIDs(r.m.dues) {
		if d := r.m.dues[id]; d.StudentID == studentID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeFeeDueRepo) ListOverdue(_ context.Context, today time.Time) ([]*models.FeeDue, error) {
	var out []*models.FeeDue
	for _, id := range sortedIDs(r.m.dues) {
		if d := r.m.dues[id]; d.DueDate.Before(today) && d.Status != models.DuePaid {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (r fakeFeeDueRepo) MarkOverdue(_ context.Context, today time.Time) (int64, error) {
	var n int64
	for _, d := range r.m.dues {
		if d.DueDate.Before(today) && (d.Status == models.DuePending || d.Status == models.DuePartial) {
			d.Status = models.DueOverdue
			n++
		}
	}
	return n, nil
}

func (r fakeFeeDueRepo) OutstandingTotal(_ context.Context) (float64, error) {
	total := 0.0
	for _, d := range r.m.dues {
		if d.Status != models.DuePaid {
			total += d.Amount - d.PaidAmount
		}
	}
	return total, nil
}

func (r fakeFeeDueRepo) DeleteByStudent(_ context.Context, studentID int64) error {
	for id, d := range r.m.dues {
		if d.StudentID == studentID {
			delete(r.m.dues, id)
		}
	}
	r.m.deleted("dues", studentID)
	return nil
}

// --- messaging ---

type fakeChatRepo struct {
	repositories.IChatRepository
	m *memStore
}

func (r fakeChatRepo) FindConversation(_ context.Context, user1ID, user2ID int64) (*models.Conversation, error) {
	for _, id := range sortedIDs(r.m.conversations) {
		c := r.m.conversations[id]
		if (c.User1ID == user1ID && c.User2ID == user2ID) || (c.User1ID == user2ID && c.User2ID == user1ID) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.ErrConversationNotFound
}

func (r fakeChatRepo) CreateConversation(_ context.Context, user1ID, user2ID int64) (*models.Conversation, error) {
	c := &models.Conversation{ID: r.m.id(), User1ID: user1ID, User2ID: user2ID, LastMessageAt: r.m.msgClock, CreatedAt: r.m.msgClock}
	r.m.conversations[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r fakeChatRepo) GetConversation(_ context.Context, id int64) (*models.Conversation, error) {
	c, ok := r.m.conversations[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeChatRepo) ListConversationsForUser(_ context.Context, userID int64) ([]*models.Conversation, error) {
	var out []*models.Conversation
	for _, c := range r.m.conversations {
		if c.HasParticipant(userID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r fakeChatRepo) TouchConversation(_ context.Context, id int64, at time.Time) error {
	c, ok := r.m.conversations[id]
	if !ok {
		return apperrors.ErrConversationNotFound
	}
	c.LastMessageAt = at
	return nil
}

func (r fakeChatRepo) DeleteConversation(_ context.Context, id int64) error {
	if _, ok := r.m.conversations[id]; !ok {
		return apperrors.ErrConversationNotFound
	}
	for _, msg := range r.m.messages {
		if msg.ConversationID == id {
			return apperrors.NewIntegrityError("Conversation still has messages")
		}
	}
	delete(r.m.conversations, id)
	r.m.deleted("conversation", id)
	return nil
}

func (r fakeChatRepo) DeleteAllForUser(ctx context.Context, userID int64) error {
	for _, id := range sortedIDs(r.m.conversations) {
		if r.m.conversations[id].HasParticipant(userID) {
			if _, err := r.DeleteMessages(ctx, id); err != nil {
				return err
			}
			if err := r.DeleteConversation(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r fakeChatRepo) CreateMessage(_ context.Context, msg *models.Message) error {
	r.m.msgClock = r.m.msgClock.Add(time.Minute)
	msg.ID = r.m.id()
	msg.CreatedAt = r.m.msgClock
	cp := *msg
	r.m.messages = append(r.m.messages, &cp)
	return nil
}

func (r fakeChatRepo) GetMessage(_ context.Context, id int64) (*models.Message, error) {
	for _, msg := range r.m.messages {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, apperrors.ErrMessageNotFound
}

func (r fakeChatRepo) ListMessages(_ context.Context, conversationID, afterID int64) ([]*models.Message, error) {
	out := []*models.Message{}
	for _, msg := range r.m.messages {
		if msg.ConversationID == conversationID && msg.ID > afterID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeChatRepo) LastMessages(_ context.Context, conversationIDs []int64) (map[int64]*models.Message, error) {
	out := make(map[int64]*models.Message)
	for _, id := range conversationIDs {
		for _, msg := range r.m.messages {
			if msg.ConversationID == id {
				cp := *msg
				out[id] = &cp
			}
		}
	}
	return out, nil
}

func (r fakeChatRepo) MarkRead(_ context.Context, conversationID, readerID int64) (int64, error) {
	var n int64
	for _, msg := range r.m.messages {
		if msg.ConversationID == conversationID && msg.SenderID != readerID && !msg.IsRead {
			msg.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r fakeChatRepo) DeleteMessage(_ context.Context, id int64) error {
	for i, msg := range r.m.messages {
		if msg.ID == id {
			r.m.messages = append(r.m.messages[:i], r.m.messages[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrMessageNotFound
}

func (r fakeChatRepo) DeleteMessages(_ context.Context, conversationID int64) (int64, error) {
	var n int64
	kept := r.m.messages[:0]
	for _, msg := range r.m.messages {
		if msg.ConversationID == conversationID {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	r.m.messages = kept
	return n, nil
}

func (r fakeChatRepo) UnreadCount(_ context.Context, conversationID, userID int64) (int, error) {
	n := 0
	for _, msg := range r.m.messages {
		if msg.ConversationID == conversationID && msg.SenderID != userID && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

func (r fakeChatRepo) UnreadCounts(ctx context.Context, userID int64) (map[int64]int, error) {
	out := make(map[int64]int)
	for id, c := range r.m.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		if n, _ := r.UnreadCount(ctx, id, userID); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (r fakeChatRepo) TotalUnread(ctx context.Context, userID int64) (int, error) {
	counts, _ := r.UnreadCounts(ctx, userID)
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// --- announcements ---

type fakeAnnouncementRepo struct {
	repositories.IAnnouncementRepository
	m *memStore
}

func (r fakeAnnouncementRepo) Create(_ context.Context, a *models.Announcement) error {
	a.ID = r.m.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.m.msgClock.Add(time.Duration(a.ID) * time.Minute)
	}
	cp := *a
	r.m.announcements[a.ID] = &cp
	return nil
}

func (r fakeAnnouncementRepo) GetByID(_ context.Context, id int64) (*models.Announcement, error) {
	a, ok := r.m.announcements[id]
	if !ok {
		return nil, apperrors.ErrAnnouncementNotFound
	}
	cp := *a
	return &cp, nil
}

func (r fakeAnnouncementRepo) Update(_ context.Context, a *models.Announcement) error {
	cp := *a
	r.m.announcements[a.ID] = &cp
	return nil
}

func (r fakeAnnouncementRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.announcements[id]; !ok {
		return apperrors.ErrAnnouncementNotFound
	}
	delete(r.m.announcements, id)
	return nil
}

func (r fakeAnnouncementRepo) ListCurrent(_ context.Context, today time.Time) ([]*models.Announcement, error) {
	var out []*models.Announcement
	for _, id := range sortedIDs(r.m.announcements) {
		if a := r.m.announcements[id]; !a.PublishDate.After(today) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeStorage records deletions instead of touching the disk
type fakeStorage struct {
	deleted []string
}

func (f *fakeStorage) SaveFileWithPath(file *multipart.FileHeader, dir string) (string, error) {
	return "/uploads/" + dir + "/" + file.Filename, nil
}

func (f *fakeStorage) DeleteFile(url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

// --- seed helpers ---

func (m *memStore) addUser(role models.Role, username string) *models.User {
	u := &models.User{ID: m.id(), Username: username, Email: username + "@school.test", Role: role, IsActive: true,
		PasswordHash: "hashed:secret123"}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addBatch(name string, capacity int) *models.Batch {
	b := &models.Batch{ID: m.id(), Name: name, Capacity: capacity, IsActive: true}
	m.batches[b.ID] = b
	return b
}

func (m *memStore) addStudent(batchID *int64, enrolled time.Time) *models.Student {
	s := &models.Student{
		ID:             m.id(),
		FirstName:      "Student",
		LastName:       fmt.Sprint(m.nextID),
		BatchID:        batchID,
		EnrollmentDate: &enrolled,
		Status:         models.StudentActive,
	}
	m.students[s.ID] = s
	return s
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
