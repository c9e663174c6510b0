package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kotche/memo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemoInput(t *testing.T) {
	title, details, at, err := parseMemoInput("Pay rent | before noon | 2030-01-05 14:30")
	require.NoError(t, err)

	assert.Equal(t, "Pay rent", title)
	assert.Equal(t, "before noon", details)
	assert.Equal(t, time.Date(2030, 1, 5, 14, 30, 0, 0, time.Local), at)
}

func TestParseMemoInput_HourOnlyWithoutDetails(t *testing.T) {
	title, details, at, err := parseMemoInput("Dentist | 2030-03-01 14")
	require.NoError(t, err)

	assert.Equal(t, "Dentist", title)
	assert.Empty(t, details)
	assert.Equal(t, time.Date(2030, 3, 1, 14, 0, 0, 0, time.Local), at)
}

func TestParseMemoInput_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"no separators", "Pay rent tomorrow"},
		{"too many parts", "a | b | c | 2030-01-05 14:30"},
		{"missing time", "Pay rent | 2030-01-05"},
		{"bad time", "Pay rent | 2030-01-05 25:99"},
		{"bad date", "Pay rent | 2030-13-40 10:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := parseMemoInput(tt.payload)
			assert.Error(t, err)
		})
	}
}

func TestSplitIndex(t *testing.T) {
	n, rest, err := splitIndex(" 2 New title | 2030-01-05 10 ")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "New title | 2030-01-05 10", rest)

	n, rest, err = splitIndex("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, rest)

	_, _, err = splitIndex("first")
	assert.Error(t, err)
}

func TestParseCredentials(t *testing.T) {
	email, password, err := parseCredentials([]string{"a@b.c", "secret"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", email)
	assert.Equal(t, "secret", password)

	_, _, err = parseCredentials([]string{"a@b.c"})
	assert.Error(t, err)
}

func TestPick(t *testing.T) {
	list := []model.Memo{{ID: "m1"}, {ID: "m2"}}

	memo, ok := pick(list, 2)
	assert.True(t, ok)
	assert.Equal(t, model.MemoID("m2"), memo.ID)

	_, ok = pick(list, 0)
	assert.False(t, ok)
	_, ok = pick(list, 3)
	assert.False(t, ok)
}

func TestFormatMemoList(t *testing.T) {
	assert.Equal(t, "Заметок нет", formatMemoList(nil))

	at := time.Date(2030, 1, 5, 9, 0, 0, 0, time.Local)
	got := formatMemoList([]model.Memo{
		{ID: "m1", Title: "Pay rent", Details: "before noon", ReminderAt: at},
		{ID: "m2", Title: "Dentist", ReminderAt: at},
	})

	assert.Equal(t, "Заметки:\n"+
		"1. Pay rent (напоминание: 2030-01-05 09:00)\n"+
		"   before noon\n"+
		"2. Dentist (напоминание: 2030-01-05 09:00)\n", got)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{model.ErrNotAuthenticated, "Сначала войдите: /signin email пароль"},
		{fmt.Errorf("%w: create: %w", model.ErrTimeout, context.DeadlineExceeded), "Операция заняла слишком много времени. Попробуйте позже."},
		{&model.AuthError{Op: "authenticate", Err: model.ErrInvalidCredentials}, "Неверный email или пароль"},
		{&model.StoreError{Op: "delete", Err: model.ErrMemoNotFound}, "Заметка не найдена. Обновите список: /list"},
		{&model.StoreError{Op: "put", Err: errors.New("connection refused")}, "Ошибка при сохранении. Попробуйте позже."},
		{errors.New("boom"), "Ошибка. Попробуйте позже."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errorMessage(tt.err), tt.err.Error())
	}
}

func TestChatKeepsSessionPerChat(t *testing.T) {
	w := New(nil, nil, nil, nil)

	first := w.chat(1)
	assert.Same(t, first, w.chat(1))
	assert.NotSame(t, first, w.chat(2))

	first.setPending(&model.Memo{ID: "m1"})
	pending := first.takePending()
	require.NotNil(t, pending)
	assert.Equal(t, model.MemoID("m1"), pending.ID)
	assert.Nil(t, first.takePending())
}

type fakeProvider struct{}

func (fakeProvider) CreateIdentity(context.Context, string, string) (model.UserID, error) {
	return "u1", nil
}

func (fakeProvider) Authenticate(context.Context, string, string) (model.UserID, error) {
	return "u1", nil
}

func (fakeProvider) Profile(_ context.Context, userID model.UserID) (*model.User, error) {
	return &model.User{ID: userID, Email: "a@b.c"}, nil
}

// fakeCoordinator records created memos and fails the first createErrs calls.
type fakeCoordinator struct {
	mu         sync.Mutex
	createErrs []error
	created    []model.Memo
	resynced   []model.UserID
	resyncErr  error
}

func (f *fakeCoordinator) Create(_ context.Context, _ model.UserID, memo model.Memo) (model.Memo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, memo)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return memo, err
	}
	return memo, nil
}

func (f *fakeCoordinator) FetchAll(context.Context, model.UserID) ([]model.Memo, error) {
	return nil, nil
}

func (f *fakeCoordinator) Update(context.Context, model.UserID, model.Memo) error { return nil }
func (f *fakeCoordinator) Delete(context.Context, model.UserID, model.Memo) error { return nil }

func (f *fakeCoordinator) Resync(_ context.Context, userID model.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resynced = append(f.resynced, userID)
	return f.resyncErr
}

func (f *fakeCoordinator) Memos(model.UserID) []model.Memo { return nil }
func (f *fakeCoordinator) Forget(model.UserID) {}

type fakeScheduler struct {
	granted map[model.UserID]int64
}

func (f *fakeScheduler) Schedule(context.Context, model.Reminder) error { return nil }

func (f *fakeScheduler) Cancel(context.Context, model.UserID, model.MemoID) error { return nil }

func (f *fakeScheduler) RequestPermission(_ context.Context, userID model.UserID, chatID int64) (bool, error) {
	f.granted[userID] = chatID
	return true, nil
}

func newSignedInWriter(t *testing.T) (*Writer, *fakeCoordinator, *fakeScheduler) {
	t.Helper()

	coordinator := &fakeCoordinator{}
	sched := &fakeScheduler{granted: map[model.UserID]int64{}}
	w := New(nil, fakeProvider{}, coordinator, sched)

	_, err := w.chat(7).session.SignIn(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)

	return w, coordinator, sched
}

func TestRetry_ReusesMemoID(t *testing.T) {
	w, coordinator, _ := newSignedInWriter(t)
	coordinator.createErrs = []error{&model.StoreError{Op: "put", Err: errors.New("connection reset")}}

	reply := w.newMemo(7, "Pay rent | before noon | 2030-01-05 14:30")
	assert.True(t, strings.HasSuffix(reply, "Повторить: /retry"), reply)

	reply = w.retry(7)
	assert.True(t, strings.HasPrefix(reply, "Сохранена заметка \"Pay rent\""), reply)

	require.Len(t, coordinator.created, 2)
	assert.NotEmpty(t, coordinator.created[0].ID)
	assert.Equal(t, coordinator.created[0], coordinator.created[1])

	assert.Equal(t, "Нечего повторять", w.retry(7))
}

func TestNewMemo_ValidationErrorIsNotRetried(t *testing.T) {
	w, coordinator, _ := newSignedInWriter(t)
	coordinator.createErrs = []error{fmt.Errorf("%w: memo title is empty", model.ErrValidation)}

	w.newMemo(7, " | 2030-01-05 14:30")

	assert.Equal(t, "Нечего повторять", w.retry(7))
}

func TestRetry_NotAuthenticated(t *testing.T) {
	w := New(nil, fakeProvider{}, &fakeCoordinator{}, &fakeScheduler{})

	assert.Equal(t, errorMessage(model.ErrNotAuthenticated), w.retry(7))
}

func TestNotify_ResyncsExistingMemos(t *testing.T) {
	w, coordinator, sched := newSignedInWriter(t)

	assert.Equal(t, "Напоминания будут приходить в этот чат", w.notify(7))
	assert.Equal(t, int64(7), sched.granted["u1"])
	assert.Equal(t, []model.UserID{"u1"}, coordinator.resynced)
}

func TestNotify_ResyncFailureIsReported(t *testing.T) {
	w, coordinator, sched := newSignedInWriter(t)
	coordinator.resyncErr = &model.StoreError{Op: "list", Err: errors.New("unavailable")}

	reply := w.notify(7)
	assert.Contains(t, reply, "старые заметки обновить не удалось")
	assert.Equal(t, int64(7), sched.granted["u1"])
}
