package memos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kotche/memo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*DefaultRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewDefaultRepository(db), mock
}

func TestPut_Upserts(t *testing.T) {
	repo, mock := newMockRepository(t)
	memo := model.Memo{
		ID:         "m1",
		Title:      "Pay rent",
		Details:    "",
		ReminderAt: time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`INSERT INTO memos \(user_id,id,title,details,reminder_date\) VALUES \(\$1,\$2,\$3,\$4,\$5\) ON CONFLICT \(user_id, id\) DO UPDATE`).
		WithArgs("u1", "m1", "Pay rent", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Put(context.Background(), "u1", memo))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPut_WrapsDriverError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`INSERT INTO memos`).WillReturnError(errors.New("connection reset"))

	err := repo.Put(context.Background(), "u1", model.NewMemo("x", "", time.Now()))
	assert.ErrorIs(t, err, model.ErrStore)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestList_ScansRowsInUTC(t *testing.T) {
	repo, mock := newMockRepository(t)
	moscow := time.FixedZone("MSK", 3*60*60)
	at := time.Date(2030, 1, 1, 12, 0, 0, 0, moscow)

	rows := sqlmock.NewRows([]string{"id", "title", "details", "reminder_date"}).
		AddRow("m1", "Pay rent", "", at).
		AddRow("m2", "Dentist", "bring card", at.Add(time.Hour))

	mock.ExpectQuery(`SELECT id, title, details, reminder_date FROM memos WHERE user_id = \$1 ORDER BY reminder_date, id`).
		WithArgs("u1").
		WillReturnRows(rows)

	memos, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, memos, 2)
	assert.Equal(t, model.MemoID("m1"), memos[0].ID)
	assert.Equal(t, time.UTC, memos[0].ReminderAt.Location())
	assert.True(t, memos[0].ReminderAt.Equal(at))
	assert.Equal(t, "bring card", memos[1].Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_EmptyIsNotNil(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .* FROM memos`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "details", "reminder_date"}))

	memos, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, memos)
	assert.Empty(t, memos)
}

func TestDelete(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM memos WHERE id = \$1 AND user_id = \$2`).
		WithArgs("m1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "u1", "m1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM memos`).
		WithArgs("missing", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, model.ErrStore)
	assert.ErrorIs(t, err, model.ErrMemoNotFound)
}
