package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepositoryMarkRead(t *testing.T) {
	t.Run("marks an owned notification read", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewNotificationRepository(db)

		mock.ExpectExec("UPDATE notifications SET read = TRUE WHERE id = \\$1 AND user_id = \\$2").
			WithArgs("ntf-1", "usr-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkRead(context.Background(), "ntf-1", "usr-1")
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("another user's notification reads as missing", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewNotificationRepository(db)

		mock.ExpectExec("UPDATE notifications SET read = TRUE").
			WithArgs("ntf-1", "usr-2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkRead(context.Background(), "ntf-1", "usr-2")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNotificationRepositoryCountUnread(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM notifications WHERE user_id = \\$1 AND read = FALSE").
		WithArgs("usr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountUnread(context.Background(), "usr-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
