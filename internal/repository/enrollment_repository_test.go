package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return sqlxDB, mock, cleanup
}

func enrollmentRows(status models.EnrollmentStatus, notes string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "workshop_id", "phase", "status", "paid", "notes", "enrolled_at", "cancelled_at"}).
		AddRow("enr-1", "stu-1", "wks-1", "", string(status), false, notes, time.Now(), nil)
}

func TestEnrollmentRepositoryCancel(t *testing.T) {
	t.Run("commits status flip, cascade, notification and events as one unit", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewEnrollmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM enrollments e WHERE e.id = \\$1 FOR UPDATE").
			WithArgs("enr-1").
			WillReturnRows(enrollmentRows(models.EnrollmentStatusActive, "prior note"))
		mock.ExpectExec("UPDATE enrollments SET status = \\$2, cancelled_at = \\$3, notes = \\$4").
			WithArgs("enr-1", string(models.EnrollmentStatusCancelled), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("UPDATE payments SET status = \\$2, updated_at = \\$3").
			WithArgs("enr-1", string(models.PaymentStatusRechazado), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("pay-1"))
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO domain_events").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO domain_events").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		notif := &models.Notification{UserID: "usr-1", Title: "t", Message: "m", Kind: models.NotificationKindEnrollmentCancelled}
		result, err := repo.Cancel(context.Background(), "enr-1", "moved away", notif, nil)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, models.EnrollmentStatusCancelled, result.Enrollment.Status)
		assert.Equal(t, []string{"pay-1"}, result.RejectedPayments)
		assert.Contains(t, result.Enrollment.Notes, "prior note")
		assert.Contains(t, result.Enrollment.Notes, "Reason: moved away")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already cancelled rolls back with a state conflict", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewEnrollmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM enrollments e WHERE e.id = \\$1 FOR UPDATE").
			WithArgs("enr-1").
			WillReturnRows(enrollmentRows(models.EnrollmentStatusCancelled, ""))
		mock.ExpectRollback()

		_, err := repo.Cancel(context.Background(), "enr-1", "again", nil, nil)
		assert.ErrorIs(t, err, ErrStateConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no linked payments still cancels cleanly", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewEnrollmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM enrollments e WHERE e.id = \\$1 FOR UPDATE").
			WithArgs("enr-1").
			WillReturnRows(enrollmentRows(models.EnrollmentStatusActive, ""))
		mock.ExpectExec("UPDATE enrollments SET status").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("UPDATE payments SET status").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec("INSERT INTO domain_events").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := repo.Cancel(context.Background(), "enr-1", "reason", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, result.RejectedPayments)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnrollmentRepositoryCreate(t *testing.T) {
	t.Run("rolls back when the workshop is full", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewEnrollmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT capacity FROM workshops WHERE id = \\$1 FOR UPDATE").
			WithArgs("wks-1").
			WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(8))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments WHERE workshop_id = \\$1 AND status = \\$2").
			WithArgs("wks-1", string(models.EnrollmentStatusActive)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))
		mock.ExpectRollback()

		err := repo.Create(context.Background(), &models.Enrollment{StudentID: "stu-1", WorkshopID: "wks-1"})
		assert.ErrorIs(t, err, ErrCapacityFull)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inserts when a seat remains", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewEnrollmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT capacity FROM workshops WHERE id = \\$1 FOR UPDATE").
			WithArgs("wks-1").
			WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(8))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments WHERE workshop_id = \\$1 AND status = \\$2").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments WHERE student_id = \\$1 AND workshop_id = \\$2 AND status = \\$3").
			WithArgs("stu-1", "wks-1", string(models.EnrollmentStatusActive)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("INSERT INTO enrollments").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO domain_events").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		enrollment := &models.Enrollment{StudentID: "stu-1", WorkshopID: "wks-1"}
		err := repo.Create(context.Background(), enrollment)
		require.NoError(t, err)
		assert.NotEmpty(t, enrollment.ID)
		assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the student already holds an active enrollment", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewEnrollmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT capacity FROM workshops WHERE id = \\$1 FOR UPDATE").
			WithArgs("wks-1").
			WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(8))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments WHERE workshop_id = \\$1 AND status = \\$2").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments WHERE student_id = \\$1 AND workshop_id = \\$2 AND status = \\$3").
			WithArgs("stu-1", "wks-1", string(models.EnrollmentStatusActive)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		err := repo.Create(context.Background(), &models.Enrollment{StudentID: "stu-1", WorkshopID: "wks-1"})
		assert.ErrorIs(t, err, ErrDuplicateEnrollment)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
