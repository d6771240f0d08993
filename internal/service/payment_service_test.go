package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-api/internal/models"
	"github.com/atelier-ops/atelier-api/internal/repository"
	appErrors "github.com/atelier-ops/atelier-api/pkg/errors"
	"github.com/atelier-ops/atelier-api/pkg/fiscal"
	"github.com/atelier-ops/atelier-api/pkg/mailer"
)

type mockPaymentRepo struct {
	listFn         func(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	findByIDFn     func(ctx context.Context, id string) (*models.Payment, error)
	findDetailFn   func(ctx context.Context, id string) (*models.PaymentDetail, error)
	createFn       func(ctx context.Context, payment *models.Payment) error
	markSentFn     func(ctx context.Context, id string, notifs []models.Notification) (*models.Payment, error)
	confirmFn      func(ctx context.Context, id string, notif *models.Notification, actorID *string) (*models.Payment, error)
	rejectFn       func(ctx context.Context, id string, actorID *string) (*models.Payment, error)
	recordFiscalFn func(ctx context.Context, id string, fiscal models.FiscalRecord, actorID *string) (*models.Payment, error)
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	return m.listFn(ctx, filter)
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockPaymentRepo) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	return m.findDetailFn(ctx, id)
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return m.createFn(ctx, payment)
}

func (m *mockPaymentRepo) MarkSent(ctx context.Context, id string, notifs []models.Notification) (*models.Payment, error) {
	return m.markSentFn(ctx, id, notifs)
}

func (m *mockPaymentRepo) Confirm(ctx context.Context, id string, notif *models.Notification, actorID *string) (*models.Payment, error) {
	return m.confirmFn(ctx, id, notif, actorID)
}

func (m *mockPaymentRepo) Reject(ctx context.Context, id string, actorID *string) (*models.Payment, error) {
	return m.rejectFn(ctx, id, actorID)
}

func (m *mockPaymentRepo) RecordFiscal(ctx context.Context, id string, record models.FiscalRecord, actorID *string) (*models.Payment, error) {
	return m.recordFiscalFn(ctx, id, record, actorID)
}

type mockAuthority struct {
	issueFn func(ctx context.Context, req fiscal.InvoiceRequest) (*fiscal.InvoiceAuthorization, error)
}

func (m *mockAuthority) IssueInvoice(ctx context.Context, req fiscal.InvoiceRequest) (*fiscal.InvoiceAuthorization, error) {
	return m.issueFn(ctx, req)
}

type captureMailer struct {
	sent []mailer.Message
}

func (c *captureMailer) Dispatch(msg mailer.Message) {
	c.sent = append(c.sent, msg)
}

func pendingPaymentDetail(status models.PaymentStatus) *models.PaymentDetail {
	workshop := "Cerámica"
	return &models.PaymentDetail{
		Payment: models.Payment{
			ID:          "pay-1",
			StudentID:   "stu-1",
			Amount:      15000,
			PeriodMonth: 3,
			PeriodYear:  2026,
			Method:      "TRANSFERENCIA",
			Status:      status,
		},
		StudentName:  "Ana Pérez",
		StudentEmail: "ana@example.com",
		WorkshopName: &workshop,
	}
}

func TestPaymentServiceNotifySent(t *testing.T) {
	t.Run("fans notification out to every admin", func(t *testing.T) {
		var gotNotifs []models.Notification
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				return pendingPaymentDetail(models.PaymentStatusPendiente), nil
			},
			markSentFn: func(ctx context.Context, id string, notifs []models.Notification) (*models.Payment, error) {
				gotNotifs = notifs
				return &models.Payment{ID: id, Status: models.PaymentStatusPendienteVerificacion}, nil
			},
		}
		users := &mockUserReader{
			listAdminsFn: func(ctx context.Context) ([]models.User, error) {
				return []models.User{{ID: "adm-1"}, {ID: "adm-2"}}, nil
			},
		}
		svc := NewPaymentService(repo, users, nil, nil, nil, nil, nil, nil)

		_, err := svc.NotifySent(context.Background(), "pay-1")
		require.NoError(t, err)
		require.Len(t, gotNotifs, 2)
		assert.Equal(t, "adm-1", gotNotifs[0].UserID)
		assert.Equal(t, "adm-2", gotNotifs[1].UserID)
		for _, n := range gotNotifs {
			assert.Equal(t, models.NotificationKindPaymentSubmitted, n.Kind)
			assert.Contains(t, n.Message, "Ana Pérez")
		}
	})

	t.Run("terminal payment reports invalid transition", func(t *testing.T) {
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				return pendingPaymentDetail(models.PaymentStatusRechazado), nil
			},
			markSentFn: func(ctx context.Context, id string, notifs []models.Notification) (*models.Payment, error) {
				return nil, repository.ErrStateConflict
			},
		}
		users := &mockUserReader{
			listAdminsFn: func(ctx context.Context) ([]models.User, error) { return nil, nil },
		}
		svc := NewPaymentService(repo, users, nil, nil, nil, nil, nil, nil)

		_, err := svc.NotifySent(context.Background(), "pay-1")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	})
}

func TestPaymentServiceConfirm(t *testing.T) {
	users := &mockUserReader{
		findByStudentIDFn: func(ctx context.Context, studentID string) (*models.User, error) {
			return &models.User{ID: "usr-1"}, nil
		},
	}

	t.Run("confirms and emails the student after commit", func(t *testing.T) {
		var gotNotif *models.Notification
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				return pendingPaymentDetail(models.PaymentStatusPendienteVerificacion), nil
			},
			confirmFn: func(ctx context.Context, id string, notif *models.Notification, actorID *string) (*models.Payment, error) {
				gotNotif = notif
				return &models.Payment{ID: id, Status: models.PaymentStatusConfirmado}, nil
			},
		}
		mail := &captureMailer{}
		svc := NewPaymentService(repo, users, nil, mail, nil, nil, nil, nil)

		_, err := svc.Confirm(context.Background(), "pay-1", nil)
		require.NoError(t, err)

		require.NotNil(t, gotNotif)
		assert.Equal(t, models.NotificationKindPaymentConfirmed, gotNotif.Kind)
		require.Len(t, mail.sent, 1)
		assert.Equal(t, "ana@example.com", mail.sent[0].ToEmail)
	})

	t.Run("email failure cannot affect the confirmation", func(t *testing.T) {
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				return pendingPaymentDetail(models.PaymentStatusPendienteVerificacion), nil
			},
			confirmFn: func(ctx context.Context, id string, notif *models.Notification, actorID *string) (*models.Payment, error) {
				return &models.Payment{ID: id, Status: models.PaymentStatusConfirmado}, nil
			},
		}
		// nil mailer: dispatch is skipped entirely, confirmation still lands
		svc := NewPaymentService(repo, users, nil, nil, nil, nil, nil, nil)

		detail, err := svc.Confirm(context.Background(), "pay-1", nil)
		require.NoError(t, err)
		assert.NotNil(t, detail)
	})

	t.Run("confirming a terminal payment reports invalid transition", func(t *testing.T) {
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				return pendingPaymentDetail(models.PaymentStatusConfirmado), nil
			},
			confirmFn: func(ctx context.Context, id string, notif *models.Notification, actorID *string) (*models.Payment, error) {
				return nil, repository.ErrStateConflict
			},
		}
		svc := NewPaymentService(repo, users, nil, nil, nil, nil, nil, nil)

		_, err := svc.Confirm(context.Background(), "pay-1", nil)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	})
}

func TestPaymentServiceRecordFiscalData(t *testing.T) {
	validReq := RecordFiscalRequest{
		CAE:           "71234567890123",
		CAEDueDate:    time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		InvoiceNumber: "0001-00001234",
	}

	t.Run("unconfirmed payment reports not confirmed", func(t *testing.T) {
		repo := &mockPaymentRepo{
			recordFiscalFn: func(ctx context.Context, id string, record models.FiscalRecord, actorID *string) (*models.Payment, error) {
				return nil, repository.ErrStateConflict
			},
		}
		svc := NewPaymentService(repo, nil, nil, nil, nil, nil, nil, nil)

		_, err := svc.RecordFiscalData(context.Background(), "pay-1", validReq, nil)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotConfirmed.Code, appErrors.FromError(err).Code)
	})

	t.Run("second fiscal write reports already invoiced", func(t *testing.T) {
		repo := &mockPaymentRepo{
			recordFiscalFn: func(ctx context.Context, id string, record models.FiscalRecord, actorID *string) (*models.Payment, error) {
				return nil, repository.ErrFiscalRecorded
			},
		}
		svc := NewPaymentService(repo, nil, nil, nil, nil, nil, nil, nil)

		_, err := svc.RecordFiscalData(context.Background(), "pay-1", validReq, nil)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrAlreadyInvoiced.Code, appErrors.FromError(err).Code)
	})

	t.Run("missing CAE is rejected before touching the store", func(t *testing.T) {
		called := false
		repo := &mockPaymentRepo{
			recordFiscalFn: func(ctx context.Context, id string, record models.FiscalRecord, actorID *string) (*models.Payment, error) {
				called = true
				return nil, nil
			},
		}
		svc := NewPaymentService(repo, nil, nil, nil, nil, nil, nil, nil)

		_, err := svc.RecordFiscalData(context.Background(), "pay-1", RecordFiscalRequest{InvoiceNumber: "x"}, nil)
		require.Error(t, err)
		assert.False(t, called)
	})
}

func TestPaymentServiceIssueInvoice(t *testing.T) {
	t.Run("authority failure leaves payment untouched", func(t *testing.T) {
		recorded := false
		confirmedAt := time.Now()
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				detail := pendingPaymentDetail(models.PaymentStatusConfirmado)
				detail.ConfirmedAt = &confirmedAt
				return detail, nil
			},
			recordFiscalFn: func(ctx context.Context, id string, record models.FiscalRecord, actorID *string) (*models.Payment, error) {
				recorded = true
				return nil, nil
			},
		}
		authority := &mockAuthority{
			issueFn: func(ctx context.Context, req fiscal.InvoiceRequest) (*fiscal.InvoiceAuthorization, error) {
				return nil, errors.New("gateway timeout")
			},
		}
		svc := NewPaymentService(repo, nil, authority, nil, nil, nil, nil, nil)

		_, err := svc.IssueInvoice(context.Background(), "pay-1", IssueInvoiceRequest{}, nil)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrDependencyFailure.Code, appErrors.FromError(err).Code)
		assert.False(t, recorded, "no fiscal data may be written after a failed authority call")
	})

	t.Run("records the authorization returned by the authority", func(t *testing.T) {
		due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
		var gotRecord models.FiscalRecord
		confirmedAt := time.Now()
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				detail := pendingPaymentDetail(models.PaymentStatusConfirmado)
				detail.ConfirmedAt = &confirmedAt
				return detail, nil
			},
			recordFiscalFn: func(ctx context.Context, id string, record models.FiscalRecord, actorID *string) (*models.Payment, error) {
				gotRecord = record
				return &models.Payment{ID: id, Status: models.PaymentStatusConfirmado}, nil
			},
		}
		authority := &mockAuthority{
			issueFn: func(ctx context.Context, req fiscal.InvoiceRequest) (*fiscal.InvoiceAuthorization, error) {
				assert.Equal(t, 15000.0, req.Amount)
				return &fiscal.InvoiceAuthorization{CAE: "71234567890123", CAEDueDate: due, InvoiceNumber: "0001-00001234"}, nil
			},
		}
		svc := NewPaymentService(repo, nil, authority, nil, nil, nil, nil, nil)

		_, err := svc.IssueInvoice(context.Background(), "pay-1", IssueInvoiceRequest{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "71234567890123", gotRecord.CAE)
		assert.Equal(t, "0001-00001234", gotRecord.InvoiceNumber)
	})

	t.Run("unconfirmed payment is rejected before the authority call", func(t *testing.T) {
		called := false
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				return pendingPaymentDetail(models.PaymentStatusPendiente), nil
			},
		}
		authority := &mockAuthority{
			issueFn: func(ctx context.Context, req fiscal.InvoiceRequest) (*fiscal.InvoiceAuthorization, error) {
				called = true
				return nil, nil
			},
		}
		svc := NewPaymentService(repo, nil, authority, nil, nil, nil, nil, nil)

		_, err := svc.IssueInvoice(context.Background(), "pay-1", IssueInvoiceRequest{}, nil)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotConfirmed.Code, appErrors.FromError(err).Code)
		assert.False(t, called)
	})

	t.Run("already invoiced payment is rejected before the authority call", func(t *testing.T) {
		cae := "70000000000001"
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				detail := pendingPaymentDetail(models.PaymentStatusConfirmado)
				detail.CAE = &cae
				return detail, nil
			},
		}
		svc := NewPaymentService(repo, nil, &mockAuthority{}, nil, nil, nil, nil, nil)

		_, err := svc.IssueInvoice(context.Background(), "pay-1", IssueInvoiceRequest{}, nil)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrAlreadyInvoiced.Code, appErrors.FromError(err).Code)
	})
}

func TestPaymentServiceReceipt(t *testing.T) {
	t.Run("renders a PDF for a confirmed payment", func(t *testing.T) {
		confirmedAt := time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC)
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				detail := pendingPaymentDetail(models.PaymentStatusConfirmado)
				detail.ConfirmedAt = &confirmedAt
				return detail, nil
			},
		}
		svc := NewPaymentService(repo, nil, nil, nil, nil, nil, nil, nil)

		data, err := svc.Receipt(context.Background(), "pay-1")
		require.NoError(t, err)
		assert.True(t, len(data) > 0)
		assert.Equal(t, "%PDF", string(data[:4]))
	})

	t.Run("refuses a receipt for an unconfirmed payment", func(t *testing.T) {
		repo := &mockPaymentRepo{
			findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
				return pendingPaymentDetail(models.PaymentStatusPendienteVerificacion), nil
			},
		}
		svc := NewPaymentService(repo, nil, nil, nil, nil, nil, nil, nil)

		_, err := svc.Receipt(context.Background(), "pay-1")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotConfirmed.Code, appErrors.FromError(err).Code)
	})
}

func TestPaymentServiceExportCSV(t *testing.T) {
	repo := &mockPaymentRepo{
		listFn: func(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
			return []models.PaymentDetail{*pendingPaymentDetail(models.PaymentStatusConfirmado)}, 1, nil
		},
	}
	svc := NewPaymentService(repo, nil, nil, nil, nil, nil, nil, nil)

	data, err := svc.ExportCSV(context.Background(), models.PaymentFilter{})
	require.NoError(t, err)
	csv := string(data)
	assert.Contains(t, csv, "Student")
	assert.Contains(t, csv, "Ana Pérez")
	assert.Contains(t, csv, "CONFIRMADO")
}

func TestPaymentServiceGet(t *testing.T) {
	repo := &mockPaymentRepo{
		findDetailFn: func(ctx context.Context, id string) (*models.PaymentDetail, error) {
			return nil, sql.ErrNoRows
		},
	}
	svc := NewPaymentService(repo, nil, nil, nil, nil, nil, nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
