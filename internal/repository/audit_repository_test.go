package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voyage-admin-api/internal/models"
)

func newAuditRepoMock(t *testing.T) (*AuditRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewAuditRepository(sqlx.NewDb(db, "postgres")), mock, func() { db.Close() }
}

func TestAuditRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	bookingID := "b1"
	entry := &models.AuditLog{
		Action:     models.AuditActionBookingAdmit,
		Resource:   models.AuditResourceBooking,
		ResourceID: &bookingID,
		CalendarID: "agency",
		NewValues:  []byte(`{"id":"b1"}`),
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListFiltersAndCapsLimit(t *testing.T) {
	repo, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_role", "action", "resource", "resource_id", "calendar_id", "txn_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("a1", "user-1", "staff", "BOOKING_CANCEL", "booking", "b1", "agency", nil, []byte(`{"status":"confirmed"}`), []byte(`{"status":"cancelled"}`), "10.0.0.1", "curl", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE calendar_id = $1 ORDER BY created_at DESC, id LIMIT $2")).
		WithArgs("agency", defaultAuditLimit).
		WillReturnRows(rows)

	logs, err := repo.List(context.Background(), models.AuditFilter{CalendarID: "agency", Limit: 5000})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "BOOKING_CANCEL", logs[0].Action)
	assert.JSONEq(t, `{"status":"cancelled"}`, string(logs[0].NewValues))
	require.NoError(t, mock.ExpectationsWereMet())
}
