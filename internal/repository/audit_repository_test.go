package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/medsurat-api/internal/models"
)

func TestAuditRepositoryCreateAssignsIDAndTimestamp(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: "REQUEST_APPROVE", Resource: "certificate_request"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByResource(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "actor", "action", "resource", "resource_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("a1", nil, "REQUEST_CREATE", "certificate_request", "req_a", nil, []byte(`{"status":"PENDING"}`), "10.0.0.1", "curl", now).
		AddRow("a2", "dokter@klinik.test", "REQUEST_APPROVE", "certificate_request", "req_a", nil, nil, "10.0.0.2", "firefox", now.Add(time.Minute))
	mock.ExpectQuery("FROM audit_logs WHERE resource = \\$1 AND resource_id = \\$2 ORDER BY created_at ASC").
		WithArgs("certificate_request", "req_a").
		WillReturnRows(rows)

	logs, err := repo.ListByResource(context.Background(), "certificate_request", "req_a")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Nil(t, logs[0].Actor)
	require.NotNil(t, logs[1].Actor)
	assert.Equal(t, "dokter@klinik.test", *logs[1].Actor)
	assert.NoError(t, mock.ExpectationsWereMet())
}
