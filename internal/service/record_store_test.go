package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/medsurat-api/internal/models"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

func validSubmission() models.Submission {
	return models.Submission{
		NIK:      "3201123456780001",
		FullName: "Budi Santoso",
		DOB:      "1990-05-17",
		Address:  "Jl. Merdeka No. 1, Bogor",
		Email:    "budi@example.com",
		Type:     models.CertificateTypeHealthCheck,
		Symptoms: "Pemeriksaan untuk melamar pekerjaan",
	}
}

func newTestRecordStore() (*RecordStore, *memRequestStore, *auditStub) {
	store := newMemRequestStore()
	audit := &auditStub{}
	return NewRecordStore(store, audit, NewMetricsService(), nil, nil), store, audit
}

func TestRecordStoreCreate(t *testing.T) {
	records, _, audit := newTestRecordStore()

	sub := validSubmission()
	sub.FullName = "  Budi Santoso  "
	rec, err := records.Create(context.Background(), sub)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.RequestStatusPending, rec.Status)
	assert.Equal(t, "Budi Santoso", rec.FullName)
	assert.Nil(t, rec.CertificateID)
	assert.Nil(t, rec.DoctorNotes)
	assert.False(t, rec.RequestDate.IsZero())
	assert.Equal(t, []string{models.AuditActionRequestCreate}, audit.actions())

	loaded, err := records.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
}

func TestRecordStoreCreateValidation(t *testing.T) {
	records, store, _ := newTestRecordStore()

	cases := map[string]func(*models.Submission){
		"short nik":     func(s *models.Submission) { s.NIK = "12345" },
		"non digit nik": func(s *models.Submission) { s.NIK = "32011234567800AB" },
		"missing name":  func(s *models.Submission) { s.FullName = " " },
		"bad email":     func(s *models.Submission) { s.Email = "budi" },
		"bad type":      func(s *models.Submission) { s.Type = "VACCINE" },
		"bad dob":       func(s *models.Submission) { s.DOB = "17-05-1990" },
		"future dob":    func(s *models.Submission) { s.DOB = time.Now().AddDate(1, 0, 0).Format("2006-01-02") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			sub := validSubmission()
			mutate(&sub)
			_, err := records.Create(context.Background(), sub)
			require.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
	assert.Empty(t, store.records)
}

func TestRecordStoreGetNotFound(t *testing.T) {
	records, _, _ := newTestRecordStore()
	_, err := records.Get(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = records.Update(context.Background(), "missing", models.RequestPatch{DoctorNotes: strPtr("x")})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRecordStoreListNewestFirst(t *testing.T) {
	records, _, _ := newTestRecordStore()
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		records.now = func() time.Time { return at }
		_, err := records.Create(context.Background(), validSubmission())
		require.NoError(t, err)
	}

	list, pagination, err := records.List(context.Background(), models.RequestFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].RequestDate.After(list[1].RequestDate))
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)

	list, pagination, err = records.List(context.Background(), models.RequestFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, pagination.Page)

	_, _, err = records.List(context.Background(), models.RequestFilter{Status: "DONE"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRecordStoreUpdateLifecycle(t *testing.T) {
	records, _, _ := newTestRecordStore()
	rec, err := records.Create(context.Background(), validSubmission())
	require.NoError(t, err)

	approved := models.RequestStatusApproved
	_, err = records.Update(context.Background(), rec.ID, models.RequestPatch{Status: &approved})
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition, "approval without certificate id")

	updated, err := records.Update(context.Background(), rec.ID, models.RequestPatch{Status: &approved, CertificateID: strPtr("MC-2025-0001")})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, updated.Status)

	_, err = records.Update(context.Background(), rec.ID, models.RequestPatch{Status: &approved, CertificateID: strPtr("MC-2025-0002")})
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = records.Update(context.Background(), rec.ID, models.RequestPatch{DoctorNotes: strPtr("late")})
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	current, err := records.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "MC-2025-0001", *current.CertificateID)
	assert.Nil(t, current.DoctorNotes)

	_, err = records.Update(context.Background(), rec.ID, models.RequestPatch{})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRecordStoreUpdateDuplicateCertificateID(t *testing.T) {
	records, _, _ := newTestRecordStore()
	first, err := records.Create(context.Background(), validSubmission())
	require.NoError(t, err)
	second, err := records.Create(context.Background(), validSubmission())
	require.NoError(t, err)

	approved := models.RequestStatusApproved
	_, err = records.Update(context.Background(), first.ID, models.RequestPatch{Status: &approved, CertificateID: strPtr("MC-2025-0001")})
	require.NoError(t, err)
	_, err = records.Update(context.Background(), second.ID, models.RequestPatch{Status: &approved, CertificateID: strPtr("MC-2025-0001")})
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRecordStoreFindApprovedByCertificateID(t *testing.T) {
	records, _, _ := newTestRecordStore()
	rec, err := records.Create(context.Background(), validSubmission())
	require.NoError(t, err)

	_, err = records.FindApprovedByCertificateID(context.Background(), rec.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound, "pending records are not found")

	approved := models.RequestStatusApproved
	_, err = records.Update(context.Background(), rec.ID, models.RequestPatch{Status: &approved, CertificateID: strPtr("MC-2025-0042")})
	require.NoError(t, err)

	byCert, err := records.FindApprovedByCertificateID(context.Background(), "MC-2025-0042")
	require.NoError(t, err)
	byID, err := records.FindApprovedByCertificateID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, byCert.ID, byID.ID)
}

func TestRecordStoreHistory(t *testing.T) {
	records, _, _ := newTestRecordStore()
	rec, err := records.Create(context.Background(), validSubmission())
	require.NoError(t, err)

	logs, err := records.History(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionRequestCreate, logs[0].Action)

	_, err = records.History(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func strPtr(s string) *string { return &s }
