package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func statusPtr(s RequestStatus) *RequestStatus { return &s }
func strPtr(s string) *string                  { return &s }
func boolPtr(b bool) *bool                     { return &b }

func TestCheckPatchTransitions(t *testing.T) {
	now := time.Now()
	later := now.Add(72 * time.Hour)

	cases := []struct {
		name    string
		current RequestStatus
		patch   RequestPatch
		ok      bool
	}{
		{"approve pending with id", RequestStatusPending, RequestPatch{Status: statusPtr(RequestStatusApproved), CertificateID: strPtr("MC-2025-0001"), DoctorNotes: strPtr("fit")}, true},
		{"approve without id", RequestStatusPending, RequestPatch{Status: statusPtr(RequestStatusApproved)}, false},
		{"reject pending", RequestStatusPending, RequestPatch{Status: statusPtr(RequestStatusRejected)}, true},
		{"reject with id", RequestStatusPending, RequestPatch{Status: statusPtr(RequestStatusRejected), CertificateID: strPtr("MC-2025-0001")}, false},
		{"approve approved", RequestStatusApproved, RequestPatch{Status: statusPtr(RequestStatusApproved), CertificateID: strPtr("MC-2025-0002")}, false},
		{"reject approved", RequestStatusApproved, RequestPatch{Status: statusPtr(RequestStatusRejected)}, false},
		{"approve rejected", RequestStatusRejected, RequestPatch{Status: statusPtr(RequestStatusApproved), CertificateID: strPtr("MC-2025-0002")}, false},
		{"back to pending", RequestStatusPending, RequestPatch{Status: statusPtr(RequestStatusPending)}, false},
		{"id without decision", RequestStatusPending, RequestPatch{CertificateID: strPtr("MC-2025-0001")}, false},
		{"notes while pending", RequestStatusPending, RequestPatch{DoctorNotes: strPtr("draft")}, true},
		{"notes after approval", RequestStatusApproved, RequestPatch{DoctorNotes: strPtr("edit")}, false},
		{"validity after rejection", RequestStatusRejected, RequestPatch{ValidFrom: &now, ValidUntil: &later}, false},
		{"half validity", RequestStatusPending, RequestPatch{ValidFrom: &now}, false},
		{"inverted validity", RequestStatusPending, RequestPatch{ValidFrom: &later, ValidUntil: &now}, false},
		{"email flag after approval", RequestStatusApproved, RequestPatch{EmailSent: boolPtr(true)}, true},
		{"email flag while pending", RequestStatusPending, RequestPatch{EmailSent: boolPtr(true)}, false},
		{"reviewer without decision", RequestStatusPending, RequestPatch{ReviewedBy: strPtr("officer")}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckPatch(tc.current, tc.patch)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrIllegalPatch)
		})
	}
}

func TestApplyPatch(t *testing.T) {
	record := CertificateRequest{ID: "req_1", Status: RequestStatusPending}
	updated := record.Apply(RequestPatch{
		Status:        statusPtr(RequestStatusApproved),
		CertificateID: strPtr("MC-2025-0001"),
		EmailSent:     boolPtr(true),
	})

	require.Equal(t, RequestStatusApproved, updated.Status)
	require.Equal(t, "MC-2025-0001", *updated.CertificateID)
	require.True(t, updated.EmailSent)
	require.Equal(t, RequestStatusPending, record.Status)
}

func TestMaskNIK(t *testing.T) {
	require.Equal(t, "************0001", MaskNIK("3201123456780001"))
	require.Equal(t, "***", MaskNIK("123"))
}

func TestCertificateTypeValidity(t *testing.T) {
	require.True(t, CertificateTypeSickLeave.HasValidityWindow())
	require.False(t, CertificateTypeHealthCheck.HasValidityWindow())
	require.True(t, CertificateTypeCombined.Valid())
	require.False(t, CertificateType("DENTAL").Valid())
}
