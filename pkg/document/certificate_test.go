package document

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRenderer() *CertificateRenderer {
	loc := time.FixedZone("WIB", 7*3600)
	return NewCertificateRenderer(Provider{
		Name:       "MedSurat Health Center",
		Address:    "Jl. Digital No. 123, Jakarta Selatan, Indonesia",
		Contact:    "Tel: (021) 555-0199 | Email: info@medsurat.com",
		City:       "Jakarta",
		SignerName: "dr. MedSurat",
	}, "https://medsurat.test/api/v1/verify", loc, nil)
}

func sampleCertificate() Certificate {
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 0, 3)
	return Certificate{
		CertificateID: "MC-2025-0042",
		Category:      "SICK_LEAVE",
		FullName:      "Siti Rahmawati",
		NIK:           "3171234567890002",
		DOB:           time.Date(1990, 8, 17, 0, 0, 0, 0, time.UTC),
		Address:       "Jl. Kenanga No. 5, Depok",
		Notes:         "Pasien mengalami demam dan batuk. Disarankan istirahat total dan minum obat sesuai resep.",
		ValidFrom:     &from,
		ValidUntil:    &until,
		IssuedAt:      time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}

func TestRenderProducesPDF(t *testing.T) {
	data, err := testRenderer().Render(context.Background(), sampleCertificate())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRenderIsDeterministic(t *testing.T) {
	r := testRenderer()
	first, err := r.Render(context.Background(), sampleCertificate())
	require.NoError(t, err)
	second, err := r.Render(context.Background(), sampleCertificate())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRenderWithoutValidityWindow(t *testing.T) {
	cert := sampleCertificate()
	cert.Category = "HEALTH_CHECK"
	cert.ValidFrom, cert.ValidUntil = nil, nil
	data, err := testRenderer().Render(context.Background(), cert)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestRenderWithoutQRCode(t *testing.T) {
	r := testRenderer()
	r.verifyBaseURL = "https://medsurat.test/" + strings.Repeat("x", 8000)
	data, err := r.Render(context.Background(), sampleCertificate())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestQRImageIsSharpPNG(t *testing.T) {
	data, err := qrImage("https://medsurat.test/api/v1/verify?id=MC-2025-0042")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "qr must be 8-bit gray, got %T", img)
	require.Equal(t, qrPixels, gray.Bounds().Dx())

	for _, v := range gray.Pix {
		require.True(t, v == 0 || v == 255, "qr pixel %d is neither black nor white", v)
	}
}

func TestRenderRequiresCertificateID(t *testing.T) {
	cert := sampleCertificate()
	cert.CertificateID = ""
	_, err := testRenderer().Render(context.Background(), cert)
	require.Error(t, err)
}

func TestRenderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testRenderer().Render(ctx, sampleCertificate())
	require.ErrorIs(t, err, context.Canceled)
}

func TestTitleFallback(t *testing.T) {
	require.Equal(t, "SURAT RUJUKAN", Title("REFERRAL"))
	require.Equal(t, "SURAT KETERANGAN DOKTER", Title("UNKNOWN"))
}

func TestVerificationURL(t *testing.T) {
	r := testRenderer()
	require.Equal(t, "https://medsurat.test/api/v1/verify?id=MC-2025-0042", r.VerificationURL("MC-2025-0042"))

	r.verifyBaseURL = "https://medsurat.test/#/verify?lang=id"
	require.Equal(t, "https://medsurat.test/#/verify?lang=id&id=MC-2025-0042", r.VerificationURL("MC-2025-0042"))
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "17 Agustus 1945", FormatDate(time.Date(1945, 8, 17, 0, 0, 0, 0, time.UTC)))
	from := time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "30 Januari 2025 s/d 2 Februari 2025", FormatPeriod(from, from.AddDate(0, 0, 3)))
}
