package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

const (
	pageWidth   = 210.0
	pageHeight  = 297.0
	footerH     = 60.0
	marginLeft  = 20.0
	marginRight = 20.0
	contentW    = pageWidth - marginLeft - marginRight
	qrSize      = 30.0
	qrPixels    = 300
)

var titles = map[string]string{
	"SICK_LEAVE":     "SURAT KETERANGAN SAKIT",
	"HEALTH_CHECK":   "SURAT KETERANGAN SEHAT",
	"REFERRAL":       "SURAT RUJUKAN",
	"NARCOTICS_FREE": "SURAT KETERANGAN BEBAS NARKOBA",
	"COMBINED":       "SURAT KETERANGAN KESEHATAN & BEBAS NARKOBA",
}

const fallbackTitle = "SURAT KETERANGAN DOKTER"

// Title returns the printed heading for a certificate category.
func Title(category string) string {
	if t, ok := titles[category]; ok {
		return t
	}
	return fallbackTitle
}

// Provider is the issuing clinic printed on every certificate.
type Provider struct {
	Name       string
	Address    string
	Contact    string
	City       string
	SignerName string
}

// Certificate is the snapshot of an approved request needed to print it.
type Certificate struct {
	CertificateID string
	Category      string
	FullName      string
	NIK           string
	DOB           time.Time
	Address       string
	Notes         string
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	IssuedAt      time.Time
}

// CertificateRenderer prints certificates as A4 PDFs carrying a QR code that
// links to the public verification endpoint.
type CertificateRenderer struct {
	provider      Provider
	verifyBaseURL string
	location      *time.Location
	logger        *zap.Logger
}

// NewCertificateRenderer constructs a renderer. Dates are printed in loc.
func NewCertificateRenderer(provider Provider, verifyBaseURL string, loc *time.Location, logger *zap.Logger) *CertificateRenderer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateRenderer{provider: provider, verifyBaseURL: verifyBaseURL, location: loc, logger: logger}
}

// VerificationURL returns the link encoded in the QR code for certificateID.
func (r *CertificateRenderer) VerificationURL(certificateID string) string {
	sep := "?"
	if strings.Contains(r.verifyBaseURL, "?") {
		sep = "&"
	}
	return r.verifyBaseURL + sep + "id=" + url.QueryEscape(certificateID)
}

// Render produces the PDF bytes for cert. Output depends only on cert, so
// rendering the same snapshot twice yields identical documents.
func (r *CertificateRenderer) Render(ctx context.Context, cert Certificate) ([]byte, error) {
	if cert.CertificateID == "" {
		return nil, fmt.Errorf("render certificate: certificate id required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	issued := cert.IssuedAt.In(r.location)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, 20, marginRight)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetCreationDate(issued)
	pdf.SetModificationDate(issued)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(Title(cert.Category)+" "+cert.CertificateID, true)
	pdf.SetAuthor(r.provider.Name, true)
	pdf.SetCreator("medsurat-api", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	r.masthead(pdf, tr)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(Title(cert.Category)), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr("No: "+cert.CertificateID), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.MultiCell(contentW, 6, tr(fmt.Sprintf("Yang bertanda tangan di bawah ini, dokter pada %s, menerangkan bahwa:", r.provider.Name)), "", "L", false)
	pdf.Ln(3)

	fields := [][2]string{
		{"Nama", cert.FullName},
		{"NIK", cert.NIK},
		{"Tanggal Lahir", FormatDate(cert.DOB)},
		{"Alamat", cert.Address},
	}
	for _, f := range fields {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(40, 7, f[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(5, 7, ":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(contentW-45, 7, tr(f[1]), "", "L", false)
	}
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Berdasarkan pemeriksaan medis, dinyatakan:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	notes := strings.TrimSpace(cert.Notes)
	if notes == "" {
		notes = "-"
	}
	pdf.MultiCell(contentW, 6, tr(notes), "", "J", false)

	if cert.ValidFrom != nil && cert.ValidUntil != nil {
		pdf.Ln(4)
		pdf.CellFormat(0, 6, "Diberikan istirahat sakit selama periode:", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, FormatPeriod(cert.ValidFrom.In(r.location), cert.ValidUntil.In(r.location)), "", 1, "L", false, 0, "")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.footer(pdf, tr, cert.CertificateID, issued)

	if pdf.Err() {
		return nil, fmt.Errorf("render certificate: %w", pdf.Error())
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *CertificateRenderer) masthead(pdf *gofpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(13, 166, 232)
	pdf.CellFormat(0, 10, tr(r.provider.Name), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, tr(r.provider.Address), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, tr(r.provider.Contact), "", 1, "C", false, 0, "")
	y := pdf.GetY() + 3
	pdf.SetDrawColor(204, 204, 204)
	pdf.SetLineWidth(0.4)
	pdf.Line(marginLeft, y, pageWidth-marginRight, y)
	pdf.SetY(y + 8)
}

func (r *CertificateRenderer) footer(pdf *gofpdf.Fpdf, tr func(string) string, certificateID string, issued time.Time) {
	pdf.Ln(12)
	top := pdf.GetY()
	if top > pageHeight-footerH {
		pdf.AddPage()
		top = pdf.GetY()
	}
	signX := pageWidth - marginRight - 70

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(signX, top)
	pdf.CellFormat(70, 6, tr(fmt.Sprintf("%s, %s", r.provider.City, FormatDate(issued))), "", 2, "L", false, 0, "")
	pdf.CellFormat(70, 6, "Dokter Pemeriksa,", "", 2, "L", false, 0, "")
	pdf.Ln(10)
	pdf.SetX(signX)
	pdf.SetFont("Times", "I", 10)
	pdf.SetTextColor(0, 102, 204)
	pdf.CellFormat(70, 6, "( Digitally Signed )", "", 2, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(70, 6, tr(r.provider.SignerName), "", 2, "L", false, 0, "")

	if img, err := qrImage(r.VerificationURL(certificateID)); err != nil {
		r.logger.Warn("qr code skipped", zap.String("certificate_id", certificateID), zap.Error(err))
	} else {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		name := "qr-" + certificateID
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
		pdf.ImageOptions(name, marginLeft, top, qrSize, qrSize, false, opts, 0, "")
		if pdf.Err() {
			r.logger.Warn("qr code skipped", zap.String("certificate_id", certificateID), zap.Error(pdf.Error()))
			pdf.ClearError()
		}
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(marginLeft, top+qrSize+1)
	pdf.CellFormat(50, 4, "Scan untuk Verifikasi", "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(50, 4, certificateID, "", 2, "L", false, 0, "")
}

func qrImage(content string) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	scaled, err := barcode.Scale(code, qrPixels, qrPixels)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}
	// gofpdf rejects 16-bit PNGs, so flatten to 8-bit gray
	gray := image.NewGray(scaled.Bounds())
	draw.Draw(gray, gray.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, gray); err != nil {
		return nil, fmt.Errorf("encode qr image: %w", err)
	}
	return buf.Bytes(), nil
}
