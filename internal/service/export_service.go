package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/medsurat-api/internal/dto"
	"github.com/noah-isme/medsurat-api/internal/models"
	"github.com/noah-isme/medsurat-api/pkg/document"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
	"github.com/noah-isme/medsurat-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const (
	exportPageSize = 200
	maxExportRows  = 10000
)

type exportRecords interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.CertificateRequest, *models.Pagination, error)
}

type datasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

var historyHeaders = []string{
	"ID", "Tanggal Permohonan", "Nama", "NIK", "Email", "Jenis", "Status",
	"No. Sertifikat", "Berlaku Dari", "Berlaku Sampai", "Email Terkirim",
}

// ExportService renders the officer request history as CSV or PDF.
type ExportService struct {
	records   exportRecords
	renderers map[string]datasetRenderer
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the pkg/export defaults.
func NewExportService(records exportRecords, csv, pdf datasetRenderer, loc *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{
		records:   records,
		renderers: map[string]datasetRenderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders every request matching filter, newest first.
func (s *ExportService) Export(ctx context.Context, filter models.RequestFilter, format string) (*dto.Document, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	dataset := export.Dataset{Headers: historyHeaders}
	filter.Offset = 0
	filter.Limit = exportPageSize
	for {
		page, pagination, err := s.records.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := range page {
			dataset.Rows = append(dataset.Rows, s.row(&page[i]))
		}
		filter.Offset += len(page)
		if len(page) == 0 || filter.Offset >= pagination.TotalCount {
			break
		}
		if filter.Offset >= maxExportRows {
			s.logger.Warn("export truncated", zap.Int("rows", filter.Offset), zap.Int("total", pagination.TotalCount))
			break
		}
	}

	generated := s.now().In(s.loc)
	payload, err := renderer.Render(dataset, "Riwayat Permohonan Surat Keterangan")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.Document{
		Filename:    fmt.Sprintf("riwayat_permohonan_%s.%s", generated.Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) row(r *models.CertificateRequest) map[string]string {
	row := map[string]string{
		"ID":                 r.ID,
		"Tanggal Permohonan": r.RequestDate.In(s.loc).Format("2006-01-02 15:04"),
		"Nama":               r.FullName,
		"NIK":                r.NIK,
		"Email":              r.Email,
		"Jenis":              document.Title(string(r.Type)),
		"Status":             string(r.Status),
		"Email Terkirim":     strconv.FormatBool(r.EmailSent),
	}
	if r.CertificateID != nil {
		row["No. Sertifikat"] = *r.CertificateID
	}
	if r.ValidFrom != nil {
		row["Berlaku Dari"] = document.FormatDate(r.ValidFrom.In(s.loc))
	}
	if r.ValidUntil != nil {
		row["Berlaku Sampai"] = document.FormatDate(r.ValidUntil.In(s.loc))
	}
	return row
}
