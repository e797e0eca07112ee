package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// ApprovalSubject is the subject line of the approval email.
const ApprovalSubject = "Surat Keterangan Medis Anda Siap!"

// Approval describes an approval notification for a patient.
type Approval struct {
	To              string
	PatientName     string
	CertificateID   string
	VerificationURL string
	DocumentURL     string
	Document        []byte
}

// Validate checks the minimum fields needed to send.
func (a Approval) Validate() error {
	if strings.TrimSpace(a.To) == "" {
		return errors.New("recipient required")
	}
	if a.CertificateID == "" {
		return errors.New("certificate id required")
	}
	return nil
}

// Body renders the plain text body of the approval email.
func (a Approval) Body(senderName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Halo %s,\n\n", a.PatientName)
	b.WriteString("Permohonan Anda telah disetujui.\n")
	fmt.Fprintf(&b, "ID Sertifikat: %s\n\n", a.CertificateID)
	if a.VerificationURL != "" {
		fmt.Fprintf(&b, "Verifikasi dokumen: %s\n", a.VerificationURL)
	}
	if a.DocumentURL != "" {
		fmt.Fprintf(&b, "Unduh dokumen: %s\n", a.DocumentURL)
	}
	b.WriteString("\nAnda dapat memverifikasi dokumen melalui portal kami atau mengunduh PDF yang terlampir.\n\n")
	fmt.Fprintf(&b, "Salam,\n%s\n", senderName)
	return b.String()
}

// SendGridMailer delivers notifications through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey   string
	host     string
	fromAddr string
	fromName string
}

// NewSendGridMailer constructs a SendGrid-backed mailer. An empty host uses
// the public SendGrid API.
func NewSendGridMailer(apiKey, host, fromAddr, fromName string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, host: strings.TrimRight(host, "/"), fromAddr: fromAddr, fromName: fromName}
}

// SendApproval emails the patient that the certificate is ready, attaching the PDF when present.
func (m *SendGridMailer) SendApproval(ctx context.Context, a Approval) error {
	if err := a.Validate(); err != nil {
		return err
	}

	msg := mail.NewSingleEmailPlainText(
		mail.NewEmail(m.fromName, m.fromAddr),
		ApprovalSubject,
		mail.NewEmail(a.PatientName, a.To),
		a.Body(m.fromName),
	)
	if len(a.Document) > 0 {
		attachment := mail.NewAttachment().
			SetContent(base64.StdEncoding.EncodeToString(a.Document)).
			SetType("application/pdf").
			SetFilename(a.CertificateID + ".pdf").
			SetDisposition("attachment")
		msg.AddAttachment(attachment)
	}

	// the client carries the request body, so each send gets its own
	client := sendgrid.NewSendClient(m.apiKey)
	if m.host != "" {
		client.BaseURL = m.host + "/v3/mail/send"
	}
	resp, err := client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// ErrNotDelivered reports that a notification was only logged, so callers
// must not record it as delivered.
var ErrNotDelivered = errors.New("mailer: no delivery backend configured, message logged only")

// LogMailer writes notifications to the log instead of sending them. It is
// used when no SendGrid key is configured.
type LogMailer struct {
	logger   *zap.Logger
	fromName string
}

// NewLogMailer constructs a log-only mailer.
func NewLogMailer(logger *zap.Logger, fromName string) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger, fromName: fromName}
}

// SendApproval logs the notification and reports ErrNotDelivered.
func (m *LogMailer) SendApproval(ctx context.Context, a Approval) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("approval email (log only)",
		zap.String("to", a.To),
		zap.String("subject", ApprovalSubject),
		zap.String("certificate_id", a.CertificateID),
		zap.Int("attachment_bytes", len(a.Document)),
	)
	return ErrNotDelivered
}
