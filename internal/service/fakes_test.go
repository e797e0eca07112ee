package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/medsurat-api/internal/models"
	"github.com/noah-isme/medsurat-api/internal/repository"
	"github.com/noah-isme/medsurat-api/pkg/ai"
	"github.com/noah-isme/medsurat-api/pkg/document"
	"github.com/noah-isme/medsurat-api/pkg/mailer"
	"github.com/noah-isme/medsurat-api/pkg/storage"
)

// memRequestStore is an in-memory requestStore with the same compare-and-set
// semantics as the Postgres repository.
type memRequestStore struct {
	mu        sync.Mutex
	records   map[string]models.CertificateRequest
	seq       int
	createErr error
	updateErr error
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{records: make(map[string]models.CertificateRequest)}
}

func (m *memRequestStore) Create(ctx context.Context, req *models.CertificateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if req.ID == "" {
		m.seq++
		req.ID = fmt.Sprintf("req_%04d", m.seq)
	}
	m.records[req.ID] = *req
	return nil
}

func (m *memRequestStore) GetByID(ctx context.Context, id string) (*models.CertificateRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rec, nil
}

func (m *memRequestStore) List(ctx context.Context, filter models.RequestFilter) ([]models.CertificateRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]models.CertificateRequest, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].RequestDate.Equal(matched[j].RequestDate) {
			return matched[i].RequestDate.After(matched[j].RequestDate)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	if filter.Offset >= total {
		return []models.CertificateRequest{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (m *memRequestStore) UpdateIfStatus(ctx context.Context, id string, expected models.RequestStatus, patch models.RequestPatch) (*models.CertificateRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	rec, ok := m.records[id]
	if !ok || rec.Status != expected {
		return nil, sql.ErrNoRows
	}
	if patch.CertificateID != nil {
		for otherID, other := range m.records {
			if otherID != id && other.CertificateID != nil && *other.CertificateID == *patch.CertificateID {
				return nil, repository.ErrDuplicateCertificateID
			}
		}
	}
	updated := rec.Apply(patch)
	m.records[id] = updated
	return &updated, nil
}

func (m *memRequestStore) FindApprovedByCertificateID(ctx context.Context, id string) (*models.CertificateRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Status != models.RequestStatusApproved {
			continue
		}
		if rec.ID == id || (rec.CertificateID != nil && *rec.CertificateID == id) {
			found := rec
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memRequestStore) CertificateIDExists(ctx context.Context, certID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.CertificateID != nil && *rec.CertificateID == certID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRequestStore) LatestCertificateSequence(ctx context.Context, prefix string, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	head := fmt.Sprintf("%s-%04d-", prefix, year)
	latest := -1
	for _, rec := range m.records {
		if rec.CertificateID == nil || !strings.HasPrefix(*rec.CertificateID, head) {
			continue
		}
		var seq int
		if _, err := fmt.Sscanf(strings.TrimPrefix(*rec.CertificateID, head), "%d", &seq); err == nil && seq > latest {
			latest = seq
		}
	}
	return latest, nil
}

func (m *memRequestStore) certificateIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0)
	for _, rec := range m.records {
		if rec.CertificateID != nil {
			ids = append(ids, *rec.CertificateID)
		}
	}
	return ids
}

type auditStub struct {
	mu   sync.Mutex
	logs []models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, *log)
	return nil
}

func (a *auditStub) ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditLog, 0)
	for _, l := range a.logs {
		if l.Resource == resource && l.ResourceID != nil && *l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type gateStub struct {
	session *models.Session
	err     error
}

func (g gateStub) RequireSession(ctx context.Context) (*models.Session, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

func officerSession() *models.Session {
	return &models.Session{
		ID:        "sess-1",
		Officer:   models.OfficerInfo{Email: "dokter@klinik.test", FullName: "dr. Sari", Role: models.OfficerRole},
		IssuedAt:  time.Now().Add(-time.Minute),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

type storageStub struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	// delay holds uploads past their deadline, ignoring cancellation
	delay   time.Duration
	deleted []string
}

func newStorageStub() *storageStub {
	return &storageStub{objects: make(map[string][]byte)}
}

func (s *storageStub) Upload(ctx context.Context, name string, data []byte) (string, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.objects[name] = append([]byte(nil), data...)
	return "http://files.test/" + name, nil
}

func (s *storageStub) Open(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (s *storageStub) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *storageStub) deletedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func (s *storageStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type rendererStub struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (r *rendererStub) Render(ctx context.Context, cert document.Certificate) ([]byte, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + cert.CertificateID), nil
}

func (r *rendererStub) VerificationURL(certificateID string) string {
	return "http://verify.test/?id=" + certificateID
}

type notifierStub struct {
	mu    sync.Mutex
	err   error
	block bool
	sent  []mailer.Approval
}

func (n *notifierStub) SendApproval(ctx context.Context, approval mailer.Approval) error {
	if n.block {
		<-ctx.Done()
		return ctx.Err()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, approval)
	return nil
}

type completerStub struct {
	text     string
	err      error
	messages []ai.Message
}

func (c *completerStub) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	c.messages = messages
	return c.text, c.err
}

type linkStub struct{}

func (linkStub) DownloadURL(certificateID string) (string, time.Time, error) {
	return "http://api.test/documents/" + certificateID, time.Now().Add(time.Hour), nil
}

var errBoom = errors.New("boom")
