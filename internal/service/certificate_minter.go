package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

// Mint strategies.
const (
	MintStrategyRandom     = "random"
	MintStrategySequential = "sequential"
)

const maxSequence = 9999

type mintStore interface {
	CertificateIDExists(ctx context.Context, certID string) (bool, error)
	LatestCertificateSequence(ctx context.Context, prefix string, year int) (int, error)
}

// MinterConfig tunes certificate ID allocation and validity windows.
type MinterConfig struct {
	Prefix              string
	Strategy            string
	MaxAttempts         int
	Location            *time.Location
	DefaultValidityDays int
	MaxValidityDays     int
}

// CertificateMinter allocates certificate IDs of the form PREFIX-YEAR-NNNN.
// IDs handed out but not yet committed are held in a pending set so two
// approvals in flight never receive the same number.
type CertificateMinter struct {
	store   mintStore
	cfg     MinterConfig
	metrics *MetricsService
	logger  *zap.Logger
	intn    func(n int) int

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewCertificateMinter constructs a CertificateMinter.
func NewCertificateMinter(store mintStore, cfg MinterConfig, metrics *MetricsService, logger *zap.Logger) *CertificateMinter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "MC"
	}
	if cfg.Strategy == "" {
		cfg.Strategy = MintStrategyRandom
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 32
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxValidityDays <= 0 {
		cfg.MaxValidityDays = 14
	}
	if cfg.DefaultValidityDays <= 0 || cfg.DefaultValidityDays > cfg.MaxValidityDays {
		cfg.DefaultValidityDays = 3
	}
	return &CertificateMinter{
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		intn:    rand.IntN,
		pending: make(map[string]struct{}),
	}
}

// Location returns the time zone certificate dates are expressed in.
func (m *CertificateMinter) Location() *time.Location {
	return m.cfg.Location
}

// Mint reserves a fresh certificate ID for year. Callers must Release the ID
// once it has been committed or abandoned.
func (m *CertificateMinter) Mint(ctx context.Context, year int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		id       string
		attempts int
		err      error
	)
	switch m.cfg.Strategy {
	case MintStrategySequential:
		id, attempts, err = m.mintSequential(ctx, year)
	default:
		id, attempts, err = m.mintRandom(ctx, year)
	}
	m.metrics.ObserveMintAttempts(attempts)
	if err != nil {
		return "", err
	}
	m.pending[id] = struct{}{}
	return id, nil
}

// Release drops id from the pending set.
func (m *CertificateMinter) Release(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

func (m *CertificateMinter) mintRandom(ctx context.Context, year int) (string, int, error) {
	last := 0
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		last = m.intn(maxSequence + 1)
		id := m.format(year, last)
		free, err := m.free(ctx, id)
		if err != nil {
			return "", attempt, err
		}
		if free {
			return id, attempt, nil
		}
	}

	// dense year: walk every remaining number once, starting after the last draw
	attempts := m.cfg.MaxAttempts
	for step := 1; step <= maxSequence; step++ {
		attempts++
		id := m.format(year, (last+step)%(maxSequence+1))
		free, err := m.free(ctx, id)
		if err != nil {
			return "", attempts, err
		}
		if free {
			return id, attempts, nil
		}
	}
	m.logger.Warn("certificate id space exhausted", zap.Int("year", year), zap.Int("attempts", attempts))
	return "", attempts, appErrors.Clone(appErrors.ErrMintingExhausted, "")
}

func (m *CertificateMinter) mintSequential(ctx context.Context, year int) (string, int, error) {
	latest, err := m.store.LatestCertificateSequence(ctx, m.cfg.Prefix, year)
	if err != nil {
		return "", 1, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate certificate id")
	}
	if high := m.highestPending(year); high > latest {
		latest = high
	}
	next := latest + 1
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if next > maxSequence {
			m.logger.Warn("certificate sequence exhausted", zap.Int("year", year))
			return "", attempt, appErrors.Clone(appErrors.ErrMintingExhausted, "")
		}
		id := m.format(year, next)
		free, err := m.free(ctx, id)
		if err != nil {
			return "", attempt, err
		}
		if free {
			return id, attempt, nil
		}
		next++
	}
	return "", m.cfg.MaxAttempts, appErrors.Clone(appErrors.ErrMintingExhausted, "")
}

func (m *CertificateMinter) free(ctx context.Context, id string) (bool, error) {
	if _, held := m.pending[id]; held {
		return false, nil
	}
	exists, err := m.store.CertificateIDExists(ctx, id)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate certificate id")
	}
	return !exists, nil
}

func (m *CertificateMinter) highestPending(year int) int {
	prefix := m.yearPrefix(year)
	high := -1
	for id := range m.pending {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		var seq int
		if _, err := fmt.Sscanf(strings.TrimPrefix(id, prefix), "%d", &seq); err == nil && seq > high {
			high = seq
		}
	}
	return high
}

func (m *CertificateMinter) yearPrefix(year int) string {
	return fmt.Sprintf("%s-%04d-", m.cfg.Prefix, year)
}

func (m *CertificateMinter) format(year, seq int) string {
	return fmt.Sprintf("%s%04d", m.yearPrefix(year), seq)
}

// ValidityWindow returns the period covered by a certificate starting on the
// calendar day of start. A non-positive days uses the configured default.
// The window ends days calendar days after it begins.
func (m *CertificateMinter) ValidityWindow(start time.Time, days int) (time.Time, time.Time, error) {
	if days <= 0 {
		days = m.cfg.DefaultValidityDays
	}
	if days > m.cfg.MaxValidityDays {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("validity cannot exceed %d days", m.cfg.MaxValidityDays))
	}
	local := start.In(m.cfg.Location)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.cfg.Location)
	return from, from.AddDate(0, 0, days), nil
}
