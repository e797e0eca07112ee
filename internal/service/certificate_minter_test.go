package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

var certificateIDPattern = regexp.MustCompile(`^MC-\d{4}-\d{4}$`)

// issuedIDs is a mintStore that tracks committed IDs and the highest sequence.
type issuedIDs struct {
	mu     sync.Mutex
	ids    map[string]struct{}
	latest map[int]int
	err    error
}

func newIssuedIDs() *issuedIDs {
	return &issuedIDs{ids: make(map[string]struct{}), latest: make(map[int]int)}
}

func (s *issuedIDs) CertificateIDExists(ctx context.Context, certID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.ids[certID]
	return ok, nil
}

func (s *issuedIDs) LatestCertificateSequence(ctx context.Context, prefix string, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if seq, ok := s.latest[year]; ok {
		return seq, nil
	}
	return -1, nil
}

func (s *issuedIDs) commit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
	var prefix string
	var year, seq int
	if _, err := fmt.Sscanf(strings.ReplaceAll(id, "-", " "), "%s %d %d", &prefix, &year, &seq); err != nil {
		return
	}
	if latest, ok := s.latest[year]; !ok || seq > latest {
		s.latest[year] = seq
	}
}

func TestMinterSequentialUniqueUntilExhausted(t *testing.T) {
	store := newIssuedIDs()
	minter := NewCertificateMinter(store, MinterConfig{Strategy: MintStrategySequential}, NewMetricsService(), nil)

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id, err := minter.Mint(context.Background(), 2025)
		require.NoError(t, err)
		require.Regexp(t, certificateIDPattern, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
		store.commit(id)
		minter.Release(id)
	}
	assert.Contains(t, seen, "MC-2025-0000")
	assert.Contains(t, seen, "MC-2025-9999")

	_, err := minter.Mint(context.Background(), 2025)
	require.ErrorIs(t, err, appErrors.ErrMintingExhausted)

	id, err := minter.Mint(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, "MC-2026-0000", id)
}

func TestMinterSequentialSkipsPending(t *testing.T) {
	minter := NewCertificateMinter(newIssuedIDs(), MinterConfig{Strategy: MintStrategySequential}, nil, nil)

	first, err := minter.Mint(context.Background(), 2025)
	require.NoError(t, err)
	second, err := minter.Mint(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "MC-2025-0000", first)
	assert.Equal(t, "MC-2025-0001", second)
}

func TestMinterDefaultUniqueUntilExhausted(t *testing.T) {
	store := newIssuedIDs()
	minter := NewCertificateMinter(store, MinterConfig{}, NewMetricsService(), nil)

	seen := make(map[string]struct{}, maxSequence+1)
	for i := 0; i <= maxSequence; i++ {
		id, err := minter.Mint(context.Background(), 2025)
		require.NoError(t, err, "call %d", i+1)
		require.Regexp(t, certificateIDPattern, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
		store.commit(id)
		minter.Release(id)
	}
	assert.Len(t, seen, 10000)

	_, err := minter.Mint(context.Background(), 2025)
	require.ErrorIs(t, err, appErrors.ErrMintingExhausted)

	_, err = minter.Mint(context.Background(), 2026)
	require.NoError(t, err)
}

func TestMinterRandomRetriesCollisions(t *testing.T) {
	store := newIssuedIDs()
	store.commit("MC-2025-0007")
	minter := NewCertificateMinter(store, MinterConfig{}, nil, nil)
	draws := []int{7, 7, 8}
	minter.intn = func(int) int {
		n := draws[0]
		if len(draws) > 1 {
			draws = draws[1:]
		}
		return n
	}

	id, err := minter.Mint(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "MC-2025-0008", id)

	// 0008 is still pending, so the walk moves past it
	minter.intn = func(int) int { return 8 }
	next, err := minter.Mint(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "MC-2025-0009", next)

	minter.Release(id)
	again, err := minter.Mint(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "MC-2025-0008", again)
}

func TestMinterRandomWalksAfterFailedDraws(t *testing.T) {
	store := newIssuedIDs()
	store.commit("MC-2025-9999")
	store.commit("MC-2025-0000")
	minter := NewCertificateMinter(store, MinterConfig{MaxAttempts: 5}, nil, nil)
	calls := 0
	minter.intn = func(int) int { calls++; return 9999 }

	id, err := minter.Mint(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "MC-2025-0001", id)
	assert.Equal(t, 5, calls)
}

func TestMinterStoreFailure(t *testing.T) {
	store := newIssuedIDs()
	store.err = errBoom
	minter := NewCertificateMinter(store, MinterConfig{}, nil, nil)

	_, err := minter.Mint(context.Background(), 2025)
	require.ErrorIs(t, err, appErrors.ErrInternal)
	require.ErrorIs(t, err, errBoom)
}

func TestMinterValidityWindow(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	minter := NewCertificateMinter(newIssuedIDs(), MinterConfig{Location: jakarta, DefaultValidityDays: 3}, nil, nil)

	// 20:00 UTC on Jan 30 is already Jan 31 in Jakarta
	start := time.Date(2025, 1, 30, 20, 0, 0, 0, time.UTC)
	from, until, err := minter.ValidityWindow(start, 2)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, jakarta), from)
	assert.Equal(t, time.Date(2025, 2, 2, 0, 0, 0, 0, jakarta), until)

	from, until, err = minter.ValidityWindow(start, 0)
	require.NoError(t, err)
	assert.Equal(t, 3*24*time.Hour, until.Sub(from))

	_, _, err = minter.ValidityWindow(start, 15)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
