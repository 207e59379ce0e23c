package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"votechain-backend/biometric"
	"votechain-backend/mockledger"
	"votechain-backend/storage"
)

// testEnv wires the services against the in-memory ledger and cache. The
// embedding verifier is deterministic, so face samples are plain byte
// strings: the same bytes always match, different bytes never do.
type testEnv struct {
	mock         *mockledger.MockLedger
	store        *storage.Store
	elections    *ElectionService
	votes        *VoteService
	verification *VerificationService
	metrics      *MetricsCollector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.Open("", logger)
	require.NoError(t, err)

	mock := mockledger.New()
	verifier := biometric.NewEmbeddingVerifier(biometric.DefaultMatchThreshold)
	metrics := NewMetricsCollector()

	elections := NewElectionService(mock, mock, store, logger)
	votes := NewVoteService(mock, mock, store, elections, verifier, metrics, logger)
	verification := NewVerificationService(mock, store, metrics, logger)

	return &testEnv{
		mock:         mock,
		store:        store,
		elections:    elections,
		votes:        votes,
		verification: verification,
		metrics:      metrics,
	}
}

// createElection sets up an election with two candidates and returns its id.
func (env *testEnv) createElection(t *testing.T, isLive bool, expiresAt *time.Time) uint64 {
	t.Helper()
	ctx := context.Background()

	id, _, err := env.elections.CreateElection(ctx, "Club President", "Annual election", isLive, expiresAt)
	require.NoError(t, err)
	_, err = env.elections.AddCandidate(ctx, id, "Asha")
	require.NoError(t, err)
	_, err = env.elections.AddCandidate(ctx, id, "Bram")
	require.NoError(t, err)
	return id
}

func (env *testEnv) startElection(t *testing.T, id uint64) {
	t.Helper()
	_, err := env.elections.StartElection(context.Background(), id)
	require.NoError(t, err)
}

func (env *testEnv) register(t *testing.T, id uint64, enrollment string, sample []byte) {
	t.Helper()
	_, err := env.votes.RegisterVoter(context.Background(), id, enrollment, "Test Voter", sample)
	require.NoError(t, err)
}

// freezeClock pins the election service clock so expiry is deterministic.
func (env *testEnv) freezeClock(at time.Time) {
	env.elections.now = func() time.Time { return at }
}
